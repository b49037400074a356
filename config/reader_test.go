package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadReadsConfiguredKeys(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "lightdm.conf")
	contents := "[LightDM]\n" +
		"minimum-display-number=5\n" +
		"run-directory=/run/lightdm\n" +
		"backup-logs=true\n"
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))

	reader, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, reader.Int(Section, KeyMinimumDisplayNumber, DefaultMinimumDisplayNumber))
	assert.Equal(t, "/run/lightdm", reader.String(Section, KeyRunDirectory, DefaultRunDirectory))
	assert.True(t, reader.Bool(Section, KeyBackupLogs, DefaultBackupLogs))
	assert.Equal(t, DefaultLogDirectory, reader.String(Section, KeyLogDirectory, DefaultLogDirectory))
}

func TestEmptyReaderFallsBackToDefaults(t *testing.T) {
	reader := Empty()
	assert.Equal(t, DefaultMinimumDisplayNumber, reader.Int(Section, KeyMinimumDisplayNumber, DefaultMinimumDisplayNumber))
	assert.Equal(t, DefaultRunDirectory, reader.String(Section, KeyRunDirectory, DefaultRunDirectory))
	assert.False(t, reader.Bool(Section, KeyBackupLogs, DefaultBackupLogs))
}
