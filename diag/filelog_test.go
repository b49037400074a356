package diag

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFileLogAppendMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x-0.log")

	log := NewFileLog(path)
	require.NoError(t, log.Run(LogModeAppend))
	log.Diagnostic("Launching X Server")
	log.channel <- outputLine("hello from child")
	log.Stop()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "Launching X Server")
	require.Contains(t, content, "hello from child")
}

func TestFileLogBackupAndTruncateRenamesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "x-1.log")
	require.NoError(t, os.WriteFile(path, []byte("old run\n"), 0644))

	log := NewFileLog(path)
	require.NoError(t, log.Run(LogModeBackupAndTruncate))
	log.channel <- outputLine("new run")
	log.Stop()

	newData, err := os.ReadFile(path)
	require.NoError(t, err)
	require.False(t, strings.Contains(string(newData), "old run"))
	require.Contains(t, string(newData), "new run")

	oldData, err := os.ReadFile(path + ".old")
	require.NoError(t, err)
	require.Contains(t, string(oldData), "old run")
}
