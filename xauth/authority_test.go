package xauth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRoundTripEncodeDecode(t *testing.T) {
	record, err := NewRecord(":2", "2")
	require.NoError(t, err)

	decoded, err := Decode(record.Encode())
	require.NoError(t, err)

	assert.Equal(t, record.Family, decoded.Family)
	assert.Equal(t, record.Address, decoded.Address)
	assert.Equal(t, record.Number, decoded.Number)
	assert.Equal(t, record.Data, decoded.Data)
}

func TestWriteReplacesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ":2")
	require.NoError(t, os.WriteFile(path, []byte("stale"), 0600))

	record, err := NewRecord(":2", "2")
	require.NoError(t, err)
	require.NoError(t, Write(record, WriteModeReplace, path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)
	assert.Equal(t, record.Data, decoded.Data)
}

func TestTwoRecordsHaveDistinctCookies(t *testing.T) {
	a, err := NewRecord(":0", "0")
	require.NoError(t, err)
	b, err := NewRecord(":0", "0")
	require.NoError(t, err)

	assert.NotEqual(t, a.Data, b.Data)
}
