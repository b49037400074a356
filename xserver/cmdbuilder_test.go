package xserver

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withFakeBinary puts an executable named name on PATH for the duration of
// the test, so CommandBuilder.Build's resolveCommand step succeeds
// deterministically instead of depending on what's actually installed.
func withFakeBinary(t *testing.T, name string) (absolute string) {
	t.Helper()
	if runtime.GOOS != "linux" && runtime.GOOS != "darwin" {
		t.Skip("fake binary setup assumes a POSIX shell")
	}

	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\nexit 0\n"), 0755))

	oldPath := os.Getenv("PATH")
	require.NoError(t, os.Setenv("PATH", dir+string(os.PathListSeparator)+oldPath))
	t.Cleanup(func() { os.Setenv("PATH", oldPath) })

	return path
}

func TestBuildAssemblesArgumentsInFixedOrder(t *testing.T) {
	absolute := withFakeBinary(t, "X")
	b := &CommandBuilder{}

	line, err := b.Build(context.Background(), CommandSpec{
		Command:       "X",
		DisplayNumber: 2,
		Layout:        "foo",
		XDGSeat:       "seat0",
		AuthorityFile: "/run/lightdm/root/:2",
		VT:            7,
	})
	require.NoError(t, err)

	want := absolute + " :2 -layout foo -seat seat0 -auth /run/lightdm/root/:2 -nolisten tcp vt7 -novtswitch"
	assert.Equal(t, want, line)
}

func TestBuildXDMCPQueryOmitsTCPFlags(t *testing.T) {
	withFakeBinary(t, "X")
	b := &CommandBuilder{}

	line, err := b.Build(context.Background(), CommandSpec{
		Command:       "X",
		DisplayNumber: 0,
		XDMCPServer:   "host.example",
		XDMCPPort:     177,
		XDMCPKey:      "deadbeef",
	})
	require.NoError(t, err)

	assert.Contains(t, line, "-port 177 -query host.example -cookie deadbeef")
	assert.NotContains(t, line, "-listen tcp")
	assert.NotContains(t, line, "-nolisten tcp")
}

func TestBuildNeverEmitsBothListenFlags(t *testing.T) {
	withFakeBinary(t, "X")
	b := &CommandBuilder{}

	line, err := b.Build(context.Background(), CommandSpec{Command: "X", DisplayNumber: 0, AllowTCP: true})
	require.NoError(t, err)

	hasListen := strings.Contains(line, "-listen tcp")
	hasNoListen := strings.Contains(line, "-nolisten tcp")
	assert.False(t, hasListen && hasNoListen, "command must not contain both -listen tcp and -nolisten tcp: %q", line)
}

func TestBuildPreservesTrailingArgsAfterFirstWhitespace(t *testing.T) {
	withFakeBinary(t, "X")
	b := &CommandBuilder{}

	line, err := b.Build(context.Background(), CommandSpec{Command: "X -keeptty -retro", DisplayNumber: 0})
	require.NoError(t, err)

	assert.Contains(t, line, "-keeptty -retro")
}

func TestBuildUnresolvableBinaryFails(t *testing.T) {
	b := &CommandBuilder{}
	_, err := b.Build(context.Background(), CommandSpec{Command: "this-binary-does-not-exist-anywhere", DisplayNumber: 0})
	assert.ErrorIs(t, err, ErrBinaryNotFound)
}

func TestBuildExtraArgsHookRunsLast(t *testing.T) {
	withFakeBinary(t, "X")
	b := &CommandBuilder{
		ExtraArgs: func(args []string) []string {
			return append(args, "-extra")
		},
	}

	line, err := b.Build(context.Background(), CommandSpec{Command: "X", DisplayNumber: 0, Background: "black"})
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(line, "-background black -extra"))
}
