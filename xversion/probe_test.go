package xversion

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func stubRunner(output string, err error) func(context.Context, string, ...string) ([]byte, error) {
	return func(ctx context.Context, name string, args ...string) ([]byte, error) {
		return []byte(output), err
	}
}

func TestCompareAgainstKnownVersion(t *testing.T) {
	p := New("X")
	p.runner = stubRunner("X.Org X Server 1.20.4\nRelease Date: 2018\n", nil)

	assert.Equal(t, 0, p.Compare(context.Background(), 1, 20))
	assert.True(t, p.Compare(context.Background(), 1, 17) > 0)
	assert.True(t, p.Compare(context.Background(), 1, 21) < 0)
	assert.True(t, p.Compare(context.Background(), 2, 0) < 0)
	assert.Equal(t, "1.20.4", p.Version(context.Background()))
}

func TestProbeIsMemoised(t *testing.T) {
	calls := 0
	p := New("X")
	p.runner = func(ctx context.Context, name string, args ...string) ([]byte, error) {
		calls++
		return []byte("X.Org X Server 1.19.0\n"), nil
	}

	p.Compare(context.Background(), 1, 0)
	p.Compare(context.Background(), 1, 0)
	assert.Equal(t, 1, calls)
}

func TestFailedSpawnYieldsUnknownVersion(t *testing.T) {
	p := New("X")
	p.runner = stubRunner("", errors.New("no such file"))

	assert.Equal(t, "", p.Version(context.Background()))
	assert.Equal(t, 0, p.Compare(context.Background(), 0, 0))
}

func TestNoMatchingLineYieldsUnknownVersion(t *testing.T) {
	p := New("X")
	p.runner = stubRunner("unexpected output\nwith no version line\n", nil)

	assert.Equal(t, "", p.Version(context.Background()))
	assert.Equal(t, -1, p.Compare(context.Background(), 1, 17))
}

func TestSingleTokenVersionDefaultsMinorToZero(t *testing.T) {
	p := New("X")
	p.runner = stubRunner("X.Org X Server 21\n", nil)

	assert.Equal(t, 0, p.Compare(context.Background(), 21, 0))
}
