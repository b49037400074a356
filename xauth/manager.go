package xauth

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager materialises an authority record to a stable path under the run
// directory and unlinks it on stop, per spec section 4.3 (C3,
// AuthorityFileManager). It never fails the caller's start: every error is
// returned for logging, but the caller decides whether to proceed without
// an authority.
type Manager struct {
	runDirectory string
	path         string
}

// NewManager builds a Manager rooted at runDirectory (the "run-directory"
// configuration key). The authority tree lives at runDirectory/root, per
// spec section 6.
func NewManager(runDirectory string) *Manager {
	return &Manager{runDirectory: runDirectory}
}

// Path returns the authority file path produced by the last call to
// PathFor or Write, or "" if neither has run yet (or the file has since
// been removed).
func (m *Manager) Path() string {
	return m.path
}

// PathFor computes (and, from the first call on, caches) the authority
// path for address without touching disk, so a caller can learn where the
// authority file will live before deciding whether to write it — needed so
// command-line assembly can reference the path before a binary-resolution
// failure rules out forking at all, per spec section 4.6 steps 4-5.
func (m *Manager) PathFor(address string) string {
	if m.path == "" {
		m.path = filepath.Join(m.runDirectory, "root", address)
	}
	return m.path
}

// Write serialises authority to the path PathFor(address) would return,
// creating the authority directory (mode 0700) if it does not already
// exist. The directory path is computed once and reused on subsequent
// starts, per the "replaced in place on subsequent starts" lifecycle in
// spec section 3.
//
// A failure to create the directory is not fatal here: per spec section 4.3
// and the Open Question in section 9, the write is still attempted, and may
// still succeed if the directory already existed.
func (m *Manager) Write(authority *Record, address string) error {
	path := m.PathFor(address)
	dir := filepath.Dir(path)
	mkdirErr := os.MkdirAll(dir, 0700)

	if err := Write(authority, WriteModeReplace, path); err != nil {
		if mkdirErr != nil {
			return fmt.Errorf("failed creating authority directory %v: %w; write also failed: %v", dir, mkdirErr, err)
		}
		return fmt.Errorf("failed writing authority file %v: %w", path, err)
	}
	return nil
}

// Remove unlinks the authority file, if one was ever produced, and clears
// the stored path. Safe to call on a Manager that never wrote anything, and
// safe to call twice.
func (m *Manager) Remove() {
	if m.path == "" {
		return
	}
	_ = os.Remove(m.path)
	m.path = ""
}
