// Package config provides the keyed configuration reader the core consumes
// as external collaborator (a) in spec section 1. It is backed by an
// INI-compatible parser, since LightDM's own configuration format (GKeyFile)
// is a keyfile dialect of INI.
package config

import (
	"fmt"

	"gopkg.in/ini.v1"
)

// Reader is the minimal keyed-configuration interface the core depends on.
// Components in this module take a Reader, never the concrete *File type,
// so a test can supply an in-memory stub.
type Reader interface {
	Int(section, key string, fallback int) int
	String(section, key string, fallback string) string
	Bool(section, key string, fallback bool) bool
}

// File is the default Reader, backed by gopkg.in/ini.v1.
type File struct {
	file *ini.File
}

// Load parses an INI-style configuration file from path.
func Load(path string) (*File, error) {
	f, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration %v: %w", path, err)
	}
	return &File{file: f}, nil
}

// Empty returns a Reader backed by an empty configuration, so callers that
// rely purely on defaults don't need a file on disk.
func Empty() *File {
	return &File{file: ini.Empty()}
}

func (f *File) Int(section, key string, fallback int) int {
	s := f.file.Section(section)
	if !s.HasKey(key) {
		return fallback
	}
	v, err := s.Key(key).Int()
	if err != nil {
		return fallback
	}
	return v
}

func (f *File) String(section, key string, fallback string) string {
	s := f.file.Section(section)
	if !s.HasKey(key) {
		return fallback
	}
	return s.Key(key).String()
}

func (f *File) Bool(section, key string, fallback bool) bool {
	s := f.file.Section(section)
	if !s.HasKey(key) {
		return fallback
	}
	v, err := s.Key(key).Bool()
	if err != nil {
		return fallback
	}
	return v
}

// Section name consumed throughout the core, per spec section 6.
const Section = "LightDM"

// Keys consumed throughout the core, per spec section 6.
const (
	KeyMinimumDisplayNumber = "minimum-display-number"
	KeyRunDirectory         = "run-directory"
	KeyLogDirectory         = "log-directory"
	KeyBackupLogs           = "backup-logs"
)

// Defaults mirror the defaults a stock LightDM installation ships with.
const (
	DefaultMinimumDisplayNumber = 0
	DefaultRunDirectory         = "/var/run/lightdm"
	DefaultLogDirectory         = "/var/log/lightdm"
	DefaultBackupLogs           = false
)
