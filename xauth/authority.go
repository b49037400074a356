// Package xauth implements the authority-record encoder the core consumes
// as external collaborator (c) in spec section 1: a MIT-MAGIC-COOKIE-1
// entry serialised to the on-disk Xauthority wire format, the same binary
// layout libXau writes: family as a big-endian uint16, then address,
// number, name and data, each length-prefixed with a big-endian uint16.
//
// This package only emits bytes; it never speaks the X11 protocol itself,
// per the core's stated non-goals.
package xauth

import (
	"bytes"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Family mirrors the handful of Xauthority family codes relevant to a local
// display manager. FamilyLocal (256) is what Xlib uses for Unix-domain
// connections, which is what every display this core launches actually is.
type Family uint16

const (
	FamilyInternet Family = 0
	FamilyLocal    Family = 256
)

const cookieName = "MIT-MAGIC-COOKIE-1"
const cookieLength = 16

// Record is an opaque MIT-MAGIC-COOKIE-1 authority entry. The core only
// reads Address and hands the record to Write; it never inspects Data.
type Record struct {
	Family  Family
	Address string
	Number  string
	Data    [cookieLength]byte
}

// NewRecord builds a fresh authority record for address/number with a
// cryptographically random cookie.
func NewRecord(address, number string) (*Record, error) {
	r := &Record{
		Family:  FamilyLocal,
		Address: address,
		Number:  number,
	}
	if _, err := io.ReadFull(rand.Reader, r.Data[:]); err != nil {
		return nil, fmt.Errorf("failed generating authority cookie: %w", err)
	}
	return r, nil
}

// Encode serialises the record into the Xauthority binary wire format.
func (r *Record) Encode() []byte {
	var buf bytes.Buffer

	writeField := func(data []byte) {
		var length [2]byte
		binary.BigEndian.PutUint16(length[:], uint16(len(data)))
		buf.Write(length[:])
		buf.Write(data)
	}

	var family [2]byte
	binary.BigEndian.PutUint16(family[:], uint16(r.Family))
	buf.Write(family[:])

	writeField([]byte(r.Address))
	writeField([]byte(r.Number))
	writeField([]byte(cookieName))
	writeField(r.Data[:])

	return buf.Bytes()
}

// WriteMode mirrors XAUTH_WRITE_MODE_REPLACE from the original source: the
// only mode this core's use case requires. Append mode is not needed
// because each LocalXServer owns exactly one authority file.
type WriteMode int

const (
	WriteModeReplace WriteMode = iota
)

// Decode parses the wire format produced by Encode, used by tests to
// round-trip a written authority file.
func Decode(data []byte) (*Record, error) {
	r := bytes.NewReader(data)

	readUint16 := func() (uint16, error) {
		var b [2]byte
		if _, err := io.ReadFull(r, b[:]); err != nil {
			return 0, err
		}
		return binary.BigEndian.Uint16(b[:]), nil
	}

	readField := func() ([]byte, error) {
		n, err := readUint16()
		if err != nil {
			return nil, err
		}
		buf := make([]byte, n)
		if _, err := io.ReadFull(r, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}

	family, err := readUint16()
	if err != nil {
		return nil, fmt.Errorf("failed decoding authority family: %w", err)
	}
	address, err := readField()
	if err != nil {
		return nil, fmt.Errorf("failed decoding authority address: %w", err)
	}
	number, err := readField()
	if err != nil {
		return nil, fmt.Errorf("failed decoding authority number: %w", err)
	}
	name, err := readField()
	if err != nil {
		return nil, fmt.Errorf("failed decoding authority name: %w", err)
	}
	if string(name) != cookieName {
		return nil, fmt.Errorf("unsupported authority name %q", name)
	}
	data2, err := readField()
	if err != nil {
		return nil, fmt.Errorf("failed decoding authority data: %w", err)
	}
	if len(data2) != cookieLength {
		return nil, fmt.Errorf("unexpected cookie length %v", len(data2))
	}

	rec := &Record{Family: Family(family), Address: string(address), Number: string(number)}
	copy(rec.Data[:], data2)
	return rec, nil
}

// Write serialises authority to path in the requested mode, truncating and
// replacing any prior contents. The caller (AuthorityFileManager) is
// responsible for atomicity guarantees beyond a single start, per spec
// section 4.3 — none are made here.
func Write(authority *Record, mode WriteMode, path string) error {
	return atomicReplace(path, authority.Encode())
}

// atomicReplace writes data to path via a temp file in the same directory
// followed by a rename, so a reader never observes a partially-written
// authority file within a single start.
func atomicReplace(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".xauth-*")
	if err != nil {
		return fmt.Errorf("failed creating temp authority file in %v: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed writing authority file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed closing authority file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed replacing authority file %v: %w", path, err)
	}
	return nil
}
