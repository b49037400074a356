// Package accounts implements the read-only projection over an external
// user-directory record described in spec section 4.8 (C8, UserHandle):
// name, uid, gid, home, shell, language and session, with every accessor
// defaulting to the zero value for a nil handle rather than panicking.
//
// It also restores the language/session persistence the distillation
// dropped (SPEC_FULL.md section C, grounded on original_source/accounts.c
// user_set_language/user_set_xsession): a real account-service client is
// out of scope for this core, so Directory is an interface and
// MemoryDirectory is the reference implementation used by the CLI and by
// tests.
package accounts

import (
	"bufio"
	"os"
	"os/user"
	"strconv"
	"strings"
	"sync"
)

// Record is the read-only snapshot of one account this core consumes.
// Language and Session are the two fields the original source persists
// back to the directory on Set; everything else is immutable once looked
// up.
type Record struct {
	Name     string
	UID      uint32
	GID      uint32
	Home     string
	Shell    string
	Language string
	Session  string
}

// Directory is the external collaborator UserHandle reads through. The
// core never constructs a Record itself; it always asks a Directory.
type Directory interface {
	ByName(name string) (Record, bool)
	CurrentUser() (Record, bool)
	SetLanguage(name, language string)
	SetSession(name, session string)
}

// MemoryDirectory is a Directory backed by os/user for name/uid/gid/home,
// a direct /etc/passwd scan for shell (os/user carries no such field), and
// an in-memory map for the two mutable fields, since no real account-service
// client is in scope for this core (SPEC_FULL.md section C). It is safe for
// concurrent use.
type MemoryDirectory struct {
	mu    sync.Mutex
	extra map[string]*extraFields

	lookupByName func(string) (*user.User, error)
	lookupByUID  func(string) (*user.User, error)
	currentUID   func() string
	shellForUID  func(string) string
}

type extraFields struct {
	language string
	session  string
}

// NewMemoryDirectory builds a MemoryDirectory backed by the real os/user
// package and the real effective uid.
func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{
		extra:        make(map[string]*extraFields),
		lookupByName: user.Lookup,
		lookupByUID:  user.LookupId,
		currentUID:   currentUIDString,
		shellForUID:  shellForUID,
	}
}

func (d *MemoryDirectory) ByName(name string) (Record, bool) {
	u, err := d.lookupByName(name)
	if err != nil {
		return Record{}, false
	}
	return d.toRecord(u), true
}

func (d *MemoryDirectory) CurrentUser() (Record, bool) {
	u, err := d.lookupByUID(d.currentUID())
	if err != nil {
		return Record{}, false
	}
	return d.toRecord(u), true
}

func (d *MemoryDirectory) SetLanguage(name, language string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fieldsLocked(name).language = language
}

func (d *MemoryDirectory) SetSession(name, session string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.fieldsLocked(name).session = session
}

func (d *MemoryDirectory) fieldsLocked(name string) *extraFields {
	f, ok := d.extra[name]
	if !ok {
		f = &extraFields{}
		d.extra[name] = f
	}
	return f
}

const passwdPath = "/etc/passwd"

// shellForUID scans /etc/passwd directly for uid's login shell: os/user.User
// carries no shell field, and a real AccountsService/D-Bus client is out of
// scope for this core (SPEC_FULL.md's non-goals), so this reads the same
// file glibc's own nss_files module would consult. Returns "" if uid has no
// entry, the file can't be read, or an entry is present but shell-less.
func shellForUID(uid string) string {
	f, err := os.Open(passwdPath)
	if err != nil {
		return ""
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		fields := strings.Split(scanner.Text(), ":")
		if len(fields) >= 7 && fields[2] == uid {
			return fields[6]
		}
	}
	return ""
}

func (d *MemoryDirectory) toRecord(u *user.User) Record {
	d.mu.Lock()
	f := d.extra[u.Username]
	d.mu.Unlock()

	r := Record{
		Name: u.Username,
		Home: u.HomeDir,
	}
	if d.shellForUID != nil {
		r.Shell = d.shellForUID(u.Uid)
	}
	if uid, err := strconv.ParseUint(u.Uid, 10, 32); err == nil {
		r.UID = uint32(uid)
	}
	if gid, err := strconv.ParseUint(u.Gid, 10, 32); err == nil {
		r.GID = uint32(gid)
	}
	if f != nil {
		r.Language = f.language
		r.Session = f.session
	}
	return r
}

// UserHandle is a thin, nullable wrapper over a Record, matching the
// "every accessor returns none/zero when given a null handle" nullability
// contract in spec section 4.8. A nil *UserHandle is valid to call every
// method on.
type UserHandle struct {
	dir    Directory
	record Record
	ok     bool
}

// Lookup builds a UserHandle for name, or a handle whose accessors all
// report zero values if name is not found.
func Lookup(dir Directory, name string) *UserHandle {
	rec, ok := dir.ByName(name)
	return &UserHandle{dir: dir, record: rec, ok: ok}
}

// Current builds a UserHandle for the effective uid of this process.
func Current(dir Directory) *UserHandle {
	rec, ok := dir.CurrentUser()
	return &UserHandle{dir: dir, record: rec, ok: ok}
}

func (u *UserHandle) Valid() bool { return u != nil && u.ok }

func (u *UserHandle) Name() string {
	if u == nil {
		return ""
	}
	return u.record.Name
}

func (u *UserHandle) UID() uint32 {
	if u == nil {
		return 0
	}
	return u.record.UID
}

func (u *UserHandle) GID() uint32 {
	if u == nil {
		return 0
	}
	return u.record.GID
}

func (u *UserHandle) HomeDirectory() string {
	if u == nil {
		return ""
	}
	return u.record.Home
}

func (u *UserHandle) Shell() string {
	if u == nil {
		return ""
	}
	return u.record.Shell
}

func (u *UserHandle) Language() string {
	if u == nil {
		return ""
	}
	return u.record.Language
}

// SetLanguage persists language via the backing directory and updates this
// handle's own cached view. A no-op on a nil handle.
func (u *UserHandle) SetLanguage(language string) {
	if u == nil || u.dir == nil {
		return
	}
	u.dir.SetLanguage(u.record.Name, language)
	u.record.Language = language
}

func (u *UserHandle) Session() string {
	if u == nil {
		return ""
	}
	return u.record.Session
}

// SetSession persists session via the backing directory and updates this
// handle's own cached view. A no-op on a nil handle.
func (u *UserHandle) SetSession(session string) {
	if u == nil || u.dir == nil {
		return
	}
	u.dir.SetSession(u.record.Name, session)
	u.record.Session = session
}
