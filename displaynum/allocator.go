// Package displaynum implements the display-number allocator (C2):
// reconciling in-flight reservations against on-disk lock files of foreign
// X servers, per spec sections 3 and 4.2.
package displaynum

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sys/unix"
)

// Allocator hands out display numbers not already in use by this process
// or by a foreign X server holding a valid /tmp/.X<n>-lock. It is meant to
// be process-wide, per spec section 5, and is safe for single-threaded
// cooperative use (its own mutex only guards the reserved-set slice).
type Allocator struct {
	mu       sync.Mutex
	minimum  int
	reserved []int
}

// New builds an Allocator whose Reserve calls never return a number below
// minimum (the "minimum-display-number" configuration key).
func New(minimum int) *Allocator {
	return &Allocator{minimum: minimum}
}

// Reserve returns the smallest display number, starting from the
// configured minimum, that is neither already reserved by this process nor
// backed by a valid foreign lock file, and records it as reserved.
func (a *Allocator) Reserve() int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := a.minimum
	for a.inUseLocked(n) {
		n++
	}
	a.reserved = append(a.reserved, n)
	return n
}

// Release removes n from the reserved set. A no-op if n is not reserved.
func (a *Allocator) Release(n int) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for i, v := range a.reserved {
		if v == n {
			a.reserved = append(a.reserved[:i], a.reserved[i+1:]...)
			return
		}
	}
}

func (a *Allocator) inUseLocked(n int) bool {
	for _, v := range a.reserved {
		if v == n {
			return true
		}
	}
	return foreignLockValid(n)
}

// foreignLockValid reports whether /tmp/.X<n>-lock exists, contains a
// positive PID, and that PID is still alive. Any ambiguity (malformed
// contents, a kill(2) failure other than ESRCH) is treated conservatively
// as "still valid", per spec section 4.2.
func foreignLockValid(n int) bool {
	path := fmt.Sprintf("/tmp/.X%d-lock", n)

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		// Not a positive PID: a parse failure by spec's definition, treated
		// conservatively as "still locked" rather than assumed free.
		return true
	}

	err = unix.Kill(pid, 0)
	if err == nil {
		return true
	}
	return err != unix.ESRCH
}
