// Package xsignal dispatches SIGUSR1 "ready" notifications from X server
// children to the ChildSupervisor that owns each one, per spec section 4.5
// and 5 ("signal delivery from child processes is marshalled onto that
// thread before firing got_signal/stopped").
//
// Go's os/signal.Notify only reports a signal number, never the sender's
// PID, which is not enough once more than one LocalXServer is alive (one
// per seat). golang.org/x/sys/unix exposes Linux's signalfd(2), whose
// SignalfdSiginfo carries Pid — the same information a GLib-based
// implementation gets for free. This package runs one singleton
// signalfd-reader goroutine and routes each SIGUSR1 to whichever
// Supervisor registered that PID, consistent with the single dispatch
// point the rest of the core assumes.
package xsignal

import (
	"sync"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Dispatcher owns the process's one signalfd for SIGUSR1 and routes
// delivery by sender PID.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[int]func(signum int)

	fd      int
	started bool
}

var (
	defaultOnce       sync.Once
	defaultDispatcher *Dispatcher
)

// Default returns the process-wide Dispatcher, preparing SIGUSR1 and
// starting its reader goroutine on first use. Any caller touching this
// package at all (Register, or the exported Init) gets the signal put into
// the state (ignored disposition, blocked mask) that both lets X servers
// detect "parent wants a ready signal" and lets this process still observe
// it via signalfd — callers don't need to sequence Init before Default.
func Default() *Dispatcher {
	defaultOnce.Do(func() {
		defaultDispatcher = &Dispatcher{handlers: make(map[int]func(signum int))}
		_ = defaultDispatcher.start()
	})
	return defaultDispatcher
}

// Init is a named entry point for preparing the SIGUSR1 handshake early in
// main, before any X server is launched, documenting intent at the call
// site. It is equivalent to calling Default.
func Init() error {
	Default()
	return nil
}

func (d *Dispatcher) start() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return nil
	}

	var set unix.Sigset_t
	addSignal(&set, unix.SIGUSR1)

	// Set SIGUSR1 to ignored and block it in this thread's mask before
	// opening the signalfd: a forked X server inherits the ignored
	// disposition across exec (the convention it checks for, per the
	// glossary's "Ready signal"), while blocking it here diverts delivery
	// to the signalfd instead of the default disposition.
	if err := ignore(unix.SIGUSR1); err != nil {
		return err
	}
	if err := unix.PthreadSigmask(unix.SIG_BLOCK, &set, nil); err != nil {
		return err
	}

	fd, err := unix.Signalfd(-1, &set, unix.SFD_CLOEXEC)
	if err != nil {
		return err
	}
	d.fd = fd
	d.started = true

	go d.run()
	return nil
}

func (d *Dispatcher) run() {
	buf := make([]byte, unsafe.Sizeof(unix.SignalfdSiginfo{}))
	for {
		n, err := unix.Read(d.fd, buf)
		if err != nil || n != len(buf) {
			if err == unix.EINTR {
				continue
			}
			return
		}

		info := decodeSiginfo(buf)
		d.mu.Lock()
		handler := d.handlers[int(info.Pid)]
		d.mu.Unlock()
		if handler != nil {
			handler(int(info.Signo))
		}
	}
}

// Register routes SIGUSR1 arriving from pid to fn. Only one handler per pid
// is kept; registering again for the same pid replaces the previous one.
func (d *Dispatcher) Register(pid int, fn func(signum int)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[pid] = fn
}

// Unregister removes any handler registered for pid.
func (d *Dispatcher) Unregister(pid int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.handlers, pid)
}
