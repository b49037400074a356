//go:build linux

package xsignal

import (
	"os/signal"
	"syscall"
	"unsafe"

	"golang.org/x/sys/unix"
)

func addSignal(set *unix.Sigset_t, sig unix.Signal) {
	bit := uint(sig) - 1
	set.Val[bit/64] |= 1 << (bit % 64)
}

// ignore sets sig's disposition to SIG_IGN process-wide, via the same path
// os/signal uses internally. This is what a forked X server inherits across
// exec, per the glossary's "Ready signal" convention.
func ignore(sig unix.Signal) error {
	signal.Ignore(syscall.Signal(sig))
	return nil
}

func decodeSiginfo(buf []byte) unix.SignalfdSiginfo {
	return *(*unix.SignalfdSiginfo)(unsafe.Pointer(&buf[0]))
}
