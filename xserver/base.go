// Package xserver implements the X server process lifecycle (C4-C6 in the
// design): argument assembly, child supervision, the ready-signal handshake
// and the composed LocalXServer that chains into it.
//
// The base DisplayServer start/stop state machine is listed as an external
// collaborator in the design (a class LocalXServer's real-world sibling
// extends), but nothing else in this module provides one, so it lives here
// as plain composition rather than a virtual base class: design note in
// DESIGN.md, "object-oriented class hierarchy with virtual dispatch".
package xserver

import "sync"

// Base is the shared start/stop state machine that LocalXServer and any
// other display-server implementation chain their own transitions into.
// Start and Stop each fire their registered observers at most once, which
// is what makes "stop() called twice produces at most one stopped event"
// hold regardless of how many call sites request a stop.
type Base struct {
	mu      sync.Mutex
	started bool
	stopped bool

	onStart []func()
	onStop  []func()
}

// OnStart registers an observer invoked the first time Start is called.
func (b *Base) OnStart(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStart = append(b.onStart, fn)
}

// OnStop registers an observer invoked the first time Stop is called.
func (b *Base) OnStop(fn func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onStop = append(b.onStop, fn)
}

// Start fires every registered start observer, exactly once across the
// lifetime of this Base. Later calls are no-ops.
func (b *Base) Start() {
	b.mu.Lock()
	if b.started {
		b.mu.Unlock()
		return
	}
	b.started = true
	observers := b.onStart
	b.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// Stop fires every registered stop observer, exactly once. Safe to call on
// a Base that was never started, and safe to call after Start has already
// fired — the only invariant the core model makes no attempt to reconcile.
func (b *Base) Stop() {
	b.mu.Lock()
	if b.stopped {
		b.mu.Unlock()
		return
	}
	b.stopped = true
	observers := b.onStop
	b.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

func (b *Base) IsStarted() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.started
}

func (b *Base) IsStopped() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stopped
}
