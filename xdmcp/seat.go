// Package xdmcp implements the seat binding for remote XDMCP sessions
// (C7, XDMCPSeat) and the RemoteXServer handle it hands out, per spec
// section 4.7. Unlike xserver.LocalXServer, a RemoteXServer represents an
// X server that is already running on a remote host and reached over the
// XDMCP-negotiated connection; this package never spawns a process, it
// only tracks the handle and chains the same start/stop state machine
// xserver.Base provides.
package xdmcp

import (
	"fmt"

	"github.com/raspberrypi-ui/lightdm-bullseye/xauth"
	"github.com/raspberrypi-ui/lightdm-bullseye/xserver"
)

// IncomingSession is the XDMCP protocol session a remote display manager
// negotiated with this host: its authority, the peer's address, and the
// display number it asked to use. Grounded on
// original_source/seat-xdmcp-session.c's XDMCPSession collaborator.
type IncomingSession struct {
	Authority     *xauth.Record
	PeerAddress   string
	DisplayNumber int
}

// LoginSessionRequest is the generic login-session request a Seat's
// create_display_server is asked to satisfy; only Type is relevant here,
// per spec section 4.7 step 1.
type LoginSessionRequest struct {
	Type string
}

// RemoteXServer is the display-server handle for one XDMCP-reached remote
// X server. It never owns a subprocess: Start/Stop only chain the shared
// base state machine, since the remote server's own process lifecycle is
// outside this core's control.
type RemoteXServer struct {
	base xserver.Base

	Host          string
	DisplayNumber int
	Authority     *xauth.Record
}

// NewRemoteXServer builds a handle for the X server reachable at
// host:displayNumber, authenticated with authority.
func NewRemoteXServer(host string, displayNumber int, authority *xauth.Record) *RemoteXServer {
	return &RemoteXServer{Host: host, DisplayNumber: displayNumber, Authority: authority}
}

// Address is the canonical X address string for this remote server.
func (r *RemoteXServer) Address() string {
	return fmt.Sprintf("%s:%d", r.Host, r.DisplayNumber)
}

// Start chains the base start transition. There is no child to spawn: the
// remote X server is already running by the time XDMCP negotiation handed
// this core a session.
func (r *RemoteXServer) Start() error {
	r.base.Start()
	return nil
}

// Stop chains the base stop transition. Idempotent, like every other
// display server in this core.
func (r *RemoteXServer) Stop() { r.base.Stop() }

func (r *RemoteXServer) OnStart(fn func()) { r.base.OnStart(fn) }
func (r *RemoteXServer) OnStop(fn func())  { r.base.OnStop(fn) }

func (r *RemoteXServer) IsStarted() bool { return r.base.IsStarted() }
func (r *RemoteXServer) IsStopped() bool { return r.base.IsStopped() }

// Seat binds one XDMCP incoming session to at most one RemoteXServer for
// its whole lifetime, per spec section 4.7 and the testable property in
// section 8 ("yields the same display-server object on every invocation of
// create_display_server with a session of type \"x\""): reconnecting
// clients reattach to the same handle instead of getting a fresh one.
type Seat struct {
	incoming *IncomingSession
	remote   *RemoteXServer
}

// NewSeat builds a Seat bound to one negotiated XDMCP session.
func NewSeat(incoming *IncomingSession) *Seat {
	return &Seat{incoming: incoming}
}

// CreateDisplayServer returns the seat's RemoteXServer handle for an "x"
// session request, constructing it lazily on the first such request and
// returning the same instance on every subsequent one. Any other session
// type yields nil, per spec section 4.7 step 1.
func (s *Seat) CreateDisplayServer(req LoginSessionRequest) *RemoteXServer {
	if req.Type != "x" {
		return nil
	}
	if s.remote == nil {
		s.remote = NewRemoteXServer(s.incoming.PeerAddress, s.incoming.DisplayNumber, s.incoming.Authority)
	}
	return s.remote
}
