package xserver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/raspberrypi-ui/lightdm-bullseye/config"
	"github.com/raspberrypi-ui/lightdm-bullseye/diag"
	"github.com/raspberrypi-ui/lightdm-bullseye/displaynum"
	"github.com/raspberrypi-ui/lightdm-bullseye/vtregistry"
	"github.com/raspberrypi-ui/lightdm-bullseye/xauth"
)

// ErrNoCommand is returned by Start when the server has no command
// configured, per spec section 7.
var ErrNoCommand = errors.New("x server has no command configured")

// ErrAlreadyStarted is returned by Start when a child supervisor is already
// attached to this server.
var ErrAlreadyStarted = errors.New("x server already has an attached child")

// whitelistedPassthrough is the fixed set of environment variables
// forwarded to every X server child, per spec section 6. DISPLAY and
// XAUTHORITY get their own handling below, since XAUTHORITY carries a
// default when DISPLAY is set but XAUTHORITY is not.
var whitelistedPassthrough = []string{"LD_PRELOAD", "LD_LIBRARY_PATH", "PATH", "LIGHTDM_TEST_ROOT"}

// Options bundles the external collaborators a LocalXServer needs: the
// process-wide display-number allocator (C2), the VT reservation registry,
// a keyed configuration reader, a diagnostic sink, and optionally a
// CommandBuilder strategy (design note in DESIGN.md: subclass hooks become
// callbacks on a strategy record supplied at construction). A nil Builder
// gets a default one with no ExtraArgs hook.
type Options struct {
	Allocator *displaynum.Allocator
	VT        *vtregistry.Registry
	Config    config.Reader
	Sink      *diag.Sink
	Builder   *CommandBuilder
	HomeDirFn func() (string, error)
}

// LocalXServer composes the display-number allocator, authority-file
// manager, command builder, and child supervisor (C2-C5) behind the
// DisplayServer start/stop contract, per spec section 4.6 (C6).
//
// Every exported setter matches a configuration field in spec section 3;
// none of them are safe to call concurrently with Start/Stop, consistent
// with the single-threaded cooperative event loop assumed throughout
// spec section 5.
type LocalXServer struct {
	mu   sync.Mutex
	base Base

	Command     string
	ConfigFile  string
	Layout      string
	XDGSeat     string
	AllowTCP    bool
	Background  string
	XDMCPServer string
	XDMCPPort   int
	XDMCPKey    string

	displayNumber int
	vt            int
	haveVTRef     bool

	// Authority is owned by the base X-server abstraction per spec section
	// 3; this core only reads Address off it and hands it to the authority
	// manager to serialise. Nil means "no authority for this server".
	Authority *xauth.Record

	gotSignal bool

	allocator *displaynum.Allocator
	vtReg     *vtregistry.Registry
	authMgr   *xauth.Manager
	builder   *CommandBuilder
	cfg       config.Reader
	log       *diag.Logger
	homeDirFn func() (string, error)

	supervisor *Supervisor
}

// New constructs a LocalXServer, reserving a display number immediately
// (spec section 3: "display_number (allocated at construction)").
func New(opts Options) *LocalXServer {
	n := opts.Allocator.Reserve()

	builder := opts.Builder
	if builder == nil {
		builder = &CommandBuilder{}
	}

	homeDirFn := opts.HomeDirFn
	if homeDirFn == nil {
		homeDirFn = os.UserHomeDir
	}

	runDir := config.DefaultRunDirectory
	if opts.Config != nil {
		runDir = opts.Config.String(config.Section, config.KeyRunDirectory, config.DefaultRunDirectory)
	}

	x := &LocalXServer{
		Command:       "X",
		vt:            -1,
		displayNumber: n,
		allocator:     opts.Allocator,
		vtReg:         opts.VT,
		authMgr:       xauth.NewManager(runDir),
		builder:       builder,
		cfg:           opts.Config,
		homeDirFn:     homeDirFn,
	}
	x.log = diag.NewLogger(opts.Sink, fmt.Sprintf("XServer %d: ", n))
	return x
}

// DisplayNumber returns the display number reserved for this server.
func (x *LocalXServer) DisplayNumber() int { return x.displayNumber }

// Address is the canonical X address string for this server, used both as
// the authority file's name and (conventionally) as DISPLAY's value.
func (x *LocalXServer) Address() string { return fmt.Sprintf(":%d", x.displayNumber) }

// VT reports the currently configured VT index, -1 meaning unset.
func (x *LocalXServer) VT() int { return x.vt }

// SetVT sets the VT index the X server should attach to. Per the Open
// Question in spec section 9, a real reservation is only taken for vt > 0,
// even though vt == 0 is still a valid command-line value (emits
// "vt0 -novtswitch"); vt < 0 means "unset", emitting nothing.
func (x *LocalXServer) SetVT(vt int) {
	if x.haveVTRef {
		x.vtReg.Unref(x.vt)
		x.haveVTRef = false
	}
	x.vt = vt
	if vt > 0 {
		x.vtReg.Ref(vt)
		x.haveVTRef = true
	}
}

// SetXDMCPKey sets the XDMCP authentication cookie key. Setting it clears
// any authority inherited from elsewhere, per spec section 3's invariant:
// an XDMCP-queried server authenticates via the cookie key, not a local
// MIT-MAGIC-COOKIE authority file.
func (x *LocalXServer) SetXDMCPKey(key string) {
	x.XDMCPKey = key
	x.Authority = nil
}

// IsStarted/IsStopped expose the underlying Base state, mostly for tests.
func (x *LocalXServer) IsStarted() bool { return x.base.IsStarted() }
func (x *LocalXServer) IsStopped() bool { return x.base.IsStopped() }

// OnStart/OnStop register observers on the base display-server state
// machine this LocalXServer chains into, per spec section 4.6.
func (x *LocalXServer) OnStart(fn func()) { x.base.OnStart(fn) }
func (x *LocalXServer) OnStop(fn func())  { x.base.OnStop(fn) }

// Start begins the launch sequence described in spec section 4.6. It
// returns as soon as the child has been spawned (or a synchronous failure
// recorded); readiness is only signalled later via the got_signal callback
// chained from the ready-signal handshake in the child supervisor.
func (x *LocalXServer) Start(ctx context.Context) error {
	x.mu.Lock()
	if x.supervisor != nil {
		x.mu.Unlock()
		return fmt.Errorf("x server :%d: %w", x.displayNumber, ErrAlreadyStarted)
	}
	if x.Command == "" {
		x.mu.Unlock()
		return fmt.Errorf("x server :%d: %w", x.displayNumber, ErrNoCommand)
	}
	x.gotSignal = false
	x.mu.Unlock()

	logDir := config.DefaultLogDirectory
	backupLogs := config.DefaultBackupLogs
	if x.cfg != nil {
		logDir = x.cfg.String(config.Section, config.KeyLogDirectory, config.DefaultLogDirectory)
		backupLogs = x.cfg.Bool(config.Section, config.KeyBackupLogs, config.DefaultBackupLogs)
	}
	logPath := filepath.Join(logDir, fmt.Sprintf("x-%d.log", x.displayNumber))
	logMode := diag.LogModeAppend
	if backupLogs {
		logMode = diag.LogModeBackupAndTruncate
	}

	// Resolve the command before touching disk for the authority file: per
	// spec section 4.6 steps 4-5, binary resolution failing must synthesise
	// a stopped event and return without forking, and without leaving an
	// authority file behind for a server that never ran.
	authorityFile := ""
	if x.Authority != nil {
		authorityFile = x.authMgr.PathFor(x.Address())
	}

	spec := CommandSpec{
		Command:       x.Command,
		DisplayNumber: x.displayNumber,
		ConfigFile:    x.ConfigFile,
		Layout:        x.Layout,
		XDGSeat:       x.XDGSeat,
		AllowTCP:      x.AllowTCP,
		AuthorityFile: authorityFile,
		XDMCPServer:   x.XDMCPServer,
		XDMCPPort:     x.XDMCPPort,
		XDMCPKey:      x.XDMCPKey,
		VT:            x.vt,
		Background:    x.Background,
	}
	commandLine, err := x.builder.Build(ctx, spec)
	if err != nil {
		x.log.Debugf("can't launch x server %v, not found in path", x.Command)
		x.handleStopped()
		return err
	}

	if x.Authority != nil {
		if err := x.authMgr.Write(x.Authority, x.Address()); err != nil {
			x.log.Warningf("failed to write authority: %v", err)
		}
	}

	sup := NewSupervisor(x.log)
	sup.SetCommand(commandLine)
	sup.SetClearEnvironment(true)
	sup.SetLogFile(logPath, true, logMode)
	for k, v := range x.buildEnv() {
		sup.SetEnv(k, v)
	}
	sup.OnGotSignal(x.handleGotSignal)
	sup.OnStopped(x.handleStopped)

	x.log.Debugf("launching x server")
	if err := sup.Start(false); err != nil {
		x.handleStopped()
		return err
	}

	x.mu.Lock()
	x.supervisor = sup
	x.mu.Unlock()

	x.log.Debugf("waiting for ready signal from x server :%d", x.displayNumber)
	return nil
}

// Stop forwards to the child supervisor. A no-op if no child is attached,
// making Stop idempotent per spec section 5.
func (x *LocalXServer) Stop() {
	x.mu.Lock()
	sup := x.supervisor
	x.mu.Unlock()
	if sup != nil {
		sup.Stop()
	}
}

// Close releases the VT reservation, matching x_server_local_finalize in
// original_source/src/x-server-local.c, which only unrefs the VT (if held)
// and frees in-memory fields; it never releases the display number, unlinks
// the authority file, or fires a stop transition. A server whose child is
// still running when Close runs is still holding its display number and
// authority file for as long as that child exists, so Close must not hand
// either back to the pool: only Stop, once the child has actually exited
// and handleStopped has run, does that.
func (x *LocalXServer) Close() {
	if x.haveVTRef {
		x.vtReg.Unref(x.vt)
		x.haveVTRef = false
	}
}

func (x *LocalXServer) handleGotSignal(signum int) {
	x.mu.Lock()
	if x.gotSignal {
		x.mu.Unlock()
		return
	}
	x.gotSignal = true
	x.mu.Unlock()

	x.log.Debugf("got signal from x server :%d", x.displayNumber)
	x.base.Start()
}

func (x *LocalXServer) handleStopped() {
	x.log.Debugf("x server stopped")

	if x.haveVTRef {
		x.vtReg.Unref(x.vt)
		x.haveVTRef = false
	}
	x.allocator.Release(x.displayNumber)

	if x.authMgr.Path() != "" {
		x.log.Debugf("removing x server authority %v", x.authMgr.Path())
		x.authMgr.Remove()
	}

	x.mu.Lock()
	x.supervisor = nil
	x.mu.Unlock()

	x.base.Stop()
}

// buildEnv implements the environment whitelist in spec section 6: forward
// DISPLAY if set, defaulting XAUTHORITY to "<home>/.Xauthority" when it
// isn't already present, plus the fixed library/test-harness variables.
// Nothing else crosses from the parent environment.
func (x *LocalXServer) buildEnv() map[string]string {
	env := make(map[string]string)

	if display, ok := os.LookupEnv("DISPLAY"); ok {
		env["DISPLAY"] = display
		if xauthority, ok := os.LookupEnv("XAUTHORITY"); ok {
			env["XAUTHORITY"] = xauthority
		} else if home, err := x.homeDirFn(); err == nil {
			env["XAUTHORITY"] = filepath.Join(home, ".Xauthority")
		}
	}

	for _, key := range whitelistedPassthrough {
		if v, ok := os.LookupEnv(key); ok {
			env[key] = v
		}
	}
	return env
}
