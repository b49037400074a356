package xserver

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/raspberrypi-ui/lightdm-bullseye/xversion"
)

var (
	defaultVersionProbeOnce sync.Once
	defaultVersionProbe     *xversion.Probe
)

// DefaultVersionProbe returns the process-wide VersionProbe used by any
// CommandBuilder that doesn't carry its own, so the "at most one successful
// parse per process" invariant in spec section 3 holds even when callers
// construct a bare CommandBuilder{}.
func DefaultVersionProbe() *xversion.Probe {
	defaultVersionProbeOnce.Do(func() {
		defaultVersionProbe = xversion.New("")
	})
	return defaultVersionProbe
}

// ErrBinaryNotFound is returned by CommandBuilder.Build when the configured
// command's first token cannot be resolved against PATH, per spec section
// 4.4 step 1 / section 7 (BinaryNotFound).
var ErrBinaryNotFound = errors.New("x server binary not found in PATH")

// CommandSpec is the read-only snapshot of LocalXServer configuration the
// builder assembles into a command line. Field names mirror the state
// fields in spec section 3.
type CommandSpec struct {
	Command       string
	DisplayNumber int
	ConfigFile    string
	Layout        string
	XDGSeat       string
	AllowTCP      bool
	AuthorityFile string
	XDMCPServer   string
	XDMCPPort     int
	XDMCPKey      string
	VT            int
	Background    string
}

// CommandBuilder assembles the X server argv, per spec section 4.4. The
// fixed assembly order exists so two otherwise-identical invocations produce
// byte-identical log lines.
type CommandBuilder struct {
	// Version gates the tcp-listen decision (step 8).
	Version *xversion.Probe

	// ExtraArgs is the subclass hook from the original source's add_args
	// (design note in DESIGN.md): invoked last, allowed to append further
	// arguments. Nil is treated as a no-op.
	ExtraArgs func(args []string) []string
}

// Build resolves the absolute binary path and assembles the full command
// line, returning ErrBinaryNotFound if the configured command's first token
// is not on PATH.
func (b *CommandBuilder) Build(ctx context.Context, spec CommandSpec) (string, error) {
	absolute, rest, err := resolveCommand(spec.Command)
	if err != nil {
		return "", err
	}

	args := rest
	args = append(args, fmt.Sprintf(":%d", spec.DisplayNumber))

	if spec.ConfigFile != "" {
		args = append(args, "-config", spec.ConfigFile)
	}
	if spec.Layout != "" {
		args = append(args, "-layout", spec.Layout)
	}
	if spec.XDGSeat != "" {
		args = append(args, "-seat", spec.XDGSeat)
	}
	if spec.AuthorityFile != "" {
		args = append(args, "-auth", spec.AuthorityFile)
	}

	switch {
	case spec.XDMCPServer != "":
		if spec.XDMCPPort != 0 {
			args = append(args, "-port", fmt.Sprintf("%d", spec.XDMCPPort))
		}
		args = append(args, "-query", spec.XDMCPServer)
		if spec.XDMCPKey != "" {
			args = append(args, "-cookie", spec.XDMCPKey)
		}
	case spec.AllowTCP:
		version := b.Version
		if version == nil {
			version = DefaultVersionProbe()
		}
		if version.Compare(ctx, 1, 17) >= 0 {
			args = append(args, "-listen", "tcp")
		}
		// Pre-1.17 X servers listen on tcp by default: nothing to append.
	default:
		args = append(args, "-nolisten", "tcp")
	}

	if spec.VT >= 0 {
		args = append(args, fmt.Sprintf("vt%d", spec.VT), "-novtswitch")
	}

	if spec.Background != "" {
		args = append(args, "-background", spec.Background)
	}

	if b.ExtraArgs != nil {
		args = b.ExtraArgs(args)
	}

	return strings.Join(append([]string{absolute}, args...), " "), nil
}

// resolveCommand splits command on its first whitespace run, resolves the
// first token against PATH, and returns the absolute binary path plus any
// trailing tokens verbatim, per spec section 4.4 steps 1-2.
func resolveCommand(command string) (absolute string, rest []string, err error) {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return "", nil, ErrBinaryNotFound
	}

	path, lookErr := exec.LookPath(fields[0])
	if lookErr != nil {
		return "", nil, ErrBinaryNotFound
	}

	return path, fields[1:], nil
}
