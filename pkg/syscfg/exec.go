// Package syscfg is the privileged command executor: it translates
// validated configuration requests into host mutations, either by invoking
// allow-listed system utilities with discrete argument vectors or by
// rewriting host configuration files atomically.
package syscfg

import (
	"context"
	"fmt"
	"sync"
	"time"

	"rasdevd/pkg/shell"

	"github.com/rs/zerolog"
)

// Runner executes one external process. It exists so tests can record the
// exact argument vector instead of spawning.
type Runner func(ctx context.Context, timeout time.Duration, name string, args ...string) (shell.Result, error)

// ExecError carries the diagnostic text of a failed external process. The
// stderr text is safe to surface to clients; it never contains secrets.
type ExecError struct {
	Cmd    string
	Code   int
	Stderr string
}

func (e *ExecError) Error() string {
	if e.Stderr != "" {
		return e.Stderr
	}
	return fmt.Sprintf("%s exited with code %d", e.Cmd, e.Code)
}

// Allow-listed executables, resolved to absolute paths so a poisoned PATH
// cannot redirect an invocation.
var defaultBinaries = map[string]string{
	"hostnamectl": "/usr/bin/hostnamectl",
	"timedatectl": "/usr/bin/timedatectl",
	"systemctl":   "/usr/bin/systemctl",
}

type Options struct {
	InterfacesPath string
	ResolvPath     string
	// NetScript, when set, replaces the interfaces-file backend with an
	// external configuration script invoked per request.
	NetScript string
	Timeout   time.Duration
	Runner    Runner
	Logger    zerolog.Logger
}

type Executor struct {
	run            Runner
	timeout        time.Duration
	binaries       map[string]string
	interfacesPath string
	resolvPath     string
	netScript      string
	logger         zerolog.Logger

	// Serializes concurrent mutations of the same host file within this
	// process; cross-process writers are fenced by the advisory flock.
	filesMu sync.Mutex
	files   map[string]*sync.Mutex
}

func New(opts Options) *Executor {
	run := opts.Runner
	if run == nil {
		run = shell.Run
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Executor{
		run:            run,
		timeout:        timeout,
		binaries:       defaultBinaries,
		interfacesPath: opts.InterfacesPath,
		resolvPath:     opts.ResolvPath,
		netScript:      opts.NetScript,
		logger:         opts.Logger.With().Str("component", "syscfg").Logger(),
		files:          map[string]*sync.Mutex{},
	}
}

// SetHostname applies the hostname via hostnamectl. The caller validates
// the value; this layer only guarantees argument-vector invocation.
func (e *Executor) SetHostname(ctx context.Context, hostname string) error {
	return e.invoke(ctx, "hostnamectl", "set-hostname", hostname)
}

// SetTimezone applies a Region/City timezone via timedatectl.
func (e *Executor) SetTimezone(ctx context.Context, timezone string) error {
	return e.invoke(ctx, "timedatectl", "set-timezone", timezone)
}

// invoke runs an allow-listed binary and converts a non-zero exit into an
// ExecError carrying the child's stderr.
func (e *Executor) invoke(ctx context.Context, name string, args ...string) error {
	bin, ok := e.binaries[name]
	if !ok {
		return fmt.Errorf("executable not allow-listed: %s", name)
	}
	res, err := e.run(ctx, e.timeout, bin, args...)
	if err != nil || res.Code != 0 {
		e.logger.Error().
			Str("cmd", name).
			Int("code", res.Code).
			Str("stderr", res.StderrText()).
			Msg("command failed")
		return &ExecError{Cmd: name, Code: res.Code, Stderr: res.StderrText()}
	}
	return nil
}

func (e *Executor) fileLock(path string) *sync.Mutex {
	e.filesMu.Lock()
	defer e.filesMu.Unlock()
	mu, ok := e.files[path]
	if !ok {
		mu = &sync.Mutex{}
		e.files[path] = mu
	}
	return mu
}
