// Package harness launches a server process, waits for it to become
// ready, runs a probe action against it, and guarantees exactly-once
// teardown on every path out.
//
// The lifecycle is a straight line: Start spawns the process and fails
// fast when it dies on arrival, AwaitReady polls a readiness probe
// sequentially until it reports ready or the deadline passes, GraceWait
// optionally watches for early crashes, RunProbe executes the caller's
// action and converts every failure into a structured result, and
// Shutdown tears the process down or detaches it. All operations run
// on the caller's goroutine; the only background work is reaping the
// child process.
package harness

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"time"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
	"github.com/felixgeelhaar/soundcheck/internal/log"
	"github.com/felixgeelhaar/soundcheck/internal/probe"
)

// Phase is the lifecycle state of a harness invocation.
type Phase int

const (
	PhaseNotStarted Phase = iota
	PhaseStarting
	PhasePolling
	PhaseReady
	PhaseProbing
	PhaseDone
	PhaseFailed
	PhaseTornDown
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseNotStarted:
		return "not_started"
	case PhaseStarting:
		return "starting"
	case PhasePolling:
		return "polling"
	case PhaseReady:
		return "ready"
	case PhaseProbing:
		return "probing"
	case PhaseDone:
		return "done"
	case PhaseFailed:
		return "failed"
	case PhaseTornDown:
		return "torn_down"
	default:
		return "unknown"
	}
}

const (
	// DefaultStartupWindow is how long Start watches a fresh process
	// for an immediate exit before declaring the launch successful.
	DefaultStartupWindow = 250 * time.Millisecond

	// DefaultGracefulWait is how long Shutdown waits between the
	// termination signal and the force kill. Model servers unload
	// weights on shutdown, so this is longer than a typical grace.
	DefaultGracefulWait = 30 * time.Second

	// DefaultAttemptTimeout bounds a single readiness probe attempt.
	DefaultAttemptTimeout = 2 * time.Second
)

// Options configures a Harness. The zero value is usable; every field
// has a working default.
type Options struct {
	// Logger receives lifecycle events. Defaults to the process-wide
	// logger.
	Logger *log.Logger

	// Clock drives the readiness poll loop. Defaults to the real
	// clock; tests substitute a fake.
	Clock Clock

	// Stdout and Stderr are where the child process writes. They
	// default to the harness process's own streams so server logs stay
	// visible.
	Stdout io.Writer
	Stderr io.Writer

	// StartupWindow overrides DefaultStartupWindow when positive.
	StartupWindow time.Duration

	// GracefulWait overrides DefaultGracefulWait when positive.
	GracefulWait time.Duration

	// AttemptTimeout overrides DefaultAttemptTimeout when positive.
	AttemptTimeout time.Duration

	// OnPhase, when set, observes every phase transition.
	OnPhase func(Phase)

	// OnPoll, when set, observes every readiness attempt.
	OnPoll func(attempt int, result *probe.Result)
}

// Harness drives one server invocation through its lifecycle. It is
// not safe for concurrent use; all operations belong to one goroutine.
type Harness struct {
	opts  Options
	log   *log.Logger
	clock Clock
	phase Phase
}

// New returns a harness with defaults applied.
func New(opts Options) *Harness {
	if opts.Logger == nil {
		opts.Logger = log.DefaultLogger()
	}
	if opts.Clock == nil {
		opts.Clock = RealClock()
	}
	if opts.Stdout == nil {
		opts.Stdout = os.Stdout
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}
	if opts.StartupWindow <= 0 {
		opts.StartupWindow = DefaultStartupWindow
	}
	if opts.GracefulWait <= 0 {
		opts.GracefulWait = DefaultGracefulWait
	}
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = DefaultAttemptTimeout
	}
	return &Harness{
		opts:  opts,
		log:   opts.Logger,
		clock: opts.Clock,
		phase: PhaseNotStarted,
	}
}

// Phase returns the current lifecycle phase.
func (h *Harness) Phase() Phase {
	return h.phase
}

func (h *Harness) setPhase(p Phase) {
	h.phase = p
	h.log.Debug("phase transition", "phase", p.String())
	if h.opts.OnPhase != nil {
		h.opts.OnPhase(p)
	}
}

// Start launches the process described by spec. It fails when the
// executable cannot be resolved, when the spawn itself fails, or when
// the process exits within the startup window. The returned handle
// owns the process until Shutdown or Detach.
func (h *Harness) Start(ctx context.Context, spec LaunchSpec) (*Handle, error) {
	h.setPhase(PhaseStarting)

	if err := spec.Validate(); err != nil {
		return nil, err
	}

	path, err := exec.LookPath(spec.Command[0])
	if err != nil {
		return nil, errors.NewLaunchNotFoundError(spec.Command[0])
	}

	snapshot := spec.clone()

	cmd := exec.CommandContext(ctx, path, snapshot.Command[1:]...)
	cmd.Dir = snapshot.Dir
	cmd.Env = snapshot.environ()
	cmd.Stdout = h.opts.Stdout
	cmd.Stderr = h.opts.Stderr
	cmd.Cancel = func() error { return terminate(cmd) }
	cmd.WaitDelay = h.opts.GracefulWait
	setProcGroup(cmd)

	if err := cmd.Start(); err != nil {
		return nil, errors.NewLaunchSpawnError(spec.Command[0], err)
	}

	handle := &Handle{
		spec: snapshot,
		cmd:  cmd,
		pid:  cmd.Process.Pid,
		done: make(chan struct{}),
	}
	go handle.reap()

	h.log.Info("server process started",
		"pid", handle.pid,
		"command", snapshot.Command[0],
		"addr", snapshot.Addr(),
	)

	// A process that dies this quickly never reached its listen loop;
	// report it as a failed launch rather than a readiness timeout.
	timer := time.NewTimer(h.opts.StartupWindow)
	defer timer.Stop()
	select {
	case <-handle.Done():
		return nil, errors.NewLaunchExitedError(handle.ExitCode())
	case <-timer.C:
	}

	return handle, nil
}

// AwaitReady polls p until it reports ready, the process exits, the
// timeout elapses, or the context is cancelled. Polls are strictly
// sequential at the given interval; a process exit is noticed no later
// than the next attempt and reported with its exit code instead of
// burning the rest of the timeout. A nil handle skips the process
// watch, which is how attach mode polls a server it does not own.
func (h *Harness) AwaitReady(ctx context.Context, handle *Handle, p probe.Probe, timeout, interval time.Duration) (*probe.Result, error) {
	h.setPhase(PhasePolling)

	target := p.Name()
	if handle != nil {
		target = handle.Spec().BaseURL()
	}

	h.log.Info("waiting for server readiness",
		"probe", p.Name(),
		"target", target,
		"timeout", timeout.String(),
		"interval", interval.String(),
	)

	var (
		attempt int
		ready   *probe.Result
	)

	err := Poll(ctx, h.clock, interval, timeout, func(ctx context.Context) (bool, error) {
		if handle != nil && handle.Exited() {
			return false, errors.NewProcessExitedError(handle.ExitCode())
		}

		attemptCtx, cancel := context.WithTimeout(ctx, h.opts.AttemptTimeout)
		defer cancel()

		attempt++
		res := p.Check(attemptCtx)
		if h.opts.OnPoll != nil {
			h.opts.OnPoll(attempt, res)
		}
		h.log.Debug("readiness attempt",
			"attempt", attempt,
			"status", string(res.Status),
			"message", res.Message,
			"latency", res.Latency.String(),
		)

		if res.IsReady() {
			ready = res
			return true, nil
		}
		return false, nil
	})

	if err != nil {
		if stderrors.Is(err, ErrPollTimeout) {
			// A crash racing the deadline is a crash, not a timeout.
			if handle != nil && handle.Exited() {
				return nil, errors.NewProcessExitedError(handle.ExitCode())
			}
			return nil, errors.NewReadinessTimeoutError(timeout.String(), target)
		}
		return nil, err
	}

	h.setPhase(PhaseReady)
	h.log.Info("server ready",
		"attempts", attempt,
		"message", ready.Message,
	)
	return ready, nil
}

// GraceWait watches the process for the given window and fails if it
// exits within it. A zero or negative grace returns immediately. The
// window exists to catch servers that accept their first request and
// then fall over.
func (h *Harness) GraceWait(ctx context.Context, handle *Handle, grace time.Duration) error {
	if grace <= 0 || handle == nil {
		return nil
	}

	h.log.Debug("grace wait", "window", grace.String())

	if handle.Exited() {
		return errors.NewEarlyCrashError(grace.String(), handle.ExitCode())
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()

	select {
	case <-handle.Done():
		return errors.NewEarlyCrashError(grace.String(), handle.ExitCode())
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RunResult is the outcome of a probe run.
type RunResult struct {
	// Success is true when the action completed without error.
	Success bool

	// Elapsed is the wall-clock duration of the action.
	Elapsed time.Duration

	// Err carries the failure when Success is false.
	Err error

	// ProcessExitCode is set when the server process had already
	// exited by the time the result was assembled.
	ProcessExitCode *int
}

// RunProbe executes action against the ready server and always returns
// a result: every error and panic from the action is captured as a
// probe failure instead of escaping past the caller's teardown.
func (h *Harness) RunProbe(ctx context.Context, handle *Handle, action func(context.Context) error) RunResult {
	h.setPhase(PhaseProbing)

	start := time.Now()
	err := runAction(ctx, action)
	elapsed := time.Since(start)

	result := RunResult{
		Success: err == nil,
		Elapsed: elapsed,
	}
	if handle != nil && handle.Exited() {
		code := handle.ExitCode()
		result.ProcessExitCode = &code
	}

	if err != nil {
		if !errors.IsProbe(err) {
			err = errors.NewProbeFailedError(err)
		}
		result.Err = err
		h.setPhase(PhaseFailed)
		h.log.WithError(err).Error("probe failed", "elapsed", elapsed.String())
		return result
	}

	h.setPhase(PhaseDone)
	h.log.Info("probe completed", "elapsed", elapsed.String())
	return result
}

// runAction shields the harness from panics inside the action.
func runAction(ctx context.Context, action func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("probe action panicked: %v", r)
		}
	}()
	return action(ctx)
}

// Shutdown tears the server down, or detaches it when keepAlive is
// set. It is idempotent: only the first call acts, and it always
// leaves the harness in the torn-down phase. A nil handle is allowed
// so failed launches can share the same deferred call site.
func (h *Harness) Shutdown(handle *Handle, keepAlive bool) {
	defer h.setPhase(PhaseTornDown)

	if handle == nil {
		return
	}

	if keepAlive {
		handle.Detach()
		handle.Close(0)
		h.log.Info("leaving server running", "pid", handle.Pid(), "addr", handle.Spec().Addr())
		return
	}

	if handle.TornDown() {
		return
	}

	h.log.Info("shutting down server", "pid", handle.Pid(), "grace", h.opts.GracefulWait.String())
	handle.Close(h.opts.GracefulWait)

	if handle.Exited() {
		h.log.Debug("server process reaped", "exit_code", handle.ExitCode())
	}
}
