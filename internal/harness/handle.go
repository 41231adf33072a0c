package harness

import (
	"os/exec"
	"sync"
	"sync/atomic"
	"time"
)

// Handle owns a launched server process. Exactly one teardown runs per
// handle no matter how many times Close is called or from how many
// paths (normal completion, failure, signal handler). Detach transfers
// ownership to the caller: a detached handle's Close leaves the
// process running.
type Handle struct {
	spec LaunchSpec
	cmd  *exec.Cmd
	pid  int

	// done is closed by the reaper goroutine after Wait returns.
	// exitCode and waitErr are written before the close, so any reader
	// that observed Done may read them without locking.
	done     chan struct{}
	exitCode int
	waitErr  error

	detached atomic.Bool
	torndown atomic.Bool
	teardown sync.Once
}

// Pid returns the operating system process id.
func (h *Handle) Pid() int {
	return h.pid
}

// Spec returns a copy of the launch spec the process was started with.
func (h *Handle) Spec() LaunchSpec {
	return h.spec.clone()
}

// Done is closed once the process has exited and been reaped.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Exited reports whether the process has already terminated.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// ExitCode returns the process exit code. It is meaningful only after
// Done is closed. A process killed by a signal reports 128 plus the
// signal number, matching shell conventions.
func (h *Handle) ExitCode() int {
	select {
	case <-h.done:
		return h.exitCode
	default:
		return -1
	}
}

// Detach transfers ownership of the process to the caller. Subsequent
// Close calls leave the process running.
func (h *Handle) Detach() {
	h.detached.Store(true)
}

// Detached reports whether ownership has been transferred.
func (h *Handle) Detached() bool {
	return h.detached.Load()
}

// TornDown reports whether teardown has completed.
func (h *Handle) TornDown() bool {
	return h.torndown.Load()
}

// Close tears the process down: a termination signal to the process
// group, a bounded graceful wait, then a force kill. The first call
// does the work and blocks until the process is reaped; every later
// call returns immediately. Closing a detached handle or one whose
// process already exited only marks the handle as torn down.
func (h *Handle) Close(grace time.Duration) {
	h.teardown.Do(func() {
		defer h.torndown.Store(true)

		if h.detached.Load() || h.Exited() {
			return
		}

		_ = terminate(h.cmd)

		if grace > 0 {
			timer := time.NewTimer(grace)
			defer timer.Stop()
			select {
			case <-h.done:
				return
			case <-timer.C:
			}
		}

		_ = kill(h.cmd)
		<-h.done
	})
}

// reap waits for the process and publishes its exit status.
func (h *Handle) reap() {
	err := h.cmd.Wait()
	h.exitCode = exitStatus(h.cmd.ProcessState)
	h.waitErr = err
	close(h.done)
}
