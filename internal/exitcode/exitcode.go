package exitcode

import (
	"os"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

// Exit codes for consistent error handling across the CLI.
// Scripted callers branch on these, so the mapping is part of the
// public contract and must stay stable.
const (
	// Success indicates successful execution
	Success = 0

	// GeneralError indicates a general error condition (bad flags, config, launch failure)
	GeneralError = 1

	// NotReady indicates the server never became ready (timeout or died while polling)
	NotReady = 2

	// ProbeFailed indicates the server was ready but the probe request failed
	ProbeFailed = 3

	// Unstable indicates the server crashed inside the post-readiness grace window
	Unstable = 4

	// Interrupted indicates the run was cancelled by SIGINT/SIGTERM
	Interrupted = 130
)

// Exit terminates the program with the given exit code
func Exit(code int) {
	os.Exit(code)
}

// ExitWithError exits with an appropriate code based on error type
func ExitWithError(err error) {
	Exit(FromError(err))
}

// FromError maps an error to the exit code contract above.
// Classification uses the error codes carried by the error chain,
// never message text.
func FromError(err error) int {
	if err == nil {
		return Success
	}

	switch {
	case errors.IsNotReady(err):
		return NotReady
	case errors.IsProbe(err):
		return ProbeFailed
	case errors.IsEarlyCrash(err):
		return Unstable
	default:
		return GeneralError
	}
}

// Describe returns a human-readable description of an exit code
func Describe(code int) string {
	switch code {
	case Success:
		return "Success"
	case GeneralError:
		return "General error"
	case NotReady:
		return "Server never became ready"
	case ProbeFailed:
		return "Probe request failed"
	case Unstable:
		return "Server crashed shortly after becoming ready"
	case Interrupted:
		return "Interrupted"
	default:
		return "Unknown error"
	}
}
