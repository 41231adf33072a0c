package exitcode

import (
	"fmt"
	"testing"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

func TestFromError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{
			name: "nil error",
			err:  nil,
			want: Success,
		},
		{
			name: "readiness timeout",
			err:  errors.NewReadinessTimeoutError("10s", "http://127.0.0.1:8000/v1/models"),
			want: NotReady,
		},
		{
			name: "process exited while polling",
			err:  errors.NewProcessExitedError(1),
			want: NotReady,
		},
		{
			name: "probe failure",
			err:  errors.NewProbeFailedError(fmt.Errorf("HTTP 400")),
			want: ProbeFailed,
		},
		{
			name: "early crash",
			err:  errors.NewEarlyCrashError("2s", 137),
			want: Unstable,
		},
		{
			name: "launch failure",
			err:  errors.NewLaunchNotFoundError("vllm"),
			want: GeneralError,
		},
		{
			name: "config failure",
			err:  errors.NewConfigInvalidError("port out of range"),
			want: GeneralError,
		},
		{
			name: "plain error",
			err:  fmt.Errorf("something else"),
			want: GeneralError,
		},
		{
			name: "wrapped taxonomy error",
			err:  fmt.Errorf("run failed: %w", errors.NewProbeFailedError(fmt.Errorf("HTTP 500"))),
			want: ProbeFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FromError(tt.err); got != tt.want {
				t.Errorf("FromError() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		code int
		want string
	}{
		{Success, "Success"},
		{GeneralError, "General error"},
		{NotReady, "Server never became ready"},
		{ProbeFailed, "Probe request failed"},
		{Unstable, "Server crashed shortly after becoming ready"},
		{Interrupted, "Interrupted"},
		{99, "Unknown error"},
	}

	for _, tt := range tests {
		if got := Describe(tt.code); got != tt.want {
			t.Errorf("Describe(%d) = %q, want %q", tt.code, got, tt.want)
		}
	}
}

func TestContractValues(t *testing.T) {
	// Callers in CI scripts branch on the numeric values.
	if Success != 0 || GeneralError != 1 || NotReady != 2 || ProbeFailed != 3 || Unstable != 4 || Interrupted != 130 {
		t.Fatal("exit code contract changed")
	}
}
