package ux

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestEnhanceError(t *testing.T) {
	tests := []struct {
		name           string
		err            error
		wantSuggestion string
	}{
		{
			name:           "vllm missing",
			err:            fmt.Errorf(`exec: "vllm": executable file not found in $PATH`),
			wantSuggestion: "Install vLLM",
		},
		{
			name:           "port collision",
			err:            fmt.Errorf("listen tcp 127.0.0.1:8000: bind: address already in use"),
			wantSuggestion: "different --port",
		},
		{
			name:           "connection refused",
			err:            fmt.Errorf(`Get "http://127.0.0.1:8000/v1/models": dial tcp 127.0.0.1:8000: connect: connection refused`),
			wantSuggestion: "No server is listening",
		},
		{
			name:           "gpu oom",
			err:            fmt.Errorf("server exited: CUDA out of memory"),
			wantSuggestion: "GPU memory",
		},
		{
			name:           "missing wav",
			err:            fmt.Errorf("open sample.wav: no such file or directory"),
			wantSuggestion: "soundcheck fixture",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enhanced := EnhanceError(tt.err)

			var withSuggestion *ErrorWithSuggestion
			if !errors.As(enhanced, &withSuggestion) {
				t.Fatalf("expected ErrorWithSuggestion, got %T", enhanced)
			}

			if !strings.Contains(withSuggestion.Suggestion, tt.wantSuggestion) {
				t.Errorf("suggestion %q does not contain %q", withSuggestion.Suggestion, tt.wantSuggestion)
			}

			// Original error must stay reachable for errors.Is
			if !errors.Is(enhanced, tt.err) {
				t.Error("enhanced error should unwrap to the original")
			}
		})
	}
}

func TestEnhanceErrorPassthrough(t *testing.T) {
	err := fmt.Errorf("some unrelated condition")
	if got := EnhanceError(err); got != err {
		t.Errorf("unrecognized errors should pass through unchanged, got %v", got)
	}
}

func TestFormatError(t *testing.T) {
	err := fmt.Errorf("underlying")

	formatted := FormatError(err, "starting server")
	if formatted == nil {
		t.Fatal("expected non-nil error")
	}

	if !strings.HasPrefix(formatted.Error(), "starting server: ") {
		t.Errorf("context prefix missing: %v", formatted)
	}

	if FormatError(nil, "anything") != nil {
		t.Error("FormatError(nil) should be nil")
	}
}
