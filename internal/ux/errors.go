package ux

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with helpful recovery suggestions
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\n💡 Suggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap provides access to the underlying error
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// NewErrorWithSuggestion creates a new error with a suggestion
func NewErrorWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}

// EnhanceError analyzes an error and adds contextual suggestions
func EnhanceError(err error) error {
	if err == nil {
		return nil
	}

	errMsg := err.Error()

	// Missing executable
	if strings.Contains(errMsg, "executable file not found") || strings.Contains(errMsg, "command not found") {
		if strings.Contains(errMsg, "vllm") {
			return NewErrorWithSuggestion(err,
				"Install vLLM (pip install vllm) or point --server-cmd at your launcher")
		}
		return NewErrorWithSuggestion(err,
			"Install the server binary or use --attach to probe an already-running server")
	}

	// Port collisions
	if strings.Contains(errMsg, "address already in use") {
		return NewErrorWithSuggestion(err,
			"Another process owns the port. Pick a different --port or stop the other server")
	}

	// Connection problems against the upstream
	if strings.Contains(errMsg, "connection refused") || strings.Contains(errMsg, "no route to host") {
		return NewErrorWithSuggestion(err,
			"No server is listening there. Check --host/--port, or drop --attach to let soundcheck start one")
	}

	// GPU / model loading failures surfaced through the server's exit
	if strings.Contains(errMsg, "CUDA") || strings.Contains(errMsg, "out of memory") {
		return NewErrorWithSuggestion(err,
			"The server ran out of GPU memory. Lower --gpu-memory-utilization or use a smaller model")
	}

	// Model mismatches
	if strings.Contains(errMsg, "model") && strings.Contains(errMsg, "not found") {
		return NewErrorWithSuggestion(err,
			"The served model name does not match. Check GET /v1/models for what the server actually serves")
	}

	// Missing fixture files
	if strings.Contains(errMsg, "no such file or directory") {
		if strings.Contains(errMsg, ".wav") {
			return NewErrorWithSuggestion(err,
				"Generate a placeholder fixture with 'soundcheck fixture --out sample.wav'")
		}
		return NewErrorWithSuggestion(err,
			"Check the file path and that the working directory is what you expect")
	}

	// Permission errors
	if strings.Contains(errMsg, "permission denied") {
		return NewErrorWithSuggestion(err,
			"Check file permissions and ensure you have access to the required files/directories")
	}

	return err
}

// FormatError provides consistent error formatting with context
func FormatError(err error, context string) error {
	if err == nil {
		return nil
	}

	enhanced := EnhanceError(err)
	if context != "" {
		return fmt.Errorf("%s: %w", context, enhanced)
	}
	return enhanced
}
