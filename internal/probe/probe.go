// Package probe provides pluggable readiness predicates for externally
// launched servers.
//
// The package follows a small checker pattern:
//   - Probe interface for pluggable readiness checks
//   - Result type with status, message, and details
//   - Built-in probes for the backend variants soundcheck supports
//
// A probe answers one question: is the server ready to take real
// requests yet? Transport-level failures are reported as Waiting, not
// as errors, because "not up yet" is the expected state while a server
// boots.
package probe

import (
	"context"
	"time"
)

// Probe defines the interface for readiness checks.
type Probe interface {
	// Name returns the unique name of this probe.
	// Should be lowercase with hyphens (e.g., "openai-models").
	Name() string

	// Check performs one readiness check and returns the result.
	// It must respect the context deadline and return quickly; the
	// poll loop bounds each attempt.
	Check(ctx context.Context) *Result
}

// Status represents the readiness check status.
type Status string

const (
	// StatusReady indicates the server answered and is ready for work.
	StatusReady Status = "ready"

	// StatusWaiting indicates the server is not ready yet. This is the
	// normal state during startup, not a failure.
	StatusWaiting Status = "waiting"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// Result represents the result of a readiness check.
type Result struct {
	// Status is the readiness status (ready, waiting).
	Status Status

	// Message is a human-readable description of the status.
	Message string

	// Details contains additional structured information about the
	// check, e.g. the served model id once it is known.
	Details map[string]interface{}

	// Latency is how long the check took to complete.
	Latency time.Duration
}

// NewResult creates a new readiness result with the given status and message.
func NewResult(status Status, message string) *Result {
	return &Result{
		Status:  status,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// WithDetail adds a detail to the result and returns the result for chaining.
func (r *Result) WithDetail(key string, value interface{}) *Result {
	r.Details[key] = value
	return r
}

// WithLatency sets the latency and returns the result for chaining.
func (r *Result) WithLatency(latency time.Duration) *Result {
	r.Latency = latency
	return r
}

// Ready creates a ready result with the given message.
func Ready(message string) *Result {
	return NewResult(StatusReady, message)
}

// Waiting creates a waiting result with the given message.
func Waiting(message string) *Result {
	return NewResult(StatusWaiting, message)
}

// IsReady reports whether the result indicates readiness.
func (r *Result) IsReady() bool {
	return r.Status == StatusReady
}
