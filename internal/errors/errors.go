package errors

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

// Error categories
const (
	// Launch errors (LAUNCH-001 to LAUNCH-099)
	ErrCodeLaunchNotFound ErrorCode = "LAUNCH-001"
	ErrCodeLaunchExited   ErrorCode = "LAUNCH-002"
	ErrCodeLaunchSpawn    ErrorCode = "LAUNCH-003"
	ErrCodeLaunchBadSpec  ErrorCode = "LAUNCH-004"

	// Readiness errors (READY-001 to READY-099)
	ErrCodeReadinessTimeout ErrorCode = "READY-001"
	ErrCodeProcessExited    ErrorCode = "READY-002"

	// Grace-window errors (GRACE-001 to GRACE-099)
	ErrCodeEarlyCrash ErrorCode = "GRACE-001"

	// Probe errors (PROBE-001 to PROBE-099)
	ErrCodeProbeFailed ErrorCode = "PROBE-001"

	// Configuration errors (CONFIG-001 to CONFIG-099)
	ErrCodeConfigNotFound ErrorCode = "CONFIG-001"
	ErrCodeConfigInvalid  ErrorCode = "CONFIG-002"
	ErrCodeConfigParse    ErrorCode = "CONFIG-003"

	// Audio fixture errors (AUDIO-001 to AUDIO-099)
	ErrCodeAudioFixture  ErrorCode = "AUDIO-001"
	ErrCodeAudioBadWAV   ErrorCode = "AUDIO-002"
	ErrCodeAudioTooLarge ErrorCode = "AUDIO-003"

	// Bench server errors (BENCH-001 to BENCH-099)
	ErrCodeBenchUpstream   ErrorCode = "BENCH-001"
	ErrCodeBenchBadRequest ErrorCode = "BENCH-002"
)

// SoundcheckError represents an enhanced error with code, suggestions, and documentation
type SoundcheckError struct {
	Code        ErrorCode
	Message     string
	Suggestions []string
	DocsURL     string
	Cause       error

	// ExitCode is the observed exit code of the launched process,
	// when the failure is tied to a process that terminated.
	ExitCode *int
}

// Error implements the error interface
func (e *SoundcheckError) Error() string {
	var b strings.Builder

	// Error code and message
	b.WriteString(fmt.Sprintf("[%s] %s", e.Code, e.Message))

	// Add cause if present
	if e.Cause != nil {
		b.WriteString(fmt.Sprintf(": %v", e.Cause))
	}

	// Add suggestions
	if len(e.Suggestions) > 0 {
		b.WriteString("\n\nSuggestions:")
		for _, suggestion := range e.Suggestions {
			b.WriteString(fmt.Sprintf("\n  • %s", suggestion))
		}
	}

	// Add documentation link
	if e.DocsURL != "" {
		b.WriteString(fmt.Sprintf("\n\nDocumentation: %s", e.DocsURL))
	}

	return b.String()
}

// Unwrap implements error unwrapping for errors.Is and errors.As
func (e *SoundcheckError) Unwrap() error {
	return e.Cause
}

// New creates a new SoundcheckError
func New(code ErrorCode, message string) *SoundcheckError {
	return &SoundcheckError{
		Code:    code,
		Message: message,
	}
}

// Wrap creates a new SoundcheckError wrapping an existing error
func Wrap(code ErrorCode, message string, cause error) *SoundcheckError {
	return &SoundcheckError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WithSuggestion adds a suggestion to the error
func (e *SoundcheckError) WithSuggestion(suggestion string) *SoundcheckError {
	e.Suggestions = append(e.Suggestions, suggestion)
	return e
}

// WithSuggestions adds multiple suggestions to the error
func (e *SoundcheckError) WithSuggestions(suggestions ...string) *SoundcheckError {
	e.Suggestions = append(e.Suggestions, suggestions...)
	return e
}

// WithDocs adds a documentation URL to the error
func (e *SoundcheckError) WithDocs(url string) *SoundcheckError {
	e.DocsURL = url
	return e
}

// WithExitCode records the exit code of the terminated process
func (e *SoundcheckError) WithExitCode(code int) *SoundcheckError {
	e.ExitCode = &code
	return e
}

// CodeOf returns the error code carried by err, or "" if err is not a
// SoundcheckError anywhere in its chain.
func CodeOf(err error) ErrorCode {
	var scErr *SoundcheckError
	if errors.As(err, &scErr) {
		return scErr.Code
	}
	return ""
}

// ExitCodeFrom extracts the process exit code carried by err, when present.
func ExitCodeFrom(err error) (int, bool) {
	var scErr *SoundcheckError
	if errors.As(err, &scErr) && scErr.ExitCode != nil {
		return *scErr.ExitCode, true
	}
	return 0, false
}

// category returns the code prefix, e.g. "READY" for READY-002.
func category(err error) string {
	code := string(CodeOf(err))
	if i := strings.IndexByte(code, '-'); i > 0 {
		return code[:i]
	}
	return code
}

// IsLaunch reports whether err is a launch failure (process could not start).
func IsLaunch(err error) bool {
	return category(err) == "LAUNCH"
}

// IsNotReady reports whether err means the server never became ready,
// either by timing out or by dying first.
func IsNotReady(err error) bool {
	return category(err) == "READY"
}

// IsEarlyCrash reports whether err means the process died inside the
// post-readiness grace window.
func IsEarlyCrash(err error) bool {
	return category(err) == "GRACE"
}

// IsProbe reports whether err is a probe failure against a ready server.
func IsProbe(err error) bool {
	return category(err) == "PROBE"
}

// Common error constructors for frequently used errors

// NewLaunchNotFoundError indicates the server executable is not on PATH
func NewLaunchNotFoundError(executable string) *SoundcheckError {
	return New(ErrCodeLaunchNotFound, fmt.Sprintf("server executable not found: %s", executable)).
		WithSuggestion(fmt.Sprintf("Install %s or add it to PATH", executable)).
		WithSuggestion("Use --server-cmd to point at a different launcher").
		WithSuggestion("Use --attach to probe an already-running server instead").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#launching-a-server")
}

// NewLaunchExitedError indicates the server exited before readiness polling began
func NewLaunchExitedError(exitCode int) *SoundcheckError {
	return New(ErrCodeLaunchExited, fmt.Sprintf("server exited immediately with code %d", exitCode)).
		WithExitCode(exitCode).
		WithSuggestion("Run the server command by hand to see its startup error").
		WithSuggestion("Check GPU memory and model path if this is a vLLM server").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#launch-failures")
}

// NewLaunchSpawnError indicates the OS could not spawn the process at all
func NewLaunchSpawnError(executable string, cause error) *SoundcheckError {
	return Wrap(ErrCodeLaunchSpawn, fmt.Sprintf("failed to start %s", executable), cause).
		WithSuggestion("Check file permissions on the executable").
		WithSuggestion("Check that the working directory exists")
}

// NewReadinessTimeoutError indicates the server never became ready in time
func NewReadinessTimeoutError(timeout string, target string) *SoundcheckError {
	return New(ErrCodeReadinessTimeout, fmt.Sprintf("server not ready after %s (%s)", timeout, target)).
		WithSuggestion("Increase --timeout; large models can take minutes to load").
		WithSuggestion("Check the server log output above for startup errors").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#readiness")
}

// NewProcessExitedError indicates the server died while we were polling for readiness
func NewProcessExitedError(exitCode int) *SoundcheckError {
	return New(ErrCodeProcessExited, fmt.Sprintf("server exited with code %d before becoming ready", exitCode)).
		WithExitCode(exitCode).
		WithSuggestion("Check the server log output above for the crash reason").
		WithSuggestion("Verify the model name and that required files are present").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#readiness")
}

// NewEarlyCrashError indicates the server died inside the post-readiness grace window
func NewEarlyCrashError(grace string, exitCode int) *SoundcheckError {
	return New(ErrCodeEarlyCrash, fmt.Sprintf("server crashed within %s of becoming ready (exit code %d)", grace, exitCode)).
		WithExitCode(exitCode).
		WithSuggestion("The server passed its health check but is unstable; check its logs").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#grace-window")
}

// NewProbeFailedError indicates the functional probe against a ready server failed
func NewProbeFailedError(cause error) *SoundcheckError {
	return Wrap(ErrCodeProbeFailed, "probe request failed", cause).
		WithSuggestion("The server was ready but the request was rejected; check the response body").
		WithSuggestion("Verify the model supports audio transcription").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#probes")
}

// NewConfigNotFoundError indicates the configuration file is missing
func NewConfigNotFoundError(path string) *SoundcheckError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithSuggestion("Run 'soundcheck init' to create one").
		WithSuggestion("Check if the file path is correct")
}

// NewConfigInvalidError indicates the configuration failed validation
func NewConfigInvalidError(details string) *SoundcheckError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", details)).
		WithSuggestion("Run 'soundcheck doctor' to see what is wrong").
		WithDocs("https://github.com/felixgeelhaar/soundcheck#configuration")
}

// NewConfigParseError indicates the configuration file could not be parsed
func NewConfigParseError(path string, cause error) *SoundcheckError {
	return Wrap(ErrCodeConfigParse, fmt.Sprintf("failed to parse configuration file: %s", path), cause).
		WithSuggestion("Check the YAML syntax").
		WithSuggestion("Regenerate the file with 'soundcheck init --force'")
}

// NewAudioFixtureError indicates the audio fixture could not be provided
func NewAudioFixtureError(path string, cause error) *SoundcheckError {
	return Wrap(ErrCodeAudioFixture, fmt.Sprintf("audio fixture unavailable: %s", path), cause).
		WithSuggestion("Pass --audio with a readable WAV file").
		WithSuggestion("Run 'soundcheck fixture' to generate a placeholder")
}

// NewBenchUpstreamError indicates the upstream transcription call failed during a bench request
func NewBenchUpstreamError(cause error) *SoundcheckError {
	return Wrap(ErrCodeBenchUpstream, "upstream transcription failed", cause).
		WithSuggestion("Check that the upstream server is still running").
		WithSuggestion("Run 'soundcheck run --attach' to smoke-test the upstream directly")
}
