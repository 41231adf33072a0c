// Package report assembles the outcome of a probe run: identity,
// timing, the real-time factor, and the transcript. It renders two
// surfaces that must not be confused: stable KEY=VALUE lines on stdout
// for scripts, and a styled human summary for the terminal.
package report

import (
	stderrors "errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"

	"github.com/felixgeelhaar/soundcheck/internal/errors"
)

// Report is the outcome of one probe run.
type Report struct {
	RunID  string `json:"run_id" yaml:"run_id"`
	Model  string `json:"model" yaml:"model"`
	Target string `json:"target" yaml:"target"`

	AudioPath    string  `json:"audio_path" yaml:"audio_path"`
	AudioSeconds float64 `json:"audio_seconds" yaml:"audio_seconds"`
	AudioDigest  string  `json:"audio_digest,omitempty" yaml:"audio_digest,omitempty"`

	ElapsedSeconds float64 `json:"elapsed_seconds" yaml:"elapsed_seconds"`

	// RTF is elapsed over audio duration: below 1.0 means faster than
	// real time.
	RTF float64 `json:"rtf" yaml:"rtf"`

	Text string `json:"text" yaml:"text"`

	Success         bool   `json:"success" yaml:"success"`
	Error           string `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorCode       string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
	ProcessExitCode *int   `json:"process_exit_code,omitempty" yaml:"process_exit_code,omitempty"`

	StartedAt  time.Time `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// New creates a report for one run against the given target.
func New(target string) *Report {
	return &Report{
		RunID:     uuid.NewString(),
		Target:    target,
		StartedAt: time.Now(),
	}
}

// SetAudio records the fixture the probe will send.
func (r *Report) SetAudio(path string, seconds float64, digest string) {
	r.AudioPath = path
	r.AudioSeconds = seconds
	r.AudioDigest = digest
}

// Finish marks the run successful and derives timing from the probe
// duration. RTF is left at zero when the audio duration is unknown.
func (r *Report) Finish(text string, elapsed time.Duration) {
	r.Success = true
	r.Text = text
	r.ElapsedSeconds = elapsed.Seconds()
	r.FinishedAt = time.Now()
	if r.AudioSeconds > 0 {
		r.RTF = r.ElapsedSeconds / r.AudioSeconds
	}
}

// Fail marks the run failed. Structured errors contribute their code
// and observed process exit code; the verbose suggestion text stays
// out of the report.
func (r *Report) Fail(err error, elapsed time.Duration) {
	r.Success = false
	r.ElapsedSeconds = elapsed.Seconds()
	r.FinishedAt = time.Now()

	var scErr *errors.SoundcheckError
	if stderrors.As(err, &scErr) {
		r.Error = scErr.Message
		r.ErrorCode = string(scErr.Code)
		if scErr.ExitCode != nil {
			r.ProcessExitCode = scErr.ExitCode
		}
		return
	}
	if err != nil {
		r.Error = err.Error()
	}
}

// KeyValues returns the stable stdout lines scripts parse. The key
// names, "KEY: value" shape, and ordering are a compatibility
// contract. A successful run emits MODEL, AUDIO_SECONDS,
// ELAPSED_SECONDS, RTF, and TEXT; a failed run still emits the timing
// it measured. TEXT is flattened to a single line.
func (r *Report) KeyValues() []string {
	var lines []string
	if r.Success {
		lines = append(lines, fmt.Sprintf("MODEL: %s", r.Model))
	}
	if r.AudioSeconds > 0 {
		lines = append(lines, fmt.Sprintf("AUDIO_SECONDS: %.3f", r.AudioSeconds))
	}
	lines = append(lines, fmt.Sprintf("ELAPSED_SECONDS: %.3f", r.ElapsedSeconds))
	if r.Success {
		if r.RTF > 0 {
			lines = append(lines, fmt.Sprintf("RTF: %.3f", r.RTF))
		}
		lines = append(lines, fmt.Sprintf("TEXT: %s", flatten(r.Text)))
	}
	return lines
}

// WriteKeyValues writes the contract lines to w.
func (r *Report) WriteKeyValues(w io.Writer) error {
	for _, line := range r.KeyValues() {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	return nil
}

func flatten(s string) string {
	s = strings.ReplaceAll(s, "\r\n", " ")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimSpace(s)
}

// styles for the human summary, matching the rest of the CLI.
type summaryStyles struct {
	Success lipgloss.Style
	Error   lipgloss.Style
	Label   lipgloss.Style
	Value   lipgloss.Style
	Border  lipgloss.Style
}

func defaultSummaryStyles() summaryStyles {
	return summaryStyles{
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Value: lipgloss.NewStyle().
			Foreground(lipgloss.Color("86")), // Cyan
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purple
			Padding(0, 2),
	}
}

// Summary renders the human-readable result block.
func (r *Report) Summary() string {
	styles := defaultSummaryStyles()

	var b strings.Builder
	if r.Success {
		b.WriteString(styles.Success.Render("✓ Probe succeeded"))
	} else {
		b.WriteString(styles.Error.Render("✗ Probe failed"))
	}
	b.WriteString("\n\n")

	rows := []struct {
		label string
		value string
	}{
		{"Run", r.RunID},
		{"Model", r.Model},
		{"Target", r.Target},
	}
	if r.AudioPath != "" {
		rows = append(rows, struct{ label, value string }{
			"Audio", fmt.Sprintf("%s (%.3fs)", r.AudioPath, r.AudioSeconds),
		})
	}
	rows = append(rows, struct{ label, value string }{
		"Elapsed", fmt.Sprintf("%.3fs", r.ElapsedSeconds),
	})
	if r.Success {
		rows = append(rows,
			struct{ label, value string }{"RTF", fmt.Sprintf("%.3f", r.RTF)},
			struct{ label, value string }{"Text", flatten(r.Text)},
		)
	} else {
		detail := r.Error
		if r.ErrorCode != "" {
			detail = fmt.Sprintf("[%s] %s", r.ErrorCode, r.Error)
		}
		if r.ProcessExitCode != nil {
			detail = fmt.Sprintf("%s (exit code %d)", detail, *r.ProcessExitCode)
		}
		rows = append(rows, struct{ label, value string }{"Error", detail})
	}

	for _, row := range rows {
		if row.value == "" {
			continue
		}
		b.WriteString(styles.Label.Render(fmt.Sprintf("%-9s", row.label)))
		b.WriteString(styles.Value.Render(row.value))
		b.WriteString("\n")
	}

	return styles.Border.Render(strings.TrimRight(b.String(), "\n"))
}
