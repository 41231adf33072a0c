// Package tui renders the live view for `soundcheck run --watch`: the
// lifecycle phase, readiness attempts as they happen, and the final
// result block. Plain stderr progress remains the default; this view is
// opt-in.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/felixgeelhaar/soundcheck/internal/harness"
	"github.com/felixgeelhaar/soundcheck/internal/report"
)

// Messages the run command feeds into the program.

// PhaseMsg announces a lifecycle phase transition.
type PhaseMsg struct {
	Phase harness.Phase
}

// PollMsg announces one readiness attempt.
type PollMsg struct {
	Attempt int
	Ready   bool
	Message string
	Latency time.Duration
}

// ResultMsg carries the final report and ends the program.
type ResultMsg struct {
	Report *report.Report
}

// Styles contains the lipgloss styles for the watch view.
type Styles struct {
	Title   lipgloss.Style
	Status  lipgloss.Style
	Success lipgloss.Style
	Error   lipgloss.Style
	Muted   lipgloss.Style
	Border  lipgloss.Style
}

// DefaultStyles returns the default lipgloss styles.
func DefaultStyles() Styles {
	return Styles{
		Title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")). // Purple
			MarginBottom(1),
		Status: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")), // Cyan
		Success: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("46")), // Green
		Error: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196")), // Red
		Muted: lipgloss.NewStyle().
			Foreground(lipgloss.Color("241")), // Gray
		Border: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")). // Purple
			Padding(0, 2),
	}
}

// WatchModel is the Bubble Tea model for a run in progress.
type WatchModel struct {
	target  string
	command string

	phase    harness.Phase
	attempts int
	lastPoll string
	result   *report.Report

	spinner   spinner.Model
	startTime time.Time
	width     int
	quitting  bool
	cancelled bool
	styles    Styles

	// onCancel is invoked when the user quits before the run finishes,
	// so the harness context can be cancelled and teardown still runs.
	onCancel func()
}

// NewWatchModel creates the watch view for a run against target.
// command is the launched argv rendered for display; empty means attach
// mode. onCancel may be nil.
func NewWatchModel(target, command string, onCancel func()) WatchModel {
	styles := DefaultStyles()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.Status

	return WatchModel{
		target:    target,
		command:   command,
		phase:     harness.PhaseNotStarted,
		spinner:   sp,
		startTime: time.Now(),
		styles:    styles,
		onCancel:  onCancel,
	}
}

// Cancelled reports whether the user quit before the run finished.
func (m WatchModel) Cancelled() bool {
	return m.cancelled
}

// Init starts the spinner (required by Bubble Tea).
func (m WatchModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update handles messages and updates the model state (required by Bubble Tea).
func (m WatchModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			if m.result == nil {
				m.cancelled = true
				if m.onCancel != nil {
					m.onCancel()
				}
			}
			return m, tea.Quit
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		return m, nil

	case PhaseMsg:
		m.phase = msg.Phase
		return m, nil

	case PollMsg:
		m.attempts = msg.Attempt
		m.lastPoll = msg.Message
		return m, nil

	case ResultMsg:
		m.result = msg.Report
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

// View renders the watch view (required by Bubble Tea).
func (m WatchModel) View() string {
	if m.result != nil {
		return m.result.Summary() + "\n"
	}
	if m.quitting {
		return m.styles.Muted.Render("cancelled, shutting the server down") + "\n"
	}

	var b strings.Builder

	b.WriteString(m.styles.Title.Render("soundcheck run"))
	b.WriteString("\n")
	b.WriteString(m.styles.Muted.Render("Target   "))
	b.WriteString(m.target)
	b.WriteString("\n")
	if m.command != "" {
		b.WriteString(m.styles.Muted.Render("Command  "))
		b.WriteString(m.command)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(m.spinner.View())
	b.WriteString(" ")
	b.WriteString(m.styles.Status.Render(m.phaseLine()))
	b.WriteString("\n")

	if m.attempts > 0 && m.phase == harness.PhasePolling {
		b.WriteString(m.styles.Muted.Render(fmt.Sprintf("attempt %d: %s", m.attempts, m.lastPoll)))
		b.WriteString("\n")
	}

	b.WriteString(m.styles.Muted.Render(fmt.Sprintf("elapsed %s", time.Since(m.startTime).Round(time.Second))))
	b.WriteString("\n\n")
	b.WriteString(m.styles.Muted.Render("q to cancel"))

	return m.styles.Border.Render(b.String()) + "\n"
}

func (m WatchModel) phaseLine() string {
	switch m.phase {
	case harness.PhaseNotStarted:
		return "preparing"
	case harness.PhaseStarting:
		return "starting server"
	case harness.PhasePolling:
		return "waiting for readiness"
	case harness.PhaseReady:
		return "server ready"
	case harness.PhaseProbing:
		return "running probe"
	case harness.PhaseDone:
		return "done"
	case harness.PhaseFailed:
		return "failed"
	case harness.PhaseTornDown:
		return "torn down"
	default:
		return m.phase.String()
	}
}
