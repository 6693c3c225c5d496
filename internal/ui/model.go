// Package ui renders an interactive view while a copied snapshot becomes available.
package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/cesarempathy/rds-snapshot-copy/internal/aws"
)

// ErrWaitCancelled is returned when the user quits before the snapshot is available
var ErrWaitCancelled = errors.New("wait cancelled by user")

// DefaultPollInterval is the delay between progress polls
const DefaultPollInterval = 5 * time.Second

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			MarginBottom(1)

	snapshotStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86"))

	successStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("75")).
			Width(14)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	boxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("99")).
			Padding(1, 2)
)

// Statuses after which a snapshot never becomes available
var terminalStatuses = map[string]bool{
	"deleted":                 true,
	"deleting":                true,
	"failed":                  true,
	"incompatible-restore":    true,
	"incompatible-parameters": true,
}

// ProgressSource reports snapshot progress
type ProgressSource interface {
	GetSnapshotProgress(ctx context.Context, identifier string) (int, string, error)
}

type pollMsg time.Time

type statusMsg struct {
	percent int
	status  string
	err     error
}

// Model is the Bubble Tea model
type Model struct {
	source       ProgressSource
	snapshotID   string
	region       string
	spinner      spinner.Model
	progressBar  progress.Model
	percent      int
	status       string
	err          error
	done         bool
	quitting     bool
	ctx          context.Context
	cancel       context.CancelFunc
	started      time.Time
	deadline     time.Time
	pollInterval time.Duration
}

// NewModel creates a model that polls source until snapshotID is available or timeout elapses
func NewModel(ctx context.Context, source ProgressSource, snapshotID, region string, timeout time.Duration) Model {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	p := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(40),
		progress.WithoutPercentage(),
	)

	ctx, cancel := context.WithCancel(ctx)
	now := time.Now()

	return Model{
		source:       source,
		snapshotID:   snapshotID,
		region:       region,
		spinner:      s,
		progressBar:  p,
		ctx:          ctx,
		cancel:       cancel,
		started:      now,
		deadline:     now.Add(timeout),
		pollInterval: DefaultPollInterval,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.fetchCmd())
}

func (m Model) fetchCmd() tea.Cmd {
	return func() tea.Msg {
		percent, status, err := m.source.GetSnapshotProgress(m.ctx, m.snapshotID)
		return statusMsg{percent: percent, status: status, err: err}
	}
}

func (m Model) pollCmd() tea.Cmd {
	return tea.Tick(m.pollInterval, func(t time.Time) tea.Msg {
		return pollMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			m.cancel()
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		return m, nil

	case statusMsg:
		return m.handleStatus(msg)

	case pollMsg:
		return m, m.fetchCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m Model) handleStatus(msg statusMsg) (tea.Model, tea.Cmd) {
	if msg.err != nil {
		m.err = fmt.Errorf("get snapshot progress: %w", msg.err)
		m.cancel()
		return m, tea.Quit
	}

	m.percent = msg.percent
	m.status = msg.status

	switch {
	case msg.status == aws.SnapshotStatusAvailable:
		m.done = true
		m.percent = 100
		m.cancel()
		return m, tea.Quit
	case terminalStatuses[msg.status]:
		m.err = fmt.Errorf("snapshot %s entered status %q", m.snapshotID, msg.status)
		m.cancel()
		return m, tea.Quit
	case !time.Now().Before(m.deadline):
		m.err = fmt.Errorf("timed out waiting for snapshot %s (last status: %s)", m.snapshotID, msg.status)
		m.cancel()
		return m, tea.Quit
	}

	return m, m.pollCmd()
}

// View renders the UI
func (m Model) View() string {
	var b strings.Builder

	b.WriteString("\n")
	b.WriteString(titleStyle.Render("  ⏳ Waiting for DB snapshot"))
	b.WriteString("\n\n")

	status := m.status
	if status == "" {
		status = "pending"
	}
	elapsed := time.Since(m.started).Round(time.Second)

	content := fmt.Sprintf(
		"%s%s\n%s%s\n%s%s\n%s%s",
		infoStyle.Render("Snapshot:"),
		snapshotStyle.Render(m.snapshotID),
		infoStyle.Render("Region:"),
		m.region,
		infoStyle.Render("Status:"),
		status,
		infoStyle.Render("Elapsed:"),
		elapsed,
	)
	b.WriteString(boxStyle.Render(content))
	b.WriteString("\n\n")

	switch {
	case m.done:
		b.WriteString("  ")
		b.WriteString(successStyle.Render("✓ Snapshot is available"))
	case m.err != nil:
		b.WriteString("  ")
		b.WriteString(errorStyle.Render("✗ " + m.err.Error()))
	case m.quitting:
		b.WriteString(dimStyle.Render("  Wait cancelled. The copy continues in AWS."))
	default:
		b.WriteString("  ")
		b.WriteString(m.spinner.View())
		b.WriteString(" ")
		b.WriteString(m.progressBar.ViewAs(float64(m.percent) / 100.0))
		b.WriteString(dimStyle.Render(fmt.Sprintf(" %d%%", m.percent)))
		b.WriteString("\n\n")
		b.WriteString(dimStyle.Render("  Press q or Ctrl+C to stop waiting"))
	}
	b.WriteString("\n\n")

	return b.String()
}

// Err returns the error that ended the wait, if any
func (m Model) Err() error {
	if m.err != nil {
		return m.err
	}
	if m.quitting && !m.done {
		return ErrWaitCancelled
	}
	return nil
}

// Done reports whether the snapshot became available
func (m Model) Done() bool {
	return m.done
}

// Status returns the last observed snapshot status
func (m Model) Status() string {
	return m.status
}
