// Package tui renders the live recording view and maps keys onto session
// commands.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/session"
)

// Controller is the subset of session.Manager the view drives.
type Controller interface {
	Start(ctx context.Context) error
	Pause(ctx context.Context) error
	Stop(ctx context.Context) error
	Reset(ctx context.Context) error
	Snapshot() session.Snapshot
}

// Outcome reports how the view ended.
type Outcome int

const (
	// OutcomeQuit means the user left without finishing.
	OutcomeQuit Outcome = iota
	// OutcomeFinished means the user finished the lecture with f.
	OutcomeFinished
)

const tickInterval = 250 * time.Millisecond

// Model is the bubbletea model for one recording.
type Model struct {
	ctrl    Controller
	heading string
	detail  string

	snapshot  session.Snapshot
	actionErr string
	busy      bool
	leaving   bool
	outcome   Outcome

	width  int
	height int
}

// New creates a model that starts recording on Init.
func New(ctrl Controller, heading, detail string) Model {
	return Model{
		ctrl:     ctrl,
		heading:  heading,
		detail:   detail,
		snapshot: ctrl.Snapshot(),
	}
}

// Outcome returns how the user ended the view.
func (m Model) Outcome() Outcome {
	return m.outcome
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.action("start", m.ctrl.Start, false), tick())
}

func tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg{}
	})
}

// action runs fn off the update loop.
func (m Model) action(name string, fn func(context.Context) error, quit bool) tea.Cmd {
	return func() tea.Msg {
		return actionDoneMsg{action: name, err: fn(context.Background()), quit: quit}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case SnapshotMsg:
		m.snapshot = msg.Snapshot
		// Stopped from outside the view, e.g. over the control socket.
		if msg.Snapshot.State == fsm.StateStopped && !m.leaving {
			m.leaving = true
			m.outcome = OutcomeFinished
			return m, tea.Quit
		}
		return m, nil

	case finishMsg:
		m.snapshot = m.ctrl.Snapshot()
		if m.leaving {
			return m, nil
		}
		m.leaving = true
		m.outcome = OutcomeFinished
		return m, tea.Quit

	case tickMsg:
		m.snapshot = m.ctrl.Snapshot()
		return m, tick()

	case actionDoneMsg:
		m.busy = false
		m.snapshot = m.ctrl.Snapshot()
		if msg.err != nil {
			m.actionErr = fmt.Sprintf("%s: %v", msg.action, msg.err)
		} else {
			m.actionErr = ""
		}
		if msg.quit {
			return m, tea.Quit
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case KeyQuit, KeyCtrlC:
		if m.leaving {
			return m, nil
		}
		m.leaving = true
		m.outcome = OutcomeQuit
		m.busy = true
		return m, m.action("stop", m.ctrl.Stop, true)

	case KeyFinish:
		if m.busy {
			return m, nil
		}
		m.leaving = true
		m.outcome = OutcomeFinished
		m.busy = true
		return m, m.action("finish", m.ctrl.Stop, true)
	}

	if m.busy {
		return m, nil
	}

	switch msg.String() {
	case KeyToggle:
		switch m.snapshot.State {
		case fsm.StateRecording:
			m.busy = true
			return m, m.action("pause", m.ctrl.Pause, false)
		case fsm.StateIdle, fsm.StatePaused:
			m.busy = true
			return m, m.action("resume", m.ctrl.Start, false)
		}

	case KeyDiscard:
		m.busy = true
		return m, m.action("discard", m.ctrl.Reset, false)
	}

	return m, nil
}

func (m Model) View() string {
	width := m.width
	if width <= 0 {
		width = 80
	}

	var sections []string
	sections = append(sections, m.renderHeader())
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", width)))
	sections = append(sections, m.renderTranscript(width))
	sections = append(sections, dividerStyle.Render(strings.Repeat("─", width)))
	if line := m.errorLine(); line != "" {
		sections = append(sections, errorStyle.Render(line))
	}
	sections = append(sections, m.renderFooter())

	return strings.Join(sections, "\n")
}

func (m Model) renderHeader() string {
	left := titleStyle.Render(m.heading)
	if m.detail != "" {
		left = lipgloss.JoinVertical(lipgloss.Left, left, subtitleStyle.Render(m.detail))
	}

	right := lipgloss.JoinHorizontal(lipgloss.Center,
		stateBadge(m.snapshot.State),
		" ",
		timerStyle.Render(lecture.FormatDuration(m.snapshot.Elapsed)),
	)
	return lipgloss.JoinHorizontal(lipgloss.Top, left, "   ", right)
}

func stateBadge(state fsm.State) string {
	switch state {
	case fsm.StateRecording:
		return badgeStyle(colorRed).Render("● REC")
	case fsm.StatePaused:
		return badgeStyle(colorAmber).Render("❚❚ PAUSED")
	case fsm.StateStopped:
		return badgeStyle(colorGreen).Render("■ DONE")
	case fsm.StateFailed:
		return badgeStyle(colorRed).Render("✕ FAILED")
	default:
		return badgeStyle(colorBlue).Render("○ READY")
	}
}

func (m Model) renderTranscript(width int) string {
	style := lipgloss.NewStyle().Width(width)
	if m.snapshot.Committed == "" && m.snapshot.Live == "" {
		return style.Render(placeholderStyle.Render("Listening for speech..."))
	}

	var parts []string
	if m.snapshot.Committed != "" {
		parts = append(parts, committedStyle.Render(m.snapshot.Committed))
	}
	if m.snapshot.Live != "" {
		parts = append(parts, liveStyle.Render(m.snapshot.Live))
	}
	body := style.Render(strings.Join(parts, " "))

	if m.height > 8 {
		lines := strings.Split(body, "\n")
		if limit := m.height - 6; len(lines) > limit {
			body = strings.Join(lines[len(lines)-limit:], "\n")
		}
	}
	return body
}

func (m Model) errorLine() string {
	if m.snapshot.Err != nil {
		return "⚠ " + m.snapshot.Err.Message
	}
	if m.actionErr != "" {
		return "⚠ " + m.actionErr
	}
	return ""
}

func (m Model) renderFooter() string {
	toggle := "pause"
	if m.snapshot.State != fsm.StateRecording {
		toggle = "resume"
	}
	keys := []struct{ key, desc string }{
		{"space", toggle},
		{"f", "finish"},
		{"d", "discard"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+" "+helpDescStyle.Render(k.desc))
	}
	return strings.Join(parts, "  ")
}
