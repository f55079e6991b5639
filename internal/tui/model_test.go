package tui

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/session"
)

type fakeController struct {
	mu       sync.Mutex
	snapshot session.Snapshot
	calls    []string
	err      error
}

func (c *fakeController) record(name string, next fsm.State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, name)
	if c.err != nil {
		return c.err
	}
	c.snapshot.State = next
	c.snapshot.IsRecording = next == fsm.StateRecording
	return nil
}

func (c *fakeController) Start(context.Context) error { return c.record("start", fsm.StateRecording) }
func (c *fakeController) Pause(context.Context) error { return c.record("pause", fsm.StatePaused) }
func (c *fakeController) Stop(context.Context) error  { return c.record("stop", fsm.StateStopped) }
func (c *fakeController) Reset(context.Context) error { return c.record("reset", fsm.StateIdle) }

func (c *fakeController) Snapshot() session.Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshot
}

func (c *fakeController) callLog() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

func applyUpdate(m Model, msg tea.Msg) (Model, tea.Cmd) {
	updated, cmd := m.Update(msg)
	return updated.(Model), cmd
}

// runCmd executes cmd and feeds its message back, as the program loop would.
func runCmd(t *testing.T, m Model, cmd tea.Cmd) (Model, tea.Cmd) {
	t.Helper()
	require.NotNil(t, cmd)
	return applyUpdate(m, cmd())
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := cmd().(tea.QuitMsg)
	return ok
}

func TestSpaceTogglesPauseAndResume(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateIdle}}
	m := New(ctrl, "Calculus I", "Limits")

	m, cmd := applyUpdate(m, key(" "))
	require.True(t, m.busy)
	m, _ = runCmd(t, m, cmd)
	require.False(t, m.busy)
	require.Equal(t, fsm.StateRecording, m.snapshot.State)

	m, cmd = applyUpdate(m, key(" "))
	m, _ = runCmd(t, m, cmd)
	require.Equal(t, fsm.StatePaused, m.snapshot.State)

	m, cmd = applyUpdate(m, key(" "))
	_, _ = runCmd(t, m, cmd)
	require.Equal(t, []string{"start", "pause", "start"}, ctrl.callLog())
}

func TestKeysIgnoredWhileBusy(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m := New(ctrl, "Biology", "")

	m, cmd := applyUpdate(m, key(" "))
	require.NotNil(t, cmd)
	m, cmd = applyUpdate(m, key("d"))
	require.Nil(t, cmd)
	require.True(t, m.busy)
}

func TestFinishStopsAndQuits(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m := New(ctrl, "Physics", "")

	m, cmd := applyUpdate(m, key("f"))
	require.Equal(t, OutcomeFinished, m.Outcome())
	m, cmd = runCmd(t, m, cmd)
	require.True(t, isQuit(cmd))
	require.Equal(t, fsm.StateStopped, m.snapshot.State)
	require.Equal(t, []string{"stop"}, ctrl.callLog())
}

func TestQuitStopsEvenWhileBusy(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m := New(ctrl, "Physics", "")

	m, _ = applyUpdate(m, key(" "))
	m, cmd := applyUpdate(m, key("ctrl+c"))
	require.Equal(t, OutcomeQuit, m.Outcome())
	_, cmd = runCmd(t, m, cmd)
	require.True(t, isQuit(cmd))
	require.Equal(t, []string{"stop"}, ctrl.callLog())
}

func TestDiscardResets(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StatePaused, Committed: "old words", Transcript: "old words"}}
	m := New(ctrl, "History", "")

	m, cmd := applyUpdate(m, key("d"))
	m, cmd = runCmd(t, m, cmd)
	require.Nil(t, cmd)
	require.Equal(t, fsm.StateIdle, m.snapshot.State)
	require.Equal(t, []string{"reset"}, ctrl.callLog())
}

func TestActionErrorShown(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateStopped}, err: errors.New("invalid transition")}
	m := New(ctrl, "Art", "")
	m.width = 60

	m, cmd := applyUpdate(m, key("d"))
	m, _ = runCmd(t, m, cmd)
	require.Contains(t, m.View(), "discard: invalid transition")
}

func TestViewRendersSessionState(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, "Calculus I", "Limits and continuity")
	m, _ = applyUpdate(m, tea.WindowSizeMsg{Width: 100, Height: 30})

	view := m.View()
	require.Contains(t, view, "Calculus I")
	require.Contains(t, view, "READY")
	require.Contains(t, view, "Listening for speech...")
	require.Contains(t, view, "00:00")

	info := session.ErrRecognizerIsUnavailable
	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{
		State:       fsm.StateRecording,
		Committed:   "hello world",
		Live:        "there",
		IsRecording: true,
		Elapsed:     75*time.Minute + 3*time.Second,
	}})
	view = m.View()
	require.Contains(t, view, "REC")
	require.Contains(t, view, "75:03")
	require.Contains(t, view, "hello world")
	require.Contains(t, view, "there")
	require.Contains(t, view, "pause")

	m, _ = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: fsm.StateFailed, Err: info}})
	view = m.View()
	require.Contains(t, view, "FAILED")
	require.Contains(t, view, "Recognizer is unavailable")
	require.Contains(t, view, "resume")
}

func TestTickRefreshesSnapshot(t *testing.T) {
	ctrl := &fakeController{}
	m := New(ctrl, "Chemistry", "")

	ctrl.mu.Lock()
	ctrl.snapshot = session.Snapshot{State: fsm.StateRecording, Elapsed: 3 * time.Second}
	ctrl.mu.Unlock()

	m, cmd := applyUpdate(m, tickMsg{})
	require.NotNil(t, cmd)
	require.Equal(t, 3*time.Second, m.snapshot.Elapsed)
}

func TestExternalStopFinishes(t *testing.T) {
	ctrl := &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m := New(ctrl, "Economics", "")

	m, cmd := applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: fsm.StateStopped, Committed: "supply"}})
	require.True(t, isQuit(cmd))
	require.Equal(t, OutcomeFinished, m.Outcome())

	// A stop issued by q keeps the quit outcome.
	ctrl = &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m = New(ctrl, "Economics", "")
	m, _ = applyUpdate(m, key("q"))
	m, cmd = applyUpdate(m, SnapshotMsg{Snapshot: session.Snapshot{State: fsm.StateStopped}})
	require.Nil(t, cmd)
	require.Equal(t, OutcomeQuit, m.Outcome())
}

func TestControlFinishQuitsFromFailedState(t *testing.T) {
	failed := session.Snapshot{State: fsm.StateFailed, Committed: "torque"}
	ctrl := &fakeController{snapshot: failed}
	m := New(ctrl, "Physics", "")

	m, cmd := applyUpdate(m, SnapshotMsg{Snapshot: failed})
	require.Nil(t, cmd)

	m, cmd = applyUpdate(m, finishMsg{})
	require.True(t, isQuit(cmd))
	require.Equal(t, OutcomeFinished, m.Outcome())
	require.Equal(t, fsm.StateFailed, m.snapshot.State)

	// Already leaving after q: the quit outcome stands.
	ctrl = &fakeController{snapshot: session.Snapshot{State: fsm.StateRecording}}
	m = New(ctrl, "Physics", "")
	m, _ = applyUpdate(m, key("q"))
	m, cmd = applyUpdate(m, finishMsg{})
	require.Nil(t, cmd)
	require.Equal(t, OutcomeQuit, m.Outcome())
}
