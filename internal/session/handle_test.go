package session

import (
	"context"
	"testing"
	"time"

	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/ipc"
	"github.com/stretchr/testify/require"
)

func TestHandleCommandLifecycle(t *testing.T) {
	h := newHarness(t, auth.Allowed)
	ctx := context.Background()

	resp := h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)

	resp = h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandResume})
	require.True(t, resp.OK)
	require.Equal(t, "recording", resp.State)
	require.Equal(t, "recording", resp.Message)

	h.say(t, "limits")
	h.clock.Advance(1500 * time.Millisecond)

	resp = h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandPause})
	require.True(t, resp.OK)
	require.Equal(t, "paused", resp.State)
	require.Equal(t, "limits", resp.Transcript)
	require.Equal(t, int64(1500), resp.ElapsedMS)

	resp = h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
	require.Equal(t, "stopped", resp.State)
	require.Equal(t, "limits", resp.Transcript)

	resp = h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandReset})
	require.True(t, resp.OK)
	require.Equal(t, "idle", resp.State)
	require.Empty(t, resp.Transcript)
}

func TestHandleReportsSessionError(t *testing.T) {
	h := newHarness(t, auth.Static{Speech: auth.StatusDenied, Record: auth.StatusAuthorized})

	resp := h.manager.Handle(context.Background(), ipc.Request{Command: ipc.CommandResume})
	require.False(t, resp.OK)
	require.Equal(t, "failed", resp.State)
	require.Equal(t, string(CodeNotAuthorizedToRecognize), resp.ErrorCode)
	require.Contains(t, resp.Error, "Not authorized to recognize speech")

	resp = h.manager.Handle(context.Background(), ipc.Request{Command: ipc.CommandStatus})
	require.True(t, resp.OK)
	require.Equal(t, string(CodeNotAuthorizedToRecognize), resp.ErrorCode)
	require.Equal(t, "Not authorized to recognize speech", resp.Error)
}

func TestHandleUnknownCommand(t *testing.T) {
	h := newHarness(t, auth.Allowed)

	resp := h.manager.Handle(context.Background(), ipc.Request{Command: "rewind"})
	require.False(t, resp.OK)
	require.Equal(t, "unknown command: rewind", resp.Error)
	require.Equal(t, "idle", resp.State)
}

func TestHandleStopAfterFailureFinishesOwner(t *testing.T) {
	h := newHarness(t, auth.Allowed)
	ctx := context.Background()

	require.NoError(t, h.manager.Start(ctx))
	h.say(t, "entropy")
	h.engine.last().end(errBoom)
	waitForState(t, h.manager, fsm.StateFailed)

	select {
	case <-h.manager.Finished():
		t.Fatal("finished before any stop request")
	default:
	}

	resp := h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
	require.Equal(t, "failed", resp.State)
	require.Equal(t, "finished", resp.Message)
	require.Equal(t, "entropy", resp.Transcript)

	select {
	case <-h.manager.Finished():
	case <-time.After(time.Second):
		t.Fatal("stop did not finish the owner")
	}

	// A second stop is harmless.
	resp = h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
}

func TestHandleStopWhileRecordingReportsStopped(t *testing.T) {
	h := newHarness(t, auth.Allowed)
	ctx := context.Background()

	require.NoError(t, h.manager.Start(ctx))
	resp := h.manager.Handle(ctx, ipc.Request{Command: ipc.CommandStop})
	require.True(t, resp.OK)
	require.Equal(t, "stopped", resp.Message)
	<-h.manager.Finished()
}
