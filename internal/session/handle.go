package session

import (
	"context"
	"fmt"

	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/ipc"
)

// Handle serves IPC commands for the recording owner.
func (m *Manager) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	if !ipc.KnownCommand(req.Command) {
		resp := responseFor(m.Snapshot())
		resp.OK = false
		resp.Error = fmt.Sprintf("unknown command: %s", req.Command)
		return resp
	}

	var (
		err     error
		message string
	)
	switch req.Command {
	case ipc.CommandStatus:
		message = "status"
	case ipc.CommandPause:
		err = m.Pause(ctx)
		message = "paused"
	case ipc.CommandResume:
		err = m.Start(ctx)
		message = "recording"
	case ipc.CommandStop:
		// A stop from outside ends the recording even when there is nothing
		// left to stop, e.g. after a failure.
		err = m.Stop(ctx)
		message = "stopped"
		if err == nil {
			if m.State() != fsm.StateStopped {
				message = "finished"
			}
			m.requestFinish()
		}
	case ipc.CommandReset:
		err = m.Reset(ctx)
		message = "reset"
	}

	resp := responseFor(m.Snapshot())
	if err != nil {
		resp.OK = false
		resp.Error = err.Error()
		return resp
	}
	resp.OK = true
	resp.Message = message
	return resp
}

func responseFor(snapshot Snapshot) ipc.Response {
	resp := ipc.Response{
		State:      string(snapshot.State),
		Transcript: snapshot.Transcript,
		ElapsedMS:  snapshot.Elapsed.Milliseconds(),
	}
	if snapshot.Err != nil {
		resp.ErrorCode = string(snapshot.Err.Code)
		if resp.Error == "" {
			resp.Error = snapshot.Err.Message
		}
	}
	return resp
}
