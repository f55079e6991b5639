package tui

import "github.com/lecturenote/lecturenote/internal/session"

// SnapshotMsg carries a published session snapshot.
type SnapshotMsg struct {
	Snapshot session.Snapshot
}

type tickMsg struct{}

// actionDoneMsg reports the result of a session command issued from a key.
type actionDoneMsg struct {
	action string
	err    error
	quit   bool
}

// finishMsg reports that a control client asked the owner to finish.
type finishMsg struct{}
