package tui

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/lecturenote/lecturenote/internal/session"
)

// Feed publishes session snapshots and the owner's finish request.
type Feed interface {
	Subscribe(fn func(session.Snapshot)) (unsubscribe func())
	Finished() <-chan struct{}
}

// Run shows the live view until the user finishes or quits, or ctx ends.
func Run(ctx context.Context, ctrl Controller, feed Feed, heading, detail string, opts ...tea.ProgramOption) (Outcome, error) {
	opts = append([]tea.ProgramOption{tea.WithContext(ctx), tea.WithAltScreen()}, opts...)
	program := tea.NewProgram(New(ctrl, heading, detail), opts...)

	unsubscribe := feed.Subscribe(func(snapshot session.Snapshot) {
		program.Send(SnapshotMsg{Snapshot: snapshot})
	})
	defer unsubscribe()

	exited := make(chan struct{})
	defer close(exited)
	go func() {
		select {
		case <-feed.Finished():
			program.Send(finishMsg{})
		case <-exited:
		}
	}()

	final, err := program.Run()
	if err != nil {
		_ = ctrl.Stop(context.Background())
		return OutcomeQuit, fmt.Errorf("run live view: %w", err)
	}
	model, ok := final.(Model)
	if !ok {
		return OutcomeQuit, fmt.Errorf("unexpected live view model %T", final)
	}
	return model.Outcome(), nil
}
