// Package cue plays short audible tones when a recording changes state.
package cue

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/session"
)

type Kind int

const (
	KindStart Kind = iota + 1
	KindPause
	KindFinish
	KindFail
)

func (k Kind) String() string {
	switch k {
	case KindStart:
		return "start"
	case KindPause:
		return "pause"
	case KindFinish:
		return "finish"
	case KindFail:
		return "fail"
	default:
		return "unknown"
	}
}

// queueSize bounds cues waiting behind the one playing.
const queueSize = 8

// Player turns snapshot transitions into cues. One worker plays them in
// transition order, off the caller's goroutine.
type Player struct {
	enabled bool
	logger  *slog.Logger
	play    func(context.Context, Kind) error
	timeout time.Duration

	mu     sync.Mutex
	last   fsm.State
	closed bool
	queue  chan Kind

	done      chan struct{}
	closeOnce sync.Once
}

func NewPlayer(enabled bool, logger *slog.Logger) *Player {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	p := &Player{
		enabled: enabled,
		logger:  logger,
		play:    playPulse,
		timeout: 3 * time.Second,
		last:    fsm.StateIdle,
		queue:   make(chan Kind, queueSize),
		done:    make(chan struct{}),
	}
	go p.run()
	return p
}

// Observe is a session subscriber.
func (p *Player) Observe(s session.Snapshot) {
	p.mu.Lock()
	defer p.mu.Unlock()
	kind := transitionCue(p.last, s.State)
	p.last = s.State

	if !p.enabled || kind == 0 || p.closed {
		return
	}
	select {
	case p.queue <- kind:
	default:
		p.logger.Debug("sound cue dropped", "cue", kind.String())
	}
}

func (p *Player) run() {
	defer close(p.done)
	for kind := range p.queue {
		ctx, cancel := context.WithTimeout(context.Background(), p.timeout)
		if err := p.play(ctx, kind); err != nil {
			p.logger.Debug("sound cue failed", "cue", kind.String(), "error", err.Error())
		}
		cancel()
	}
}

// Close plays the queued cues, then stops the worker. Later snapshots are
// ignored.
func (p *Player) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.queue)
		p.mu.Unlock()
	})
	<-p.done
}

func transitionCue(prev, next fsm.State) Kind {
	if prev == next {
		return 0
	}
	switch next {
	case fsm.StateRecording:
		return KindStart
	case fsm.StatePaused:
		if prev == fsm.StateRecording {
			return KindPause
		}
	case fsm.StateStopped:
		return KindFinish
	case fsm.StateFailed:
		return KindFail
	}
	return 0
}
