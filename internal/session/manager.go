// Package session runs the live transcription state machine: it gates on
// authorization, wires microphone capture into a recognition handle, and
// publishes transcript snapshots.
package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/speech"
	"github.com/lecturenote/lecturenote/internal/transcript"
)

// Capture is the microphone side of a sub-session. consumer runs on the
// capture goroutine; Stop is idempotent and never fails.
type Capture interface {
	Start(ctx context.Context, consumer func(frame []byte)) error
	Stop()
}

// Snapshot is a read projection of the session.
type Snapshot struct {
	State       fsm.State
	Transcript  string
	Committed   string
	Live        string
	IsRecording bool
	Err         *ErrorInfo
	Elapsed     time.Duration
}

// Manager owns one transcription session.
//
// Lock order is transitionMu, then mu, then queueMu. Neither lock is held
// while calling Capture.Stop, Handle.Cancel, or subscriber callbacks.
type Manager struct {
	logger  *slog.Logger
	gate    auth.Gate
	engine  speech.Engine
	capture Capture
	opts    speech.Options
	now     func() time.Time

	transitionMu sync.Mutex

	mu             sync.RWMutex
	state          fsm.State
	committed      string
	live           string
	lastErr        *ErrorInfo
	generation     uint64
	handle         speech.Handle
	elapsed        time.Duration
	recordingSince time.Time

	subsMu  sync.Mutex
	subs    []subscriber
	nextSub int

	queueMu  sync.Mutex
	queue    []Snapshot
	signal   chan struct{}
	quit     chan struct{}
	done     chan struct{}
	stopOnce sync.Once

	finished   chan struct{}
	finishOnce sync.Once
}

type subscriber struct {
	id int
	fn func(Snapshot)
}

// NewManager constructs an idle manager and starts its delivery goroutine.
// Call Close to release it. Nil collaborators fall back to refusing
// implementations so Start fails with a typed error instead of panicking.
func NewManager(
	logger *slog.Logger,
	gate auth.Gate,
	engine speech.Engine,
	capture Capture,
	opts speech.Options,
) *Manager {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if gate == nil {
		gate = auth.Static{Speech: auth.StatusNotDetermined, Record: auth.StatusNotDetermined}
	}
	if engine == nil {
		engine = unavailableEngine{}
	}
	if capture == nil {
		capture = unavailableCapture{}
	}

	m := &Manager{
		logger:   logger,
		gate:     gate,
		engine:   engine,
		capture:  capture,
		opts:     opts,
		now:      time.Now,
		state:    fsm.StateIdle,
		signal:   make(chan struct{}, 1),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	go m.dispatch()
	return m
}

// State returns the current FSM state.
func (m *Manager) State() fsm.State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state
}

// Snapshot returns the current read projection.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

// Transcript returns committed text joined with live text.
func (m *Manager) Transcript() string {
	return m.Snapshot().Transcript
}

func (m *Manager) snapshotLocked() Snapshot {
	elapsed := m.elapsed
	if m.state == fsm.StateRecording {
		elapsed += m.now().Sub(m.recordingSince)
	}
	return Snapshot{
		State:       m.state,
		Transcript:  transcript.Join(m.committed, m.live),
		Committed:   m.committed,
		Live:        m.live,
		IsRecording: m.state == fsm.StateRecording,
		Err:         m.lastErr,
		Elapsed:     elapsed,
	}
}

// Start begins or resumes recording. It is a no-op while Recording and an
// invalid transition from Stopped or Failed.
func (m *Manager) Start(ctx context.Context) error {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	current := m.State()
	if current == fsm.StateRecording {
		return nil
	}
	if _, err := fsm.Transition(current, fsm.EventStart); err != nil {
		return err
	}

	if status := m.gate.SpeechAuthorization(ctx); status != auth.StatusAuthorized {
		return m.fail(newErrorInfo(CodeNotAuthorizedToRecognize, errors.New("speech recognition "+string(status))))
	}
	if status := m.gate.RecordPermission(ctx); status != auth.StatusAuthorized {
		return m.fail(newErrorInfo(CodeNotPermittedToRecord, errors.New("microphone "+string(status))))
	}

	handle, err := m.engine.Begin(ctx, m.opts)
	if err != nil {
		return m.fail(newErrorInfo(beginErrorCode(err), err))
	}

	var dropped atomic.Int64
	consumer := func(frame []byte) {
		err := handle.Append(frame)
		if err == nil || errors.Is(err, speech.ErrClosed) {
			return
		}
		// The first loss in a sub-session is a warning; the rest are counted.
		if n := dropped.Add(1); n == 1 {
			m.logger.Warn("dropped audio frame; recognizer is not keeping up", "error", err.Error())
		} else {
			m.logger.Debug("dropped audio frame", "dropped", n, "error", err.Error())
		}
	}
	if err := m.capture.Start(ctx, consumer); err != nil {
		handle.Cancel()
		return m.fail(newErrorInfo(CodeNotPermittedToRecord, err))
	}

	m.mu.Lock()
	next, err := fsm.Transition(m.state, fsm.EventStart)
	if err != nil {
		m.mu.Unlock()
		m.release(handle)
		return err
	}
	m.state = next
	m.generation++
	generation := m.generation
	m.handle = handle
	m.live = ""
	m.recordingSince = m.now()
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("recording started", "generation", generation)
	go m.consume(generation, handle)
	return nil
}

// Pause stops the current sub-session and commits its live text. It is a
// no-op unless Recording.
func (m *Manager) Pause(context.Context) error {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	if m.State() != fsm.StateRecording {
		return nil
	}
	m.release(m.takeHandle())
	m.settle(fsm.EventPause, nil)
	m.logger.Info("recording paused")
	return nil
}

// Stop commits live text and releases everything. It is a no-op unless
// Recording or Paused.
func (m *Manager) Stop(context.Context) error {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	if !fsm.Active(m.State()) {
		return nil
	}
	m.release(m.takeHandle())
	m.settle(fsm.EventStop, nil)
	m.logger.Info("recording stopped")
	return nil
}

// Finished is closed once a control client asks the owner to finish, in
// whatever state the session is in.
func (m *Manager) Finished() <-chan struct{} {
	return m.finished
}

func (m *Manager) requestFinish() {
	m.finishOnce.Do(func() { close(m.finished) })
}

// Reset discards all text and any error and returns to Idle.
func (m *Manager) Reset(context.Context) error {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	if m.State() == fsm.StateIdle {
		return nil
	}
	m.release(m.takeHandle())

	m.mu.Lock()
	next, err := fsm.Transition(m.state, fsm.EventReset)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	m.state = next
	m.generation++
	m.committed = ""
	m.live = ""
	m.lastErr = nil
	m.elapsed = 0
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Info("session reset")
	return nil
}

// Close resets the session and stops snapshot delivery. Pending snapshots
// are delivered before Close returns, so it must not be called from a
// subscriber.
func (m *Manager) Close() error {
	err := m.Reset(context.Background())
	m.stopOnce.Do(func() { close(m.quit) })
	<-m.done
	return err
}

// takeHandle detaches the active handle and invalidates its updates.
func (m *Manager) takeHandle() speech.Handle {
	m.mu.Lock()
	defer m.mu.Unlock()
	handle := m.handle
	m.handle = nil
	m.generation++
	return handle
}

// release stops capture before cancelling recognition.
func (m *Manager) release(handle speech.Handle) {
	m.capture.Stop()
	if handle != nil {
		handle.Cancel()
	}
}

// settle commits live text and applies event. info, when set, becomes lastErr.
func (m *Manager) settle(event fsm.Event, info *ErrorInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := fsm.Transition(m.state, event)
	if err != nil {
		m.logger.Warn("transition rejected", "error", err)
		return
	}
	if m.state == fsm.StateRecording {
		m.elapsed += m.now().Sub(m.recordingSince)
	}
	m.committed = transcript.Join(m.committed, m.live)
	m.live = ""
	if info != nil {
		m.lastErr = info
	}
	m.state = next
	m.publishLocked()
}

// fail moves to Failed during Start. Nothing is attached yet, so there is
// nothing to release.
func (m *Manager) fail(info *ErrorInfo) error {
	m.mu.Lock()
	next, err := fsm.Transition(m.state, fsm.EventFail)
	if err == nil {
		m.state = next
	}
	m.lastErr = info
	m.publishLocked()
	m.mu.Unlock()

	m.logger.Error("session start failed", "code", string(info.Code), "error", info.Error())
	return info
}

// consume applies one handle's updates until it ends or goes stale.
func (m *Manager) consume(generation uint64, handle speech.Handle) {
	for update := range handle.Updates() {
		if update.IsFinal {
			m.endSubSession(generation, &update.Text, nil)
			return
		}
		if !m.applyLive(generation, update.Text) {
			return
		}
	}

	if err := handle.Err(); err != nil {
		m.endSubSession(generation, nil, newErrorInfo(CodeRecognizerIsUnavailable, err))
		return
	}
	// The recognizer closed the stream on its own; treat it as final.
	m.endSubSession(generation, nil, nil)
}

// applyLive replaces live text. It reports false once generation is stale.
func (m *Manager) applyLive(generation uint64, text string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != generation || m.state != fsm.StateRecording {
		return false
	}
	m.live = text
	m.publishLocked()
	return true
}

// endSubSession tears down generation after a final result or engine error.
// Racing triggers for the same generation are dropped.
func (m *Manager) endSubSession(generation uint64, finalText *string, info *ErrorInfo) {
	m.transitionMu.Lock()
	defer m.transitionMu.Unlock()

	m.mu.Lock()
	if m.generation != generation || m.state != fsm.StateRecording {
		m.mu.Unlock()
		return
	}
	if finalText != nil {
		m.live = *finalText
	}
	handle := m.handle
	m.handle = nil
	m.generation++
	m.mu.Unlock()

	event := fsm.EventPause
	if info != nil {
		event = fsm.EventFail
		m.logger.Error("recognition failed", "code", string(info.Code), "error", info.Error())
	} else {
		m.logger.Info("recognition reached final result")
	}
	m.settle(event, info)
	m.release(handle)
}

// Subscribe registers fn for every published snapshot, delivered in order on
// one goroutine. fn may call back into the Manager.
func (m *Manager) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.subsMu.Lock()
	defer m.subsMu.Unlock()
	m.nextSub++
	id := m.nextSub
	m.subs = append(m.subs, subscriber{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			m.subsMu.Lock()
			defer m.subsMu.Unlock()
			for i, sub := range m.subs {
				if sub.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// publishLocked queues the current snapshot. Caller holds mu.
func (m *Manager) publishLocked() {
	snapshot := m.snapshotLocked()
	m.queueMu.Lock()
	m.queue = append(m.queue, snapshot)
	m.queueMu.Unlock()

	select {
	case m.signal <- struct{}{}:
	default:
	}
}

func (m *Manager) dispatch() {
	defer close(m.done)
	for {
		select {
		case <-m.signal:
			m.deliverPending()
		case <-m.quit:
			m.deliverPending()
			return
		}
	}
}

func (m *Manager) deliverPending() {
	for {
		m.queueMu.Lock()
		pending := m.queue
		m.queue = nil
		m.queueMu.Unlock()
		if len(pending) == 0 {
			return
		}

		for _, snapshot := range pending {
			m.subsMu.Lock()
			subs := append([]subscriber(nil), m.subs...)
			m.subsMu.Unlock()
			for _, sub := range subs {
				sub.fn(snapshot)
			}
		}
	}
}

type unavailableEngine struct{}

func (unavailableEngine) Begin(context.Context, speech.Options) (speech.Handle, error) {
	return nil, speech.ErrUnavailable
}

type unavailableCapture struct{}

func (unavailableCapture) Start(context.Context, func([]byte)) error {
	return errors.New("no capture pipeline configured")
}

func (unavailableCapture) Stop() {}
