package session

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/speech"
	"github.com/stretchr/testify/require"
)

type fakeHandle struct {
	in   chan speech.Update
	out  chan speech.Update
	done chan struct{}

	endOnce     sync.Once
	mu          sync.Mutex
	err         error
	appendErr   error
	appended    atomic.Int32
	cancelCalls atomic.Int32
}

func newFakeHandle() *fakeHandle {
	h := &fakeHandle{
		in:   make(chan speech.Update),
		out:  make(chan speech.Update),
		done: make(chan struct{}),
	}
	go h.pump()
	return h
}

func (h *fakeHandle) pump() {
	defer close(h.out)
	for {
		select {
		case <-h.done:
			return
		case update := <-h.in:
			select {
			case h.out <- update:
			case <-h.done:
				return
			}
		}
	}
}

func (h *fakeHandle) Append(frame []byte) error {
	select {
	case <-h.done:
		return speech.ErrClosed
	default:
	}
	h.mu.Lock()
	appendErr := h.appendErr
	h.mu.Unlock()
	if appendErr != nil {
		return appendErr
	}
	h.appended.Add(1)
	return nil
}

func (h *fakeHandle) Updates() <-chan speech.Update { return h.out }

func (h *fakeHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *fakeHandle) Cancel() {
	h.cancelCalls.Add(1)
	h.end(nil)
}

func (h *fakeHandle) end(err error) {
	h.endOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
	})
}

// emit hands one update to the consumer; it returns false once the handle ended.
func (h *fakeHandle) emit(text string, final bool) bool {
	select {
	case <-h.done:
		return false
	default:
	}
	select {
	case h.in <- speech.Update{Text: text, IsFinal: final}:
		return true
	case <-h.done:
		return false
	}
}

type fakeEngine struct {
	beginErr error

	mu      sync.Mutex
	handles []*fakeHandle
	opts    []speech.Options
}

func (e *fakeEngine) Begin(_ context.Context, opts speech.Options) (speech.Handle, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.beginErr != nil {
		return nil, e.beginErr
	}
	h := newFakeHandle()
	e.handles = append(e.handles, h)
	e.opts = append(e.opts, opts)
	return h, nil
}

func (e *fakeEngine) begins() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.handles)
}

func (e *fakeEngine) last() *fakeHandle {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.handles[len(e.handles)-1]
}

type fakeCapture struct {
	startErr error

	mu         sync.Mutex
	consumer   func([]byte)
	startCalls atomic.Int32
	stopCalls  atomic.Int32
}

func (c *fakeCapture) Start(_ context.Context, consumer func([]byte)) error {
	c.startCalls.Add(1)
	if c.startErr != nil {
		return c.startErr
	}
	c.mu.Lock()
	c.consumer = consumer
	c.mu.Unlock()
	return nil
}

func (c *fakeCapture) Stop() {
	c.stopCalls.Add(1)
	c.mu.Lock()
	c.consumer = nil
	c.mu.Unlock()
}

func (c *fakeCapture) push(frame []byte) {
	c.mu.Lock()
	consumer := c.consumer
	c.mu.Unlock()
	if consumer != nil {
		consumer(frame)
	}
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type harness struct {
	manager *Manager
	engine  *fakeEngine
	capture *fakeCapture
	clock   *fakeClock
}

func newHarness(t *testing.T, gate auth.Gate) *harness {
	t.Helper()
	h := &harness{
		engine:  &fakeEngine{},
		capture: &fakeCapture{},
		clock:   &fakeClock{now: time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)},
	}
	h.manager = NewManager(nil, gate, h.engine, h.capture, speech.Options{Locale: "en-US", PreferOnDevice: true})
	h.manager.now = h.clock.Now
	t.Cleanup(func() { _ = h.manager.Close() })
	return h
}

func (h *harness) say(t *testing.T, text string) {
	t.Helper()
	require.True(t, h.engine.last().emit(text, false))
	waitForSnapshot(t, h.manager, func(s Snapshot) bool { return s.Live == text })
}

func waitForState(t *testing.T, m *Manager, desired fsm.State) {
	t.Helper()
	waitForSnapshot(t, m, func(s Snapshot) bool { return s.State == desired })
}

func waitForSnapshot(t *testing.T, m *Manager, match func(Snapshot) bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if match(m.Snapshot()) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("snapshot never matched; last = %+v", m.Snapshot())
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	require.Eventually(t, cond, 2*time.Second, 5*time.Millisecond)
}

var errBoom = errors.New("boom")
