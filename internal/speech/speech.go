// Package speech adapts a local streaming speech recognizer to a cancellable
// handle that yields full-text transcript snapshots.
package speech

import (
	"context"
	"errors"
)

var (
	// ErrUnavailable means the recognizer cannot serve the requested locale or
	// configuration (unreachable, non-local while on-device is required, ...).
	ErrUnavailable = errors.New("recognizer is unavailable")
	// ErrNilRecognizer means the recognition request could not be constructed.
	ErrNilRecognizer = errors.New("recognition request could not be constructed")
	// ErrClosed is returned by Append once the handle has ended.
	ErrClosed = errors.New("recognition handle closed")
	// ErrBufferFull is returned by Append when queued audio exceeds the send buffer.
	ErrBufferFull = errors.New("recognition audio buffer full")
)

// Update is one recognizer emission. Text is the full best guess for the
// sub-session so far and replaces any earlier Text.
type Update struct {
	Text    string
	IsFinal bool
}

// Options selects the recognition locale and on-device preference.
type Options struct {
	Locale         string
	PreferOnDevice bool
}

// Phrase is one vocabulary boost hint.
type Phrase struct {
	Phrase string
	Boost  float32
}

// Engine begins recognition sub-sessions.
type Engine interface {
	Begin(ctx context.Context, opts Options) (Handle, error)
}

// Handle is one live recognition task.
type Handle interface {
	// Append queues one PCM frame. It never blocks.
	Append(frame []byte) error
	// Updates closes when the task ends; Err then reports the terminal error.
	Updates() <-chan Update
	Err() error
	// Cancel ends the task. Safe to call repeatedly and concurrently.
	Cancel()
}
