// Package logging writes structured JSON lines to a per-user log file.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

const (
	fileName = "log.jsonl"
	// DefaultMaxBytes is the size at which the log is rotated on open.
	DefaultMaxBytes = 4 << 20
)

// Runtime bundles the configured logger and its open file handle.
type Runtime struct {
	Logger *slog.Logger
	Path   string
	closer io.Closer
}

type Options struct {
	// Dir holds log.jsonl. Empty means the XDG state default.
	Dir string
	// Verbose lowers the threshold to debug, which includes per-update recognizer traces.
	Verbose bool
	// MaxBytes rotates an existing log to log.jsonl.1 once it reaches this size.
	MaxBytes int64
}

func (r Runtime) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// New opens the log for appending. Nothing is written to stderr: the
// terminal belongs to the live view.
func New(opts Options) (Runtime, error) {
	dir := strings.TrimSpace(opts.Dir)
	if dir == "" {
		resolved, err := defaultDir()
		if err != nil {
			return Runtime{}, err
		}
		dir = resolved
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return Runtime{}, fmt.Errorf("create log dir: %w", err)
	}

	path := filepath.Join(dir, fileName)
	maxBytes := opts.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	if err := rotate(path, maxBytes); err != nil {
		return Runtime{}, err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return Runtime{}, fmt.Errorf("open log: %w", err)
	}

	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(f, &slog.HandlerOptions{Level: level})).With("pid", os.Getpid())
	return Runtime{Logger: logger, Path: path, closer: f}, nil
}

// Discard returns a runtime whose logger drops every record.
func Discard() Runtime {
	return Runtime{Logger: slog.New(slog.DiscardHandler)}
}

// rotate keeps one previous generation.
func rotate(path string, maxBytes int64) error {
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("stat log: %w", err)
	}
	if info.Size() < maxBytes {
		return nil
	}
	if err := os.Rename(path, path+".1"); err != nil {
		return fmt.Errorf("rotate log: %w", err)
	}
	return nil
}

func defaultDir() (string, error) {
	if xdg := strings.TrimSpace(os.Getenv("XDG_STATE_HOME")); xdg != "" {
		return filepath.Join(xdg, "lecturenote"), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".local", "state", "lecturenote"), nil
}
