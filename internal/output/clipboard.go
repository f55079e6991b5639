// Package output applies the side effects of a finished recording: the
// clipboard copy and the printed lecture summary.
package output

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"github.com/lecturenote/lecturenote/internal/config"
)

// Committer copies a finished transcript to the system clipboard.
type Committer struct {
	enabled     bool
	unsupported bool
	logger      *slog.Logger
	write       func(text string) error
	timeout     time.Duration
}

// NewCommitter constructs a committer from runtime config.
func NewCommitter(cfg config.Config, logger *slog.Logger) *Committer {
	return &Committer{
		enabled:     cfg.Output.CopyTranscript,
		unsupported: clipboard.Unsupported,
		logger:      logger,
		write:       clipboard.WriteAll,
		timeout:     2 * time.Second,
	}
}

// Enabled reports whether Commit will touch the clipboard.
func (c *Committer) Enabled() bool {
	return c.enabled
}

// Commit copies transcript when enabled. Empty transcripts are skipped.
func (c *Committer) Commit(ctx context.Context, transcript string) error {
	transcript = strings.TrimSpace(transcript)
	if !c.enabled || transcript == "" {
		return nil
	}
	if c.unsupported {
		return errors.New("set clipboard: no clipboard utility found")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// clipboard.WriteAll takes no context.
	done := make(chan error, 1)
	go func() { done <- c.write(transcript) }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("set clipboard: %w", err)
		}
	case <-ctx.Done():
		return fmt.Errorf("set clipboard: %w", ctx.Err())
	}

	if c.logger != nil {
		c.logger.Info("transcript copied to clipboard", "length", len(transcript))
	}
	return nil
}
