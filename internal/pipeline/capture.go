// Package pipeline owns the microphone capture lifecycle that feeds recognition.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"github.com/lecturenote/lecturenote/internal/audio"
	"github.com/lecturenote/lecturenote/internal/config"
)

// ErrNotPermittedToRecord wraps every capture start failure.
var ErrNotPermittedToRecord = errors.New("not permitted to record audio")

// Stats describes the most recent capture run.
type Stats struct {
	Device        string
	BytesCaptured int64
	Frames        int64
	Fallback      bool
}

type captureStream interface {
	Device() audio.Device
	BytesCaptured() int64
	FramesDelivered() int64
	Stop() error
}

// Capture starts and stops one Pulse record stream at a time.
type Capture struct {
	audioCfg  config.AudioConfig
	audioDump bool
	logger    *slog.Logger

	selectDevice func(ctx context.Context, input string, fallback string) (audio.Selection, error)
	startCapture func(ctx context.Context, device audio.Device, opts audio.CaptureOptions, onFrame audio.FrameFunc) (captureStream, error)

	mu       sync.Mutex
	active   captureStream
	fallback bool
	dump     *wavDump
	last     Stats
}

// NewCapture constructs a capture pipeline from runtime config.
func NewCapture(cfg config.Config, logger *slog.Logger) *Capture {
	return &Capture{
		audioCfg:     cfg.Audio,
		audioDump:    cfg.Debug.EnableAudioDump,
		logger:       logger,
		selectDevice: audio.SelectDevice,
		startCapture: func(ctx context.Context, device audio.Device, opts audio.CaptureOptions, onFrame audio.FrameFunc) (captureStream, error) {
			return audio.StartCapture(ctx, device, opts, onFrame)
		},
	}
}

// Start selects the input device, installs consumer, and starts streaming.
// consumer runs on the capture goroutine for every full frame.
func (c *Capture) Start(ctx context.Context, consumer func(frame []byte)) error {
	if consumer == nil {
		return fmt.Errorf("%w: no frame consumer", ErrNotPermittedToRecord)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return errors.New("capture already started")
	}

	selection, err := c.selectDevice(ctx, c.audioCfg.Input, c.audioCfg.Fallback)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrNotPermittedToRecord, err)
	}
	if selection.Warning != "" {
		c.logWarn(selection.Warning)
	}

	onFrame := audio.FrameFunc(consumer)
	var dump *wavDump
	if c.audioDump {
		sampleRate := c.audioCfg.SampleRate
		if sampleRate <= 0 {
			sampleRate = audio.DefaultSampleRate
		}
		if opened, err := openWAVDump(sampleRate); err != nil {
			c.logWarn("audio debug dump disabled", "error", err)
		} else {
			dump = opened
			onFrame = func(frame []byte) {
				dump.write(frame)
				consumer(frame)
			}
		}
	}

	// The stream lives until Stop, not until the start request ends.
	stream, err := c.startCapture(context.WithoutCancel(ctx), selection.Device, audio.CaptureOptions{
		SampleRate:   c.audioCfg.SampleRate,
		FrameSamples: c.audioCfg.FrameSamples,
		MediaRole:    c.audioCfg.MediaRole,
	}, onFrame)
	if err != nil {
		if dump != nil {
			_ = dump.Close()
			_ = os.Remove(dump.Path())
		}
		return fmt.Errorf("%w: %w", ErrNotPermittedToRecord, err)
	}

	c.active = stream
	c.fallback = selection.Fallback
	c.dump = dump
	c.logInfo("capture started", "device", audio.Describe(selection.Device))
	return nil
}

// Stop halts the active stream. It is a no-op when nothing is running and
// never fails; release errors are logged.
func (c *Capture) Stop() {
	c.mu.Lock()
	stream := c.active
	dump := c.dump
	fallback := c.fallback
	c.active = nil
	c.dump = nil
	c.mu.Unlock()

	if stream == nil {
		return
	}

	if err := stream.Stop(); err != nil {
		c.logWarn("capture stop failed", "error", err)
	}

	stats := Stats{
		Device:        audio.Describe(stream.Device()),
		BytesCaptured: stream.BytesCaptured(),
		Frames:        stream.FramesDelivered(),
		Fallback:      fallback,
	}
	c.mu.Lock()
	c.last = stats
	c.mu.Unlock()

	c.logInfo("capture stopped", "device", stats.Device, "bytes", stats.BytesCaptured, "frames", stats.Frames)
	if dump != nil {
		if err := dump.Close(); err != nil {
			c.logWarn("audio debug dump incomplete", "error", err)
		} else {
			c.logInfo("audio debug dump written", "path", dump.Path(), "bytes", dump.written)
		}
	}
}

// Running reports whether a stream is active.
func (c *Capture) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active != nil
}

// LastStats returns metadata for the most recently stopped stream.
func (c *Capture) LastStats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

func (c *Capture) logInfo(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Info(message, args...)
}

// logWarn emits warning-level logs when logger is configured.
func (c *Capture) logWarn(message string, args ...any) {
	if c.logger == nil {
		return
	}
	c.logger.Warn(message, args...)
}
