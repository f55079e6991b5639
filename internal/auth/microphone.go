package auth

import (
	"context"
	"errors"

	"github.com/lecturenote/lecturenote/internal/audio"
)

// Microphone probes the Pulse server for a usable input source.
//
// Authorized when the configured source (or its fallback) resolves unmuted,
// Denied when it exists but is muted or unavailable, Restricted when the
// server cannot be reached.
type Microphone struct {
	Input    string
	Fallback string

	list func(context.Context) ([]audio.Device, error)
}

// NewMicrophone builds a probe for the configured input preferences.
func NewMicrophone(input string, fallback string) *Microphone {
	return &Microphone{Input: input, Fallback: fallback, list: audio.ListDevices}
}

// RecordPermission implements the Gate record probe.
func (m *Microphone) RecordPermission(ctx context.Context) Status {
	list := m.list
	if list == nil {
		list = audio.ListDevices
	}

	devices, err := list(ctx)
	if err != nil {
		if errors.Is(err, audio.ErrServerUnavailable) {
			return StatusRestricted
		}
		return StatusDenied
	}
	if _, err := audio.SelectFromList(devices, m.Input, m.Fallback); err != nil {
		return StatusDenied
	}
	return StatusAuthorized
}
