// Package auth answers whether speech recognition and microphone capture are permitted.
package auth

import (
	"context"
	"fmt"
	"strings"
)

// Status is one platform permission answer.
type Status string

const (
	StatusAuthorized    Status = "authorized"
	StatusDenied        Status = "denied"
	StatusRestricted    Status = "restricted"
	StatusNotDetermined Status = "not_determined"
)

// ParseStatus maps a config/status string onto Status.
func ParseStatus(raw string) (Status, error) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusAuthorized:
		return StatusAuthorized, nil
	case StatusDenied:
		return StatusDenied, nil
	case StatusRestricted:
		return StatusRestricted, nil
	case StatusNotDetermined, "":
		return StatusNotDetermined, nil
	default:
		return StatusNotDetermined, fmt.Errorf("unknown authorization status %q", raw)
	}
}

// Gate is queried before every start attempt; answers may change between sessions.
type Gate interface {
	SpeechAuthorization(ctx context.Context) Status
	RecordPermission(ctx context.Context) Status
}

// Static reports fixed answers.
type Static struct {
	Speech Status
	Record Status
}

func (s Static) SpeechAuthorization(context.Context) Status { return s.Speech }
func (s Static) RecordPermission(context.Context) Status    { return s.Record }

// Allowed is a Static gate that authorizes everything.
var Allowed = Static{Speech: StatusAuthorized, Record: StatusAuthorized}

// SpeechFunc and RecordFunc let System be assembled from independent probes.
type (
	SpeechFunc func(context.Context) Status
	RecordFunc func(context.Context) Status
)

// System combines stored speech consent with a live microphone probe.
type System struct {
	Speech SpeechFunc
	Record RecordFunc
}

func (s System) SpeechAuthorization(ctx context.Context) Status {
	if s.Speech == nil {
		return StatusNotDetermined
	}
	return s.Speech(ctx)
}

func (s System) RecordPermission(ctx context.Context) Status {
	if s.Record == nil {
		return StatusNotDetermined
	}
	return s.Record(ctx)
}
