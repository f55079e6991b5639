package audio

import (
	"errors"
	"fmt"
	"strings"
)

// SelectFromList picks the capture source for the audio.input and
// audio.fallback terms. A term is "default", empty, or a case-insensitive
// substring of a source id or description. A muted or unavailable input
// falls back with a warning; an unusable fallback is an error.
func SelectFromList(devices []Device, input string, fallback string) (Selection, error) {
	if len(devices) == 0 {
		return Selection{}, errors.New("no audio input devices found")
	}
	input = normalizeTerm(input)
	fallback = normalizeTerm(fallback)

	primary := findDevice(devices, input)
	if primary == nil {
		if input == "" {
			return Selection{}, errors.New("default audio source is unavailable")
		}
		return Selection{}, fmt.Errorf("audio.input %q did not match any device", input)
	}
	reason := unusableReason(*primary)
	if reason == "" {
		return Selection{Device: *primary}, nil
	}

	alternate := findDevice(devices, fallback)
	if alternate == nil {
		if fallback == "" {
			return Selection{}, fmt.Errorf("primary input %q is %s and no usable fallback: default audio source is unavailable", primary.ID, reason)
		}
		return Selection{}, fmt.Errorf("primary input %q is %s and fallback %q not found", primary.ID, reason, fallback)
	}
	if why := unusableReason(*alternate); why != "" {
		if why == "unavailable" {
			why = "not available"
		}
		return Selection{}, fmt.Errorf("audio fallback device %q is %s", alternate.ID, why)
	}

	return Selection{
		Device:   *alternate,
		Warning:  fmt.Sprintf("audio.input %q is %s; falling back to %q", primary.ID, reason, alternate.ID),
		Fallback: primary.ID != alternate.ID,
	}, nil
}

// normalizeTerm maps "default" to the empty term.
func normalizeTerm(term string) string {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "default" {
		return ""
	}
	return term
}

// findDevice returns the default source for an empty term, otherwise the
// first match.
func findDevice(devices []Device, term string) *Device {
	for i := range devices {
		if term == "" && devices[i].Default {
			return &devices[i]
		}
		if term != "" && deviceMatches(devices[i], term) {
			return &devices[i]
		}
	}
	return nil
}

func unusableReason(device Device) string {
	switch {
	case device.Muted:
		return "muted"
	case !device.Available:
		return "unavailable"
	default:
		return ""
	}
}

// deviceMatches reports whether term is a substring of the id or description.
func deviceMatches(device Device, term string) bool {
	if term == "" {
		return false
	}
	return strings.Contains(strings.ToLower(device.ID), term) ||
		strings.Contains(strings.ToLower(device.Description), term)
}
