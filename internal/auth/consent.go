package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Consent is the stored speech-recognition decision.
type Consent struct {
	Speech    Status    `json:"speech"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ConsentStore persists the user's speech-recognition decision as JSON.
type ConsentStore struct {
	Path string
	now  func() time.Time
}

// NewConsentStore returns a store rooted at stateDir/consent.json.
func NewConsentStore(stateDir string) *ConsentStore {
	return &ConsentStore{Path: filepath.Join(stateDir, "consent.json"), now: time.Now}
}

// Load reads the stored decision. A missing file yields NotDetermined.
func (s *ConsentStore) Load() (Consent, error) {
	data, err := os.ReadFile(s.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Consent{Speech: StatusNotDetermined}, nil
		}
		return Consent{}, fmt.Errorf("read consent %q: %w", s.Path, err)
	}

	var consent Consent
	if err := json.Unmarshal(data, &consent); err != nil {
		return Consent{}, fmt.Errorf("decode consent %q: %w", s.Path, err)
	}
	status, err := ParseStatus(string(consent.Speech))
	if err != nil {
		return Consent{}, fmt.Errorf("decode consent %q: %w", s.Path, err)
	}
	consent.Speech = status
	return consent, nil
}

// Save records a decision, replacing any previous one atomically.
func (s *ConsentStore) Save(status Status) error {
	if _, err := ParseStatus(string(status)); err != nil {
		return err
	}
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	payload, err := json.MarshalIndent(Consent{Speech: status, UpdatedAt: now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode consent: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.Path), 0o700); err != nil {
		return fmt.Errorf("create consent dir: %w", err)
	}

	tmp := s.Path + ".tmp"
	if err := os.WriteFile(tmp, append(payload, '\n'), 0o600); err != nil {
		return fmt.Errorf("write consent: %w", err)
	}
	if err := os.Rename(tmp, s.Path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace consent: %w", err)
	}
	return nil
}

// SpeechAuthorization adapts the store to the Gate speech probe. Read errors
// are reported as Restricted.
func (s *ConsentStore) SpeechAuthorization(context.Context) Status {
	consent, err := s.Load()
	if err != nil {
		return StatusRestricted
	}
	return consent.Speech
}
