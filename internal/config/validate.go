package config

import (
	"fmt"
	"sort"
	"strings"
)

var permissionValues = map[string]struct{}{
	"authorized":     {},
	"denied":         {},
	"restricted":     {},
	"not_determined": {},
}

// Validate enforces config invariants and returns non-fatal warnings.
func Validate(cfg Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if strings.TrimSpace(cfg.Recognizer.Endpoint) == "" {
		return nil, fmt.Errorf("recognizer.endpoint must not be empty")
	}
	if strings.TrimSpace(cfg.Recognizer.Locale) == "" {
		return nil, fmt.Errorf("recognizer.locale must not be empty")
	}
	if cfg.Recognizer.DialTimeoutMS <= 0 {
		return nil, fmt.Errorf("recognizer.dial_timeout_ms must be > 0")
	}
	if cfg.Audio.SampleRate <= 0 || cfg.Audio.SampleRate > 192000 {
		return nil, fmt.Errorf("audio.sample_rate must be in (0, 192000]")
	}
	if cfg.Audio.FrameSamples <= 0 {
		return nil, fmt.Errorf("audio.frame_samples must be > 0")
	}
	if strings.TrimSpace(cfg.Audio.MediaRole) == "" {
		return nil, fmt.Errorf("audio.media_role must not be empty")
	}

	mode := strings.ToLower(strings.TrimSpace(cfg.Auth.Mode))
	switch mode {
	case AuthModeSystem:
	case AuthModeStatic:
		if _, ok := permissionValues[cfg.Auth.Speech]; !ok {
			return nil, fmt.Errorf("auth.speech must be one of: authorized, denied, restricted, not_determined")
		}
		if _, ok := permissionValues[cfg.Auth.Record]; !ok {
			return nil, fmt.Errorf("auth.record must be one of: authorized, denied, restricted, not_determined")
		}
	default:
		return nil, fmt.Errorf("auth.mode must be one of: system, static")
	}

	if cfg.Vocab.MaxPhrases <= 0 {
		return nil, fmt.Errorf("vocab.max_phrases must be > 0")
	}

	if !cfg.Recognizer.PreferOnDevice {
		warnings = append(warnings, Warning{Message: "recognizer.prefer_on_device is false; non-local recognizer endpoints will be accepted"})
	}

	_, vocabWarnings, err := BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, err
	}
	warnings = append(warnings, vocabWarnings...)

	return warnings, nil
}

// BuildSpeechPhrases merges enabled vocab sets into deterministic recognizer phrase payloads.
func BuildSpeechPhrases(cfg Config) ([]SpeechPhrase, []Warning, error) {
	enabledSets := cfg.Vocab.GlobalSets
	if len(enabledSets) == 0 {
		return nil, nil, nil
	}

	type candidate struct {
		boost float64
		from  string
	}

	warnings := make([]Warning, 0)
	selected := make(map[string]candidate)

	for _, name := range enabledSets {
		set, ok := cfg.Vocab.Sets[name]
		if !ok {
			return nil, nil, fmt.Errorf("vocab.global references unknown set %q", name)
		}
		for _, phrase := range set.Phrases {
			phrase = strings.TrimSpace(phrase)
			if phrase == "" {
				continue
			}
			if existing, exists := selected[phrase]; exists {
				if set.Boost > existing.boost {
					warnings = append(warnings, Warning{Message: fmt.Sprintf("phrase %q present in %q and %q; using higher boost %.2f", phrase, existing.from, name, set.Boost)})
					selected[phrase] = candidate{boost: set.Boost, from: name}
				}
				continue
			}
			selected[phrase] = candidate{boost: set.Boost, from: name}
		}
	}

	if len(selected) > cfg.Vocab.MaxPhrases {
		return nil, nil, fmt.Errorf("vocabulary phrase count %d exceeds vocab.max_phrases=%d", len(selected), cfg.Vocab.MaxPhrases)
	}

	phrases := make([]SpeechPhrase, 0, len(selected))
	for phrase, c := range selected {
		phrases = append(phrases, SpeechPhrase{Phrase: phrase, Boost: float32(c.boost)})
	}

	sort.Slice(phrases, func(i, j int) bool {
		if phrases[i].Phrase == phrases[j].Phrase {
			return phrases[i].Boost < phrases[j].Boost
		}
		return phrases[i].Phrase < phrases[j].Phrase
	})

	return phrases, warnings, nil
}
