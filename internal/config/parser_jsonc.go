package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type jsoncConfig struct {
	Recognizer *jsoncRecognizer `json:"recognizer"`
	Audio      *jsoncAudio      `json:"audio"`
	Auth       *jsoncAuth       `json:"auth"`
	Library    *jsoncLibrary    `json:"library"`
	Vocab      *jsoncVocab      `json:"vocab"`
	Output     *jsoncOutput     `json:"output"`
	Debug      *jsoncDebug      `json:"debug"`
}

type jsoncRecognizer struct {
	Endpoint       *string `json:"endpoint"`
	Locale         *string `json:"locale"`
	PreferOnDevice *bool   `json:"prefer_on_device"`
	InterimResults *bool   `json:"interim_results"`
	DialTimeoutMS  *int    `json:"dial_timeout_ms"`
}

type jsoncAudio struct {
	Input        *string `json:"input"`
	Fallback     *string `json:"fallback"`
	SampleRate   *int    `json:"sample_rate"`
	FrameSamples *int    `json:"frame_samples"`
	MediaRole    *string `json:"media_role"`
}

type jsoncAuth struct {
	Mode   *string `json:"mode"`
	Speech *string `json:"speech"`
	Record *string `json:"record"`
}

type jsoncLibrary struct {
	Path *string `json:"path"`
}

type jsoncVocab struct {
	Global     *jsoncStringList         `json:"global"`
	MaxPhrases *int                     `json:"max_phrases"`
	Sets       map[string]jsoncVocabSet `json:"sets"`
}

type jsoncVocabSet struct {
	Boost   *float64 `json:"boost"`
	Phrases []string `json:"phrases"`
}

type jsoncOutput struct {
	CopyTranscript *bool `json:"copy_transcript"`
	SoundCues      *bool `json:"sound_cues"`
}

type jsoncDebug struct {
	AudioDump      *bool `json:"audio_dump"`
	RecognizerDump *bool `json:"recognizer_dump"`
}

type jsoncStringList []string

func (l *jsoncStringList) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*l = list
		return nil
	}

	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		parts := strings.Split(single, ",")
		out := make([]string, 0, len(parts))
		for _, part := range parts {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			out = append(out, part)
		}
		*l = out
		return nil
	}

	return fmt.Errorf("expected string array or comma-delimited string")
}

func parseJSONC(content string, base Config) (Config, []Warning, error) {
	normalized, err := normalizeJSONC(content)
	if err != nil {
		return Config{}, nil, err
	}

	decoder := json.NewDecoder(strings.NewReader(normalized))
	decoder.DisallowUnknownFields()

	var payload jsoncConfig
	if err := decoder.Decode(&payload); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}
	if err := ensureSingleJSONValue(decoder); err != nil {
		return Config{}, nil, wrapJSONDecodeError(normalized, err)
	}

	cfg := cloneConfig(base)
	warnings, err := payload.applyTo(&cfg)
	if err != nil {
		return Config{}, nil, err
	}

	validatedWarnings, err := Validate(cfg)
	if err != nil {
		return Config{}, nil, err
	}
	warnings = append(warnings, validatedWarnings...)
	return cfg, warnings, nil
}

// cloneConfig copies the map and slices so overlays never mutate the caller's base.
func cloneConfig(base Config) Config {
	cfg := base
	cfg.Vocab.GlobalSets = append([]string(nil), base.Vocab.GlobalSets...)
	cfg.Vocab.Sets = make(map[string]VocabSet, len(base.Vocab.Sets))
	for name, set := range base.Vocab.Sets {
		cfg.Vocab.Sets[name] = set
	}
	return cfg
}

func (payload jsoncConfig) applyTo(cfg *Config) ([]Warning, error) {
	warnings := make([]Warning, 0)

	if payload.Recognizer != nil {
		r := payload.Recognizer
		if r.Endpoint != nil {
			cfg.Recognizer.Endpoint = strings.TrimSpace(*r.Endpoint)
		}
		if r.Locale != nil {
			cfg.Recognizer.Locale = strings.TrimSpace(*r.Locale)
		}
		if r.PreferOnDevice != nil {
			cfg.Recognizer.PreferOnDevice = *r.PreferOnDevice
		}
		if r.InterimResults != nil {
			cfg.Recognizer.InterimResults = *r.InterimResults
		}
		if r.DialTimeoutMS != nil {
			cfg.Recognizer.DialTimeoutMS = *r.DialTimeoutMS
		}
	}

	if payload.Audio != nil {
		if payload.Audio.Input != nil {
			cfg.Audio.Input = *payload.Audio.Input
		}
		if payload.Audio.Fallback != nil {
			cfg.Audio.Fallback = *payload.Audio.Fallback
		}
		if payload.Audio.SampleRate != nil {
			cfg.Audio.SampleRate = *payload.Audio.SampleRate
		}
		if payload.Audio.FrameSamples != nil {
			cfg.Audio.FrameSamples = *payload.Audio.FrameSamples
		}
		if payload.Audio.MediaRole != nil {
			cfg.Audio.MediaRole = strings.ToLower(strings.TrimSpace(*payload.Audio.MediaRole))
		}
	}

	if payload.Auth != nil {
		if payload.Auth.Mode != nil {
			cfg.Auth.Mode = strings.ToLower(strings.TrimSpace(*payload.Auth.Mode))
		}
		if payload.Auth.Speech != nil {
			cfg.Auth.Speech = strings.ToLower(strings.TrimSpace(*payload.Auth.Speech))
		}
		if payload.Auth.Record != nil {
			cfg.Auth.Record = strings.ToLower(strings.TrimSpace(*payload.Auth.Record))
		}
		if cfg.Auth.Mode == AuthModeSystem && (payload.Auth.Speech != nil || payload.Auth.Record != nil) {
			warnings = append(warnings, Warning{Message: "auth.speech and auth.record are ignored when auth.mode is \"system\""})
		}
	}

	if payload.Library != nil && payload.Library.Path != nil {
		cfg.Library.Path = strings.TrimSpace(*payload.Library.Path)
	}

	if payload.Vocab != nil {
		if payload.Vocab.Global != nil {
			cfg.Vocab.GlobalSets = cfg.Vocab.GlobalSets[:0]
			for _, name := range *payload.Vocab.Global {
				name = strings.TrimSpace(name)
				if name == "" {
					continue
				}
				cfg.Vocab.GlobalSets = append(cfg.Vocab.GlobalSets, name)
			}
		}
		if payload.Vocab.MaxPhrases != nil {
			cfg.Vocab.MaxPhrases = *payload.Vocab.MaxPhrases
		}
		if payload.Vocab.Sets != nil {
			if cfg.Vocab.Sets == nil {
				cfg.Vocab.Sets = make(map[string]VocabSet)
			}
			for name, set := range payload.Vocab.Sets {
				trimmedName := strings.TrimSpace(name)
				if trimmedName == "" {
					return nil, fmt.Errorf("vocab.sets contains an empty set name")
				}

				phrases := make([]string, 0, len(set.Phrases))
				phrases = append(phrases, set.Phrases...)

				entry := VocabSet{Name: trimmedName, Phrases: phrases}
				if set.Boost != nil {
					entry.Boost = *set.Boost
				}
				cfg.Vocab.Sets[trimmedName] = entry
			}
		}
	}

	if payload.Output != nil {
		if payload.Output.CopyTranscript != nil {
			cfg.Output.CopyTranscript = *payload.Output.CopyTranscript
		}
		if payload.Output.SoundCues != nil {
			cfg.Output.SoundCues = *payload.Output.SoundCues
		}
	}

	if payload.Debug != nil {
		if payload.Debug.AudioDump != nil {
			cfg.Debug.EnableAudioDump = *payload.Debug.AudioDump
		}
		if payload.Debug.RecognizerDump != nil {
			cfg.Debug.EnableRecognizerDump = *payload.Debug.RecognizerDump
		}
	}

	return warnings, nil
}

func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false
	lineComment := false
	blockComment := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if lineComment {
			if ch == '\n' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			if ch == '\r' {
				lineComment = false
				out.WriteByte(ch)
				continue
			}
			out.WriteByte(' ')
			continue
		}

		if blockComment {
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				blockComment = false
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
			continue
		}

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == '/' && i+1 < len(content) {
			next := content[i+1]
			if next == '/' {
				lineComment = true
				out.WriteString("  ")
				i++
				continue
			}
			if next == '*' {
				blockComment = true
				out.WriteString("  ")
				i++
				continue
			}
		}

		out.WriteByte(ch)
	}

	if blockComment {
		return "", fmt.Errorf("unterminated block comment in JSONC")
	}

	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	inString := false
	escape := false

	for i := 0; i < len(content); i++ {
		ch := content[i]

		if inString {
			out.WriteByte(ch)
			if escape {
				escape = false
				continue
			}
			if ch == '\\' {
				escape = true
				continue
			}
			if ch == '"' {
				inString = false
			}
			continue
		}

		if ch == '"' {
			inString = true
			out.WriteByte(ch)
			continue
		}

		if ch == ',' {
			j := i + 1
			for j < len(content) && isJSONWhitespace(content[j]) {
				j++
			}
			if j < len(content) && (content[j] == '}' || content[j] == ']') {
				continue
			}
		}

		out.WriteByte(ch)
	}

	return out.String()
}

func isJSONWhitespace(ch byte) bool {
	switch ch {
	case ' ', '\n', '\r', '\t':
		return true
	default:
		return false
	}
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra struct{}
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return fmt.Errorf("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) {
		line, col := offsetToLineCol(content, syntaxErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		line, col := offsetToLineCol(content, typeErr.Offset)
		return fmt.Errorf("line %d column %d: %w", line, col, err)
	}

	return err
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}

	limit := int(offset)
	if limit > len(content) {
		limit = len(content)
	}

	line := 1
	col := 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
