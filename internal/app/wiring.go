package app

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/pipeline"
	"github.com/lecturenote/lecturenote/internal/speech"
)

// buildGate resolves the authorization gate for cfg.Auth.Mode.
func buildGate(cfg config.Config) (auth.Gate, error) {
	switch cfg.Auth.Mode {
	case config.AuthModeStatic:
		speechStatus, err := auth.ParseStatus(cfg.Auth.Speech)
		if err != nil {
			return nil, fmt.Errorf("auth.speech: %w", err)
		}
		recordStatus, err := auth.ParseStatus(cfg.Auth.Record)
		if err != nil {
			return nil, fmt.Errorf("auth.record: %w", err)
		}
		return auth.Static{Speech: speechStatus, Record: recordStatus}, nil
	case config.AuthModeSystem, "":
		stateDir, err := config.ResolveStateDir()
		if err != nil {
			return nil, err
		}
		consent := auth.NewConsentStore(stateDir)
		mic := auth.NewMicrophone(cfg.Audio.Input, cfg.Audio.Fallback)
		return auth.System{Speech: consent.SpeechAuthorization, Record: mic.RecordPermission}, nil
	default:
		return nil, fmt.Errorf("unsupported auth.mode %q", cfg.Auth.Mode)
	}
}

// buildEngine configures the gRPC recognizer client. The returned closer
// releases the recognizer debug file when one was opened.
func buildEngine(cfg config.Config, logger *slog.Logger) (*speech.GRPCEngine, io.Closer, error) {
	phrases, warnings, err := config.BuildSpeechPhrases(cfg)
	if err != nil {
		return nil, nil, err
	}
	for _, w := range warnings {
		logger.Warn("vocab warning", "message", w.Message)
	}

	engine := &speech.GRPCEngine{
		Endpoint:       cfg.Recognizer.Endpoint,
		DialTimeout:    time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond,
		SampleRate:     cfg.Audio.SampleRate,
		InterimResults: cfg.Recognizer.InterimResults,
		Phrases:        make([]speech.Phrase, 0, len(phrases)),
		Logger:         logger,
	}
	for _, p := range phrases {
		engine.Phrases = append(engine.Phrases, speech.Phrase{Phrase: p.Phrase, Boost: p.Boost})
	}
	logger.Debug("speech context plan", "phrase_count", len(engine.Phrases))

	var closer io.Closer = nopCloser{}
	if cfg.Debug.EnableRecognizerDump {
		file, err := pipeline.CreateDebugFile("recognizer", "jsonl")
		if err != nil {
			logger.Warn("recognizer debug dump disabled", "error", err.Error())
		} else {
			engine.DebugSink = file
			closer = file
			logger.Info("recognizer debug dump enabled", "path", file.Name())
		}
	}
	return engine, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
