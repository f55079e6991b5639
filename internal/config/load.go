package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

// Environment variables that win over the config file.
const (
	EnvRecognizerEndpoint = "LECTURENOTE_RECOGNIZER_ENDPOINT"
	EnvLibraryPath        = "LECTURENOTE_LIBRARY"
)

// Loaded is a resolved config plus where it came from.
type Loaded struct {
	Path     string
	Config   Config
	Warnings []Warning
	Exists   bool
}

// Load reads the config at explicitPath (or the XDG default), overlays it on
// Default, then applies environment overrides. A missing file is a warning.
func Load(explicitPath string) (Loaded, error) {
	path, err := ResolvePath(explicitPath)
	if err != nil {
		return Loaded{}, err
	}
	loaded := Loaded{Path: path}

	content, err := os.ReadFile(path)
	switch {
	case errors.Is(err, os.ErrNotExist):
		loaded.Config = Default()
		loaded.Warnings = []Warning{{Message: fmt.Sprintf("config file %q not found; using defaults", path)}}
	case err != nil:
		return Loaded{}, fmt.Errorf("read config %q: %w", path, err)
	default:
		cfg, warnings, err := Parse(string(content), Default())
		if err != nil {
			return Loaded{}, fmt.Errorf("parse config %q: %w", path, err)
		}
		loaded.Config = cfg
		loaded.Warnings = warnings
		loaded.Exists = true
	}

	applyEnv(&loaded.Config, os.Getenv)
	return loaded, nil
}

// Parse overlays JSONC content on base and validates the result. Blank
// content validates base as-is.
func Parse(content string, base Config) (Config, []Warning, error) {
	if strings.TrimSpace(content) == "" {
		warnings, err := Validate(base)
		if err != nil {
			return Config{}, nil, err
		}
		return base, warnings, nil
	}
	return parseJSONC(content, base)
}

func applyEnv(cfg *Config, getenv func(string) string) {
	if endpoint := strings.TrimSpace(getenv(EnvRecognizerEndpoint)); endpoint != "" {
		cfg.Recognizer.Endpoint = endpoint
	}
	if path := strings.TrimSpace(getenv(EnvLibraryPath)); path != "" {
		cfg.Library.Path = path
	}
}
