package config

const (
	AuthModeSystem = "system"
	AuthModeStatic = "static"
)

// Default returns the canonical runtime configuration used when no file is present.
func Default() Config {
	return Config{
		Recognizer: RecognizerConfig{
			Endpoint:       "127.0.0.1:50061",
			Locale:         "en-US",
			PreferOnDevice: true,
			InterimResults: true,
			DialTimeoutMS:  3000,
		},
		Audio: AudioConfig{
			Input:        "default",
			Fallback:     "default",
			SampleRate:   16000,
			FrameSamples: 1024,
			MediaRole:    "phone",
		},
		Auth: AuthConfig{
			Mode:   AuthModeSystem,
			Speech: "authorized",
			Record: "authorized",
		},
		Library: LibraryConfig{},
		Vocab: VocabConfig{
			GlobalSets: nil,
			Sets:       map[string]VocabSet{},
			MaxPhrases: 1024,
		},
		Debug: DebugConfig{},
	}
}
