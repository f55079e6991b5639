// Package config resolves, parses, validates, and defaults lecturenote configuration.
package config

// Config is the fully materialized runtime configuration used by lecturenote.
type Config struct {
	Recognizer RecognizerConfig
	Audio      AudioConfig
	Auth       AuthConfig
	Library    LibraryConfig
	Vocab      VocabConfig
	Output     OutputConfig
	Debug      DebugConfig
}

// RecognizerConfig controls the local speech-recognition daemon connection.
type RecognizerConfig struct {
	Endpoint       string
	Locale         string
	PreferOnDevice bool
	InterimResults bool
	DialTimeoutMS  int
}

// AudioConfig controls input-source selection and frame geometry.
type AudioConfig struct {
	Input        string
	Fallback     string
	SampleRate   int
	FrameSamples int
	// MediaRole tags the capture stream for the audio server's role
	// policies; "phone" ducks other streams under module-role-ducking.
	MediaRole string
}

// AuthConfig selects how speech and microphone permissions are resolved.
//
// Mode "system" reads the stored consent and probes the audio server.
// Mode "static" reports Speech and Record verbatim.
type AuthConfig struct {
	Mode   string
	Speech string
	Record string
}

// LibraryConfig locates the lecture library database.
type LibraryConfig struct {
	Path string
}

// VocabConfig controls enabled speech phrase sets and dedupe limits.
type VocabConfig struct {
	GlobalSets []string
	Sets       map[string]VocabSet
	MaxPhrases int
}

// VocabSet is one named phrase group with a shared boost value.
type VocabSet struct {
	Name    string
	Boost   float64
	Phrases []string
}

// OutputConfig controls what happens with a finished transcript.
type OutputConfig struct {
	CopyTranscript bool
	// SoundCues plays a short tone on each recording state change.
	SoundCues bool
}

// DebugConfig controls optional debug artifact output.
type DebugConfig struct {
	EnableAudioDump      bool
	EnableRecognizerDump bool
}

// Warning is a non-fatal parse/validation message.
type Warning struct {
	Line    int
	Message string
}

// SpeechPhrase is the normalized phrase payload sent to the recognizer.
type SpeechPhrase struct {
	Phrase string
	Boost  float32
}
