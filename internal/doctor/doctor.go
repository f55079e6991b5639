// Package doctor runs readiness diagnostics for config, permissions, audio,
// the recognizer, and the lecture library.
package doctor

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/lecturenote/lecturenote/internal/audio"
	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/speech"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment/config/runtime checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded, gate auth.Gate) Report {
	checks := []Check{{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q", cfg.Path),
	}}

	checks = append(checks, checkAuthorization(ctx, cfg.Config, gate)...)
	checks = append(checks, checkAudioSelection(ctx, cfg.Config))
	checks = append(checks, checkRecognizerReady(ctx, cfg.Config))
	checks = append(checks, checkLibrary(ctx, cfg.Config))
	if cfg.Config.Output.CopyTranscript {
		checks = append(checks, checkAnyBinary("clipboard", []string{"wl-copy", "xclip", "xsel"}))
	}

	return Report{Checks: checks}
}

// checkAuthorization reports both gate statuses.
func checkAuthorization(ctx context.Context, cfg config.Config, gate auth.Gate) []Check {
	speechStatus := gate.SpeechAuthorization(ctx)
	speechCheck := Check{
		Name:    "auth.speech",
		Pass:    speechStatus == auth.StatusAuthorized,
		Message: fmt.Sprintf("%s (mode %s)", speechStatus, cfg.Auth.Mode),
	}
	if speechStatus == auth.StatusNotDetermined {
		speechCheck.Message += "; run `lecturenote authorize`"
	}

	recordStatus := gate.RecordPermission(ctx)
	return []Check{speechCheck, {
		Name:    "auth.record",
		Pass:    recordStatus == auth.StatusAuthorized,
		Message: string(recordStatus),
	}}
}

// checkAnyBinary passes when at least one of bins is in PATH.
func checkAnyBinary(name string, bins []string) Check {
	for _, bin := range bins {
		if path, err := exec.LookPath(bin); err == nil {
			return Check{Name: name, Pass: true, Message: fmt.Sprintf("found %s at %s", bin, path)}
		}
	}
	return Check{Name: name, Pass: false, Message: fmt.Sprintf("none of %s found in PATH", strings.Join(bins, ", "))}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %q", selection.Device.ID)
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkRecognizerReady dials the recognizer and waits for a Ready connection.
func checkRecognizerReady(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.Recognizer.Endpoint)
	if endpoint == "" {
		return Check{Name: "recognizer.ready", Pass: false, Message: "recognizer.endpoint is empty"}
	}
	if cfg.Recognizer.PreferOnDevice && !speech.IsLocalEndpoint(endpoint) {
		return Check{Name: "recognizer.ready", Pass: false, Message: fmt.Sprintf("%q is not local but prefer_on_device is set", endpoint)}
	}

	timeout := time.Duration(cfg.Recognizer.DialTimeoutMS) * time.Millisecond
	if err := speech.Ping(ctx, endpoint, timeout); err != nil {
		return Check{Name: "recognizer.ready", Pass: false, Message: fmt.Sprintf("%s: %v", endpoint, err)}
	}
	return Check{Name: "recognizer.ready", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

// checkLibrary opens the lecture library and counts courses.
func checkLibrary(ctx context.Context, cfg config.Config) Check {
	path, err := config.ResolveLibraryPath(cfg)
	if err != nil {
		return Check{Name: "library", Pass: false, Message: err.Error()}
	}
	store, err := lecture.Open(ctx, path)
	if err != nil {
		return Check{Name: "library", Pass: false, Message: err.Error()}
	}
	defer store.Close()

	courses, err := store.ListCourses(ctx)
	if err != nil {
		return Check{Name: "library", Pass: false, Message: err.Error()}
	}
	return Check{Name: "library", Pass: true, Message: fmt.Sprintf("%s (%d courses)", path, len(courses))}
}
