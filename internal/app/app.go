// Package app maps parsed commands onto the recording owner, the control
// socket, and the lecture library.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lecturenote/lecturenote/internal/audio"
	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/cli"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/doctor"
	"github.com/lecturenote/lecturenote/internal/ipc"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/logging"
	"github.com/lecturenote/lecturenote/internal/version"
)

const binaryName = "lecturenote"

type Runner struct {
	Stdout io.Writer
	Stderr io.Writer
	Logger *slog.Logger
}

func Execute(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	r := Runner{Stdout: stdout, Stderr: stderr}
	return r.Execute(ctx, args)
}

func (r Runner) Execute(ctx context.Context, args []string) int {
	parsed, err := cli.Parse(args)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n\n", err)
		fmt.Fprint(r.Stderr, cli.HelpText(binaryName))
		return 2
	}

	if parsed.ShowHelp {
		fmt.Fprint(r.Stdout, cli.HelpText(binaryName))
		return 0
	}

	if parsed.Command == cli.CommandVersion {
		fmt.Fprintln(r.Stdout, version.String())
		return 0
	}

	logRuntime, err := r.openLog(parsed.Verbose)
	if err != nil {
		fmt.Fprintf(r.Stderr, "warning: logging disabled: %v\n", err)
		logRuntime = logging.Discard()
	}
	defer func() { _ = logRuntime.Close() }()

	logger := r.Logger
	if logger == nil {
		logger = logRuntime.Logger
	}

	cfgLoaded, err := config.Load(parsed.ConfigPath)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		logger.Error("load config failed", "error", err.Error())
		return 1
	}
	for _, w := range cfgLoaded.Warnings {
		msg := w.Message
		if w.Line > 0 {
			msg = fmt.Sprintf("line %d: %s", w.Line, w.Message)
		}
		fmt.Fprintf(r.Stderr, "warning: %s\n", msg)
		logger.Warn("config warning", "line", w.Line, "message", w.Message)
	}

	logger.Info("command start",
		"command", parsed.Command,
		"config", cfgLoaded.Path,
		"log", logRuntime.Path,
	)

	switch parsed.Command {
	case cli.CommandDoctor:
		gate, err := buildGate(cfgLoaded.Config)
		if err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		report := doctor.Run(ctx, cfgLoaded, gate)
		fmt.Fprintln(r.Stdout, report.String())
		if report.OK() {
			return 0
		}
		return 1
	case cli.CommandDevices:
		return r.commandDevices(ctx)
	case cli.CommandAuthorize:
		return r.commandAuthorize(parsed.Revoke, logger)
	case cli.CommandStatus:
		return r.commandStatus(ctx)
	case cli.CommandPause:
		return r.forwardOrFail(ctx, ipc.CommandPause)
	case cli.CommandResume:
		return r.forwardOrFail(ctx, ipc.CommandResume)
	case cli.CommandStop:
		return r.forwardOrFail(ctx, ipc.CommandStop)
	case cli.CommandReset:
		return r.forwardOrFail(ctx, ipc.CommandReset)
	case cli.CommandRecord:
		return r.commandRecord(ctx, cfgLoaded.Config, parsed.Record, logger)
	case cli.CommandCourses, cli.CommandCourse, cli.CommandLectures, cli.CommandLecture, cli.CommandTags, cli.CommandTag:
		return r.withLibrary(ctx, cfgLoaded.Config, func(store *lecture.Store) error {
			return r.commandLibrary(ctx, store, parsed)
		})
	default:
		fmt.Fprintf(r.Stderr, "error: unsupported command %q\n", parsed.Command)
		return 2
	}
}

func (r Runner) openLog(verbose bool) (logging.Runtime, error) {
	stateDir, err := config.ResolveStateDir()
	if err != nil {
		return logging.Runtime{}, err
	}
	return logging.New(logging.Options{Dir: stateDir, Verbose: verbose})
}

func (r Runner) commandDevices(ctx context.Context) int {
	devices, err := audio.ListDevices(ctx)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if len(devices) == 0 {
		fmt.Fprintln(r.Stdout, "no audio devices found")
		return 1
	}

	for _, device := range devices {
		defaultMark := " "
		if device.Default {
			defaultMark = "*"
		}
		fmt.Fprintf(r.Stdout, "%s %s\n", defaultMark, audio.Describe(device))
	}
	return 0
}

func (r Runner) commandAuthorize(revoke bool, logger *slog.Logger) int {
	stateDir, err := config.ResolveStateDir()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	status := auth.StatusAuthorized
	if revoke {
		status = auth.StatusDenied
	}
	store := auth.NewConsentStore(stateDir)
	if err := store.Save(status); err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	logger.Info("speech consent updated", "status", string(status), "path", store.Path)
	fmt.Fprintf(r.Stdout, "speech recognition %s\n", status)
	return 0
}

func (r Runner) commandStatus(ctx context.Context) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}

	resp, handled, err := tryForward(ctx, socketPath, ipc.CommandStatus)
	if !handled {
		fmt.Fprintln(r.Stdout, "idle")
		return 0
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	r.printResponse(resp)
	return 0
}

func (r Runner) printResponse(resp ipc.Response) {
	state := resp.State
	if state == "" {
		state = "idle"
	}
	elapsed := lecture.FormatDuration(time.Duration(resp.ElapsedMS) * time.Millisecond)
	fmt.Fprintf(r.Stdout, "%s %s\n", state, elapsed)
	if resp.ErrorCode != "" {
		fmt.Fprintf(r.Stdout, "error: %s\n", resp.Error)
	}
	if transcript := strings.TrimSpace(resp.Transcript); transcript != "" {
		fmt.Fprintln(r.Stdout, transcript)
	}
}

func (r Runner) forwardOrFail(ctx context.Context, command string) int {
	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}

	resp, handled, err := tryForward(ctx, socketPath, command)
	if !handled {
		fmt.Fprintln(r.Stderr, "error: no active lecturenote recording")
		return 1
	}
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if resp.Message != "" {
		fmt.Fprintln(r.Stdout, resp.Message)
	}
	return 0
}

// tryForward reports handled=false when no recording owns the socket.
func tryForward(ctx context.Context, socketPath string, command string) (ipc.Response, bool, error) {
	resp, err := ipc.Send(ctx, socketPath, ipc.Request{Command: command}, 220*time.Millisecond)
	switch {
	case errors.Is(err, ipc.ErrNoOwner):
		return ipc.Response{}, false, nil
	case err != nil:
		return ipc.Response{}, true, fmt.Errorf("forward command %q: %w", command, err)
	case !resp.OK:
		return resp, true, errors.New(resp.Error)
	default:
		return resp, true, nil
	}
}
