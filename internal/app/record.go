package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lecturenote/lecturenote/internal/cli"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/cue"
	"github.com/lecturenote/lecturenote/internal/fsm"
	"github.com/lecturenote/lecturenote/internal/ipc"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/output"
	"github.com/lecturenote/lecturenote/internal/pipeline"
	"github.com/lecturenote/lecturenote/internal/session"
	"github.com/lecturenote/lecturenote/internal/speech"
	"github.com/lecturenote/lecturenote/internal/tui"
)

// recordTarget is the library context a recording is saved into.
type recordTarget struct {
	store  *lecture.Store
	course lecture.Course
}

// commandRecord owns the control socket and one session until it finishes.
func (r Runner) commandRecord(ctx context.Context, cfg config.Config, opts cli.RecordOptions, logger *slog.Logger) int {
	if opts.Copy {
		cfg.Output.CopyTranscript = true
	}

	target, err := openRecordTarget(ctx, cfg, opts)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	if target.store != nil {
		defer target.store.Close()
	}

	socketPath, err := ipc.RuntimeSocketPath()
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	owner, err := ipc.Acquire(ctx, socketPath, 180*time.Millisecond, 8)
	if err != nil {
		if errors.Is(err, ipc.ErrAlreadyRunning) {
			fmt.Fprintln(r.Stderr, "error: a recording is already running; use pause, resume, stop, or status")
			return 1
		}
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = owner.Close() }()

	gate, err := buildGate(cfg)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	engine, debugCloser, err := buildEngine(cfg, logger)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	defer func() { _ = debugCloser.Close() }()

	capture := pipeline.NewCapture(cfg, logger)
	manager := session.NewManager(logger, gate, engine, capture, speech.Options{
		Locale:         cfg.Recognizer.Locale,
		PreferOnDevice: cfg.Recognizer.PreferOnDevice,
	})
	defer func() { _ = manager.Close() }()

	cues := cue.NewPlayer(cfg.Output.SoundCues, logger)
	unsubscribeCues := manager.Subscribe(cues.Observe)
	defer func() {
		unsubscribeCues()
		cues.Close()
	}()

	serverCtx, serverCancel := context.WithCancel(ctx)
	defer serverCancel()
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- ipc.Serve(serverCtx, owner, manager)
	}()

	var outcome tui.Outcome
	if opts.NoTUI {
		outcome = r.runPlain(ctx, manager)
	} else {
		heading, detail := recordHeading(target, opts)
		outcome, err = tui.Run(ctx, manager, manager, heading, detail)
		if err != nil {
			logger.Error("live view failed", "error", err.Error())
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
		}
	}
	_ = manager.Stop(context.Background())

	serverCancel()
	if serverErr := <-serverErrCh; serverErr != nil {
		fmt.Fprintf(r.Stderr, "error: ipc server failed: %v\n", serverErr)
		return 1
	}

	snapshot := manager.Snapshot()
	logSessionResult(logger, snapshot, capture.LastStats(), outcome)
	return r.finishRecording(ctx, cfg, target, opts, snapshot, outcome, logger)
}

func openRecordTarget(ctx context.Context, cfg config.Config, opts cli.RecordOptions) (recordTarget, error) {
	if opts.CourseID == "" {
		return recordTarget{}, nil
	}
	path, err := config.ResolveLibraryPath(cfg)
	if err != nil {
		return recordTarget{}, err
	}
	store, err := lecture.Open(ctx, path)
	if err != nil {
		return recordTarget{}, err
	}
	course, err := store.Course(ctx, opts.CourseID)
	if err != nil {
		store.Close()
		return recordTarget{}, err
	}
	if len(opts.TagIDs) > 0 {
		if err := checkTagsExist(ctx, store, opts.TagIDs); err != nil {
			store.Close()
			return recordTarget{}, err
		}
	}
	return recordTarget{store: store, course: course}, nil
}

func checkTagsExist(ctx context.Context, store *lecture.Store, tagIDs []string) error {
	tags, err := store.ListTags(ctx)
	if err != nil {
		return err
	}
	known := make(map[string]bool, len(tags))
	for _, tag := range tags {
		known[tag.ID] = true
	}
	for _, id := range tagIDs {
		if !known[id] {
			return fmt.Errorf("%w: %s", lecture.ErrUnknownTag, id)
		}
	}
	return nil
}

func recordHeading(target recordTarget, opts cli.RecordOptions) (string, string) {
	heading := "New lecture"
	if target.course.Name != "" {
		heading = target.course.Name
		if target.course.Code != "" {
			heading += " · " + target.course.Code
		}
	}
	return heading, strings.TrimSpace(opts.Title)
}

// runPlain prints state changes and transcript lines until the session is
// stopped, a control client asks the owner to finish, or ctx ends.
func (r Runner) runPlain(ctx context.Context, manager *session.Manager) tui.Outcome {
	updates := make(chan session.Snapshot, 64)
	unsubscribe := manager.Subscribe(func(s session.Snapshot) {
		select {
		case updates <- s:
		default:
		}
	})
	defer unsubscribe()

	if err := manager.Start(ctx); err != nil {
		return tui.OutcomeQuit
	}

	var (
		lastState fsm.State
		lastText  string
	)
	printSnapshot := func(s session.Snapshot) {
		if s.State != lastState {
			fmt.Fprintf(r.Stderr, "[%s] %s\n", lecture.FormatDuration(s.Elapsed), s.State)
			if s.Err != nil && s.State == fsm.StateFailed {
				fmt.Fprintf(r.Stderr, "error: %s\n", s.Err.Message)
			}
			lastState = s.State
		}
		if s.Transcript != lastText && s.Transcript != "" {
			fmt.Fprintf(r.Stderr, "%s\n", s.Transcript)
			lastText = s.Transcript
		}
	}
	printSnapshot(manager.Snapshot())

	// Snapshots are dropped when updates is full; the ticker catches a missed stop.
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return tui.OutcomeFinished
		case <-manager.Finished():
			printSnapshot(manager.Snapshot())
			return tui.OutcomeFinished
		case s := <-updates:
			printSnapshot(s)
			if s.State == fsm.StateStopped {
				return tui.OutcomeFinished
			}
		case <-ticker.C:
			if s := manager.Snapshot(); s.State == fsm.StateStopped {
				printSnapshot(s)
				return tui.OutcomeFinished
			}
		}
	}
}

func (r Runner) finishRecording(
	ctx context.Context,
	cfg config.Config,
	target recordTarget,
	opts cli.RecordOptions,
	snapshot session.Snapshot,
	outcome tui.Outcome,
	logger *slog.Logger,
) int {
	text := strings.TrimSpace(snapshot.Transcript)
	if text == "" {
		if snapshot.Err != nil {
			fmt.Fprintf(r.Stderr, "error: %s\n", snapshot.Err.Error())
			return 1
		}
		fmt.Fprintln(r.Stdout, "nothing recorded")
		return 0
	}

	if err := output.NewCommitter(cfg, logger).Commit(ctx, text); err != nil {
		fmt.Fprintf(r.Stderr, "warning: %v\n", err)
	}

	save := outcome == tui.OutcomeFinished && target.store != nil && strings.TrimSpace(opts.Title) != ""
	if !save {
		draft := lecture.Draft{
			Title:    strings.TrimSpace(opts.Title),
			Duration: lecture.FormatDuration(snapshot.Elapsed),
			Summary:  strings.TrimSpace(opts.Summary),
		}
		if draft.Summary == "" {
			draft.Summary = text
		}
		if err := output.WriteDraft(r.Stdout, target.course.Name, draft); err != nil {
			fmt.Fprintf(r.Stderr, "error: %v\n", err)
			return 1
		}
		return 0
	}

	draft, err := lecture.NewDraft(opts.Title, snapshot.Elapsed, opts.Summary, text, opts.TagIDs)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: %v\n", err)
		return 1
	}
	saved, err := target.store.SaveLecture(ctx, target.course.ID, draft)
	if err != nil {
		fmt.Fprintf(r.Stderr, "error: save lecture: %v\n", err)
		_ = output.WriteDraft(r.Stdout, target.course.Name, draft)
		return 1
	}
	logger.Info("lecture saved", "lecture_id", saved.ID, "course_id", saved.CourseID, "duration", saved.Duration)
	fmt.Fprintf(r.Stdout, "saved lecture %s (%s) to %s\n", saved.ID, saved.Duration, target.course.Name)
	return 0
}

func logSessionResult(logger *slog.Logger, snapshot session.Snapshot, stats pipeline.Stats, outcome tui.Outcome) {
	fields := []any{
		"state", string(snapshot.State),
		"finished", outcome == tui.OutcomeFinished,
		"elapsed_ms", snapshot.Elapsed.Milliseconds(),
		"audio_device", stats.Device,
		"audio_fallback", stats.Fallback,
		"bytes_captured", stats.BytesCaptured,
		"frames", stats.Frames,
		"transcript_length", len(snapshot.Transcript),
	}
	if snapshot.Err != nil {
		logger.Error("session ended with error", append(fields, "code", string(snapshot.Err.Code), "error", snapshot.Err.Error())...)
		return
	}
	logger.Info("session complete", fields...)
}
