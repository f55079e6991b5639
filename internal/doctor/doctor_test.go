package doctor

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/lecturenote/lecturenote/internal/auth"
	"github.com/lecturenote/lecturenote/internal/config"
	"github.com/lecturenote/lecturenote/internal/lecture"
	"github.com/lecturenote/lecturenote/internal/speech"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
)

func TestReportOKAndString(t *testing.T) {
	report := Report{Checks: []Check{
		{Name: "one", Pass: true, Message: "good"},
		{Name: "two", Pass: false, Message: "bad"},
	}}

	require.False(t, report.OK())
	text := report.String()
	require.Contains(t, text, "[OK] one: good")
	require.Contains(t, text, "[FAIL] two: bad")
}

func TestCheckAuthorization(t *testing.T) {
	cfg := config.Default()

	checks := checkAuthorization(context.Background(), cfg, auth.Allowed)
	require.Len(t, checks, 2)
	require.True(t, checks[0].Pass)
	require.True(t, checks[1].Pass)

	checks = checkAuthorization(context.Background(), cfg, auth.Static{
		Speech: auth.StatusNotDetermined,
		Record: auth.StatusDenied,
	})
	require.False(t, checks[0].Pass)
	require.Contains(t, checks[0].Message, "lecturenote authorize")
	require.False(t, checks[1].Pass)
	require.Equal(t, "denied", checks[1].Message)
}

func TestCheckAnyBinary(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "fake-copy"), []byte("#!/bin/sh\nexit 0\n"), 0o755))
	t.Setenv("PATH", dir)

	check := checkAnyBinary("clipboard", []string{"missing-copy", "fake-copy"})
	require.True(t, check.Pass)
	require.Contains(t, check.Message, "found fake-copy")

	check = checkAnyBinary("clipboard", []string{"missing-a", "missing-b"})
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "none of missing-a, missing-b")
}

type idleRecognizer struct{}

func (idleRecognizer) StreamingRecognize(speech.RecognizeStream) error { return nil }

func TestCheckRecognizerReadySuccess(t *testing.T) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	server := grpc.NewServer()
	speech.RegisterRecognizerServer(server, idleRecognizer{})
	go func() { _ = server.Serve(listener) }()
	t.Cleanup(server.Stop)

	cfg := config.Default()
	cfg.Recognizer.Endpoint = listener.Addr().String()

	check := checkRecognizerReady(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "ready at")
}

func TestCheckRecognizerReadyFailures(t *testing.T) {
	cfg := config.Default()
	cfg.Recognizer.Endpoint = ""
	check := checkRecognizerReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "endpoint is empty")

	cfg.Recognizer.Endpoint = "speech.example.com:443"
	check = checkRecognizerReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, "is not local")

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := listener.Addr().String()
	require.NoError(t, listener.Close())

	cfg.Recognizer.Endpoint = addr
	cfg.Recognizer.DialTimeoutMS = 150
	check = checkRecognizerReady(context.Background(), cfg)
	require.False(t, check.Pass)
	require.Contains(t, check.Message, addr)
}

func TestCheckLibrary(t *testing.T) {
	cfg := config.Default()
	cfg.Library.Path = filepath.Join(t.TempDir(), "library.sqlite")

	store, err := lecture.Open(context.Background(), cfg.Library.Path)
	require.NoError(t, err)
	_, err = store.CreateCourse(context.Background(), lecture.CourseInput{Name: "Calculus I"})
	require.NoError(t, err)
	require.NoError(t, store.Close())

	check := checkLibrary(context.Background(), cfg)
	require.True(t, check.Pass, check.Message)
	require.Contains(t, check.Message, "(1 courses)")
}
