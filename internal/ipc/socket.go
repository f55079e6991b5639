package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
)

var ErrAlreadyRunning = errors.New("lecturenote recording already running")

const socketName = "lecturenote.sock"

// RuntimeSocketPath returns the per-user control socket path.
func RuntimeSocketPath() (string, error) {
	runtimeDir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR"))
	if runtimeDir == "" {
		return "", errors.New("XDG_RUNTIME_DIR is not set")
	}
	return filepath.Join(runtimeDir, socketName), nil
}

// Owner is the listening side of the control socket. Closing it removes
// the socket file.
type Owner struct {
	net.Listener
	path      string
	closeOnce sync.Once
	closeErr  error
}

func (o *Owner) Path() string { return o.path }

func (o *Owner) Close() error {
	o.closeOnce.Do(func() {
		o.closeErr = o.Listener.Close()
		if err := os.Remove(o.path); err != nil && !errors.Is(err, os.ErrNotExist) && o.closeErr == nil {
			o.closeErr = err
		}
	})
	if errors.Is(o.closeErr, net.ErrClosed) {
		return nil
	}
	return o.closeErr
}

// Acquire claims path for this process. A live owner yields
// ErrAlreadyRunning; a socket nobody answers on is removed and retried.
func Acquire(ctx context.Context, path string, probeTimeout time.Duration, retries int) (*Owner, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("ensure runtime socket dir: %w", err)
	}

	for attempt := 0; ; attempt++ {
		listener, err := net.Listen("unix", path)
		if err == nil {
			_ = os.Chmod(path, 0o600)
			return &Owner{Listener: listener, path: path}, nil
		}
		if !errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("listen unix %s: %w", path, err)
		}

		alive, probeErr := Probe(ctx, path, probeTimeout)
		if alive {
			return nil, ErrAlreadyRunning
		}
		if probeErr != nil {
			// An owner that accepts but never answers is not proof of a stale socket.
			return nil, fmt.Errorf("probe existing socket %s: %w", path, probeErr)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("remove stale socket %s: %w", path, err)
		}

		if attempt >= retries {
			return nil, fmt.Errorf("acquire socket %s: gave up after %d attempts", path, attempt+1)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(time.Duration(25*(attempt+1)) * time.Millisecond):
		}
	}
}
