package speech

import (
	"context"
	"errors"
	"fmt"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// connect dials endpoint and blocks until the channel is Ready, the timeout
// passes, or ctx ends. The caller owns the returned connection.
func connect(ctx context.Context, endpoint string, timeout time.Duration) (*grpc.ClientConn, error) {
	conn, err := dial(endpoint)
	if err != nil {
		return nil, err
	}

	readyCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	conn.Connect()
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if state == connectivity.Shutdown {
			_ = conn.Close()
			return nil, errors.New("connection shut down before becoming ready")
		}
		if !conn.WaitForStateChange(readyCtx, state) {
			_ = conn.Close()
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			return nil, fmt.Errorf("not ready after %s (last state %s)", timeout, state)
		}
	}
	return conn, nil
}

// Ping reports whether a recognizer answers at endpoint within timeout.
func Ping(ctx context.Context, endpoint string, timeout time.Duration) error {
	conn, err := connect(ctx, endpoint, timeout)
	if err != nil {
		return err
	}
	return conn.Close()
}

// runWithTimeout bounds one blocking stream call, such as the config send,
// that does not take a context of its own.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	result := make(chan error, 1)
	go func() { result <- call() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("timed out after %s", timeout)
	case err := <-result:
		return err
	}
}
