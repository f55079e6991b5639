package speech

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	defaultDialTimeout = 3 * time.Second
	sendBufferFrames   = 256
	updateBufferSize   = 16
)

// GRPCEngine streams audio to a local recognizer daemon over gRPC.
type GRPCEngine struct {
	Endpoint       string
	DialTimeout    time.Duration
	SampleRate     int
	InterimResults bool
	Phrases        []Phrase
	Logger         *slog.Logger

	// DebugSink receives one protojson line per recognizer result when set.
	DebugSink io.Writer

	// SupportedLocales restricts Begin when non-empty.
	SupportedLocales []string
}

// Begin dials the recognizer, sends the stream config, and starts the receive loop.
func (e *GRPCEngine) Begin(ctx context.Context, opts Options) (Handle, error) {
	endpoint := strings.TrimSpace(e.Endpoint)
	if endpoint == "" {
		return nil, fmt.Errorf("%w: recognizer endpoint is empty", ErrUnavailable)
	}
	locale := strings.TrimSpace(opts.Locale)
	if locale == "" {
		return nil, fmt.Errorf("%w: locale is empty", ErrUnavailable)
	}
	if !e.supportsLocale(locale) {
		return nil, fmt.Errorf("%w: locale %q is not supported", ErrUnavailable, locale)
	}
	if opts.PreferOnDevice && !IsLocalEndpoint(endpoint) {
		return nil, fmt.Errorf("%w: on-device recognition requested but %q is not local", ErrUnavailable, endpoint)
	}

	dialTimeout := e.DialTimeout
	if dialTimeout <= 0 {
		dialTimeout = defaultDialTimeout
	}
	sampleRate := e.SampleRate
	if sampleRate <= 0 {
		sampleRate = 16000
	}

	conn, err := connect(ctx, endpoint, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: wait for recognizer readiness: %w", ErrUnavailable, err)
	}

	configMsg, err := EncodeConfig(StreamConfig{
		Locale:          locale,
		OnDevice:        opts.PreferOnDevice,
		SampleRateHertz: sampleRate,
		InterimResults:  e.InterimResults,
		Phrases:         e.Phrases,
	})
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: %w", ErrNilRecognizer, err)
	}

	// The stream outlives the caller's start context; Cancel ends it.
	streamCtx, cancelStream := context.WithCancel(context.WithoutCancel(ctx))
	stream, err := conn.NewStream(streamCtx, &ServiceDesc.Streams[0], streamingRecognize)
	if err != nil {
		cancelStream()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: open streaming recognizer: %w", ErrNilRecognizer, err)
	}

	if err := runWithTimeout(ctx, dialTimeout, func() error { return stream.SendMsg(configMsg) }); err != nil {
		cancelStream()
		_ = conn.Close()
		return nil, fmt.Errorf("%w: send stream config: %w", ErrNilRecognizer, err)
	}

	h := &grpcHandle{
		conn:      conn,
		stream:    stream,
		cancel:    cancelStream,
		frames:    make(chan []byte, sendBufferFrames),
		updates:   make(chan Update, updateBufferSize),
		done:      make(chan struct{}),
		logger:    e.Logger,
		debugSink: e.DebugSink,
	}
	go h.sendLoop()
	go h.recvLoop()
	return h, nil
}

func (e *GRPCEngine) supportsLocale(locale string) bool {
	if len(e.SupportedLocales) == 0 {
		return true
	}
	for _, supported := range e.SupportedLocales {
		if strings.EqualFold(strings.TrimSpace(supported), locale) {
			return true
		}
	}
	return false
}

func dial(endpoint string) (*grpc.ClientConn, error) {
	conn, err := grpc.NewClient(
		endpoint,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		return nil, fmt.Errorf("dial recognizer grpc %q: %w", endpoint, err)
	}
	return conn, nil
}

// grpcHandle owns one StreamingRecognize call.
type grpcHandle struct {
	conn   *grpc.ClientConn
	stream grpc.ClientStream
	cancel context.CancelFunc

	frames  chan []byte
	updates chan Update
	done    chan struct{}

	logger    *slog.Logger
	debugSink io.Writer

	endOnce sync.Once
	mu      sync.Mutex
	err     error
}

func (h *grpcHandle) Append(frame []byte) error {
	if len(frame) == 0 {
		return nil
	}
	select {
	case <-h.done:
		return ErrClosed
	default:
	}
	select {
	case h.frames <- frame:
		return nil
	case <-h.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

func (h *grpcHandle) Updates() <-chan Update {
	return h.updates
}

func (h *grpcHandle) Err() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.err
}

func (h *grpcHandle) Cancel() {
	h.end(nil)
}

// end records the terminal error and releases the stream exactly once.
func (h *grpcHandle) end(err error) {
	h.endOnce.Do(func() {
		h.mu.Lock()
		h.err = err
		h.mu.Unlock()
		close(h.done)
		h.cancel()
		_ = h.conn.Close()
	})
}

// sendLoop forwards queued frames until the handle ends or a send fails.
func (h *grpcHandle) sendLoop() {
	for {
		select {
		case <-h.done:
			return
		case frame := <-h.frames:
			msg, err := EncodeAudio(frame)
			if err != nil {
				h.end(fmt.Errorf("encode audio frame: %w", err))
				return
			}
			if err := h.stream.SendMsg(msg); err != nil {
				// The receive side reports the server's status for this failure.
				if errors.Is(err, io.EOF) {
					return
				}
				h.end(fmt.Errorf("send audio: %w", err))
				return
			}
		}
	}
}

// recvLoop publishes recognizer results until the stream closes.
func (h *grpcHandle) recvLoop() {
	defer close(h.updates)

	for {
		msg := new(structpb.Struct)
		err := h.stream.RecvMsg(msg)
		if err != nil {
			h.end(classifyRecvErr(err, h.isDone()))
			return
		}

		h.writeDebug(msg)
		update := DecodeUpdate(msg)
		if h.logger != nil {
			h.logger.Debug("recognizer update", "final", update.IsFinal, "chars", len(update.Text))
		}

		select {
		case h.updates <- update:
		case <-h.done:
			return
		}
	}
}

func (h *grpcHandle) isDone() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

func (h *grpcHandle) writeDebug(msg *structpb.Struct) {
	if h.debugSink == nil {
		return
	}
	b, err := protojson.Marshal(msg)
	if err != nil {
		return
	}
	_, _ = h.debugSink.Write(append(b, '\n'))
}

// classifyRecvErr maps the end of a receive loop onto the handle's terminal error.
func classifyRecvErr(err error, cancelled bool) error {
	if errors.Is(err, io.EOF) || cancelled {
		return nil
	}
	if status.Code(err) == codes.Canceled {
		return nil
	}
	return fmt.Errorf("recognizer stream: %w", err)
}
