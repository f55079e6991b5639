// Package audio handles device discovery, selection, and PCM capture streams.
package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/jfreymuth/pulse"
	pulseproto "github.com/jfreymuth/pulse/proto"
)

const (
	DefaultSampleRate   = 16000
	DefaultFrameSamples = 1024
	DefaultMediaRole    = "phone"
	bytesPerSample      = 2
)

// ErrServerUnavailable reports that the Pulse server could not be reached.
var ErrServerUnavailable = errors.New("pulse server unavailable")

// Device describes one Pulse input source.
type Device struct {
	ID          string
	Description string
	State       string
	Available   bool
	Muted       bool
	Default     bool
}

// Selection is the resolved capture source plus optional fallback warning context.
type Selection struct {
	Device   Device
	Warning  string
	Fallback bool
}

// ListDevices returns available Pulse input sources with default/availability metadata.
func ListDevices(_ context.Context) ([]Device, error) {
	client, err := newClient()
	if err != nil {
		return nil, err
	}
	defer client.Close()

	defaultSource, err := client.DefaultSource()
	if err != nil {
		return nil, fmt.Errorf("read default source: %w", err)
	}
	defaultID := defaultSource.ID()

	var sourceInfos pulseproto.GetSourceInfoListReply
	if err := client.RawRequest(&pulseproto.GetSourceInfoList{}, &sourceInfos); err != nil {
		return nil, fmt.Errorf("list sources: %w", err)
	}

	devices := make([]Device, 0, len(sourceInfos))
	for _, source := range sourceInfos {
		if source == nil {
			continue
		}
		devices = append(devices, Device{
			ID:          source.SourceName,
			Description: source.Device,
			State:       sourceStateString(source.State),
			Available:   sourceAvailable(source),
			Muted:       source.Mute,
			Default:     source.SourceName == defaultID,
		})
	}
	return devices, nil
}

// SelectDevice resolves audio.input/audio.fallback preferences against live devices.
func SelectDevice(ctx context.Context, input string, fallback string) (Selection, error) {
	devices, err := ListDevices(ctx)
	if err != nil {
		return Selection{}, err
	}
	return SelectFromList(devices, input, fallback)
}

// FrameFunc receives one fixed-size PCM frame. It runs on the Pulse stream
// goroutine and must not block.
type FrameFunc func(frame []byte)

// CaptureOptions controls stream format and frame geometry.
type CaptureOptions struct {
	SampleRate   int
	FrameSamples int
	MediaName    string
	MediaRole    string
}

func (o CaptureOptions) withDefaults() CaptureOptions {
	if o.SampleRate <= 0 {
		o.SampleRate = DefaultSampleRate
	}
	if o.FrameSamples <= 0 {
		o.FrameSamples = DefaultFrameSamples
	}
	if strings.TrimSpace(o.MediaName) == "" {
		o.MediaName = "lecturenote recording"
	}
	if strings.TrimSpace(o.MediaRole) == "" {
		o.MediaRole = DefaultMediaRole
	}
	return o
}

// recordOptions builds the stream options shared by every capture.
func (o CaptureOptions) recordOptions(frameBytes int) []pulse.RecordOption {
	return []pulse.RecordOption{
		pulse.RecordMono,
		pulse.RecordSampleRate(o.SampleRate),
		pulse.RecordBufferFragmentSize(uint32(frameBytes)),
		pulse.RecordMediaName(o.MediaName),
		pulse.RecordRawOption(withMediaRole(o.MediaRole)),
	}
}

// withMediaRole tags the stream so the server's role policy can duck or cork
// other playback while the stream is open.
func withMediaRole(role string) func(*pulseproto.CreateRecordStream) {
	return func(cmd *pulseproto.CreateRecordStream) {
		if cmd.Properties == nil {
			cmd.Properties = pulseproto.PropList{}
		}
		cmd.Properties["media.role"] = pulseproto.PropListString(role)
	}
}

// FrameBytes returns the byte size of one s16le mono frame.
func (o CaptureOptions) FrameBytes() int {
	return o.withDefaults().FrameSamples * bytesPerSample
}

// Capture delivers fixed-size PCM frames from one selected Pulse source to a callback.
type Capture struct {
	device     Device
	frameBytes int

	client *pulse.Client
	stream *pulse.RecordStream

	onFrame FrameFunc
	stopCh  chan struct{}

	mu      sync.Mutex
	pending []byte
	stopped bool

	inflight sync.WaitGroup
	bytes    atomic.Int64
	frames   atomic.Int64
}

// StartCapture creates and starts a mono s16le record stream that pushes
// frames synchronously into onFrame until Stop or ctx cancellation.
func StartCapture(ctx context.Context, selected Device, opts CaptureOptions, onFrame FrameFunc) (*Capture, error) {
	if onFrame == nil {
		return nil, errors.New("capture requires a frame consumer")
	}
	opts = opts.withDefaults()

	client, err := newClient()
	if err != nil {
		return nil, err
	}

	source, err := client.SourceByID(selected.ID)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("resolve source %q: %w", selected.ID, err)
	}

	capture := &Capture{
		device:     selected,
		frameBytes: opts.FrameBytes(),
		client:     client,
		onFrame:    onFrame,
		stopCh:     make(chan struct{}),
	}

	writer := pulse.NewWriter(writerFunc(capture.onPCM), pulseproto.FormatInt16LE)
	options := append([]pulse.RecordOption{pulse.RecordSource(source)}, opts.recordOptions(capture.frameBytes)...)
	stream, err := client.NewRecord(writer, options...)
	if err != nil {
		capture.Close()
		return nil, fmt.Errorf("create pulse record stream: %w", err)
	}

	capture.stream = stream
	stream.Start()

	go func() {
		select {
		case <-ctx.Done():
			_ = capture.Stop()
		case <-capture.stopCh:
		}
	}()

	return capture, nil
}

// Device returns capture metadata for logging and diagnostics.
func (c *Capture) Device() Device {
	return c.device
}

// BytesCaptured reports total bytes accepted from Pulse.
func (c *Capture) BytesCaptured() int64 {
	return c.bytes.Load()
}

// FramesDelivered reports how many full frames reached the consumer.
func (c *Capture) FramesDelivered() int64 {
	return c.frames.Load()
}

// Stop halts the stream and detaches the consumer exactly once.
//
// A trailing partial frame is dropped. Stop waits for an in-flight consumer
// call to return, so the consumer must never call Stop itself.
func (c *Capture) Stop() error {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return nil
	}
	c.stopped = true
	close(c.stopCh)
	c.mu.Unlock()

	if c.stream != nil {
		c.stream.Stop()
		c.stream.Close()
	}
	if c.client != nil {
		c.client.Close()
	}

	c.inflight.Wait()

	c.mu.Lock()
	c.pending = nil
	c.onFrame = nil
	c.mu.Unlock()
	return nil
}

// Close is a convenience alias for Stop.
func (c *Capture) Close() {
	_ = c.Stop()
}

// onPCM receives raw Pulse data and emits frameBytes slices to the consumer.
func (c *Capture) onPCM(buffer []byte) (int, error) {
	if len(buffer) == 0 {
		return 0, nil
	}

	select {
	case <-c.stopCh:
		return 0, io.EOF
	default:
	}

	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return 0, io.EOF
	}
	// Guard Add under the same mutex as c.stopped to avoid Add/Wait races.
	c.inflight.Add(1)
	onFrame := c.onFrame

	c.pending = append(c.pending, buffer...)

	frames := make([][]byte, 0, len(c.pending)/c.frameBytes)
	for len(c.pending) >= c.frameBytes {
		frame := make([]byte, c.frameBytes)
		copy(frame, c.pending[:c.frameBytes])
		c.pending = c.pending[c.frameBytes:]
		frames = append(frames, frame)
	}
	c.mu.Unlock()
	defer c.inflight.Done()

	c.bytes.Add(int64(len(buffer)))

	for _, frame := range frames {
		select {
		case <-c.stopCh:
			return 0, io.EOF
		default:
		}
		onFrame(frame)
		c.frames.Add(1)
	}

	return len(buffer), nil
}

// Describe formats device metadata for logs and status lines.
func Describe(device Device) string {
	description := strings.TrimSpace(device.Description)
	id := strings.TrimSpace(device.ID)
	if description == "" {
		return id
	}
	if id == "" {
		return description
	}
	return fmt.Sprintf("%s (%s)", description, id)
}

func newClient() (*pulse.Client, error) {
	client, err := pulse.NewClient(
		pulse.ClientApplicationName("lecturenote"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return nil, fmt.Errorf("connect pulse server: %w: %w", ErrServerUnavailable, err)
	}
	return client, nil
}

// writerFunc adapts a function to io.Writer for pulse.NewWriter.
type writerFunc func([]byte) (int, error)

func (f writerFunc) Write(b []byte) (int, error) {
	return f(b)
}

// sourceStateString maps Pulse source state constants to human-readable values.
func sourceStateString(state uint32) string {
	switch state {
	case 0:
		return "running"
	case 1:
		return "idle"
	case 2:
		return "suspended"
	default:
		return fmt.Sprintf("unknown(%d)", state)
	}
}

// sourceAvailable maps Pulse source port availability to a simple boolean.
func sourceAvailable(source *pulseproto.GetSourceInfoReply) bool {
	if source == nil {
		return false
	}
	if len(source.Ports) == 0 {
		return true
	}
	for _, port := range source.Ports {
		if port.Name != source.ActivePortName {
			continue
		}
		// PulseAudio values: unknown=0, no=1, yes=2.
		return port.Available == 0 || port.Available == 2
	}
	return true
}
