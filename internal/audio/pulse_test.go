package audio

import (
	"context"
	"errors"
	"io"
	"reflect"
	"sync"
	"testing"

	pulseproto "github.com/jfreymuth/pulse/proto"
	"github.com/stretchr/testify/require"
)

func TestListDevicesFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := ListDevices(context.Background())
	require.Error(t, err)
	require.True(t, errors.Is(err, ErrServerUnavailable))
}

func TestStartCaptureRequiresConsumer(t *testing.T) {
	_, err := StartCapture(context.Background(), Device{ID: "mic"}, CaptureOptions{}, nil)
	require.Error(t, err)
	require.Contains(t, err.Error(), "frame consumer")
}

func TestCaptureOptionsDefaults(t *testing.T) {
	opts := CaptureOptions{}.withDefaults()
	require.Equal(t, 16000, opts.SampleRate)
	require.Equal(t, 1024, opts.FrameSamples)
	require.Equal(t, 2048, CaptureOptions{}.FrameBytes())
	require.Equal(t, 320, CaptureOptions{FrameSamples: 160}.FrameBytes())
	require.Equal(t, "phone", opts.MediaRole)
	require.Equal(t, "music", CaptureOptions{MediaRole: "music"}.withDefaults().MediaRole)
}

func TestWithMediaRoleTagsRecordStream(t *testing.T) {
	var cmd pulseproto.CreateRecordStream
	withMediaRole(DefaultMediaRole)(&cmd)
	require.Equal(t, pulseproto.PropListString("phone"), cmd.Properties["media.role"])

	cmd = pulseproto.CreateRecordStream{Properties: pulseproto.PropList{
		"media.name": pulseproto.PropListString("Linear algebra"),
	}}
	withMediaRole("production")(&cmd)
	require.Equal(t, pulseproto.PropListString("production"), cmd.Properties["media.role"])
	require.Equal(t, pulseproto.PropListString("Linear algebra"), cmd.Properties["media.name"])
}

func TestRecordOptionsIncludeRole(t *testing.T) {
	opts := CaptureOptions{}.withDefaults()
	require.Len(t, opts.recordOptions(opts.FrameBytes()), 5)
}

func TestDescribe(t *testing.T) {
	require.Equal(t, "Elgato (alsa_input.wave3)", Describe(Device{Description: "Elgato", ID: "alsa_input.wave3"}))
	require.Equal(t, "Elgato", Describe(Device{Description: "Elgato"}))
	require.Equal(t, "alsa_input.wave3", Describe(Device{ID: "alsa_input.wave3"}))
}

func TestSelectDeviceFailsWhenPulseUnavailable(t *testing.T) {
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	_, err := SelectDevice(context.Background(), "default", "default")
	require.Error(t, err)
}

func TestSourceStateString(t *testing.T) {
	require.Equal(t, "running", sourceStateString(0))
	require.Equal(t, "idle", sourceStateString(1))
	require.Equal(t, "suspended", sourceStateString(2))
	require.Equal(t, "unknown(99)", sourceStateString(99))
}

func TestSourceAvailable(t *testing.T) {
	require.False(t, sourceAvailable(nil))
	require.True(t, sourceAvailable(&pulseproto.GetSourceInfoReply{})) // no ports => available

	available := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, available, []sourcePort{{name: "mic", available: 2}})
	require.True(t, sourceAvailable(available))

	notAvailable := &pulseproto.GetSourceInfoReply{ActivePortName: "mic"}
	setSourcePorts(t, notAvailable, []sourcePort{{name: "mic", available: 1}})
	require.False(t, sourceAvailable(notAvailable))
}

func TestWriterFuncDelegatesWrite(t *testing.T) {
	called := false
	writer := writerFunc(func(b []byte) (int, error) {
		called = true
		require.Equal(t, []byte{1, 2, 3}, b)
		return len(b), nil
	})

	n, err := writer.Write([]byte{1, 2, 3})
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.True(t, called)
}

type frameRecorder struct {
	mu     sync.Mutex
	frames [][]byte
}

func (r *frameRecorder) add(frame []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frames = append(r.frames, frame)
}

func (r *frameRecorder) snapshot() [][]byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([][]byte(nil), r.frames...)
}

func newTestCapture(frameBytes int, onFrame FrameFunc) *Capture {
	return &Capture{
		frameBytes: frameBytes,
		onFrame:    onFrame,
		stopCh:     make(chan struct{}),
	}
}

func TestCaptureOnPCMDeliversFixedSizeFrames(t *testing.T) {
	recorder := &frameRecorder{}
	capture := newTestCapture(8, recorder.add)

	input := make([]byte, 8*2+3)
	for i := range input {
		input[i] = byte(i)
	}

	n, err := capture.onPCM(input)
	require.NoError(t, err)
	require.Equal(t, len(input), n)
	require.Equal(t, int64(len(input)), capture.BytesCaptured())
	require.Equal(t, int64(2), capture.FramesDelivered())

	frames := recorder.snapshot()
	require.Len(t, frames, 2)
	require.Equal(t, input[0:8], frames[0])
	require.Equal(t, input[8:16], frames[1])

	// Residual bytes join the next buffer.
	n, err = capture.onPCM(make([]byte, 5))
	require.NoError(t, err)
	require.Equal(t, 5, n)
	frames = recorder.snapshot()
	require.Len(t, frames, 3)
	require.Equal(t, append(append([]byte(nil), input[16:]...), 0, 0, 0, 0, 0), frames[2])
}

func TestCaptureStopDropsPartialFrameAndDetachesConsumer(t *testing.T) {
	recorder := &frameRecorder{}
	capture := newTestCapture(8, recorder.add)

	_, err := capture.onPCM(make([]byte, 5))
	require.NoError(t, err)

	require.NoError(t, capture.Stop())
	require.NoError(t, capture.Stop())
	require.Empty(t, recorder.snapshot())

	n, err := capture.onPCM(make([]byte, 16))
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Empty(t, recorder.snapshot())
}

func TestCaptureOnPCMReturnsEOFWhenStopped(t *testing.T) {
	capture := newTestCapture(8, func([]byte) {})
	close(capture.stopCh)

	n, err := capture.onPCM([]byte{1, 2, 3})
	require.Equal(t, 0, n)
	require.ErrorIs(t, err, io.EOF)
	require.Equal(t, int64(0), capture.BytesCaptured())
}

func TestCaptureDeviceAndCloseAlias(t *testing.T) {
	capture := newTestCapture(8, func([]byte) {})
	capture.device = Device{ID: "mic-1", Description: "Mic"}
	require.Equal(t, "mic-1", capture.Device().ID)

	capture.Close()
	_, err := capture.onPCM(make([]byte, 8))
	require.ErrorIs(t, err, io.EOF)
}

type sourcePort struct {
	name      string
	available uint32
}

func setSourcePorts(t *testing.T, reply *pulseproto.GetSourceInfoReply, ports []sourcePort) {
	t.Helper()

	sliceType := reflect.TypeOf(reply.Ports)
	sliceValue := reflect.MakeSlice(sliceType, len(ports), len(ports))

	for i, port := range ports {
		item := sliceValue.Index(i)
		item.FieldByName("Name").SetString(port.name)
		item.FieldByName("Available").SetUint(uint64(port.available))
	}

	replyValue := reflect.ValueOf(reply).Elem().FieldByName("Ports")
	replyValue.Set(sliceValue)
}
