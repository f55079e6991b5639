package speech

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/anypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	serviceName        = "lecturenote.speech.v1.Recognizer"
	streamingRecognize = "/" + serviceName + "/StreamingRecognize"
)

// StreamConfig is the first message of every recognition stream.
type StreamConfig struct {
	Locale          string
	OnDevice        bool
	SampleRateHertz int
	InterimResults  bool
	Phrases         []Phrase
}

// Request is one decoded client message: either Config or Audio is set.
type Request struct {
	Config *StreamConfig
	Audio  []byte
}

// RecognizeStream is the server view of one StreamingRecognize call.
type RecognizeStream interface {
	Context() context.Context
	Recv() (Request, error)
	Send(Update) error
}

// RecognizerServer is implemented by local recognizer daemons.
type RecognizerServer interface {
	StreamingRecognize(RecognizeStream) error
}

// ServiceDesc describes the Recognizer service for grpc.Server registration.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*RecognizerServer)(nil),
	Streams: []grpc.StreamDesc{{
		StreamName:    "StreamingRecognize",
		Handler:       streamingRecognizeHandler,
		ServerStreams: true,
		ClientStreams: true,
	}},
	Metadata: "lecturenote/speech/v1/recognizer.proto",
}

// RegisterRecognizerServer attaches srv to a grpc service registrar.
func RegisterRecognizerServer(registrar grpc.ServiceRegistrar, srv RecognizerServer) {
	registrar.RegisterService(&ServiceDesc, srv)
}

func streamingRecognizeHandler(srv any, stream grpc.ServerStream) error {
	return srv.(RecognizerServer).StreamingRecognize(&recognizeServerStream{ServerStream: stream})
}

type recognizeServerStream struct {
	grpc.ServerStream
}

func (s *recognizeServerStream) Recv() (Request, error) {
	msg := new(anypb.Any)
	if err := s.ServerStream.RecvMsg(msg); err != nil {
		return Request{}, err
	}
	return DecodeRequest(msg)
}

func (s *recognizeServerStream) Send(update Update) error {
	return s.ServerStream.SendMsg(EncodeUpdate(update))
}

// EncodeConfig wraps cfg as the stream's leading Any(Struct) message.
func EncodeConfig(cfg StreamConfig) (*anypb.Any, error) {
	phrases := make([]any, 0, len(cfg.Phrases))
	for _, phrase := range cfg.Phrases {
		phrases = append(phrases, map[string]any{
			"phrase": phrase.Phrase,
			"boost":  float64(phrase.Boost),
		})
	}

	fields, err := structpb.NewStruct(map[string]any{
		"locale":            cfg.Locale,
		"on_device":         cfg.OnDevice,
		"sample_rate_hertz": cfg.SampleRateHertz,
		"interim_results":   cfg.InterimResults,
		"phrases":           phrases,
	})
	if err != nil {
		return nil, fmt.Errorf("build stream config: %w", err)
	}
	return anypb.New(fields)
}

// EncodeAudio wraps one PCM frame as Any(BytesValue).
func EncodeAudio(frame []byte) (*anypb.Any, error) {
	return anypb.New(wrapperspb.Bytes(frame))
}

// DecodeRequest unpacks one client message.
func DecodeRequest(msg *anypb.Any) (Request, error) {
	if msg == nil {
		return Request{}, errors.New("empty recognizer request")
	}
	inner, err := msg.UnmarshalNew()
	if err != nil {
		return Request{}, fmt.Errorf("decode recognizer request: %w", err)
	}

	switch m := inner.(type) {
	case *wrapperspb.BytesValue:
		return Request{Audio: m.GetValue()}, nil
	case *structpb.Struct:
		fields := m.GetFields()
		cfg := &StreamConfig{
			Locale:          fields["locale"].GetStringValue(),
			OnDevice:        fields["on_device"].GetBoolValue(),
			SampleRateHertz: int(fields["sample_rate_hertz"].GetNumberValue()),
			InterimResults:  fields["interim_results"].GetBoolValue(),
		}
		for _, item := range fields["phrases"].GetListValue().GetValues() {
			phrase := item.GetStructValue().GetFields()
			cfg.Phrases = append(cfg.Phrases, Phrase{
				Phrase: phrase["phrase"].GetStringValue(),
				Boost:  float32(phrase["boost"].GetNumberValue()),
			})
		}
		return Request{Config: cfg}, nil
	default:
		return Request{}, fmt.Errorf("unexpected recognizer request type %s", msg.GetTypeUrl())
	}
}

// EncodeUpdate builds the server's result message.
func EncodeUpdate(update Update) *structpb.Struct {
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		"transcript": structpb.NewStringValue(update.Text),
		"is_final":   structpb.NewBoolValue(update.IsFinal),
	}}
}

// DecodeUpdate reads a server result message.
func DecodeUpdate(msg *structpb.Struct) Update {
	fields := msg.GetFields()
	return Update{
		Text:    fields["transcript"].GetStringValue(),
		IsFinal: fields["is_final"].GetBoolValue(),
	}
}
