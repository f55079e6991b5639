package cue

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/jfreymuth/pulse"
)

const sampleRate = 16000

type tonePart struct {
	frequencyHz float64
	duration    time.Duration
	volume      float64
}

var (
	startPCM = synthesize([]tonePart{
		{frequencyHz: 880, duration: 70 * time.Millisecond, volume: 0.18},
		{frequencyHz: 1175, duration: 70 * time.Millisecond, volume: 0.18},
	})
	pausePCM = synthesize([]tonePart{
		{frequencyHz: 620, duration: 120 * time.Millisecond, volume: 0.18},
	})
	finishPCM = synthesize([]tonePart{
		{frequencyHz: 740, duration: 65 * time.Millisecond, volume: 0.18},
		{frequencyHz: 988, duration: 90 * time.Millisecond, volume: 0.18},
	})
	failPCM = synthesize([]tonePart{
		{frequencyHz: 480, duration: 75 * time.Millisecond, volume: 0.18},
		{frequencyHz: 360, duration: 90 * time.Millisecond, volume: 0.18},
	})
)

func samplesFor(kind Kind) []int16 {
	switch kind {
	case KindStart:
		return startPCM
	case KindPause:
		return pausePCM
	case KindFinish:
		return finishPCM
	case KindFail:
		return failPCM
	default:
		return nil
	}
}

// playPulse writes samples to a short-lived mono playback stream.
func playPulse(ctx context.Context, kind Kind) error {
	samples := samplesFor(kind)
	if len(samples) == 0 {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	client, err := pulse.NewClient(
		pulse.ClientApplicationName("lecturenote"),
		pulse.ClientApplicationIconName("audio-input-microphone"),
	)
	if err != nil {
		return fmt.Errorf("connect pulse server: %w", err)
	}
	defer client.Close()

	cursor := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if cursor >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[cursor:])
		cursor += n
		if cursor >= len(samples) {
			return n, pulse.EndOfData
		}
		return n, nil
	})

	stream, err := client.NewPlayback(
		reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.02),
		pulse.PlaybackMediaName("lecturenote "+kind.String()+" cue"),
	)
	if err != nil {
		return fmt.Errorf("create pulse playback stream: %w", err)
	}
	defer stream.Close()

	stream.Start()
	stream.Drain()
	if err := stream.Error(); err != nil {
		return fmt.Errorf("play %s cue: %w", kind, err)
	}
	return nil
}

func synthesize(parts []tonePart) []int16 {
	if len(parts) == 0 {
		return nil
	}
	gap := samplesForDuration(22 * time.Millisecond)

	pcm := make([]int16, 0)
	for i, part := range parts {
		pcm = append(pcm, synthesizeTone(part)...)
		if i < len(parts)-1 && gap > 0 {
			pcm = append(pcm, make([]int16, gap)...)
		}
	}
	return pcm
}

func synthesizeTone(part tonePart) []int16 {
	n := samplesForDuration(part.duration)
	if n <= 0 || part.frequencyHz <= 0 || part.volume <= 0 {
		return nil
	}

	// 5ms ramps at most, so short tones do not click.
	ramp := min(n/10, sampleRate/200)
	ramp = max(ramp, 1)

	pcm := make([]int16, n)
	for i := range n {
		envelope := 1.0
		if i < ramp {
			envelope = float64(i) / float64(ramp)
		}
		if tail := n - i - 1; tail < ramp {
			envelope = math.Min(envelope, float64(tail)/float64(ramp))
		}
		t := float64(i) / sampleRate
		sample := math.Sin(2 * math.Pi * part.frequencyHz * t)
		pcm[i] = int16(math.Round(sample * part.volume * envelope * 32767))
	}
	return pcm
}

func samplesForDuration(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Round(d.Seconds() * sampleRate))
}
