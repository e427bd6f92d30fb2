// ABOUTME: Sine tone generator stream
// ABOUTME: Backs tone: payloads for testing without audio files
package decode

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

const (
	// ToneSampleRate is the rate tone streams are generated at
	ToneSampleRate = 48000

	defaultToneFrequency = 440.0 // A4
)

// ToneStream generates a mono sine wave at half amplitude
type ToneStream struct {
	frequency   float64
	sampleIndex uint64
}

// NewTone parses a tone:<hz> payload
func NewTone(payload string) (*ToneStream, error) {
	freqText := strings.TrimPrefix(payload, "tone:")
	if freqText == "" {
		return &ToneStream{frequency: defaultToneFrequency}, nil
	}

	freq, err := strconv.ParseFloat(freqText, 64)
	if err != nil || freq <= 0 || freq >= ToneSampleRate/2 {
		return nil, fmt.Errorf("%w: invalid tone frequency %q", ErrUnsupported, freqText)
	}
	return &ToneStream{frequency: freq}, nil
}

func (s *ToneStream) Read(samples []float32) (int, error) {
	for i := range samples {
		t := float64(s.sampleIndex+uint64(i)) / ToneSampleRate
		samples[i] = float32(0.5 * math.Sin(2*math.Pi*s.frequency*t))
	}
	s.sampleIndex += uint64(len(samples))
	return len(samples), nil
}

func (s *ToneStream) Format() audio.Format {
	return audio.Format{SampleRate: ToneSampleRate, Channels: 1}
}

func (s *ToneStream) Close() error { return nil }
