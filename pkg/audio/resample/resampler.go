// ABOUTME: Linear resampler over decoded streams
// ABOUTME: Pulls input frames on demand and interpolates output frames
package resample

import (
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio/decode"
)

const chunkFrames = 1024

// Resampler converts a stream to outputRate using linear interpolation
type Resampler struct {
	source     decode.Stream
	outputRate int
	channels   int
	ratio      float64

	// Input frames not yet consumed; position indexes into it in frames
	buf      []float32
	chunk    []float32
	position float64

	err error // terminal source error, returned once buf is drained
}

// New wraps source. When the rates already match the source is returned unchanged.
func New(source decode.Stream, outputRate int) decode.Stream {
	format := source.Format()
	if format.SampleRate == outputRate || format.SampleRate <= 0 || outputRate <= 0 {
		return source
	}

	channels := format.Channels
	if channels < 1 {
		channels = 1
	}

	return &Resampler{
		source:     source,
		outputRate: outputRate,
		channels:   channels,
		ratio:      float64(format.SampleRate) / float64(outputRate),
		chunk:      make([]float32, chunkFrames*channels),
	}
}

func (r *Resampler) Read(output []float32) (int, error) {
	ch := r.channels
	outputFrames := len(output) / ch
	produced := 0

	for produced < outputFrames {
		idx := int(r.position)

		// Interpolation needs the frame after idx as well
		if idx+1 >= len(r.buf)/ch {
			if r.err != nil {
				break
			}
			if !r.fill() {
				break
			}
			continue
		}

		frac := float32(r.position - float64(idx))
		for c := 0; c < ch; c++ {
			a := r.buf[idx*ch+c]
			b := r.buf[(idx+1)*ch+c]
			output[produced*ch+c] = a + (b-a)*frac
		}
		produced++
		r.position += r.ratio
	}

	if produced == 0 && r.err != nil {
		return 0, r.err
	}
	return produced * ch, nil
}

// fill drops consumed frames and appends one chunk from the source.
// It returns false when no progress was made.
func (r *Resampler) fill() bool {
	ch := r.channels
	if drop := int(r.position); drop > 0 {
		if drop*ch > len(r.buf) {
			drop = len(r.buf) / ch
		}
		r.buf = append(r.buf[:0], r.buf[drop*ch:]...)
		r.position -= float64(drop)
	}

	n, err := r.source.Read(r.chunk)
	n -= n % ch
	r.buf = append(r.buf, r.chunk[:n]...)
	if err != nil {
		r.err = err
	}
	return n > 0
}

// Format reports the converted format
func (r *Resampler) Format() audio.Format {
	return audio.Format{SampleRate: r.outputRate, Channels: r.channels}
}

func (r *Resampler) Close() error {
	return r.source.Close()
}

// Mono averages all channels of a stream into one
type Mono struct {
	source   decode.Stream
	channels int
	buf      []float32
}

// ToMono wraps source. Mono sources are returned unchanged.
func ToMono(source decode.Stream) decode.Stream {
	channels := source.Format().Channels
	if channels <= 1 {
		return source
	}
	return &Mono{source: source, channels: channels}
}

func (m *Mono) Read(output []float32) (int, error) {
	need := len(output) * m.channels
	if cap(m.buf) < need {
		m.buf = make([]float32, need)
	}
	buf := m.buf[:need]

	n, err := m.source.Read(buf)
	frames := n / m.channels
	scale := 1 / float32(m.channels)
	for i := 0; i < frames; i++ {
		var sum float32
		for c := 0; c < m.channels; c++ {
			sum += buf[i*m.channels+c]
		}
		output[i] = sum * scale
	}
	return frames, err
}

func (m *Mono) Format() audio.Format {
	return audio.Format{SampleRate: m.source.Format().SampleRate, Channels: 1}
}

func (m *Mono) Close() error {
	return m.source.Close()
}
