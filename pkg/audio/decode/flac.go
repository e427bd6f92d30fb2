// ABOUTME: FLAC audio decoder
// ABOUTME: Decodes FLAC frames to interleaved float32 samples
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/mewkiz/flac"
)

// FLACStream decodes FLAC audio frame by frame
type FLACStream struct {
	closer   io.Closer
	stream   *flac.Stream
	format   audio.Format
	bitDepth int

	// Samples decoded from the last frame but not yet read
	pending []float32
}

// OpenFLACFile opens a local FLAC file
func OpenFLACFile(path string) (*FLACStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open FLAC file: %w", err)
	}

	s, err := NewFLAC(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// NewFLAC decodes FLAC from rc. The stream owns rc.
func NewFLAC(rc io.ReadCloser) (*FLACStream, error) {
	stream, err := flac.New(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info := stream.Info
	return &FLACStream{
		closer: rc,
		stream: stream,
		format: audio.Format{
			SampleRate: int(info.SampleRate),
			Channels:   int(info.NChannels),
		},
		bitDepth: int(info.BitsPerSample),
	}, nil
}

func (s *FLACStream) Read(samples []float32) (int, error) {
	for len(s.pending) < len(samples) {
		frame, err := s.stream.ParseNext()
		if err != nil {
			n := copy(samples, s.pending)
			s.pending = s.pending[n:]
			if err == io.EOF {
				return n, io.EOF
			}
			return n, fmt.Errorf("flac decode error: %w", err)
		}

		channels := s.format.Channels
		for i := 0; i < int(frame.BlockSize); i++ {
			for ch := 0; ch < channels; ch++ {
				s.pending = append(s.pending, audio.SampleFromInt(frame.Subframes[ch].Samples[i], s.bitDepth))
			}
		}
	}

	n := copy(samples, s.pending)
	s.pending = s.pending[n:]
	return n, nil
}

func (s *FLACStream) Format() audio.Format { return s.format }

func (s *FLACStream) Close() error {
	return s.closer.Close()
}
