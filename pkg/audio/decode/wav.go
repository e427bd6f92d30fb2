// ABOUTME: WAV audio decoder
// ABOUTME: Decodes 16, 24 and 32-bit PCM WAV files to float32 samples
package decode

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WAVStream decodes PCM WAV files
type WAVStream struct {
	file     *os.File
	decoder  *wav.Decoder
	format   audio.Format
	bitDepth int
	buf      *goaudio.IntBuffer
}

// OpenWAVFile opens a local WAV file
func OpenWAVFile(path string) (*WAVStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open WAV file: %w", err)
	}

	decoder := wav.NewDecoder(f)
	decoder.ReadInfo()
	if !decoder.IsValidFile() {
		f.Close()
		return nil, errors.New("invalid WAV file format")
	}

	if decoder.BitDepth != 16 && decoder.BitDepth != 24 && decoder.BitDepth != 32 {
		f.Close()
		return nil, fmt.Errorf("unsupported WAV bit depth: %d", decoder.BitDepth)
	}

	return &WAVStream{
		file:    f,
		decoder: decoder,
		format: audio.Format{
			SampleRate: int(decoder.SampleRate),
			Channels:   int(decoder.NumChans),
		},
		bitDepth: int(decoder.BitDepth),
		buf:      &goaudio.IntBuffer{Format: decoder.Format()},
	}, nil
}

func (s *WAVStream) Read(samples []float32) (int, error) {
	if cap(s.buf.Data) < len(samples) {
		s.buf.Data = make([]int, len(samples))
	}
	s.buf.Data = s.buf.Data[:len(samples)]

	n, err := s.decoder.PCMBuffer(s.buf)
	if err != nil && err != io.EOF {
		return 0, fmt.Errorf("wav decode error: %w", err)
	}
	for i := 0; i < n; i++ {
		samples[i] = audio.SampleFromInt(int32(s.buf.Data[i]), s.bitDepth)
	}

	if n == 0 || err == io.EOF {
		return n, io.EOF
	}
	return n, nil
}

func (s *WAVStream) Format() audio.Format { return s.format }

func (s *WAVStream) Close() error {
	return s.file.Close()
}
