// ABOUTME: MP3 audio decoder
// ABOUTME: Decodes MP3 files and HTTP streams to float32 samples
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/hajimehoshi/go-mp3"
)

// MP3Stream decodes MP3 audio
type MP3Stream struct {
	closer  io.Closer
	decoder *mp3.Decoder
	pcm     s16Reader
}

// OpenMP3File opens a local MP3 file
func OpenMP3File(path string) (*MP3Stream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open MP3 file: %w", err)
	}

	s, err := NewMP3(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// NewMP3 decodes MP3 from rc. The stream owns rc.
func NewMP3(rc io.ReadCloser) (*MP3Stream, error) {
	decoder, err := mp3.NewDecoder(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode MP3: %w", err)
	}

	return &MP3Stream{
		closer:  rc,
		decoder: decoder,
		pcm:     s16Reader{r: decoder},
	}, nil
}

func (s *MP3Stream) Read(samples []float32) (int, error) {
	return s.pcm.read(samples)
}

// Format reports stereo; go-mp3 always outputs two channels
func (s *MP3Stream) Format() audio.Format {
	return audio.Format{SampleRate: s.decoder.SampleRate(), Channels: 2}
}

func (s *MP3Stream) Close() error {
	return s.closer.Close()
}
