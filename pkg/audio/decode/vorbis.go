// ABOUTME: Ogg Vorbis audio decoder
// ABOUTME: Decodes .ogg files and streams to float32 samples
package decode

import (
	"fmt"
	"io"
	"os"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
	"github.com/jfreymuth/oggvorbis"
)

// VorbisStream decodes Ogg Vorbis audio
type VorbisStream struct {
	closer io.Closer
	reader *oggvorbis.Reader
}

// OpenVorbisFile opens a local Ogg Vorbis file
func OpenVorbisFile(path string) (*VorbisStream, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open Ogg file: %w", err)
	}

	s, err := NewVorbis(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// NewVorbis decodes Ogg Vorbis from rc. The stream owns rc.
func NewVorbis(rc io.ReadCloser) (*VorbisStream, error) {
	reader, err := oggvorbis.NewReader(rc)
	if err != nil {
		return nil, fmt.Errorf("failed to decode Ogg Vorbis: %w", err)
	}
	return &VorbisStream{closer: rc, reader: reader}, nil
}

func (s *VorbisStream) Read(samples []float32) (int, error) {
	return s.reader.Read(samples)
}

func (s *VorbisStream) Format() audio.Format {
	return audio.Format{SampleRate: s.reader.SampleRate(), Channels: s.reader.Channels()}
}

func (s *VorbisStream) Close() error {
	return s.closer.Close()
}
