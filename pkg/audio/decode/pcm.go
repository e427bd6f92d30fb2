// ABOUTME: Raw PCM helpers shared by byte-oriented decoders
// ABOUTME: Converts little-endian 16-bit PCM bytes to float32 samples
package decode

import (
	"encoding/binary"
	"io"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

// s16Reader adapts a reader of signed 16-bit little-endian PCM
type s16Reader struct {
	r   io.Reader
	buf []byte
}

// read fills samples from the byte reader. A short final read is
// reported together with io.EOF.
func (s *s16Reader) read(samples []float32) (int, error) {
	need := len(samples) * 2
	if cap(s.buf) < need {
		s.buf = make([]byte, need)
	}
	buf := s.buf[:need]

	n, err := io.ReadFull(s.r, buf)
	if err == io.ErrUnexpectedEOF {
		err = io.EOF
	}

	count := n / 2
	for i := 0; i < count; i++ {
		samples[i] = audio.SampleFromInt16(int16(binary.LittleEndian.Uint16(buf[i*2:])))
	}
	return count, err
}
