// ABOUTME: Looping stream wrapper
// ABOUTME: Reopens a file-backed stream from the start when it reaches EOF
package decode

import (
	"fmt"
	"io"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

// LoopStream restarts its inner stream on EOF
type LoopStream struct {
	open   func() (Stream, error)
	stream Stream

	// produced is set once the current pass has yielded samples
	produced bool
}

// NewLoop opens the first pass immediately so open errors surface to the caller
func NewLoop(open func() (Stream, error)) (*LoopStream, error) {
	stream, err := open()
	if err != nil {
		return nil, err
	}
	return &LoopStream{open: open, stream: stream}, nil
}

func (l *LoopStream) Read(samples []float32) (int, error) {
	total := 0
	for total < len(samples) {
		n, err := l.stream.Read(samples[total:])
		total += n
		if n > 0 {
			l.produced = true
		}

		if err == nil {
			if n == 0 {
				break
			}
			continue
		}
		if err != io.EOF {
			return total, err
		}

		// A pass that produced nothing means the file is empty
		if !l.produced {
			return total, io.EOF
		}

		l.stream.Close()
		next, openErr := l.open()
		if openErr != nil {
			return total, fmt.Errorf("failed to restart stream: %w", openErr)
		}
		l.stream = next
		l.produced = false
	}
	return total, nil
}

func (l *LoopStream) Format() audio.Format {
	return l.stream.Format()
}

func (l *LoopStream) Close() error {
	return l.stream.Close()
}
