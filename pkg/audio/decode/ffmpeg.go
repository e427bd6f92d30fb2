// ABOUTME: ffmpeg-backed decoder for any format or protocol
// ABOUTME: Runs ffmpeg as a subprocess producing 16-bit PCM on stdout
package decode

import (
	"bufio"
	"fmt"
	"io"
	"os/exec"
	"strconv"

	"github.com/Resonate-Protocol/resonate-spatial/pkg/audio"
)

const (
	ffmpegSampleRate = 48000
	ffmpegChannels   = 2
)

// FFmpegStream decodes through an ffmpeg subprocess.
// Supports HLS (.m3u8), DASH, and any container ffmpeg understands.
type FFmpegStream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	pcm    s16Reader
}

// NewFFmpeg starts ffmpeg on input (a path or URL)
func NewFFmpeg(binary, input string) (*FFmpegStream, error) {
	if _, err := exec.LookPath(binary); err != nil {
		return nil, fmt.Errorf("%w: ffmpeg not found in PATH: %v", ErrUnsupported, err)
	}

	cmd := exec.Command(binary,
		"-loglevel", "error",
		"-i", input,
		"-f", "s16le",
		"-ar", strconv.Itoa(ffmpegSampleRate),
		"-ac", strconv.Itoa(ffmpegChannels),
		"-")

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to get ffmpeg stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start ffmpeg: %w", err)
	}

	return &FFmpegStream{
		cmd:    cmd,
		stdout: stdout,
		pcm:    s16Reader{r: bufio.NewReader(stdout)},
	}, nil
}

func (s *FFmpegStream) Read(samples []float32) (int, error) {
	return s.pcm.read(samples)
}

func (s *FFmpegStream) Format() audio.Format {
	return audio.Format{SampleRate: ffmpegSampleRate, Channels: ffmpegChannels}
}

func (s *FFmpegStream) Close() error {
	s.stdout.Close()
	if s.cmd.Process != nil {
		s.cmd.Process.Kill()
		s.cmd.Wait()
	}
	return nil
}
