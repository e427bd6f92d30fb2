// ABOUTME: Logger construction for the service
// ABOUTME: Writes structured logs to the console, a file, or both
package logging

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/charmbracelet/log"
)

// Config configures the root logger
type Config struct {
	// Level is a level name understood by log.ParseLevel
	Level string

	// File appends logs to this path when set
	File string

	// Console writes logs to Output. The monitor turns this off so log
	// lines do not tear the terminal UI.
	Console bool

	// Output is the console writer, stderr when nil
	Output io.Writer
}

// New builds the root logger. The returned closer releases the log file.
func New(config Config) (*log.Logger, io.Closer, error) {
	if config.Level == "" {
		config.Level = "info"
	}
	level, err := log.ParseLevel(config.Level)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", config.Level, err)
	}

	console := config.Output
	if console == nil {
		console = os.Stderr
	}

	var writers []io.Writer
	if config.Console {
		writers = append(writers, console)
	}

	var closer io.Closer = nopCloser{}
	if config.File != "" {
		f, err := os.OpenFile(config.File, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("error opening log file: %w", err)
		}
		writers = append(writers, f)
		closer = f
	}

	var w io.Writer
	switch len(writers) {
	case 0:
		w = io.Discard
	case 1:
		w = writers[0]
	default:
		w = io.MultiWriter(writers...)
	}

	logger := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Level:           level,
	})
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
