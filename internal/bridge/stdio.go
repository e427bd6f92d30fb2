// ABOUTME: JSON lines transport over stdin and stdout
// ABOUTME: For hosts that spawn the service as a child process
package bridge

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// maxLine bounds one request line
const maxLine = 1 << 20

// ServeStdio answers one request per line of r, writing one response per
// line to w, until r ends or ctx is cancelled. On cancellation r is closed
// if it is an io.Closer so a pending read returns.
func ServeStdio(ctx context.Context, d *Dispatcher, r io.Reader, w io.Writer) error {
	lines := make(chan []byte)
	stop := make(chan struct{})
	defer close(stop)

	var readErr error
	go func() {
		defer close(lines)

		scanner := bufio.NewScanner(r)
		scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
		for scanner.Scan() {
			select {
			case lines <- bytes.Clone(scanner.Bytes()):
			case <-stop:
				return
			}
		}
		readErr = scanner.Err()
	}()

	cancelled := func() error {
		if c, ok := r.(io.Closer); ok {
			c.Close()
		}
		return ctx.Err()
	}

	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)

	for {
		if ctx.Err() != nil {
			return cancelled()
		}

		var line []byte
		select {
		case <-ctx.Done():
			return cancelled()
		case l, ok := <-lines:
			if !ok {
				if readErr != nil {
					return fmt.Errorf("failed to read request: %w", readErr)
				}
				return nil
			}
			line = l
		}

		if len(line) == 0 {
			continue
		}

		if err := enc.Encode(handleRequest(ctx, d, line)); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
		if err := bw.Flush(); err != nil {
			return fmt.Errorf("failed to flush response: %w", err)
		}
	}
}
