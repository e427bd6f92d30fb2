// ABOUTME: WebSocket client for the bridge protocol
// ABOUTME: Matches responses to concurrent calls by sequence number
package protocol

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned for calls on a closed client
var ErrClosed = errors.New("bridge connection closed")

// CallError is a failure reported by the service
type CallError struct {
	Fn      string
	Message string
}

func (e *CallError) Error() string {
	return fmt.Sprintf("%s: %s", e.Fn, e.Message)
}

// Client is a bridge connection
type Client struct {
	conn  *websocket.Conn
	hello Hello

	writeMu sync.Mutex

	mu      sync.Mutex
	seq     uint64
	pending map[uint64]chan Response
	err     error

	done chan struct{}
}

// Dial connects to the bridge at addr and waits for the service hello
func Dial(ctx context.Context, addr string) (*Client, error) {
	u := url.URL{Scheme: "ws", Host: addr, Path: Path}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("dial failed: %w", err)
	}

	c := &Client{
		conn:    conn,
		pending: make(map[uint64]chan Response),
		done:    make(chan struct{}),
	}

	if err := c.handshake(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("handshake failed: %w", err)
	}

	go c.readMessages()
	return c, nil
}

// handshake reads the hello (with timeout)
func (c *Client) handshake() error {
	c.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	defer c.conn.SetReadDeadline(time.Time{})

	if err := c.conn.ReadJSON(&c.hello); err != nil {
		return fmt.Errorf("failed to read hello: %w", err)
	}
	if c.hello.Type != TypeHello {
		return fmt.Errorf("expected %s, got %q", TypeHello, c.hello.Type)
	}
	return nil
}

// Hello returns the hello the service sent
func (c *Client) Hello() Hello {
	return c.hello
}

// Call invokes fn with args and returns its result
func (c *Client) Call(ctx context.Context, fn string, args ...string) (string, error) {
	ch := make(chan Response, 1)

	c.mu.Lock()
	if c.err != nil {
		c.mu.Unlock()
		return "", c.err
	}
	c.seq++
	seq := c.seq
	c.pending[seq] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, seq)
		c.mu.Unlock()
	}()

	c.writeMu.Lock()
	err := c.conn.WriteJSON(Request{Seq: seq, Fn: fn, Args: args})
	c.writeMu.Unlock()
	if err != nil {
		select {
		case <-c.done:
			return "", c.closeErr()
		default:
			return "", fmt.Errorf("failed to send %s: %w", fn, err)
		}
	}

	select {
	case resp := <-ch:
		if resp.Error != "" {
			return resp.Result, &CallError{Fn: fn, Message: resp.Error}
		}
		return resp.Result, nil
	case <-c.done:
		return "", c.closeErr()
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// readMessages routes responses to their callers
func (c *Client) readMessages() {
	defer close(c.done)

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.fail(fmt.Errorf("%w: %w", ErrClosed, err))
			return
		}

		var resp Response
		if err := json.Unmarshal(data, &resp); err != nil || resp.Type != TypeResponse {
			continue
		}

		c.mu.Lock()
		ch, ok := c.pending[resp.Seq]
		c.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

func (c *Client) fail(err error) {
	c.mu.Lock()
	if c.err == nil {
		c.err = err
	}
	c.mu.Unlock()
}

func (c *Client) closeErr() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err == nil {
		return ErrClosed
	}
	return c.err
}

// Done is closed once the connection has ended
func (c *Client) Done() <-chan struct{} {
	return c.done
}

// Close sends a close frame and waits for the reader to exit
func (c *Client) Close() error {
	c.fail(ErrClosed)

	c.writeMu.Lock()
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	c.writeMu.Unlock()

	err := c.conn.Close()
	<-c.done
	return err
}
