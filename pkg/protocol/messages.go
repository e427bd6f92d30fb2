// ABOUTME: Bridge protocol message type definitions
// ABOUTME: Requests, responses and the connection hello
package protocol

// Path is the HTTP path the bridge WebSocket is served on
const Path = "/bridge"

// Message types carried in Envelope.Type
const (
	TypeHello    = "hello"
	TypeResponse = "response"
)

// Request calls one boundary function
type Request struct {
	Seq  uint64   `json:"seq"`
	Fn   string   `json:"fn"`
	Args []string `json:"args,omitempty"`
}

// Response answers the Request with the same Seq. Error is empty on success.
type Response struct {
	Type   string `json:"type"`
	Seq    uint64 `json:"seq"`
	Result string `json:"result"`
	Error  string `json:"error,omitempty"`
}

// Hello is sent by the service when a connection opens
type Hello struct {
	Type      string   `json:"type"`
	Session   string   `json:"session"`
	Product   string   `json:"product"`
	Version   string   `json:"version"`
	Functions []string `json:"functions"`
}

// Envelope reads just the type of an incoming message
type Envelope struct {
	Type string `json:"type"`
}
