// ABOUTME: Bridge wire protocol package
// ABOUTME: Defines call messages and a WebSocket client for the bridge
// Package protocol implements the host bridge wire protocol.
//
// Hosts send Request messages naming a function and its string arguments.
// The service answers each with a Response carrying the same sequence
// number. The first message on every connection is a Hello from the
// service.
//
// Example:
//
//	client, err := protocol.Dial(ctx, "127.0.0.1:8930")
//	id, err := client.Call(ctx, "id")
//	_, err = client.Call(ctx, "create", "tone:440", id)
package protocol
