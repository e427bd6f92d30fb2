// ABOUTME: Host bridge exposing the service as string-typed calls
// ABOUTME: Serves the calls over WebSocket and JSON lines on stdio
// Package bridge maps host calls onto the spatial service.
//
// Every function takes and returns strings, the shape a game extension
// call has. The same Dispatcher backs both transports.
package bridge
