// ABOUTME: High-level API for positional sound sources
// ABOUTME: Ties the engine, source registry and liveness supervisor together
// Package spatial is the entry point for hosts that place sounds in 3D space.
//
// A Service owns one audio engine, one source registry and one liveness
// supervisor. Hosts create sources under ids of their choosing, move them
// around, and send heartbeats. If heartbeats stop after Start, every source
// is destroyed.
//
// Example:
//
//	svc, err := spatial.New(spatial.Config{})
//	defer svc.Close()
//	svc.Start()
//	id := svc.ID()
//	_, err = svc.Create(ctx, "sounds/engine.ogg", id)
//	svc.Pos(id, 10, 0, 5)
//	svc.Heartbeat()
package spatial
