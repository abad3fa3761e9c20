// Package session provides rooms and the registry that tracks them.
//
// The session package implements:
//   - Session, one room with its roster, host, colours and active game
//   - Config negotiation with field-by-field sanitization
//   - Privileged actions (start, replay, return to lobby, settings) that
//     only the host may perform
//   - Registry, mapping room ids to sessions and connections to rooms
//
// Host:
//
// The host is whoever joined first among the players still present. When
// the host leaves, the next earliest joiner takes over. Requests for a
// privileged action from anyone else are answered with a system message
// and change nothing.
//
// Concurrency:
//
// Each room owns an executor, normally a clock.Loop goroutine. Joins,
// leaves, packets and game timers are all posted to it and run one at a
// time, so a room's state is never locked. The Registry's own maps are
// guarded by a mutex because connections call it from many goroutines.
//
// Lifecycle:
//
// The Registry is built once at startup and passed to the gateway and the
// admin surfaces. A room is created by the first join_room naming it and
// closed when its last connection disconnects. Room ids are
// case-insensitive; joining without one creates a room with a random
// 4-character id.
//
// Usage:
//
//	registry := session.NewRegistry(hub, session.Options{
//		Capacity: 8,
//		Defaults: configs.Defaults(),
//		Logger:   logger,
//	})
//
//	registry.Dispatch(playerID, pkt)
//	registry.Leave(playerID)
package session
