// Package websocket is the connection gateway.
//
// The websocket package implements:
//   - Connection upgrade and a random player id per connection
//   - A codec per connection, JSON text frames or msgpack binary frames
//   - Non-blocking delivery to each connection's outbound buffer
//   - Forced disconnects that flush queued frames first
//   - Disconnect notification to the listener
//
// Architecture:
//
// The Hub indexes connections by player id. Each connection has a read
// goroutine, which decodes frames and hands them to the Listener, and a
// write goroutine, which drains the outbound buffer and keeps the
// connection alive with pings.
//
// Message Protocol:
//
// Every frame is an envelope {"type": ..., "data": ...}. Clients choose the
// encoding when connecting:
//
//	ws://host/ws               JSON text frames
//	ws://host/ws?codec=msgpack msgpack binary frames
//
// Usage:
//
//	hub := websocket.NewHub(logger)
//	registry := session.NewRegistry(hub, opts)
//	hub.Attach(registry)
//
//	router.HandleFunc("/ws", hub.ServeWS)
//
// Concurrency:
//
// Send and Close may be called from any goroutine. A connection whose
// buffer is full is dropped rather than allowed to block the room that is
// broadcasting to it.
package websocket
