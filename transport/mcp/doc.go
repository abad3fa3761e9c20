// Package mcp exposes admin tools for a running room server over the
// Model Context Protocol.
//
// Tools:
//   - list_rooms: every open room with status, game and player count
//   - get_room: roster, selected game and config of one room
//   - server_stats: room, player and connection counts plus host load
//   - broadcast_notice: system message to every player in a room
//
// Room state is read through session.Session.Inspect, which runs on the
// room's own loop, so tools never race with gameplay.
//
// Usage:
//
//	srv := mcp.NewServer(registry, hub)
//	router.Handle("/mcp", srv.Handler())
//
//	// or over stdio
//	server.ServeStdio(srv.GetMCPServer())
package mcp
