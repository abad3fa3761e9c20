// Package api provides the HTTP surface of the room server.
//
// Endpoints:
//
// Health and load:
//   - GET /api/health - Liveness probe
//   - GET /api/stats - Room, player and connection counts plus host load
//
// Rooms:
//   - GET /api/rooms - List open rooms (?status=waiting|playing|ended, ?limit=N)
//   - GET /api/rooms/{id} - Roster, status and configs of one room
//   - POST /api/rooms/{id}/notice - Send {"message": "..."} to every player
//
// Game defaults:
//   - GET /api/games - Default settings of every game type
//   - GET /api/games/{type} - Default settings of one game type
//   - PUT /api/games/{type} - Store new defaults; invalid fields keep
//     their current value. Rooms created afterwards use them.
//
// Gameplay:
//   - GET /ws - WebSocket upgrade (?codec=json|msgpack)
//
// Errors are returned as JSON with an appropriate HTTP status code:
//
//	{
//	  "error": "error message"
//	}
package api
