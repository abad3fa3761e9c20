package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/wricardo/partyroom/game/session"
	"github.com/wricardo/partyroom/monitor"
)

// Name and Version identify the tool server to MCP clients.
const (
	Name    = "Partyroom Admin"
	Version = "1.0.0"
)

// inspectTimeout bounds how long a tool waits on a busy room loop.
const inspectTimeout = 2 * time.Second

// Server exposes read-mostly admin tools over a session registry.
type Server struct {
	registry  *session.Registry
	conns     monitor.ConnCounter
	started   time.Time
	mcpServer *server.MCPServer
}

// NewServer creates the tool server. conns may be nil.
func NewServer(registry *session.Registry, conns monitor.ConnCounter) *Server {
	s := &Server{
		registry: registry,
		conns:    conns,
		started:  time.Now(),
	}
	s.initMCPServer()
	return s
}

func (s *Server) initMCPServer() {
	s.mcpServer = server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithInstructions(`Partyroom Admin - MCP Interface

Inspect the rooms of a running mini-game server and talk to their players.

AVAILABLE TOOLS:
- list_rooms: Every open room with status, game and player count
- get_room: Roster, selected game and per-game configs of one room
- server_stats: Rooms, players, connections and host load
- broadcast_notice: Send a system message to everyone in a room`),
	)

	s.registerTools()
}

func (s *Server) registerTools() {
	s.mcpServer.AddTool(mcp.Tool{
		Name:        "list_rooms",
		Description: "List every open room",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleListRooms)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "get_room",
		Description: "Get the roster and configuration of one room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID to inspect",
				},
			},
			Required: []string{"room_id"},
		},
	}, s.handleGetRoom)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "server_stats",
		Description: "Report room, player and connection counts with host memory and CPU usage",
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: map[string]interface{}{},
		},
	}, s.handleServerStats)

	s.mcpServer.AddTool(mcp.Tool{
		Name:        "broadcast_notice",
		Description: "Send a system message to every player in a room",
		InputSchema: mcp.ToolInputSchema{
			Type: "object",
			Properties: map[string]interface{}{
				"room_id": map[string]interface{}{
					"type":        "string",
					"description": "Room ID to notify",
				},
				"message": map[string]interface{}{
					"type":        "string",
					"description": "Text shown to the players",
				},
			},
			Required: []string{"room_id", "message"},
		},
	}, s.handleBroadcastNotice)
}

// GetMCPServer returns the underlying MCP server, e.g. for stdio serving.
func (s *Server) GetMCPServer() *server.MCPServer {
	return s.mcpServer
}

// Handler serves single JSON-RPC messages over HTTP POST.
func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := s.mcpServer.HandleMessage(r.Context(), body)

		w.Header().Set("Content-Type", "application/json")
		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Write(responseData)
	})
}

// Tool handlers

func (s *Server) handleListRooms(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	rooms := s.registry.List()
	if len(rooms) == 0 {
		return mcp.NewToolResultText("No open rooms"), nil
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Open rooms (%d):\n", len(rooms)))
	for _, room := range rooms {
		snap, err := s.inspect(ctx, room)
		if err != nil {
			sb.WriteString(fmt.Sprintf("- %s: unavailable (%v)\n", room.RoomID(), err))
			continue
		}
		sb.WriteString(fmt.Sprintf("- %s: %s, %s, %d/%d players\n",
			snap.ID, snap.Status, snap.GameType, len(snap.Players), snap.Capacity))
	}
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleGetRoom(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	if roomID == "" {
		return mcp.NewToolResultError("room_id is required"), nil
	}

	room, err := s.registry.Get(roomID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	snap, err := s.inspect(ctx, room)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(formatSnapshot(snap)), nil
}

func (s *Server) handleServerStats(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	stats := monitor.Collect(ctx, s.registry, s.conns, s.started)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Rooms: %d\n", stats.Rooms))
	sb.WriteString(fmt.Sprintf("Players: %d\n", stats.Players))
	sb.WriteString(fmt.Sprintf("Connections: %d\n", stats.Connections))
	sb.WriteString(fmt.Sprintf("Goroutines: %d\n", stats.Goroutines))
	sb.WriteString(fmt.Sprintf("Heap: %d bytes\n", stats.HeapBytes))
	sb.WriteString(fmt.Sprintf("Memory used: %.1f%%\n", stats.MemoryPercent))
	sb.WriteString(fmt.Sprintf("CPU: %.1f%%\n", stats.CPUPercent))
	sb.WriteString(fmt.Sprintf("Uptime: %s\n", stats.Uptime))
	return mcp.NewToolResultText(sb.String()), nil
}

func (s *Server) handleBroadcastNotice(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	args, _ := request.Params.Arguments.(map[string]interface{})
	roomID, _ := args["room_id"].(string)
	message, _ := args["message"].(string)
	message = strings.TrimSpace(message)
	if roomID == "" || message == "" {
		return mcp.NewToolResultError("room_id and message are required"), nil
	}

	if err := s.registry.Notice(roomID, message); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Notice sent to room %s", roomID)), nil
}

func (s *Server) inspect(ctx context.Context, room *session.Session) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()
	return room.Inspect(ctx)
}

func formatSnapshot(snap session.Snapshot) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Room: %s\n", snap.ID))
	sb.WriteString(fmt.Sprintf("Status: %s\n", snap.Status))
	sb.WriteString(fmt.Sprintf("Game: %s\n", snap.GameType))
	sb.WriteString(fmt.Sprintf("Players: %d/%d\n", len(snap.Players), snap.Capacity))
	for _, p := range snap.Players {
		host := ""
		if p.Host {
			host = " (host)"
		}
		sb.WriteString(fmt.Sprintf("  - %s [%s] %s score=%d%s\n", p.Name, p.ID, p.Color, p.Score, host))
	}

	if cfg, ok := snap.Configs[snap.GameType]; ok {
		data, err := json.Marshal(cfg)
		if err == nil {
			sb.WriteString(fmt.Sprintf("Config: %s\n", data))
		}
	}
	sb.WriteString(fmt.Sprintf("Open since: %s\n", snap.CreatedAt.Format(time.DateTime)))
	return sb.String()
}
