package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrMalformedPacket = errors.New("malformed packet")
	ErrUnknownCodec    = errors.New("unknown codec")
)

// Session-level packet types.
const (
	TypeJoinRoom             = "join_room"
	TypeRoomUpdate           = "room_update"
	TypeConfigUpdateRequest  = "game_config_update_request"
	TypeConfigUpdate         = "game_config_update"
	TypeStartRequest         = "game_start_request"
	TypeSceneReady           = "scene_ready"
	TypeReplayRequest        = "replay_request"
	TypeReturnToLobbyRequest = "return_to_lobby_request"
	TypeReturnToLobby        = "return_to_lobby"
	TypeSystemMessage        = "system_message"
)

// CellMatch packet types.
const (
	TypeSetField         = "set_field"
	TypeSetTime          = "set_time"
	TypeDragArea         = "drag_area"
	TypeConfirmSelection = "confirm_selection"
	TypeCellsDropped     = "cells_dropped"
	TypeScoreSnapshot    = "score_snapshot"
	TypeTimeEnd          = "time_end"
)

// Minefield packet types.
const (
	TypeMinefieldInit = "minefield_init"
	TypeRevealTile    = "reveal_tile"
	TypeToggleFlag    = "toggle_flag"
	TypeTileUpdate    = "tile_update"
	TypeScoreUpdate   = "score_update"
	TypeMinefieldEnd  = "minefield_end"
)

// PhysicsRope packet types.
const (
	TypeJump         = "jump"
	TypeRopeState    = "rope_state"
	TypeRopeGameOver = "rope_game_over"
)

// Envelope is an outbound packet.
type Envelope struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// New builds an outbound envelope.
func New(packetType string, data any) Envelope {
	return Envelope{Type: packetType, Data: data}
}

// Packet is a decoded inbound frame whose payload has not been bound yet.
type Packet interface {
	Type() string
	// Bind decodes the payload into v. A packet without payload binds
	// nothing and leaves v untouched.
	Bind(v any) error
}

// NewPacket builds an inbound packet from an in-memory payload, as if it had
// arrived over a JSON connection.
func NewPacket(packetType string, data any) (Packet, error) {
	raw, err := json.Marshal(Envelope{Type: packetType, Data: data})
	if err != nil {
		return nil, fmt.Errorf("failed to encode packet %s: %w", packetType, err)
	}
	return JSON.Decode(raw)
}

// JoinRoom asks the registry to place the connection in a room.
type JoinRoom struct {
	RoomID string `json:"roomId"`
	Name   string `json:"name"`
}

// PlayerView is the public roster entry sent to clients.
type PlayerView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color"`
	Host  bool   `json:"host"`
	Score int    `json:"score"`
}

// RoomUpdate carries the full roster. Index is the recipient's own
// position in the roster, or -1.
type RoomUpdate struct {
	RoomID   string         `json:"roomId"`
	Status   string         `json:"status"`
	Players  []PlayerView   `json:"players"`
	Index    int            `json:"index"`
	GameType string         `json:"gameType"`
	Configs  map[string]any `json:"configs"`
}

// ConfigUpdateRequest is the host's request to change the selected game or
// its settings. Config is opaque and sanitized field by field.
type ConfigUpdateRequest struct {
	GameType string         `json:"gameType"`
	Config   map[string]any `json:"config"`
}

// ConfigUpdate announces the negotiated game type and settings.
type ConfigUpdate struct {
	GameType string `json:"gameType"`
	Config   any    `json:"config"`
}

// SceneReady tells clients to load the scene for a game type.
type SceneReady struct {
	GameType string `json:"gameType"`
}

// SystemMessage is user-facing text, usually a denial.
type SystemMessage struct {
	Message string `json:"message"`
}
