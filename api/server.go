package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/session"
	"github.com/wricardo/partyroom/logging"
	"github.com/wricardo/partyroom/monitor"
	"github.com/wricardo/partyroom/transport/websocket"
)

// inspectTimeout bounds how long a request waits on a busy room loop.
const inspectTimeout = 2 * time.Second

// maxBodySize limits JSON request bodies.
const maxBodySize = 64 << 10

// Server represents the REST API server
type Server struct {
	registry *session.Registry
	hub      *websocket.Hub
	configs  *config.Manager
	router   *mux.Router
	logger   *log.Logger
	started  time.Time
}

// NewServer creates a new API server. configs may be nil, in which case the
// game endpoints serve built-in defaults read-only.
func NewServer(registry *session.Registry, hub *websocket.Hub, configs *config.Manager, logger *log.Logger) *Server {
	s := &Server{
		registry: registry,
		hub:      hub,
		configs:  configs,
		router:   mux.NewRouter(),
		logger:   logging.OrDiscard(logger),
		started:  time.Now(),
	}

	s.setupRoutes()
	return s
}

// setupRoutes configures all API routes
func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/health", s.handleHealth).Methods("GET")
	api.HandleFunc("/stats", s.handleStats).Methods("GET")

	// Rooms
	api.HandleFunc("/rooms", s.handleListRooms).Methods("GET")
	api.HandleFunc("/rooms/{id}", s.handleGetRoom).Methods("GET")
	api.HandleFunc("/rooms/{id}/notice", s.handleNotice).Methods("POST")

	// Game defaults
	api.HandleFunc("/games", s.handleListGames).Methods("GET")
	api.HandleFunc("/games/{type}", s.handleGetGame).Methods("GET")
	api.HandleFunc("/games/{type}", s.handleUpdateGame).Methods("PUT")

	// WebSocket
	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// ServeHTTP implements http.Handler
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Router exposes the mux so callers can mount extra handlers.
func (s *Server) Router() *mux.Router {
	return s.router
}

// Response helpers
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

// Health check
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]string{
		"status": "healthy",
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	var conns monitor.ConnCounter
	if s.hub != nil {
		conns = s.hub
	}
	respondJSON(w, http.StatusOK, monitor.Collect(r.Context(), s.registry, conns, s.started))
}

// Room Handlers

func (s *Server) handleListRooms(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	status := session.Status(query.Get("status"))
	limitStr := query.Get("limit")

	rooms := make([]session.Snapshot, 0)
	for _, room := range s.registry.List() {
		snap, err := s.inspect(r.Context(), room)
		if err != nil {
			s.logger.Warn("Room unavailable", "room", room.RoomID(), "err", err)
			continue
		}
		if status != "" && snap.Status != status {
			continue
		}
		rooms = append(rooms, snap)
	}
	total := len(rooms)

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l < len(rooms) {
			rooms = rooms[:l]
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(rooms),
		"total": total,
		"rooms": rooms,
	})
}

func (s *Server) handleGetRoom(w http.ResponseWriter, r *http.Request) {
	room, err := s.registry.Get(mux.Vars(r)["id"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	snap, err := s.inspect(r.Context(), room)
	if err != nil {
		respondError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

func (s *Server) handleNotice(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["id"]

	var req struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	message := strings.TrimSpace(req.Message)
	if message == "" {
		respondError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := s.registry.Notice(roomID, message); err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Info("Notice sent", "room", roomID)
	respondJSON(w, http.StatusOK, map[string]string{"status": "sent"})
}

// Game Handlers

type gameDefaults struct {
	Type   config.GameType   `json:"type"`
	Config config.GameConfig `json:"config"`
}

func (s *Server) handleListGames(w http.ResponseWriter, r *http.Request) {
	games := make([]gameDefaults, 0, len(config.AllGameTypes()))
	for _, gt := range config.AllGameTypes() {
		cfg, err := s.loadGame(gt)
		if err != nil {
			respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		games = append(games, gameDefaults{Type: gt, Config: cfg})
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"count": len(games),
		"games": games,
	})
}

func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	gt, err := config.ParseGameType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}

	cfg, err := s.loadGame(gt)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, gameDefaults{Type: gt, Config: cfg})
}

// handleUpdateGame stores new defaults for a game type. Rooms created
// afterwards start with them; open rooms keep what they have.
func (s *Server) handleUpdateGame(w http.ResponseWriter, r *http.Request) {
	gt, err := config.ParseGameType(mux.Vars(r)["type"])
	if err != nil {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	if s.configs == nil {
		respondError(w, http.StatusNotImplemented, "game defaults are read-only")
		return
	}

	var raw map[string]any
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize)).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	cfg, err := s.configs.Save(gt, raw)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, config.ErrInvalidConfig) {
			status = http.StatusBadRequest
		}
		respondError(w, status, err.Error())
		return
	}

	s.logger.Info("Game defaults updated", "game", gt)
	respondJSON(w, http.StatusOK, gameDefaults{Type: gt, Config: cfg})
}

// WebSocket handler
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.hub == nil {
		http.Error(w, "WebSocket gateway unavailable", http.StatusServiceUnavailable)
		return
	}
	s.hub.ServeWS(w, r)
}

func (s *Server) loadGame(gt config.GameType) (config.GameConfig, error) {
	if s.configs == nil {
		return config.Builtin(gt)
	}
	return s.configs.Load(gt)
}

func (s *Server) inspect(ctx context.Context, room *session.Session) (session.Snapshot, error) {
	ctx, cancel := context.WithTimeout(ctx, inspectTimeout)
	defer cancel()
	return room.Inspect(ctx)
}
