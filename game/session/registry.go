package session

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/protocol"
	"github.com/wricardo/partyroom/logging"
)

type room struct {
	session *Session
	members int
	release func()
}

// Registry maps room ids to sessions and connected players to rooms. A
// room is created by its first join and dropped when its last connection
// leaves.
type Registry struct {
	transport  Transport
	opts       Options
	rooms      map[string]*room
	playerRoom map[string]string
	logger     *log.Logger
	mu         sync.RWMutex
}

// NewRegistry creates an empty registry delivering through transport.
func NewRegistry(transport Transport, opts Options) *Registry {
	opts.Logger = logging.OrDiscard(opts.Logger)
	if opts.Factory == nil {
		opts.Factory = DefaultFactory()
	}
	if opts.NewExecutor == nil {
		logger := opts.Logger
		opts.NewExecutor = func() (clock.Executor, func()) {
			loop := clock.NewLoop(clock.DefaultLoopBuffer, logger)
			go loop.Run()
			return loop, loop.Close
		}
	}
	return &Registry{
		transport:  transport,
		opts:       opts,
		rooms:      make(map[string]*room),
		playerRoom: make(map[string]string),
		logger:     opts.Logger,
	}
}

// Dispatch routes an inbound packet from a connection.
func (r *Registry) Dispatch(playerID string, pkt protocol.Packet) {
	if pkt.Type() == protocol.TypeJoinRoom {
		var req protocol.JoinRoom
		if err := pkt.Bind(&req); err != nil {
			r.logger.Debug("Dropping join", "player", playerID, "err", err)
			return
		}
		if _, err := r.Join(playerID, req.RoomID, req.Name); err != nil {
			r.logger.Warn("Join failed", "player", playerID, "err", err)
		}
		return
	}

	rm, ok := r.roomOf(playerID)
	if !ok {
		return
	}
	rm.session.Post(func() { rm.session.Handle(playerID, pkt) })
}

// Join places playerID in roomID, creating the room if needed. An empty
// roomID creates a room with a fresh id. A player already placed stays
// where they are. It returns the room id.
func (r *Registry) Join(playerID, roomID, name string) (string, error) {
	r.mu.Lock()
	if current, ok := r.playerRoom[playerID]; ok {
		r.mu.Unlock()
		return current, nil
	}

	key := normalizeRoomID(roomID)
	if key == "" {
		var err error
		if key, err = r.generateRoomID(); err != nil {
			r.mu.Unlock()
			return "", err
		}
	}

	rm, ok := r.rooms[key]
	if !ok {
		rm = r.newRoom(key)
		r.rooms[key] = rm
		r.logger.Info("Room created", "room", key)
	}
	rm.members++
	r.playerRoom[playerID] = key
	r.mu.Unlock()

	rm.session.Post(func() {
		_ = rm.session.Join(playerID, name)
	})
	return key, nil
}

// Leave handles a disconnect. The room is closed when its last
// connection leaves.
func (r *Registry) Leave(playerID string) {
	r.mu.Lock()
	key, ok := r.playerRoom[playerID]
	if !ok {
		r.mu.Unlock()
		return
	}
	delete(r.playerRoom, playerID)
	rm := r.rooms[key]
	rm.members--
	empty := rm.members <= 0
	if empty {
		delete(r.rooms, key)
	}
	r.mu.Unlock()

	rm.session.Post(func() {
		rm.session.Leave(playerID)
		if empty {
			rm.session.Close()
			r.logger.Info("Room closed", "room", key)
			rm.release()
		}
	})
}

// Get returns the room with the given id (case-insensitive).
func (r *Registry) Get(roomID string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rm, ok := r.rooms[normalizeRoomID(roomID)]
	if !ok {
		return nil, ErrRoomNotFound
	}
	return rm.session, nil
}

// RoomOf returns the room a player is placed in.
func (r *Registry) RoomOf(playerID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.playerRoom[playerID]
	return key, ok
}

// List returns every open room ordered by id.
func (r *Registry) List() []*Session {
	r.mu.RLock()
	result := make([]*Session, 0, len(r.rooms))
	for _, rm := range r.rooms {
		result = append(result, rm.session)
	}
	r.mu.RUnlock()

	slices.SortFunc(result, func(a, b *Session) int {
		return strings.Compare(a.RoomID(), b.RoomID())
	})
	return result
}

// Count returns the number of open rooms.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms)
}

// Players returns the number of placed connections.
func (r *Registry) Players() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.playerRoom)
}

// Notice broadcasts a system message to one room.
func (r *Registry) Notice(roomID, message string) error {
	s, err := r.Get(roomID)
	if err != nil {
		return err
	}
	s.Post(func() { s.Notice(message) })
	return nil
}

// Close shuts every room down.
func (r *Registry) Close() {
	r.mu.Lock()
	rooms := r.rooms
	r.rooms = make(map[string]*room)
	r.playerRoom = make(map[string]string)
	r.mu.Unlock()

	for _, rm := range rooms {
		rm.session.Post(func() {
			rm.session.Close()
			rm.release()
		})
	}
}

func (r *Registry) roomOf(playerID string) (*room, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	key, ok := r.playerRoom[playerID]
	if !ok {
		return nil, false
	}
	rm, ok := r.rooms[key]
	return rm, ok
}

func (r *Registry) newRoom(id string) *room {
	opts := r.opts
	if opts.LoadDefaults != nil {
		opts.Defaults = opts.LoadDefaults()
	}
	exec, release := opts.NewExecutor()
	return &room{
		session: New(id, r.transport, exec, opts),
		release: release,
	}
}

// generateRoomID returns an unused 4-character room id. Callers hold mu.
func (r *Registry) generateRoomID() (string, error) {
	buf := make([]byte, 2)
	for range 16 {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate room id: %w", err)
		}
		id := hex.EncodeToString(buf)
		if _, taken := r.rooms[id]; !taken {
			return id, nil
		}
	}
	return "", fmt.Errorf("failed to generate a free room id")
}

func normalizeRoomID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
