package session

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/charmbracelet/log"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
	"github.com/wricardo/partyroom/logging"
)

var (
	ErrRoomNotFound   = errors.New("room not found")
	ErrRoomFull       = errors.New("room is full")
	ErrGameInProgress = errors.New("game in progress")
)

// MaxNameLength is the longest display name kept, in runes.
const MaxNameLength = 24

// Status is the room's lifecycle stage.
type Status string

const (
	StatusWaiting Status = "waiting"
	StatusPlaying Status = "playing"
	StatusEnded   Status = "ended"
)

// Denial texts sent as system messages.
const (
	msgNotHost        = "Only the host can do that."
	msgRoomFull       = "This room is full."
	msgGameInProgress = "A game is already in progress in this room."
	msgSettingsLocked = "Settings cannot be changed during a game."
	msgStartFailed    = "The game could not be started."
)

// Transport delivers envelopes to player connections.
type Transport interface {
	Send(playerID string, env protocol.Envelope)
	// Close forcibly disconnects a player's connection.
	Close(playerID string)
}

// Options configures new rooms.
type Options struct {
	// Capacity is the maximum roster size. It is capped by the palette.
	Capacity int
	Factory  engine.Factory
	Defaults map[config.GameType]config.GameConfig
	// LoadDefaults, when set, is consulted for every new room and takes
	// precedence over Defaults.
	LoadDefaults func() map[config.GameType]config.GameConfig
	DefaultGame  config.GameType
	// NewExecutor creates a room's executor and the function that releases
	// it. Nil runs each room on its own clock.Loop.
	NewExecutor func() (clock.Executor, func())
	// NewScheduler builds a room's scheduler on top of its executor. Nil
	// uses wall-clock timers.
	NewScheduler func(exec clock.Executor) clock.Scheduler
	Rand         *rand.Rand
	Logger       *log.Logger
}

// Session is one room. Every method except Post and Inspect must run on
// the room's executor.
type Session struct {
	id        string
	createdAt time.Time
	status    Status
	players   []*engine.Player
	colors    *engine.ColorPool
	capacity  int

	gameType config.GameType
	configs  map[config.GameType]config.GameConfig
	factory  engine.Factory
	instance engine.Instance

	transport Transport
	exec      clock.Executor
	sched     clock.Scheduler
	rng       *rand.Rand
	logger    *log.Logger
}

// New creates an empty room that runs on exec.
func New(id string, transport Transport, exec clock.Executor, opts Options) *Session {
	colors := engine.NewColorPool()
	capacity := opts.Capacity
	if capacity <= 0 || capacity > colors.Capacity() {
		capacity = colors.Capacity()
	}

	factory := opts.Factory
	if factory == nil {
		factory = DefaultFactory()
	}

	configs := make(map[config.GameType]config.GameConfig, len(factory))
	for _, gt := range factory.Types() {
		if cfg, ok := opts.Defaults[gt]; ok && cfg != nil {
			configs[gt] = cfg
		} else if cfg, err := config.Builtin(gt); err == nil {
			configs[gt] = cfg
		}
	}

	gameType := opts.DefaultGame
	if _, ok := factory[gameType]; !ok {
		gameType = factory.Types()[0]
	}

	rng := opts.Rand
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}

	var sched clock.Scheduler
	if opts.NewScheduler != nil {
		sched = opts.NewScheduler(exec)
	} else {
		sched = clock.NewReal(exec)
	}

	return &Session{
		id:        id,
		createdAt: time.Now(),
		status:    StatusWaiting,
		colors:    colors,
		capacity:  capacity,
		gameType:  gameType,
		configs:   configs,
		factory:   factory,
		transport: transport,
		exec:      exec,
		sched:     sched,
		rng:       rng,
		logger:    logging.OrDiscard(opts.Logger).With("room", id),
	}
}

// Post queues task on the room's executor.
func (s *Session) Post(task func()) {
	s.exec.Post(task)
}

// Join adds a player. Joining twice is a no-op. A full room or one that is
// not waiting rejects the player with a system message and a forced
// disconnect.
func (s *Session) Join(playerID, name string) error {
	if _, ok := s.Player(playerID); ok {
		return nil
	}

	reject := func(msg string, err error) error {
		s.logger.Info("Join rejected", "player", playerID, "reason", err)
		s.Send(playerID, protocol.New(protocol.TypeSystemMessage, protocol.SystemMessage{Message: msg}))
		s.transport.Close(playerID)
		return err
	}
	if s.status != StatusWaiting {
		return reject(msgGameInProgress, ErrGameInProgress)
	}
	if len(s.players) >= s.capacity {
		return reject(msgRoomFull, ErrRoomFull)
	}

	color, err := s.colors.Acquire(s.rng)
	if err != nil {
		return reject(msgRoomFull, fmt.Errorf("%w: %w", ErrRoomFull, err))
	}

	player := &engine.Player{
		ID:    playerID,
		Name:  cleanName(name, len(s.players)+1),
		Color: color,
	}
	s.players = append(s.players, player)
	s.logger.Info("Player joined", "player", playerID, "name", player.Name, "players", len(s.players))

	s.broadcastRoom()
	return nil
}

// Leave removes a player and returns the remaining roster size. The last
// player leaving stops any running game.
func (s *Session) Leave(playerID string) int {
	i := s.indexOf(playerID)
	if i < 0 {
		return len(s.players)
	}

	player := s.players[i]
	if err := s.colors.Release(player.Color); err != nil {
		s.logger.Warn("Color release failed", "player", playerID, "err", err)
	}
	s.players = slices.Delete(s.players, i, i+1)
	s.logger.Info("Player left", "player", playerID, "players", len(s.players))

	if len(s.players) == 0 {
		if s.instance != nil {
			s.instance.Stop()
		}
		if s.status == StatusPlaying {
			s.status = StatusEnded
		}
		return 0
	}

	s.broadcastRoom()
	return len(s.players)
}

// IsHost reports whether playerID is the earliest-joined player still in
// the room.
func (s *Session) IsHost(playerID string) bool {
	return len(s.players) > 0 && s.players[0].ID == playerID
}

// Handle routes a packet from a player. Packets from ids outside the
// roster are ignored.
func (s *Session) Handle(playerID string, pkt protocol.Packet) {
	if _, ok := s.Player(playerID); !ok {
		return
	}

	switch pkt.Type() {
	case protocol.TypeJoinRoom:
		// Already seated.
	case protocol.TypeConfigUpdateRequest:
		if !s.requireHost(playerID) {
			return
		}
		var req protocol.ConfigUpdateRequest
		if err := pkt.Bind(&req); err != nil {
			s.logger.Debug("Dropping config request", "player", playerID, "err", err)
			return
		}
		s.updateConfig(playerID, req)
	case protocol.TypeStartRequest:
		if !s.requireHost(playerID) {
			return
		}
		if err := s.StartGame(); err != nil {
			s.deny(playerID, startDenial(err))
		}
	case protocol.TypeReplayRequest:
		if !s.requireHost(playerID) {
			return
		}
		if err := s.Replay(); err != nil {
			s.deny(playerID, startDenial(err))
		}
	case protocol.TypeReturnToLobbyRequest:
		if !s.requireHost(playerID) {
			return
		}
		s.ReturnToLobby()
	default:
		if s.instance == nil {
			return
		}
		s.instance.HandlePacket(playerID, pkt)
	}
}

// StartGame launches the selected game with its stored config.
func (s *Session) StartGame() error {
	if s.status == StatusPlaying {
		return ErrGameInProgress
	}
	s.destroyInstance()

	inst, err := s.factory.New(s.gameType, s)
	if err != nil {
		return err
	}
	if err := inst.Initialize(s.configs[s.gameType]); err != nil {
		return fmt.Errorf("failed to initialize %s: %w", s.gameType, err)
	}

	s.instance = inst
	s.status = StatusPlaying
	s.Broadcast(protocol.New(protocol.TypeSceneReady, protocol.SceneReady{GameType: string(s.gameType)}))
	inst.Start()

	s.logger.Info("Game started", "game", s.gameType, "players", len(s.players))
	return nil
}

// StopGame ends the running game. The instance stays until replay or
// return to lobby.
func (s *Session) StopGame() {
	if s.status != StatusPlaying {
		return
	}
	s.status = StatusEnded
	if s.instance != nil {
		s.instance.Stop()
	}
	s.logger.Info("Game stopped", "game", s.gameType)
	s.broadcastRoom()
}

// Replay restarts the selected game from scratch.
func (s *Session) Replay() error {
	s.destroyInstance()
	s.status = StatusWaiting
	return s.StartGame()
}

// ReturnToLobby drops the current game and puts everyone back in the
// waiting room.
func (s *Session) ReturnToLobby() {
	s.destroyInstance()
	s.status = StatusWaiting
	s.Broadcast(protocol.New(protocol.TypeReturnToLobby, nil))
	s.broadcastRoom()
}

// Close releases the instance. The room must not be used afterwards.
func (s *Session) Close() {
	s.destroyInstance()
}

// Notice broadcasts a system message to the room.
func (s *Session) Notice(message string) {
	s.Broadcast(protocol.New(protocol.TypeSystemMessage, protocol.SystemMessage{Message: message}))
}

func (s *Session) destroyInstance() {
	if s.instance == nil {
		return
	}
	s.instance.Stop()
	s.instance.Destroy()
	s.instance = nil
}

func (s *Session) updateConfig(playerID string, req protocol.ConfigUpdateRequest) {
	if s.status == StatusPlaying {
		s.deny(playerID, msgSettingsLocked)
		return
	}

	gameType := s.gameType
	if req.GameType != "" {
		if gt, err := config.ParseGameType(req.GameType); err == nil {
			if _, ok := s.factory[gt]; ok {
				gameType = gt
			}
		}
	}

	prev, ok := s.configs[gameType]
	if !ok {
		return
	}
	next := prev.Merge(req.Config)
	if gameType == s.gameType && next == prev {
		return
	}

	s.gameType = gameType
	s.configs[gameType] = next
	s.logger.Debug("Config updated", "game", gameType, "config", next)
	s.Broadcast(protocol.New(protocol.TypeConfigUpdate, protocol.ConfigUpdate{
		GameType: string(gameType),
		Config:   next,
	}))
}

func (s *Session) requireHost(playerID string) bool {
	if s.IsHost(playerID) {
		return true
	}
	s.deny(playerID, msgNotHost)
	return false
}

func (s *Session) deny(playerID, msg string) {
	s.Send(playerID, protocol.New(protocol.TypeSystemMessage, protocol.SystemMessage{Message: msg}))
}

func startDenial(err error) string {
	if errors.Is(err, ErrGameInProgress) {
		return msgGameInProgress
	}
	return msgStartFailed
}

// broadcastRoom sends every player the roster with their own index.
func (s *Session) broadcastRoom() {
	views := s.playerViews()
	configs := make(map[string]any, len(s.configs))
	for gt, cfg := range s.configs {
		configs[string(gt)] = cfg
	}
	for i, p := range s.players {
		s.transport.Send(p.ID, protocol.New(protocol.TypeRoomUpdate, protocol.RoomUpdate{
			RoomID:   s.id,
			Status:   string(s.status),
			Players:  views,
			Index:    i,
			GameType: string(s.gameType),
			Configs:  configs,
		}))
	}
}

func (s *Session) playerViews() []protocol.PlayerView {
	views := make([]protocol.PlayerView, len(s.players))
	for i, p := range s.players {
		views[i] = p.View(i == 0)
	}
	return views
}

func (s *Session) indexOf(playerID string) int {
	return slices.IndexFunc(s.players, func(p *engine.Player) bool {
		return p.ID == playerID
	})
}

// cleanName trims and clips a display name, defaulting to "Player n".
func cleanName(name string, n int) string {
	name = strings.TrimSpace(name)
	if utf8.RuneCountInString(name) > MaxNameLength {
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return fmt.Sprintf("Player %d", n)
	}
	return name
}

// engine.Host

// RoomID is immutable and safe to call from any goroutine.
func (s *Session) RoomID() string { return s.id }

func (s *Session) Players() []*engine.Player { return s.players }

func (s *Session) Player(id string) (*engine.Player, bool) {
	if i := s.indexOf(id); i >= 0 {
		return s.players[i], true
	}
	return nil, false
}

func (s *Session) Broadcast(env protocol.Envelope) {
	for _, p := range s.players {
		s.transport.Send(p.ID, env)
	}
}

func (s *Session) BroadcastExcept(exclude string, env protocol.Envelope) {
	for _, p := range s.players {
		if p.ID != exclude {
			s.transport.Send(p.ID, env)
		}
	}
}

func (s *Session) Send(playerID string, env protocol.Envelope) {
	s.transport.Send(playerID, env)
}

func (s *Session) Scheduler() clock.Scheduler { return s.sched }

func (s *Session) Rand() *rand.Rand { return s.rng }

func (s *Session) Logger() *log.Logger { return s.logger }

func (s *Session) Finish() { s.StopGame() }

// Snapshot is a read-only view of a room.
type Snapshot struct {
	ID        string                                `json:"id"`
	Status    Status                                `json:"status"`
	GameType  config.GameType                       `json:"gameType"`
	Players   []protocol.PlayerView                 `json:"players"`
	Capacity  int                                   `json:"capacity"`
	Configs   map[config.GameType]config.GameConfig `json:"configs"`
	CreatedAt time.Time                             `json:"createdAt"`
}

// Snapshot captures the room. It must run on the room's executor.
func (s *Session) Snapshot() Snapshot {
	configs := make(map[config.GameType]config.GameConfig, len(s.configs))
	for gt, cfg := range s.configs {
		configs[gt] = cfg
	}
	return Snapshot{
		ID:        s.id,
		Status:    s.status,
		GameType:  s.gameType,
		Players:   s.playerViews(),
		Capacity:  s.capacity,
		Configs:   configs,
		CreatedAt: s.createdAt,
	}
}

// Inspect takes a snapshot from any goroutine.
func (s *Session) Inspect(ctx context.Context) (Snapshot, error) {
	ch := make(chan Snapshot, 1)
	s.Post(func() { ch <- s.Snapshot() })
	select {
	case snap := <-ch:
		return snap, nil
	case <-ctx.Done():
		return Snapshot{}, ctx.Err()
	}
}
