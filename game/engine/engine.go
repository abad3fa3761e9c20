package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/protocol"
)

var (
	ErrUnknownPacket  = errors.New("unknown packet")
	ErrConfigMismatch = errors.New("config does not match game type")
)

// Instance is one running mini-game. All methods are called from the
// owning room's loop.
type Instance interface {
	// Initialize prepares state from a sanitized config. It must not
	// broadcast or schedule anything.
	Initialize(cfg config.GameConfig) error
	// Start broadcasts the opening state and arms the game's timers.
	Start()
	// Stop cancels timers. The instance stays inspectable.
	Stop()
	// Destroy releases everything; the instance is never used again.
	Destroy()
	// HandlePacket applies a game packet from a roster member.
	HandlePacket(sender string, pkt protocol.Packet)
}

// Host is the room as seen by an instance.
type Host interface {
	RoomID() string
	// Players returns the roster in join order.
	Players() []*Player
	Player(id string) (*Player, bool)
	Broadcast(env protocol.Envelope)
	BroadcastExcept(exclude string, env protocol.Envelope)
	Send(playerID string, env protocol.Envelope)
	Scheduler() clock.Scheduler
	Rand() *rand.Rand
	Logger() *log.Logger
	// Finish reports that the game reached its own end condition.
	Finish()
}

// Constructor builds an instance bound to a host.
type Constructor func(host Host) Instance

// Factory maps game types to constructors.
type Factory map[config.GameType]Constructor

// New instantiates the game registered for gameType.
func (f Factory) New(gameType config.GameType, host Host) (Instance, error) {
	ctor, ok := f[gameType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", config.ErrUnknownGameType, gameType)
	}
	return ctor(host), nil
}

// Types lists the registered game types in a stable order.
func (f Factory) Types() []config.GameType {
	types := make([]config.GameType, 0, len(f))
	for t := range f {
		types = append(types, t)
	}
	slices.Sort(types)
	return types
}

// ConfigAs asserts that cfg has the concrete type T.
func ConfigAs[T config.GameConfig](cfg config.GameConfig) (T, error) {
	typed, ok := cfg.(T)
	if !ok {
		var zero T
		return zero, fmt.Errorf("%w: got %T", ErrConfigMismatch, cfg)
	}
	return typed, nil
}
