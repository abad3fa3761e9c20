// Package enginetest provides an in-memory engine.Host for testing game
// instances without a room or network.
package enginetest

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
	"github.com/wricardo/partyroom/logging"
)

// Delivery is one outbound envelope and who it was addressed to.
type Delivery struct {
	// To is set for direct sends.
	To     string
	// Except is set for BroadcastExcept.
	Except string
	Env    protocol.Envelope
}

// Host records every outbound packet and drives timers with a manual clock.
type Host struct {
	ID       string
	Roster   []*engine.Player
	Clock    *clock.Manual
	Random   *rand.Rand
	Log      *log.Logger
	Sent     []Delivery
	Finished int
}

// NewHost creates a host with the given players. Seed fixes the random
// source.
func NewHost(seed uint64, players ...*engine.Player) *Host {
	return &Host{
		ID:     "test-room",
		Roster: players,
		Clock:  clock.NewManual(time.Unix(1700000000, 0)),
		Random: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		Log:    logging.Discard(),
	}
}

// Players builds a roster of n players with ids p1..pn.
func Players(n int) []*engine.Player {
	colors := engine.Palette
	players := make([]*engine.Player, n)
	for i := range players {
		players[i] = &engine.Player{
			ID:    fmt.Sprintf("p%d", i+1),
			Name:  fmt.Sprintf("Player %d", i+1),
			Color: colors[i%len(colors)],
		}
	}
	return players
}

func (h *Host) RoomID() string { return h.ID }
func (h *Host) Players() []*engine.Player { return h.Roster }
func (h *Host) Scheduler() clock.Scheduler { return h.Clock }
func (h *Host) Rand() *rand.Rand { return h.Random }
func (h *Host) Logger() *log.Logger { return h.Log }
func (h *Host) Finish() { h.Finished++ }
func (h *Host) Broadcast(env protocol.Envelope) { h.Sent = append(h.Sent, Delivery{Env: env}) }

func (h *Host) Player(id string) (*engine.Player, bool) {
	for _, p := range h.Roster {
		if p.ID == id {
			return p, true
		}
	}
	return nil, false
}

func (h *Host) BroadcastExcept(exclude string, env protocol.Envelope) {
	h.Sent = append(h.Sent, Delivery{Except: exclude, Env: env})
}

func (h *Host) Send(playerID string, env protocol.Envelope) {
	h.Sent = append(h.Sent, Delivery{To: playerID, Env: env})
}

// Of returns the payloads of every recorded envelope of packetType.
func (h *Host) Of(packetType string) []any {
	var out []any
	for _, d := range h.Sent {
		if d.Env.Type == packetType {
			out = append(out, d.Env.Data)
		}
	}
	return out
}

// ReceivedBy returns the envelopes playerID would have received.
func (h *Host) ReceivedBy(playerID string) []protocol.Envelope {
	var out []protocol.Envelope
	for _, d := range h.Sent {
		switch {
		case d.To != "":
			if d.To == playerID {
				out = append(out, d.Env)
			}
		case d.Except != "":
			if d.Except != playerID {
				out = append(out, d.Env)
			}
		default:
			out = append(out, d.Env)
		}
	}
	return out
}

// Types returns the packet types recorded so far, in order.
func (h *Host) Types() []string {
	out := make([]string, len(h.Sent))
	for i, d := range h.Sent {
		out[i] = d.Env.Type
	}
	return out
}

// Reset forgets recorded packets.
func (h *Host) Reset() {
	h.Sent = nil
}

// Packet builds an inbound packet or panics.
func Packet(packetType string, data any) protocol.Packet {
	pkt, err := protocol.NewPacket(packetType, data)
	if err != nil {
		panic(err)
	}
	return pkt
}
