// Package cellmatch implements the sum-to-ten board: players drag a
// rectangle over numbered cells and claim them when the values add up to
// exactly ten. The first valid claim for a cell wins; any later claim
// touching it is dropped without a reply.
package cellmatch

import (
	"time"

	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
)

const (
	// TargetSum is the value a claimed selection must add up to.
	TargetSum = 10
	// PreviewRepeatCap is how many identical previews in a row are relayed
	// after the first.
	PreviewRepeatCap = 3
)

type preview struct {
	rect    Rect
	repeats int
}

// Game is one CellMatch round.
type Game struct {
	host engine.Host
	cfg  config.CellMatchConfig

	cells     []int
	removed   []bool
	remaining int
	startedAt time.Time
	countdown clock.Timer
	running   bool
	previews  map[string]*preview
}

// New creates an uninitialized round bound to host.
func New(host engine.Host) engine.Instance {
	return &Game{host: host}
}

func (g *Game) Initialize(cfg config.GameConfig) error {
	typed, err := engine.ConfigAs[config.CellMatchConfig](cfg)
	if err != nil {
		return err
	}
	g.cfg = typed
	g.previews = make(map[string]*preview)
	return nil
}

func (g *Game) Start() {
	g.fill()
	engine.ResetScores(g.host.Players())
	g.remaining = g.cfg.TimeLimit
	g.startedAt = g.host.Scheduler().Now()
	g.running = true

	g.host.Broadcast(protocol.New(protocol.TypeSetField, SetField{
		Rows:  g.cfg.Rows,
		Cols:  g.cfg.Cols,
		Cells: g.cells,
	}))
	g.host.Broadcast(protocol.New(protocol.TypeSetTime, SetTime{
		Seconds:   g.remaining,
		StartedAt: g.startedAt.UnixMilli(),
	}))
	g.broadcastScores()

	g.countdown = g.host.Scheduler().Every(time.Second, g.tick)
}

func (g *Game) Stop() {
	g.running = false
	if g.countdown != nil {
		g.countdown.Stop()
		g.countdown = nil
	}
}

func (g *Game) Destroy() {
	g.Stop()
	g.cells = nil
	g.removed = nil
	g.previews = nil
}

func (g *Game) HandlePacket(sender string, pkt protocol.Packet) {
	switch pkt.Type() {
	case protocol.TypeDragArea:
		var msg DragArea
		if err := pkt.Bind(&msg); err != nil {
			g.host.Logger().Debug("Dropping drag area", "player", sender, "err", err)
			return
		}
		g.relayPreview(sender, msg.Rect)
	case protocol.TypeConfirmSelection:
		var msg ConfirmSelection
		if err := pkt.Bind(&msg); err != nil {
			g.host.Logger().Debug("Dropping confirm", "player", sender, "err", err)
			return
		}
		g.confirm(sender, msg.Indices)
	default:
		g.host.Logger().Debug("Unhandled cellmatch packet", "type", pkt.Type(), "player", sender)
	}
}

// fill generates a fresh board from the host's random source.
func (g *Game) fill() {
	lo := 1
	if g.cfg.IncludeZero {
		lo = 0
	}
	span := g.cfg.MaxNumber - lo + 1
	rng := g.host.Rand()

	g.cells = make([]int, g.cfg.Rows*g.cfg.Cols)
	for i := range g.cells {
		g.cells[i] = lo + rng.IntN(span)
	}
	g.removed = make([]bool, len(g.cells))
}

func (g *Game) tick() {
	if !g.running {
		return
	}
	g.remaining--
	if g.remaining <= 0 {
		g.end()
	}
}

func (g *Game) end() {
	g.Stop()
	results := engine.Rank(engine.ResultsFor(g.host.Players()))
	g.host.Broadcast(protocol.New(protocol.TypeTimeEnd, TimeEnd{Results: results}))
	g.host.Finish()
}

func (g *Game) relayPreview(sender string, rect Rect) {
	if !g.running {
		return
	}
	last, ok := g.previews[sender]
	if ok && last.rect == rect {
		last.repeats++
		if last.repeats > PreviewRepeatCap {
			return
		}
	} else {
		g.previews[sender] = &preview{rect: rect}
	}
	g.host.BroadcastExcept(sender, protocol.New(protocol.TypeDragArea, DragArea{
		PlayerID: sender,
		Rect:     rect,
	}))
}

// confirm applies a claim if every index is present and the values sum to
// TargetSum. Rejections are silent.
func (g *Game) confirm(sender string, indices []int) {
	if !g.running || len(indices) == 0 {
		return
	}
	player, ok := g.host.Player(sender)
	if !ok {
		return
	}

	seen := make(map[int]bool, len(indices))
	sum := 0
	for _, idx := range indices {
		if idx < 0 || idx >= len(g.cells) || g.removed[idx] || seen[idx] {
			return
		}
		seen[idx] = true
		sum += g.cells[idx]
	}
	if sum != TargetSum {
		return
	}

	for _, idx := range indices {
		g.removed[idx] = true
	}
	player.Report.Score += len(indices)

	g.host.Broadcast(protocol.New(protocol.TypeCellsDropped, CellsDropped{
		PlayerID: sender,
		Indices:  append([]int(nil), indices...),
		Score:    player.Report.Score,
	}))
	g.broadcastScores()
}

func (g *Game) broadcastScores() {
	players := g.host.Players()
	scores := make([]ScoreEntry, 0, len(players))
	for _, p := range players {
		scores = append(scores, ScoreEntry{PlayerID: p.ID, Score: p.Report.Score})
	}
	g.host.Broadcast(protocol.New(protocol.TypeScoreSnapshot, ScoreSnapshot{Scores: scores}))
}

// Remaining is the number of countdown seconds left.
func (g *Game) Remaining() int {
	return g.remaining
}

// Removed reports whether the cell at idx has been claimed.
func (g *Game) Removed(idx int) bool {
	return idx >= 0 && idx < len(g.removed) && g.removed[idx]
}
