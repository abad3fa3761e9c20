// Package minefield implements competitive minesweeper on a shared board.
// Revealing a blank tile flood-fills its safe region in one batch; flags are
// claims that only pay out, or cost, when the round is settled.
package minefield

import (
	"time"

	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
)

// Scoring.
const (
	SafeTileReward   = 1
	SafeRevealCap    = 10
	MinePenalty      = -10
	CorrectFlagBonus = 5
	WrongFlagPenalty = -5
)

// Game is one Minefield round.
type Game struct {
	host engine.Host
	cfg  config.MinefieldConfig

	board          *board
	remainingMines int
	stats          map[string]*Stats
	deadline       clock.Timer
	running        bool
	settled        bool
}

// New creates an uninitialized round bound to host.
func New(host engine.Host) engine.Instance {
	return &Game{host: host}
}

func (g *Game) Initialize(cfg config.GameConfig) error {
	typed, err := engine.ConfigAs[config.MinefieldConfig](cfg)
	if err != nil {
		return err
	}
	g.cfg = typed
	g.stats = make(map[string]*Stats)
	return nil
}

func (g *Game) Start() {
	g.layMines(g.randomMines())
	engine.ResetScores(g.host.Players())
	g.running = true

	players := g.host.Players()
	views := make([]protocol.PlayerView, 0, len(players))
	for i, p := range players {
		views = append(views, p.View(i == 0))
	}
	g.host.Broadcast(protocol.New(protocol.TypeMinefieldInit, Init{
		Config:         g.cfg,
		Grid:           g.board.grid(),
		Players:        views,
		RemainingMines: g.remainingMines,
		StartedAt:      g.host.Scheduler().Now().UnixMilli(),
	}))

	if g.cfg.TimeLimit > 0 {
		g.deadline = g.host.Scheduler().AfterFunc(time.Duration(g.cfg.TimeLimit)*time.Second, func() {
			g.end(EndTimeout)
		})
	}
}

func (g *Game) Stop() {
	g.running = false
	if g.deadline != nil {
		g.deadline.Stop()
		g.deadline = nil
	}
}

func (g *Game) Destroy() {
	g.Stop()
	g.board = nil
	g.stats = nil
}

func (g *Game) HandlePacket(sender string, pkt protocol.Packet) {
	switch pkt.Type() {
	case protocol.TypeRevealTile:
		var at Coord
		if err := pkt.Bind(&at); err != nil {
			g.host.Logger().Debug("Dropping reveal", "player", sender, "err", err)
			return
		}
		g.reveal(sender, at.Row, at.Col)
	case protocol.TypeToggleFlag:
		var at Coord
		if err := pkt.Bind(&at); err != nil {
			g.host.Logger().Debug("Dropping flag", "player", sender, "err", err)
			return
		}
		g.toggleFlag(sender, at.Row, at.Col)
	default:
		g.host.Logger().Debug("Unhandled minefield packet", "type", pkt.Type(), "player", sender)
	}
}

func (g *Game) randomMines() []int {
	size := g.cfg.Rows * g.cfg.Cols
	return g.host.Rand().Perm(size)[:g.cfg.MineCount()]
}

func (g *Game) layMines(mines []int) {
	g.board = newBoard(g.cfg.Rows, g.cfg.Cols, mines)
	g.remainingMines = g.board.mines
	g.settled = false
}

func (g *Game) statsFor(id string) *Stats {
	s, ok := g.stats[id]
	if !ok {
		s = &Stats{}
		g.stats[id] = s
	}
	return s
}

func (g *Game) reveal(sender string, row, col int) {
	if !g.running || !g.board.inBounds(row, col) {
		return
	}
	player, ok := g.host.Player(sender)
	if !ok {
		return
	}

	steps := g.board.flood(row, col, sender)
	if len(steps) == 0 {
		return
	}

	stats := g.statsFor(sender)
	tiles := make([]TileView, 0, len(steps))
	safe, minesHit := 0, 0
	for _, s := range steps {
		v := g.board.view(s.row, s.col)
		dist := s.dist
		v.Distance = &dist
		tiles = append(tiles, v)
		if v.Mine {
			minesHit++
			g.remainingMines--
		} else {
			safe++
		}
	}
	stats.TilesRevealed += safe
	stats.MinesHit += minesHit

	delta := min(safe*SafeTileReward, SafeRevealCap) + minesHit*MinePenalty
	player.Report.Score += delta

	g.host.Broadcast(protocol.New(protocol.TypeTileUpdate, TileUpdate{
		Tiles:          tiles,
		RemainingMines: g.remainingMines,
	}))
	g.host.Broadcast(protocol.New(protocol.TypeScoreUpdate, ScoreUpdate{
		PlayerID: sender,
		Delta:    delta,
		Score:    player.Report.Score,
		Reason:   ReasonReveal,
	}))

	if g.board.cleared() {
		g.end(EndWin)
	}
}

func (g *Game) toggleFlag(sender string, row, col int) {
	if !g.running || !g.board.inBounds(row, col) {
		return
	}
	if _, ok := g.host.Player(sender); !ok {
		return
	}

	t := g.board.at(row, col)
	stats := g.statsFor(sender)
	switch t.state {
	case Hidden:
		t.state = Flagged
		t.flaggedBy = sender
		stats.FlagsPlaced++
		g.remainingMines--
	case Flagged:
		if t.flaggedBy != sender {
			return
		}
		t.state = Hidden
		t.flaggedBy = ""
		stats.FlagsPlaced--
		g.remainingMines++
	default:
		return
	}

	g.host.Broadcast(protocol.New(protocol.TypeTileUpdate, TileUpdate{
		Tiles:          []TileView{g.board.view(row, col)},
		RemainingMines: g.remainingMines,
	}))
}

// end settles flags once and announces the ranking.
func (g *Game) end(reason string) {
	if g.settled || g.board == nil {
		return
	}
	g.settled = true
	g.Stop()

	deltas := g.settle()
	for _, p := range g.host.Players() {
		delta, ok := deltas[p.ID]
		if !ok {
			continue
		}
		p.Report.Score += delta
		g.host.Broadcast(protocol.New(protocol.TypeScoreUpdate, ScoreUpdate{
			PlayerID: p.ID,
			Delta:    delta,
			Score:    p.Report.Score,
			Reason:   ReasonSettlement,
		}))
	}

	results := engine.ResultsFor(g.host.Players())
	for i := range results {
		results[i].Stats = *g.statsFor(results[i].PlayerID)
	}
	g.host.Broadcast(protocol.New(protocol.TypeMinefieldEnd, End{
		Reason:  reason,
		Results: engine.Rank(results),
	}))
	g.host.Finish()
}

// settle scores every standing flag and returns the per-player deltas.
func (g *Game) settle() map[string]int {
	deltas := make(map[string]int)
	for i := range g.board.tiles {
		t := &g.board.tiles[i]
		if t.state != Flagged {
			continue
		}
		stats := g.statsFor(t.flaggedBy)
		if t.mine {
			deltas[t.flaggedBy] += CorrectFlagBonus
			stats.CorrectFlags++
		} else {
			deltas[t.flaggedBy] += WrongFlagPenalty
			stats.WrongFlags++
		}
	}
	return deltas
}

// RemainingMines is mines minus flags minus revealed mines.
func (g *Game) RemainingMines() int {
	return g.remainingMines
}

// Tile returns the current view of a tile, revealing nothing new.
func (g *Game) Tile(row, col int) (TileView, bool) {
	if g.board == nil || !g.board.inBounds(row, col) {
		return TileView{}, false
	}
	return g.board.view(row, col), true
}
