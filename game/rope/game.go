// Package rope implements the rope flight game: every player steers one
// body, neighbouring bodies are tied together with ropes, and the group
// flies through scrolling columns until anyone touches the ground or a
// column. Physics runs at a fixed 60 Hz while snapshots go out at 20 Hz.
package rope

import (
	"math"
	"time"

	"github.com/wricardo/partyroom/game/clock"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
)

const (
	PhysicsRate   = 60
	BroadcastRate = 20

	physicsDT = 1.0 / PhysicsRate
)

// Game is one rope flight.
type Game struct {
	host engine.Host
	cfg  config.RopeConfig

	bodies    []*body
	index     map[string]int
	ropes     []link
	obstacles []*obstacle
	nextID    int
	score     int
	ticks     int

	physics   clock.Timer
	broadcast clock.Timer
	running   bool
	over      bool
}

// New creates an uninitialized flight bound to host.
func New(host engine.Host) engine.Instance {
	return &Game{host: host}
}

func (g *Game) Initialize(cfg config.GameConfig) error {
	typed, err := engine.ConfigAs[config.RopeConfig](cfg)
	if err != nil {
		return err
	}
	g.cfg = typed
	return nil
}

func (g *Game) Start() {
	players := g.host.Players()
	engine.ResetScores(players)

	g.bodies = make([]*body, len(players))
	g.index = make(map[string]int, len(players))
	for i, p := range players {
		g.bodies[i] = &body{
			playerID: p.ID,
			x:        startX + float64(i)*startSpacing,
			y:        startY,
		}
		g.index[p.ID] = i
	}
	g.ropes = links(len(g.bodies), g.cfg.ConnectAll)
	g.obstacles = nil
	g.score, g.ticks = 0, 0
	g.spawnObstacles()

	g.running, g.over = true, false
	g.broadcastState()

	sched := g.host.Scheduler()
	g.physics = sched.Every(time.Second/PhysicsRate, g.step)
	g.broadcast = sched.Every(time.Second/BroadcastRate, g.broadcastState)
}

func (g *Game) Stop() {
	g.running = false
	if g.physics != nil {
		g.physics.Stop()
		g.physics = nil
	}
	if g.broadcast != nil {
		g.broadcast.Stop()
		g.broadcast = nil
	}
}

func (g *Game) Destroy() {
	g.Stop()
	g.bodies = nil
	g.obstacles = nil
	g.index = nil
}

func (g *Game) HandlePacket(sender string, pkt protocol.Packet) {
	switch pkt.Type() {
	case protocol.TypeJump:
		g.jump(sender)
	default:
		g.host.Logger().Debug("Unhandled rope packet", "type", pkt.Type(), "player", sender)
	}
}

func (g *Game) jump(sender string) {
	if !g.running || g.over {
		return
	}
	i, ok := g.index[sender]
	if !ok {
		return
	}
	b := g.bodies[i]
	b.vy += JumpVY
	b.vx += JumpVX
	g.host.Broadcast(protocol.New(protocol.TypeJump, Jump{PlayerID: sender}))
}

// step advances the world by one physics tick.
func (g *Game) step() {
	if !g.running || g.over {
		return
	}
	g.ticks++

	for _, l := range g.ropes {
		pull(g.bodies[l.a], g.bodies[l.b], physicsDT)
	}
	for _, b := range g.bodies {
		integrate(b, physicsDT)
	}

	shift := float64(g.cfg.ScrollSpeed) * physicsDT
	for _, o := range g.obstacles {
		o.x -= shift
	}
	g.scorePasses()
	g.despawnObstacles()
	g.spawnObstacles()

	if cause, who, hit := g.collision(); hit {
		g.gameOver(cause, who)
	}
}

func (g *Game) spawnObstacles() {
	spacing := float64(g.cfg.ObstacleSpacing)
	next := firstObstacleX
	if n := len(g.obstacles); n > 0 {
		next = g.obstacles[n-1].x + spacing
	}
	for next <= WorldWidth+spacing {
		g.obstacles = append(g.obstacles, g.newObstacle(next))
		next += spacing
	}
}

func (g *Game) newObstacle(x float64) *obstacle {
	gap := float64(g.cfg.GapSize)
	lo := obstacleMargin + gap/2
	hi := GroundY - obstacleMargin - gap/2
	g.nextID++
	return &obstacle{
		id:      g.nextID,
		x:       x,
		gapY:    lo + g.host.Rand().Float64()*(hi-lo),
		gapSize: gap,
	}
}

func (g *Game) despawnObstacles() {
	kept := g.obstacles[:0]
	for _, o := range g.obstacles {
		if o.x+ObstacleWidth >= 0 {
			kept = append(kept, o)
		}
	}
	g.obstacles = kept
}

// scorePasses credits each column once when its trailing edge clears the
// rearmost body.
func (g *Game) scorePasses() {
	if len(g.bodies) == 0 {
		return
	}
	rear := math.Inf(1)
	for _, b := range g.bodies {
		rear = min(rear, b.x-BodyRadius)
	}
	for _, o := range g.obstacles {
		if !o.passed && o.x+ObstacleWidth < rear {
			o.passed = true
			g.score++
		}
	}
}

func (g *Game) collision() (cause, playerID string, hit bool) {
	for _, b := range g.bodies {
		if b.y+BodyRadius >= GroundY {
			return CauseGround, b.playerID, true
		}
		for _, o := range g.obstacles {
			if o.hits(b) {
				return CauseObstacle, b.playerID, true
			}
		}
	}
	return "", "", false
}

func (g *Game) gameOver(cause, playerID string) {
	if g.over {
		return
	}
	g.over = true
	g.Stop()

	for _, p := range g.host.Players() {
		p.Report.Score = g.score
	}
	g.broadcastState()
	g.host.Broadcast(protocol.New(protocol.TypeRopeGameOver, GameOver{
		Cause:    cause,
		PlayerID: playerID,
		Score:    g.score,
	}))
	g.host.Finish()
}

func (g *Game) broadcastState() {
	g.host.Broadcast(protocol.New(protocol.TypeRopeState, g.snapshot()))
}

func (g *Game) snapshot() State {
	state := State{
		Tick:      g.ticks,
		Bodies:    make([]BodyState, 0, len(g.bodies)),
		Ropes:     make([]RopeState, 0, len(g.ropes)),
		Obstacles: make([]ObstacleState, 0, len(g.obstacles)),
		Score:     g.score,
	}
	heading := float64(g.cfg.ScrollSpeed)
	for _, b := range g.bodies {
		state.Bodies = append(state.Bodies, BodyState{
			PlayerID: b.playerID,
			X:        b.x,
			Y:        b.y,
			VX:       b.vx,
			VY:       b.vy,
			Angle:    math.Atan2(b.vy, heading+b.vx),
		})
	}
	for _, l := range g.ropes {
		a, b := g.bodies[l.a], g.bodies[l.b]
		points, taut := samplePoints(a, b)
		state.Ropes = append(state.Ropes, RopeState{
			From:   a.playerID,
			To:     b.playerID,
			Taut:   taut,
			Points: points,
		})
	}
	for _, o := range g.obstacles {
		state.Obstacles = append(state.Obstacles, ObstacleState{
			ID:      o.id,
			X:       o.x,
			Width:   ObstacleWidth,
			GapY:    o.gapY,
			GapSize: o.gapSize,
		})
	}
	return state
}

// Score is the number of columns cleared.
func (g *Game) Score() int {
	return g.score
}

// Over reports whether the flight has crashed.
func (g *Game) Over() bool {
	return g.over
}
