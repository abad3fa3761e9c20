package rope

import "math"

// World geometry and tuning, in pixels and seconds.
const (
	WorldWidth  = 960.0
	WorldHeight = 540.0
	GroundY     = 500.0

	BodyRadius = 16.0
	Gravity    = 980.0
	JumpVY     = -420.0
	JumpVX     = 40.0

	RestLength    = 90.0
	RopeStiffness = 40.0
	RopeDamping   = 4.0
	RopeSamples   = 8

	ObstacleWidth  = 70.0
	obstacleMargin = 60.0
	firstObstacleX = WorldWidth + 100.0

	horizontalDrag = 1.5
	startX         = 120.0
	startY         = 200.0
	startSpacing   = 70.0
)

// Collision causes.
const (
	CauseGround   = "ground"
	CauseObstacle = "obstacle"
)

type body struct {
	playerID string
	x, y     float64
	vx, vy   float64
}

type link struct {
	a, b int
}

type obstacle struct {
	id      int
	x       float64
	gapY    float64
	gapSize float64
	passed  bool
}

func (o *obstacle) gapTop() float64 { return o.gapY - o.gapSize/2 }
func (o *obstacle) gapBottom() float64 { return o.gapY + o.gapSize/2 }

// hits reports whether a body circle overlaps the solid part of the column.
func (o *obstacle) hits(b *body) bool {
	if b.x+BodyRadius <= o.x || b.x-BodyRadius >= o.x+ObstacleWidth {
		return false
	}
	return b.y-BodyRadius < o.gapTop() || b.y+BodyRadius > o.gapBottom()
}

// links connects neighbours in roster order, closing the loop when
// connectAll is set and there are at least three bodies.
func links(n int, connectAll bool) []link {
	if n < 2 {
		return nil
	}
	out := make([]link, 0, n)
	for i := 0; i+1 < n; i++ {
		out = append(out, link{a: i, b: i + 1})
	}
	if connectAll && n >= 3 {
		out = append(out, link{a: n - 1, b: 0})
	}
	return out
}

// pull applies the rope spring to both ends. A slack rope does nothing.
func pull(a, b *body, dt float64) {
	dx, dy := b.x-a.x, b.y-a.y
	dist := math.Hypot(dx, dy)
	if dist <= RestLength || dist == 0 {
		return
	}
	nx, ny := dx/dist, dy/dist

	stretch := dist - RestLength
	closing := (b.vx-a.vx)*nx + (b.vy-a.vy)*ny
	accel := RopeStiffness*stretch + RopeDamping*closing
	dvx, dvy := nx*accel*dt/2, ny*accel*dt/2

	a.vx += dvx
	a.vy += dvy
	b.vx -= dvx
	b.vy -= dvy
}

// integrate advances one body by dt under gravity and drag.
func integrate(b *body, dt float64) {
	b.vy += Gravity * dt
	b.vx -= b.vx * horizontalDrag * dt
	b.x += b.vx * dt
	b.y += b.vy * dt

	if b.x < BodyRadius {
		b.x, b.vx = BodyRadius, 0
	}
	if b.x > WorldWidth-BodyRadius {
		b.x, b.vx = WorldWidth-BodyRadius, 0
	}
	if b.y < BodyRadius {
		b.y, b.vy = BodyRadius, 0
	}
}

// samplePoints draws a rope as RopeSamples+1 points. A slack rope sags
// by the amount the extra length allows.
func samplePoints(a, b *body) ([][2]float64, bool) {
	dist := math.Hypot(b.x-a.x, b.y-a.y)
	taut := dist >= RestLength
	sag := 0.0
	if !taut {
		sag = math.Sqrt(RestLength*RestLength-dist*dist) / 2
	}

	points := make([][2]float64, RopeSamples+1)
	for i := range points {
		t := float64(i) / RopeSamples
		points[i] = [2]float64{
			a.x + (b.x-a.x)*t,
			a.y + (b.y-a.y)*t + sag*4*t*(1-t),
		}
	}
	return points, taut
}
