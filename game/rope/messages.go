package rope

// Jump is the inbound jump request and its echo.
type Jump struct {
	PlayerID string `json:"playerId,omitempty"`
}

// BodyState is one player's body.
type BodyState struct {
	PlayerID string  `json:"playerId"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	VX       float64 `json:"vx"`
	VY       float64 `json:"vy"`
	Angle    float64 `json:"angle"`
}

// RopeState is a rope between two bodies, sampled for drawing.
type RopeState struct {
	From   string       `json:"from"`
	To     string       `json:"to"`
	Taut   bool         `json:"taut"`
	Points [][2]float64 `json:"points"`
}

// ObstacleState is a column with a gap.
type ObstacleState struct {
	ID      int     `json:"id"`
	X       float64 `json:"x"`
	Width   float64 `json:"width"`
	GapY    float64 `json:"gapY"`
	GapSize float64 `json:"gapSize"`
}

// State is the periodic world snapshot.
type State struct {
	Tick      int             `json:"tick"`
	Bodies    []BodyState     `json:"bodies"`
	Ropes     []RopeState     `json:"ropes"`
	Obstacles []ObstacleState `json:"obstacles"`
	Score     int             `json:"score"`
}

// GameOver ends the flight.
type GameOver struct {
	Cause    string `json:"cause"`
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}
