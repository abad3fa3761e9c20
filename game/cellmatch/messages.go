package cellmatch

import "github.com/wricardo/partyroom/game/engine"

// SetField carries the whole board, row-major.
type SetField struct {
	Rows  int   `json:"rows"`
	Cols  int   `json:"cols"`
	Cells []int `json:"cells"`
}

// SetTime starts the client countdown. StartedAt is unix milliseconds.
type SetTime struct {
	Seconds   int   `json:"seconds"`
	StartedAt int64 `json:"startedAt"`
}

// Rect is a selection rectangle in board coordinates.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// DragArea is an in-progress selection. PlayerID is filled in by the
// server on relay.
type DragArea struct {
	PlayerID string `json:"playerId,omitempty"`
	Rect     Rect   `json:"rect"`
}

// ConfirmSelection claims a set of cells.
type ConfirmSelection struct {
	Indices []int `json:"indices"`
}

// CellsDropped announces a successful claim.
type CellsDropped struct {
	PlayerID string `json:"playerId"`
	Indices  []int  `json:"indices"`
	Score    int    `json:"score"`
}

// ScoreEntry is one row of the scoreboard.
type ScoreEntry struct {
	PlayerID string `json:"playerId"`
	Score    int    `json:"score"`
}

// ScoreSnapshot is the scoreboard in roster order.
type ScoreSnapshot struct {
	Scores []ScoreEntry `json:"scores"`
}

// TimeEnd carries the final ranking.
type TimeEnd struct {
	Results []engine.Result `json:"results"`
}
