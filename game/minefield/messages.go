package minefield

import (
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/protocol"
)

// TileState is the visible state of a tile.
type TileState string

const (
	Hidden   TileState = "hidden"
	Revealed TileState = "revealed"
	Flagged  TileState = "flagged"
)

// Score update reasons.
const (
	ReasonReveal     = "reveal"
	ReasonSettlement = "settlement"
)

// End reasons.
const (
	EndWin     = "win"
	EndTimeout = "timeout"
)

// TileView is a tile as clients see it. Mine and Adjacent are only set
// once the tile is revealed; Distance only inside a flood-fill batch.
type TileView struct {
	Row        int       `json:"row"`
	Col        int       `json:"col"`
	State      TileState `json:"state"`
	Mine       bool      `json:"mine,omitempty"`
	Adjacent   *int      `json:"adjacent,omitempty"`
	Distance   *int      `json:"distance,omitempty"`
	RevealedBy string    `json:"revealedBy,omitempty"`
	FlaggedBy  string    `json:"flaggedBy,omitempty"`
}

// Init opens the round. StartedAt is unix milliseconds.
type Init struct {
	Config         config.MinefieldConfig `json:"config"`
	Grid           [][]TileView           `json:"grid"`
	Players        []protocol.PlayerView  `json:"players"`
	RemainingMines int                    `json:"remainingMines"`
	StartedAt      int64                  `json:"startedAt"`
}

// Coord addresses a tile in reveal and flag requests.
type Coord struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// TileUpdate is a batch of changed tiles.
type TileUpdate struct {
	Tiles          []TileView `json:"tiles"`
	RemainingMines int        `json:"remainingMines"`
}

// ScoreUpdate reports one player's score change.
type ScoreUpdate struct {
	PlayerID string `json:"playerId"`
	Delta    int    `json:"delta"`
	Score    int    `json:"score"`
	Reason   string `json:"reason"`
}

// Stats is a player's per-round record, attached to results.
type Stats struct {
	TilesRevealed int `json:"tilesRevealed"`
	MinesHit      int `json:"minesHit"`
	FlagsPlaced   int `json:"flagsPlaced"`
	CorrectFlags  int `json:"correctFlags"`
	WrongFlags    int `json:"wrongFlags"`
}

// End closes the round with a ranking.
type End struct {
	Reason  string          `json:"reason"`
	Results []engine.Result `json:"results"`
}
