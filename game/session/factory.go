package session

import (
	"github.com/wricardo/partyroom/game/cellmatch"
	"github.com/wricardo/partyroom/game/config"
	"github.com/wricardo/partyroom/game/engine"
	"github.com/wricardo/partyroom/game/minefield"
	"github.com/wricardo/partyroom/game/rope"
)

// DefaultFactory registers every built-in game.
func DefaultFactory() engine.Factory {
	return engine.Factory{
		config.CellMatch: cellmatch.New,
		config.Minefield: minefield.New,
		config.Rope:      rope.New,
	}
}
