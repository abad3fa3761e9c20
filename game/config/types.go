package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
)

var ErrUnknownGameType = errors.New("unknown game type")

// GameType selects which game instance a room runs.
type GameType string

const (
	CellMatch GameType = "cellmatch"
	Minefield GameType = "minefield"
	Rope      GameType = "rope"
)

// AllGameTypes lists every playable game type in lobby order.
func AllGameTypes() []GameType {
	return []GameType{CellMatch, Minefield, Rope}
}

// ParseGameType validates a game type name.
func ParseGameType(name string) (GameType, error) {
	for _, gt := range AllGameTypes() {
		if string(gt) == name {
			return gt, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownGameType, name)
}

// GameConfig is the settings of one game type. Implementations are
// comparable value types so an unchanged merge can be detected with ==.
type GameConfig interface {
	Game() GameType
	// Merge applies raw on top of the receiver field by field.
	Merge(raw map[string]any) GameConfig
}

// Builtin returns the built-in defaults for a game type.
func Builtin(gameType GameType) (GameConfig, error) {
	switch gameType {
	case CellMatch:
		return DefaultCellMatch(), nil
	case Minefield:
		return DefaultMinefield(), nil
	case Rope:
		return DefaultRope(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownGameType, gameType)
	}
}

// CellMatchConfig configures the sum-to-ten board.
type CellMatchConfig struct {
	Rows        int  `json:"rows"`
	Cols        int  `json:"cols"`
	MaxNumber   int  `json:"maxNumber"`
	IncludeZero bool `json:"includeZero"`
	TimeLimit   int  `json:"timeLimit"` // seconds
}

// DefaultCellMatch returns the built-in CellMatch settings.
func DefaultCellMatch() CellMatchConfig {
	return CellMatchConfig{Rows: 10, Cols: 17, MaxNumber: 9, IncludeZero: false, TimeLimit: 120}
}

func (c CellMatchConfig) Game() GameType { return CellMatch }

func (c CellMatchConfig) Merge(raw map[string]any) GameConfig {
	out := c
	out.Rows = intField(raw, "rows", 3, 20, c.Rows)
	out.Cols = intField(raw, "cols", 3, 30, c.Cols)
	out.MaxNumber = intField(raw, "maxNumber", 1, 9, c.MaxNumber)
	out.IncludeZero = boolField(raw, "includeZero", c.IncludeZero)
	out.TimeLimit = intField(raw, "timeLimit", 10, 600, c.TimeLimit)
	return out
}

// MinefieldConfig configures the shared minefield. TimeLimit 0 disables
// the clock.
type MinefieldConfig struct {
	Rows      int `json:"rows"`
	Cols      int `json:"cols"`
	Mines     int `json:"mines"`
	TimeLimit int `json:"timeLimit"` // seconds
}

// DefaultMinefield returns the built-in Minefield settings.
func DefaultMinefield() MinefieldConfig {
	return MinefieldConfig{Rows: 16, Cols: 30, Mines: 99, TimeLimit: 0}
}

func (c MinefieldConfig) Game() GameType { return Minefield }

func (c MinefieldConfig) Merge(raw map[string]any) GameConfig {
	out := c
	out.Rows = intField(raw, "rows", 5, 30, c.Rows)
	out.Cols = intField(raw, "cols", 5, 40, c.Cols)
	out.Mines = intField(raw, "mines", 1, out.Rows*out.Cols-1, c.Mines)
	if v, ok := lookup(raw, "timeLimit"); ok {
		if n, ok := toInt(v); ok && (n == 0 || (n >= 30 && n <= 1800)) {
			out.TimeLimit = n
		}
	}
	return out
}

// MineCount is the number of mines actually placed: never more than the
// grid size minus one.
func (c MinefieldConfig) MineCount() int {
	limit := c.Rows*c.Cols - 1
	if c.Mines > limit {
		return max(limit, 0)
	}
	if c.Mines < 0 {
		return 0
	}
	return c.Mines
}

// RopeConfig configures the rope flight game.
type RopeConfig struct {
	ConnectAll      bool `json:"connectAll"`
	ScrollSpeed     int  `json:"scrollSpeed"`     // px/s
	ObstacleSpacing int  `json:"obstacleSpacing"` // px
	GapSize         int  `json:"gapSize"`         // px
}

// DefaultRope returns the built-in rope game settings.
func DefaultRope() RopeConfig {
	return RopeConfig{ConnectAll: false, ScrollSpeed: 180, ObstacleSpacing: 320, GapSize: 200}
}

func (c RopeConfig) Game() GameType { return Rope }

func (c RopeConfig) Merge(raw map[string]any) GameConfig {
	out := c
	out.ConnectAll = boolField(raw, "connectAll", c.ConnectAll)
	out.ScrollSpeed = intField(raw, "scrollSpeed", 60, 400, c.ScrollSpeed)
	out.ObstacleSpacing = intField(raw, "obstacleSpacing", 220, 600, c.ObstacleSpacing)
	out.GapSize = intField(raw, "gapSize", 140, 320, c.GapSize)
	return out
}

// lookup finds key in raw, falling back to a case-insensitive match since
// viper lowercases keys read from files.
func lookup(raw map[string]any, key string) (any, bool) {
	if raw == nil {
		return nil, false
	}
	if v, ok := raw[key]; ok {
		return v, true
	}
	for k, v := range raw {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

func intField(raw map[string]any, key string, lo, hi, fallback int) int {
	v, ok := lookup(raw, key)
	if !ok {
		return fallback
	}
	n, ok := toInt(v)
	if !ok || n < lo || n > hi {
		return fallback
	}
	return n
}

func boolField(raw map[string]any, key string, fallback bool) bool {
	v, ok := lookup(raw, key)
	if !ok {
		return fallback
	}
	b, ok := v.(bool)
	if !ok {
		return fallback
	}
	return b
}

// toInt accepts every integer representation JSON, msgpack and viper
// produce. Fractional floats are rejected.
func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		if n > math.MaxInt32 {
			return 0, false
		}
		return int(n), true
	case float32:
		return floatToInt(float64(n))
	case float64:
		return floatToInt(n)
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, false
		}
		return int(i), true
	default:
		return 0, false
	}
}

func floatToInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || math.Abs(f) > math.MaxInt32 {
		return 0, false
	}
	return int(f), true
}
