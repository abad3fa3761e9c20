package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Issue is a field of a settings file that will not take effect.
type Issue struct {
	Field  string
	Value  any
	Kept   any
	Reason string
}

func (i Issue) String() string {
	if i.Kept == nil {
		return fmt.Sprintf("%s: %s", i.Field, i.Reason)
	}
	return fmt.Sprintf("%s=%v: %s, keeping %v", i.Field, i.Value, i.Reason, i.Kept)
}

// Report is the outcome of validating one settings file.
type Report struct {
	File   string
	Game   GameType
	Config GameConfig
	Issues []Issue
	Err    error
}

// Valid reports whether the file loads with every field applied.
func (r Report) Valid() bool {
	return r.Err == nil && len(r.Issues) == 0
}

// Validate loads a <gametype>.json|yaml file and lists the fields that
// sanitization would drop.
func Validate(path string) Report {
	report := Report{File: path}

	gameType, ok := gameTypeForFile(path)
	if !ok {
		report.Err = fmt.Errorf("%w: %s is not named after a game type", ErrUnknownGameType, filepath.Base(path))
		return report
	}
	report.Game = gameType

	raw, err := readSettings(path)
	if err != nil {
		report.Err = err
		return report
	}

	builtin, err := Builtin(gameType)
	if err != nil {
		report.Err = err
		return report
	}
	cfg := builtin.Merge(raw)
	report.Config = cfg

	fields, err := fieldsOf(cfg)
	if err != nil {
		report.Err = err
		return report
	}

	keys := make([]string, 0, len(raw))
	for k := range raw {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, k := range keys {
		v := raw[k]
		kept, known := fields[strings.ToLower(k)]
		switch {
		case !known:
			report.Issues = append(report.Issues, Issue{Field: k, Value: v, Reason: "unknown field"})
		case !sameValue(v, kept):
			report.Issues = append(report.Issues, Issue{Field: k, Value: v, Kept: kept, Reason: "out of range or wrong type"})
		}
	}
	return report
}

// Validate checks every settings file in the config directory. A file
// shadowed by another extension of the same game is reported as an error.
func (m *Manager) Validate() ([]Report, error) {
	if m.configDir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(m.configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read config directory: %w", err)
	}

	var reports []Report
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(m.configDir, entry.Name())
		gameType, ok := gameTypeForFile(path)
		if !ok {
			continue
		}
		if active := m.findFile(gameType); active != path {
			reports = append(reports, Report{
				File: path,
				Game: gameType,
				Err:  fmt.Errorf("shadowed by %s", filepath.Base(active)),
			})
			continue
		}
		reports = append(reports, Validate(path))
	}
	return reports, nil
}

// Describe summarises settings in one line.
func Describe(cfg GameConfig) string {
	switch c := cfg.(type) {
	case CellMatchConfig:
		lo := 1
		if c.IncludeZero {
			lo = 0
		}
		return fmt.Sprintf("%dx%d board (%d cells), values %d-%d, %ds round",
			c.Rows, c.Cols, c.Rows*c.Cols, lo, c.MaxNumber, c.TimeLimit)
	case MinefieldConfig:
		cells := c.Rows * c.Cols
		density := 0.0
		if cells > 0 {
			density = float64(c.MineCount()) / float64(cells) * 100
		}
		limit := "no time limit"
		if c.TimeLimit > 0 {
			limit = fmt.Sprintf("%ds limit", c.TimeLimit)
		}
		return fmt.Sprintf("%dx%d grid, %d mines (%.1f%% density), %s",
			c.Rows, c.Cols, c.MineCount(), density, limit)
	case RopeConfig:
		ropes := "chain"
		if c.ConnectAll {
			ropes = "loop"
		}
		return fmt.Sprintf("scroll %d px/s, obstacle every %d px, %d px gap, %s ropes",
			c.ScrollSpeed, c.ObstacleSpacing, c.GapSize, ropes)
	default:
		return fmt.Sprintf("%v", cfg)
	}
}

// fieldsOf flattens cfg into its JSON fields keyed in lower case.
func fieldsOf(cfg GameConfig) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var fields map[string]any
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, err
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[strings.ToLower(k)] = v
	}
	return out, nil
}

func sameValue(raw, kept any) bool {
	switch k := kept.(type) {
	case bool:
		b, ok := raw.(bool)
		return ok && b == k
	case float64:
		n, ok := toInt(raw)
		return ok && float64(n) == k
	default:
		return false
	}
}
