package engine

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
)

var (
	ErrColorPoolExhausted = errors.New("color pool exhausted")
	ErrColorNotInUse      = errors.New("color not in use")
)

// Palette is the fixed set of player colours.
var Palette = []string{
	"#e6194b", // red
	"#3cb44b", // green
	"#ffe119", // yellow
	"#4363d8", // blue
	"#f58231", // orange
	"#911eb4", // purple
	"#42d4f4", // cyan
	"#f032e6", // magenta
}

// ColorPool hands out palette colours without ever assigning one colour to
// two players at once. It is not safe for concurrent use.
type ColorPool struct {
	palette []string
	inUse   map[string]bool
}

// NewColorPool creates a pool over palette, or over Palette when empty.
func NewColorPool(palette ...string) *ColorPool {
	if len(palette) == 0 {
		palette = Palette
	}
	return &ColorPool{
		palette: slices.Clone(palette),
		inUse:   make(map[string]bool, len(palette)),
	}
}

// Acquire draws a random free colour. A nil r picks the first free one.
func (p *ColorPool) Acquire(r *rand.Rand) (string, error) {
	free := make([]string, 0, len(p.palette))
	for _, c := range p.palette {
		if !p.inUse[c] {
			free = append(free, c)
		}
	}
	if len(free) == 0 {
		return "", ErrColorPoolExhausted
	}

	color := free[0]
	if r != nil {
		color = free[r.IntN(len(free))]
	}
	p.inUse[color] = true
	return color, nil
}

// Release returns color to the pool.
func (p *ColorPool) Release(color string) error {
	if !p.inUse[color] {
		return fmt.Errorf("%w: %q", ErrColorNotInUse, color)
	}
	delete(p.inUse, color)
	return nil
}

// InUse reports whether color is currently assigned.
func (p *ColorPool) InUse(color string) bool {
	return p.inUse[color]
}

// Available is the number of free colours.
func (p *ColorPool) Available() int {
	return len(p.palette) - len(p.inUse)
}

// Capacity is the palette size.
func (p *ColorPool) Capacity() int {
	return len(p.palette)
}
