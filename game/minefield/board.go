package minefield

type tile struct {
	mine       bool
	adjacent   int
	state      TileState
	revealedBy string
	flaggedBy  string
}

type board struct {
	rows, cols int
	tiles      []tile
	mines      int
	safe       int
	revealed   int // safe tiles revealed
}

func newBoard(rows, cols int, mineIdx []int) *board {
	b := &board{
		rows:  rows,
		cols:  cols,
		tiles: make([]tile, rows*cols),
	}
	for i := range b.tiles {
		b.tiles[i].state = Hidden
	}
	for _, idx := range mineIdx {
		if !b.tiles[idx].mine {
			b.tiles[idx].mine = true
			b.mines++
		}
	}
	b.safe = len(b.tiles) - b.mines

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			t := b.at(r, c)
			if t.mine {
				continue
			}
			b.neighbors(r, c, func(nr, nc int) {
				if b.at(nr, nc).mine {
					t.adjacent++
				}
			})
		}
	}
	return b
}

func (b *board) inBounds(r, c int) bool {
	return r >= 0 && r < b.rows && c >= 0 && c < b.cols
}

func (b *board) at(r, c int) *tile {
	return &b.tiles[r*b.cols+c]
}

func (b *board) neighbors(r, c int, fn func(nr, nc int)) {
	for dr := -1; dr <= 1; dr++ {
		for dc := -1; dc <= 1; dc++ {
			if dr == 0 && dc == 0 {
				continue
			}
			if nr, nc := r+dr, c+dc; b.inBounds(nr, nc) {
				fn(nr, nc)
			}
		}
	}
}

// view renders a tile, hiding mine and adjacency data until revealed.
func (b *board) view(r, c int) TileView {
	t := b.at(r, c)
	v := TileView{Row: r, Col: c, State: t.state, FlaggedBy: t.flaggedBy}
	if t.state == Revealed {
		adj := t.adjacent
		v.Mine = t.mine
		v.Adjacent = &adj
		v.RevealedBy = t.revealedBy
	}
	return v
}

func (b *board) grid() [][]TileView {
	out := make([][]TileView, b.rows)
	for r := range out {
		out[r] = make([]TileView, b.cols)
		for c := range out[r] {
			out[r][c] = b.view(r, c)
		}
	}
	return out
}

type floodStep struct {
	row, col, dist int
}

// flood reveals tiles breadth-first from (r, c). Blank safe tiles expand to
// their hidden neighbours; mines and numbered tiles are leaves. Flagged and
// revealed tiles are never visited.
func (b *board) flood(r, c int, by string) []floodStep {
	seed := b.at(r, c)
	if seed.state != Hidden {
		return nil
	}
	seed.state = Revealed
	seed.revealedBy = by

	queue := []floodStep{{row: r, col: c}}
	for i := 0; i < len(queue); i++ {
		step := queue[i]
		t := b.at(step.row, step.col)
		if !t.mine {
			b.revealed++
		}
		if t.mine || t.adjacent > 0 {
			continue
		}
		b.neighbors(step.row, step.col, func(nr, nc int) {
			n := b.at(nr, nc)
			if n.state != Hidden {
				return
			}
			n.state = Revealed
			n.revealedBy = by
			queue = append(queue, floodStep{row: nr, col: nc, dist: step.dist + 1})
		})
	}
	return queue
}

func (b *board) cleared() bool {
	return b.revealed == b.safe
}
