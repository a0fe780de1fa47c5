package world

import "fmt"

// Grid is a bounded multi-occupancy grid. Each cell holds an insertion-ordered
// set of occupant IDs and a reverse index maps every occupant to its cell.
// The two indexes always agree; misuse (out-of-bounds cells, unknown or
// duplicate occupants) panics because it can only come from a caller bug.
type Grid[ID comparable] struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	cells map[Position][]ID
	index map[ID]Position
}

// NewGrid creates an empty width×height grid.
func NewGrid[ID comparable](width, height int) *Grid[ID] {
	if width < 1 || height < 1 {
		panic(fmt.Sprintf("world: invalid grid size %dx%d", width, height))
	}
	return &Grid[ID]{
		Width:  width,
		Height: height,
		cells:  make(map[Position][]ID),
		index:  make(map[ID]Position),
	}
}

// InBounds reports whether p lies on the grid.
func (g *Grid[ID]) InBounds(p Position) bool {
	return p.X >= 0 && p.X < g.Width && p.Y >= 0 && p.Y < g.Height
}

// Cells returns the number of cells on the grid.
func (g *Grid[ID]) Cells() int {
	return g.Width * g.Height
}

// Len returns the number of placed occupants.
func (g *Grid[ID]) Len() int {
	return len(g.index)
}

// Neighbors returns the in-bounds Moore neighbourhood of p, center excluded.
// Corner cells have 3 neighbours, edge cells 5, interior cells 8.
func (g *Grid[ID]) Neighbors(p Position) []Position {
	g.mustBeInBounds(p)
	result := make([]Position, 0, len(mooreOffsets))
	for _, off := range mooreOffsets {
		n := Position{X: p.X + off.X, Y: p.Y + off.Y}
		if g.InBounds(n) {
			result = append(result, n)
		}
	}
	return result
}

// Place puts a new occupant on the grid.
func (g *Grid[ID]) Place(id ID, p Position) {
	g.mustBeInBounds(p)
	if old, ok := g.index[id]; ok {
		panic(fmt.Sprintf("world: occupant %v already placed at %s", id, old))
	}
	g.cells[p] = append(g.cells[p], id)
	g.index[id] = p
}

// Move relocates an occupant: it leaves its current cell and is appended to
// the end of the destination cell's set.
func (g *Grid[ID]) Move(id ID, p Position) {
	g.mustBeInBounds(p)
	old, ok := g.index[id]
	if !ok {
		panic(fmt.Sprintf("world: cannot move unplaced occupant %v", id))
	}
	g.removeFromCell(id, old)
	g.cells[p] = append(g.cells[p], id)
	g.index[id] = p
}

// Occupants returns a copy of the occupants of p in insertion order.
func (g *Grid[ID]) Occupants(p Position) []ID {
	g.mustBeInBounds(p)
	ids := g.cells[p]
	out := make([]ID, len(ids))
	copy(out, ids)
	return out
}

// IsEmpty reports whether no occupant is on p.
func (g *Grid[ID]) IsEmpty(p Position) bool {
	g.mustBeInBounds(p)
	return len(g.cells[p]) == 0
}

// PositionOf returns the cell an occupant is on.
func (g *Grid[ID]) PositionOf(id ID) (Position, bool) {
	p, ok := g.index[id]
	return p, ok
}

// Verify checks that the cell sets and the reverse index agree.
func (g *Grid[ID]) Verify() error {
	seen := 0
	for p, ids := range g.cells {
		for _, id := range ids {
			at, ok := g.index[id]
			if !ok {
				return fmt.Errorf("occupant %v in cell %s has no index entry", id, p)
			}
			if at != p {
				return fmt.Errorf("occupant %v in cell %s but indexed at %s", id, p, at)
			}
			seen++
		}
	}
	if seen != len(g.index) {
		return fmt.Errorf("cells hold %d occupants, index holds %d", seen, len(g.index))
	}
	return nil
}

// String returns a summary of the grid.
func (g *Grid[ID]) String() string {
	return fmt.Sprintf("Grid(%dx%d, occupants=%d)", g.Width, g.Height, g.Len())
}

func (g *Grid[ID]) removeFromCell(id ID, p Position) {
	ids := g.cells[p]
	for i, other := range ids {
		if other == id {
			ids = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(g.cells, p)
		return
	}
	g.cells[p] = ids
}

func (g *Grid[ID]) mustBeInBounds(p Position) {
	if !g.InBounds(p) {
		panic(fmt.Sprintf("world: position %s outside %dx%d grid", p, g.Width, g.Height))
	}
}
