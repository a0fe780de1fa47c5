// Package world provides the bounded square grid agents live on.
// The grid is not toroidal: cells off the edge simply do not exist.
package world

import "fmt"

// Position is a cell on the grid. Valid positions satisfy
// 0 <= X < width and 0 <= Y < height.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns "(x, y)".
func (p Position) String() string {
	return fmt.Sprintf("(%d, %d)", p.X, p.Y)
}

// IsMooreNeighbor reports whether q is one of the eight cells surrounding p.
func (p Position) IsMooreNeighbor(q Position) bool {
	dx := abs(p.X - q.X)
	dy := abs(p.Y - q.Y)
	return dx <= 1 && dy <= 1 && (dx != 0 || dy != 0)
}

// mooreOffsets lists the neighbour offsets in the order Neighbors reports them.
var mooreOffsets = [8]Position{
	{X: -1, Y: -1},
	{X: -1, Y: 0},
	{X: -1, Y: 1},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
	{X: 1, Y: -1},
	{X: 1, Y: 0},
	{X: 1, Y: 1},
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
