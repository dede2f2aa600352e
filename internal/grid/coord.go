// Package grid provides the square tile grid, terrain attributes, and the
// collision matrix that pathfinding reads.
package grid

import "fmt"

// Coord is a cell position on the grid. X grows right, Y grows down.
type Coord struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// C is a convenience constructor for Coord.
func C(x, y int) Coord { return Coord{X: x, Y: y} }

// NeighborDirections defines the four neighbor offsets: left, right, up, down.
// The order is fixed so adjacency scans and path expansion are deterministic.
var NeighborDirections = [4]Coord{
	{X: -1, Y: 0},
	{X: 1, Y: 0},
	{X: 0, Y: -1},
	{X: 0, Y: 1},
}

// Neighbors returns the four orthogonally adjacent coordinates.
func (c Coord) Neighbors() [4]Coord {
	var result [4]Coord
	for i, dir := range NeighborDirections {
		result[i] = Coord{X: c.X + dir.X, Y: c.Y + dir.Y}
	}
	return result
}

// Adjacent reports whether two coordinates are exactly one orthogonal step apart.
func (c Coord) Adjacent(o Coord) bool {
	return Manhattan(c, o) == 1
}

func (c Coord) String() string {
	return fmt.Sprintf("(%d,%d)", c.X, c.Y)
}

// Manhattan returns the 4-directional distance between two coordinates.
func Manhattan(a, b Coord) int {
	dx := a.X - b.X
	dy := a.Y - b.Y
	if dx < 0 {
		dx = -dx
	}
	if dy < 0 {
		dy = -dy
	}
	return dx + dy
}
