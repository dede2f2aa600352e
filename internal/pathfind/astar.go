// Package pathfind computes shortest 4-directional paths over a walkability
// view of the grid.
package pathfind

import (
	"container/heap"

	"github.com/talgya/gridcity/internal/grid"
)

// MaxAttempts bounds how many random destinations a caller tries before
// giving up and staying in place.
const MaxAttempts = 50

// Graph is the walkability view a query runs against. *grid.Query and
// *grid.CollisionMatrix both satisfy it.
type Graph interface {
	InBounds(c grid.Coord) bool
	Walkable(c grid.Coord) bool
}

// FindPath returns the shortest path from start to end, inclusive of both.
// start == end yields a single-element path. Returns nil, false when the end
// is blocked or unreachable. The start cell itself is not required to be
// walkable; the end cell is.
//
// Ties between equal-cost routes are broken by (f, h, insertion order) with
// neighbors expanded in grid.NeighborDirections order, so a fixed graph
// always yields the same path.
func FindPath(g Graph, start, end grid.Coord) ([]grid.Coord, bool) {
	if !g.InBounds(start) || !g.InBounds(end) {
		return nil, false
	}
	if start == end {
		return []grid.Coord{start}, true
	}
	if !g.Walkable(end) {
		return nil, false
	}

	open := &openSet{}
	cost := map[grid.Coord]int{start: 0}
	parent := make(map[grid.Coord]grid.Coord)
	closed := make(map[grid.Coord]bool)
	seq := 0

	heap.Push(open, &node{coord: start, g: 0, h: grid.Manhattan(start, end), seq: seq})

	for open.Len() > 0 {
		cur := heap.Pop(open).(*node)
		if closed[cur.coord] {
			continue
		}
		if cur.coord == end {
			return reconstruct(parent, start, end), true
		}
		closed[cur.coord] = true

		for _, n := range cur.coord.Neighbors() {
			if closed[n] || !g.InBounds(n) || !g.Walkable(n) {
				continue
			}
			ng := cur.g + 1
			if prev, seen := cost[n]; seen && prev <= ng {
				continue
			}
			cost[n] = ng
			parent[n] = cur.coord
			seq++
			heap.Push(open, &node{coord: n, g: ng, h: grid.Manhattan(n, end), seq: seq})
		}
	}

	return nil, false
}

// Valid reports whether every consecutive pair of steps is 4-adjacent.
func Valid(path []grid.Coord) bool {
	for i := 1; i < len(path); i++ {
		if !path[i-1].Adjacent(path[i]) {
			return false
		}
	}
	return len(path) > 0
}

func reconstruct(parent map[grid.Coord]grid.Coord, start, end grid.Coord) []grid.Coord {
	path := []grid.Coord{end}
	for cur := end; cur != start; {
		cur = parent[cur]
		path = append(path, cur)
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	return path
}

type node struct {
	coord grid.Coord
	g     int // Steps from start
	h     int // Manhattan estimate to end
	seq   int // Insertion order, final tie-break
}

func (n *node) f() int { return n.g + n.h }

// openSet is a min-heap ordered by (f, h, seq).
type openSet []*node

func (s openSet) Len() int { return len(s) }

func (s openSet) Less(i, j int) bool {
	a, b := s[i], s[j]
	if a.f() != b.f() {
		return a.f() < b.f()
	}
	if a.h != b.h {
		return a.h < b.h
	}
	return a.seq < b.seq
}

func (s openSet) Swap(i, j int) { s[i], s[j] = s[j], s[i] }

func (s *openSet) Push(x any) { *s = append(*s, x.(*node)) }

func (s *openSet) Pop() any {
	old := *s
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*s = old[:len(old)-1]
	return n
}
