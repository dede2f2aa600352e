package grid

// CollisionMatrix is the derived walkability grid: true = traversable.
// It is patched cell-by-cell as tiles change and never rebuilt per query.
type CollisionMatrix struct {
	width  int
	height int
	cells  []bool
}

// NewCollisionMatrix creates a fully blocked matrix.
func NewCollisionMatrix(width, height int) *CollisionMatrix {
	return &CollisionMatrix{
		width:  width,
		height: height,
		cells:  make([]bool, width*height),
	}
}

// InBounds returns true if the coordinate lies inside the matrix.
func (m *CollisionMatrix) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < m.width && c.Y < m.height
}

// Walkable reports the matrix value. Out of bounds is blocked.
func (m *CollisionMatrix) Walkable(c Coord) bool {
	if !m.InBounds(c) {
		return false
	}
	return m.cells[c.Y*m.width+c.X]
}

// Set patches a single cell.
func (m *CollisionMatrix) Set(c Coord, walkable bool) {
	if m.InBounds(c) {
		m.cells[c.Y*m.width+c.X] = walkable
	}
}

// Clone returns an independent copy of the matrix.
func (m *CollisionMatrix) Clone() *CollisionMatrix {
	out := &CollisionMatrix{width: m.width, height: m.height, cells: make([]bool, len(m.cells))}
	copy(out.cells, m.cells)
	return out
}

// Query is a per-path-query view over the grid's collision matrix with
// small scoped exceptions. Precedence: Open > Blocked > RoadsOnly > matrix.
type Query struct {
	grid      *Grid
	roadsOnly bool
	open      []Coord
	blocked   map[Coord]struct{}
}

// Query starts a new query view over the current collision matrix.
func (g *Grid) Query() *Query {
	return &Query{grid: g}
}

// RoadsOnly restricts traversal to road tiles.
func (q *Query) RoadsOnly() *Query {
	q.roadsOnly = true
	return q
}

// Open forces the given cells traversable, e.g. the querying agent's own
// cell or its destination.
func (q *Query) Open(cells ...Coord) *Query {
	q.open = append(q.open, cells...)
	return q
}

// Block forces the given cells non-traversable (lane exclusivity).
func (q *Query) Block(cells ...Coord) *Query {
	if q.blocked == nil {
		q.blocked = make(map[Coord]struct{}, len(cells))
	}
	for _, c := range cells {
		q.blocked[c] = struct{}{}
	}
	return q
}

// InBounds returns true if the coordinate lies on the grid.
func (q *Query) InBounds(c Coord) bool {
	return q.grid.InBounds(c)
}

// Walkable resolves the cell against the exceptions and the base matrix.
func (q *Query) Walkable(c Coord) bool {
	if !q.grid.InBounds(c) {
		return false
	}
	for _, o := range q.open {
		if o == c {
			return true
		}
	}
	if _, ok := q.blocked[c]; ok {
		return false
	}
	if q.roadsOnly {
		return q.grid.HasRoad(c)
	}
	return q.grid.collision.Walkable(c)
}
