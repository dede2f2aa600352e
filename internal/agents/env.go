// Package agents provides the mobile entities of the city: citizens that
// follow a daily schedule and carriers that shuttle resources between
// buildings along roads.
package agents

import (
	"math"
	"math/rand"
	"time"

	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// MoveInterval is the cooldown between logical grid steps.
const MoveInterval = 500 * time.Millisecond

// VisualSpeed is how fast the interpolated position travels, in cells per
// real second.
const VisualSpeed = 2.5

// MaxVisualLag bounds how far, in cells, the drawn position may trail the
// logical tile at high engine speeds.
const MaxVisualLag = 2.0

// ID identifies an agent. Citizens and carriers share one ID space.
type ID uint64

// Env is the explicit handle every agent update receives. Nothing in this
// package reads global state.
type Env struct {
	Now       time.Duration // Simulated time since start
	Delta     time.Duration // Simulated time since the previous sub-step
	Hour      int           // Hour of day, 0–23
	Grid      *grid.Grid
	Buildings *buildings.Registry
	Pool      *economy.Pool
	Occupancy *Occupancy
	Rng       *rand.Rand
}

// Occupancy tracks which agents stand on each tile.
type Occupancy struct {
	cells map[grid.Coord][]ID
}

// NewOccupancy creates an empty occupancy table.
func NewOccupancy() *Occupancy {
	return &Occupancy{cells: make(map[grid.Coord][]ID)}
}

// Add records id on c.
func (o *Occupancy) Add(id ID, c grid.Coord) {
	o.cells[c] = append(o.cells[c], id)
}

// Remove drops id from c. Unknown ids are ignored.
func (o *Occupancy) Remove(id ID, c grid.Coord) {
	ids := o.cells[c]
	for i, v := range ids {
		if v == id {
			ids = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(ids) == 0 {
		delete(o.cells, c)
		return
	}
	o.cells[c] = ids
}

// Move updates both the vacated and the entered tile.
func (o *Occupancy) Move(id ID, from, to grid.Coord) {
	o.Remove(id, from)
	o.Add(id, to)
}

// At returns the agents standing on c.
func (o *Occupancy) At(c grid.Coord) []ID {
	out := make([]ID, len(o.cells[c]))
	copy(out, o.cells[c])
	return out
}

// Cells returns the occupied tiles.
func (o *Occupancy) Cells() []grid.Coord {
	out := make([]grid.Coord, 0, len(o.cells))
	for c := range o.cells {
		out = append(out, c)
	}
	return out
}

// Vec is a position in fractional grid units.
type Vec struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

func vecOf(c grid.Coord) Vec { return Vec{X: float64(c.X), Y: float64(c.Y)} }

// Motion interpolates the drawn position toward the logical cell,
// independent of the movement cadence.
type Motion struct {
	Current Vec     `json:"current"`
	Target  Vec     `json:"target"`
	Speed   float64 `json:"-"`
}

func newMotion(at grid.Coord) Motion {
	return Motion{Current: vecOf(at), Target: vecOf(at), Speed: VisualSpeed}
}

// SetTarget retargets the interpolation.
func (m *Motion) SetTarget(c grid.Coord) {
	m.Target = vecOf(c)
}

// Moving reports whether the drawn position lags the target.
func (m *Motion) Moving() bool {
	return m.Current != m.Target
}

// Step advances the drawn position by Speed·dt of real time, snapping on
// overshoot. A position left more than MaxVisualLag cells behind is pulled
// up to that distance.
func (m *Motion) Step(dt time.Duration) {
	dx, dy := m.Target.X-m.Current.X, m.Target.Y-m.Current.Y
	dist := math.Hypot(dx, dy)
	if dist == 0 {
		return
	}
	travel := m.Speed * dt.Seconds()
	if travel >= dist {
		m.Current = m.Target
		return
	}
	left := dist - travel
	if left > MaxVisualLag {
		left = MaxVisualLag
	}
	m.Current.X = m.Target.X - dx/dist*left
	m.Current.Y = m.Target.Y - dy/dist*left
}

// walker is the grid-following half shared by citizens and carriers.
type walker struct {
	pos     grid.Coord
	motion  Motion
	path    []grid.Coord
	next    int // Index of the next step; path[0] is the starting cell
	movedAt time.Duration
}

func newWalker(at grid.Coord, now time.Duration) walker {
	return walker{pos: at, motion: newMotion(at), movedAt: now}
}

// Pos returns the logical tile.
func (w *walker) Pos() grid.Coord { return w.pos }

// Motion returns the visual interpolation state.
func (w *walker) Motion() Motion { return w.motion }

// Animate advances the drawn position by real elapsed time.
func (w *walker) Animate(elapsed time.Duration) { w.motion.Step(elapsed) }

// Path returns the remaining steps, excluding the current cell.
func (w *walker) Path() []grid.Coord {
	if w.path == nil || w.next >= len(w.path) {
		return nil
	}
	out := make([]grid.Coord, len(w.path)-w.next)
	copy(out, w.path[w.next:])
	return out
}

func (w *walker) setPath(p []grid.Coord) {
	w.path = p
	w.next = 1
}

func (w *walker) clearPath() {
	w.path = nil
	w.next = 0
}

func (w *walker) hasPath() bool { return w.path != nil }

func (w *walker) arrived() bool { return w.path != nil && w.next >= len(w.path) }

// due reports whether the movement cooldown has elapsed, restarting it.
func (w *walker) due(now time.Duration) bool {
	if now-w.movedAt < MoveInterval {
		return false
	}
	w.movedAt = now
	return true
}

// step commits one move if the next cell is still walkable.
func (w *walker) step(id ID, occ *Occupancy, walkable func(grid.Coord) bool) bool {
	next := w.path[w.next]
	if !walkable(next) {
		return false
	}
	occ.Move(id, w.pos, next)
	w.pos = next
	w.next++
	w.motion.SetTarget(next)
	return true
}
