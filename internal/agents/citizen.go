package agents

import (
	"log/slog"
	"sort"

	"github.com/talgya/gridcity/internal/grid"
	"github.com/talgya/gridcity/internal/pathfind"
)

// Schedule hours.
const (
	HourWork     = 7  // Resolve a workplace and set off
	HourShiftEnd = 16 // Clock out and wander
	HourHome     = 20 // Head home
)

// CitizenState is a node of the daily schedule.
type CitizenState uint8

const (
	AtHome CitizenState = iota
	Commuting
	AtWork
	Wandering
)

var citizenStateNames = [...]string{"at_home", "commuting", "at_work", "wandering"}

func (s CitizenState) String() string {
	if int(s) < len(citizenStateNames) {
		return citizenStateNames[s]
	}
	return "unknown"
}

// Destination qualifies the Commuting state.
type Destination uint8

const (
	DestNone Destination = iota
	DestHome
	DestWork
)

func (d Destination) String() string {
	switch d {
	case DestHome:
		return "home"
	case DestWork:
		return "work"
	}
	return ""
}

// Citizen lives in a residence and works in a factory. Home and workplace
// are held as coordinates and resolved through the building registry.
type Citizen struct {
	walker

	ID    ID
	State CitizenState
	Dest  Destination

	Home     grid.Coord
	HomeRoad grid.Coord

	Workplace     *grid.Coord // Nil until resolved, and again after a detach
	WorkplaceRoad grid.Coord

	target    *grid.Coord
	clockedIn bool
	dirty     bool
	lastHour  int
}

// NewCitizen creates a citizen at home, standing on the home's road tile.
// The first schedule evaluation happens on the next hour change.
func NewCitizen(id ID, home, homeRoad grid.Coord, env *Env) *Citizen {
	c := &Citizen{
		walker:   newWalker(homeRoad, env.Now),
		ID:       id,
		State:    AtHome,
		Home:     home,
		HomeRoad: homeRoad,
		lastHour: env.Hour,
	}
	env.Occupancy.Add(id, homeRoad)
	return c
}

// Visible reports whether the citizen is drawn (not inside a building).
func (c *Citizen) Visible() bool {
	return c.State != AtHome && c.State != AtWork
}

// ClockedIn reports whether the citizen counts toward its workplace's shift.
func (c *Citizen) ClockedIn() bool { return c.clockedIn }

// Target returns the tile the citizen is walking to, if any.
func (c *Citizen) Target() (grid.Coord, bool) {
	if c.target == nil {
		return grid.Coord{}, false
	}
	return *c.target, true
}

// Update runs one sub-step: schedule evaluation on hour change, then movement.
func (c *Citizen) Update(env *Env) {
	if env.Hour != c.lastHour || c.dirty {
		c.lastHour = env.Hour
		c.dirty = false
		c.evaluate(env)
	}
	c.move(env)
}

func (c *Citizen) evaluate(env *Env) {
	h := env.Hour
	switch {
	case h >= HourWork && h < HourShiftEnd:
		c.toWork(env)
	case h == HourShiftEnd:
		c.clockOut(env)
		c.wander(env)
	case h == HourHome:
		c.clockOut(env)
		c.commute(env, DestHome)
	}
}

func (c *Citizen) toWork(env *Env) {
	if !c.clockIn(env) && !(c.resolveWorkplace(env) && c.clockIn(env)) {
		c.wander(env)
		return
	}
	if c.pos == c.WorkplaceRoad {
		c.State = AtWork
		c.Dest = DestNone
		c.target = nil
		c.clearPath()
		return
	}
	if c.State == Commuting && c.Dest == DestWork && c.hasPath() {
		return
	}
	c.commute(env, DestWork)
}

// resolveWorkplace picks the factory with the fewest workers among those
// with road access, spare capacity and a path. Ties go to creation order.
func (c *Citizen) resolveWorkplace(env *Env) bool {
	factories := env.Buildings.Factories()
	sort.SliceStable(factories, func(i, j int) bool {
		return factories[i].Workers() < factories[j].Workers()
	})
	for _, f := range factories {
		road, ok := f.AdjacentRoad()
		if !ok || f.Workers() >= f.Capacity() {
			continue
		}
		if _, found := pathfind.FindPath(c.query(env, road), c.pos, road); !found {
			continue
		}
		pos := f.Pos()
		c.Workplace = &pos
		c.WorkplaceRoad = road
		c.clockedIn = false
		return true
	}
	slog.Debug("no workplace available", "citizen", c.ID)
	return false
}

// clockIn adds the citizen to its workplace's shift once.
func (c *Citizen) clockIn(env *Env) bool {
	if c.Workplace == nil {
		return false
	}
	f, ok := env.Buildings.FactoryAt(*c.Workplace)
	if !ok {
		c.Workplace = nil
		c.clockedIn = false
		return false
	}
	if c.clockedIn {
		return true
	}
	if !f.AddWorker() {
		c.Workplace = nil
		return false
	}
	c.clockedIn = true
	return true
}

func (c *Citizen) clockOut(env *Env) {
	if !c.clockedIn {
		return
	}
	c.clockedIn = false
	if c.Workplace == nil {
		return
	}
	if f, ok := env.Buildings.FactoryAt(*c.Workplace); ok {
		f.RemoveWorker()
	}
}

func (c *Citizen) commute(env *Env, dest Destination) {
	goal := c.HomeRoad
	if dest == DestWork {
		goal = c.WorkplaceRoad
	}
	c.State = Commuting
	c.Dest = dest
	c.target = &goal
	c.clearPath()
	if c.pos == goal {
		c.arrive(env)
		return
	}
	c.plan(env)
}

func (c *Citizen) wander(env *Env) {
	c.State = Wandering
	c.Dest = DestNone
	c.pickWanderTarget(env)
}

// pickWanderTarget tries random road tiles until one is reachable. After
// MaxAttempts misses the citizen stays put and tries again on its next move.
func (c *Citizen) pickWanderTarget(env *Env) {
	c.target = nil
	c.clearPath()
	roads := env.Grid.Roads()
	if len(roads) == 0 {
		return
	}
	for i := 0; i < pathfind.MaxAttempts; i++ {
		goal := roads[env.Rng.Intn(len(roads))]
		if goal == c.pos {
			continue
		}
		path, ok := pathfind.FindPath(c.query(env, goal), c.pos, goal)
		if !ok {
			continue
		}
		c.target = &goal
		c.setPath(path)
		return
	}
	slog.Debug("no wander destination", "citizen", c.ID, "pos", c.pos)
}

func (c *Citizen) plan(env *Env) bool {
	path, ok := pathfind.FindPath(c.query(env, *c.target), c.pos, *c.target)
	if !ok {
		slog.Debug("path not found", "citizen", c.ID, "from", c.pos, "to", *c.target)
		c.clearPath()
		return false
	}
	c.setPath(path)
	return true
}

// query is the citizen's view of the grid: the shared matrix with its own
// cell and destination forced open.
func (c *Citizen) query(env *Env, goal grid.Coord) *grid.Query {
	return env.Grid.Query().Open(c.pos, goal)
}

func (c *Citizen) move(env *Env) {
	if !c.due(env.Now) {
		return
	}
	if c.State == AtHome || c.State == AtWork {
		return
	}
	if c.target == nil {
		if c.State == Wandering {
			c.pickWanderTarget(env)
		}
		return
	}
	if !c.hasPath() && !c.plan(env) {
		if c.State == Wandering {
			c.pickWanderTarget(env)
		}
		return
	}
	if !c.arrived() {
		q := c.query(env, *c.target)
		if !c.step(c.ID, env.Occupancy, q.Walkable) {
			c.clearPath()
			c.plan(env)
			return
		}
	}
	if c.arrived() {
		c.arrive(env)
	}
}

func (c *Citizen) arrive(env *Env) {
	c.clearPath()
	switch c.State {
	case Commuting:
		if c.Dest == DestWork {
			c.State = AtWork
		} else {
			c.State = AtHome
		}
		c.Dest = DestNone
		c.target = nil
	case Wandering:
		c.pickWanderTarget(env)
	}
}

// Detach drops a deleted workplace. The schedule is re-evaluated on the
// next update, which re-resolves a workplace when the hour calls for one.
func (c *Citizen) Detach() {
	c.Workplace = nil
	c.clockedIn = false
	if c.State == AtWork || (c.State == Commuting && c.Dest == DestWork) {
		c.State = Wandering
		c.Dest = DestNone
		c.target = nil
	}
	c.clearPath()
	c.dirty = true
}

// Release clocks the citizen out and clears its tile. Called on despawn.
func (c *Citizen) Release(env *Env) {
	c.clockOut(env)
	env.Occupancy.Remove(c.ID, c.pos)
	c.clearPath()
	c.target = nil
}
