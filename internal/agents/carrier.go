package agents

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
	"github.com/talgya/gridcity/internal/pathfind"
)

// Carrier defaults.
const (
	CarrierCapacity    = 160
	CarrierInitialLoad = 100
	CarrierDropoff     = 24
)

// CarrierState is a node of the delivery cycle.
type CarrierState uint8

const (
	SeekingDestination CarrierState = iota
	Traveling
	Delivering
	ReturningToOrigin
	Replenishing
)

var carrierStateNames = [...]string{"seeking_destination", "traveling", "delivering", "returning_to_origin", "replenishing"}

func (s CarrierState) String() string {
	if int(s) < len(carrierStateNames) {
		return carrierStateNames[s]
	}
	return "unknown"
}

// Carrier moves one resource from its origin producer to the consumer with
// the lowest stock, travelling on roads only.
type Carrier struct {
	walker

	ID       ID
	State    CarrierState
	Resource economy.Resource

	Origin     grid.Coord
	OriginKind buildings.Kind
	OriginRoad grid.Coord

	Destination     *grid.Coord
	DestinationRoad grid.Coord

	Carried  int
	Capacity int
	Dropoff  int
}

// NewCarrier creates a loaded carrier on the origin's road tile.
func NewCarrier(id ID, origin buildings.Building, env *Env) (*Carrier, error) {
	res, ok := buildings.Produces(origin)
	if !ok {
		return nil, fmt.Errorf("%s at %v produces nothing to carry", origin.Kind(), origin.Pos())
	}
	road, ok := origin.AdjacentRoad()
	if !ok {
		return nil, fmt.Errorf("%s at %v has no road", origin.Kind(), origin.Pos())
	}
	c := &Carrier{
		walker:     newWalker(road, env.Now),
		ID:         id,
		State:      SeekingDestination,
		Resource:   res,
		Origin:     origin.Pos(),
		OriginKind: origin.Kind(),
		OriginRoad: road,
		Carried:    CarrierInitialLoad,
		Capacity:   CarrierCapacity,
		Dropoff:    CarrierDropoff,
	}
	env.Occupancy.Add(id, road)
	return c, nil
}

// Update runs one tick of the delivery cycle.
func (c *Carrier) Update(env *Env) {
	switch c.State {
	case SeekingDestination:
		c.seek(env)
	case Traveling:
		if c.Destination == nil {
			c.State = SeekingDestination
			break
		}
		if _, ok := env.Buildings.At(*c.Destination); !ok {
			c.dropDestination()
			break
		}
		if c.travel(env, c.DestinationRoad) {
			c.State = Delivering
		}
	case Delivering:
		c.deliver(env)
	case ReturningToOrigin:
		if c.travel(env, c.OriginRoad) {
			c.State = Replenishing
		}
	case Replenishing:
		c.replenish(env)
	}
}

// seek chooses among buildings of another kind with road access, lowest
// stock of the carried resource first, creation order on ties. The first
// reachable candidate wins; with none the carrier keeps seeking.
func (c *Carrier) seek(env *Env) {
	var candidates []buildings.Building
	for _, b := range env.Buildings.All() {
		if b.Kind() == c.OriginKind {
			continue
		}
		if _, ok := b.AdjacentRoad(); !ok {
			continue
		}
		candidates = append(candidates, b)
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Stock().Get(c.Resource) < candidates[j].Stock().Get(c.Resource)
	})
	for _, b := range candidates {
		road, _ := b.AdjacentRoad()
		path, ok := pathfind.FindPath(c.query(env), c.pos, road)
		if !ok {
			continue
		}
		pos := b.Pos()
		c.Destination = &pos
		c.DestinationRoad = road
		c.setPath(path)
		c.State = Traveling
		return
	}
}

// travel advances one step toward goal when the movement cooldown allows.
// Returns true once the carrier stands on goal.
func (c *Carrier) travel(env *Env, goal grid.Coord) bool {
	if c.pos == goal {
		c.clearPath()
		return true
	}
	if !c.due(env.Now) {
		return false
	}
	if !c.hasPath() || c.arrived() {
		if !c.plan(env, goal) {
			return false
		}
	}
	q := c.query(env)
	if !c.step(c.ID, env.Occupancy, q.Walkable) {
		c.clearPath()
		if !c.plan(env, goal) {
			return false
		}
	}
	if c.pos == goal {
		c.clearPath()
		return true
	}
	return false
}

// plan re-queries a road path to goal. A traveling carrier that cannot
// reach its destination drops it; a returning one waits.
func (c *Carrier) plan(env *Env, goal grid.Coord) bool {
	path, ok := pathfind.FindPath(c.query(env), c.pos, goal)
	if !ok {
		slog.Debug("carrier path not found", "carrier", c.ID, "from", c.pos, "to", goal)
		if c.State == Traveling {
			c.dropDestination()
		}
		return false
	}
	c.setPath(path)
	return true
}

func (c *Carrier) deliver(env *Env) {
	if c.Destination == nil {
		c.State = SeekingDestination
		return
	}
	b, ok := env.Buildings.At(*c.Destination)
	if !ok {
		c.dropDestination()
		return
	}
	n := min(c.Carried, c.Dropoff)
	b.Stock().Add(c.Resource, n)
	c.Carried -= n
	c.Destination = nil
	if c.Carried < c.Dropoff {
		c.State = ReturningToOrigin
		c.clearPath()
		return
	}
	c.State = SeekingDestination
}

func (c *Carrier) replenish(env *Env) {
	origin, ok := env.Buildings.At(c.Origin)
	if !ok {
		return
	}
	stock := origin.Stock()
	draw := min(max(stock.Get(c.Resource), 0), c.Capacity-c.Carried)
	stock.Add(c.Resource, -draw)
	c.Carried += draw
	if c.Carried == 0 {
		return
	}
	c.State = SeekingDestination
}

func (c *Carrier) dropDestination() {
	c.Destination = nil
	c.clearPath()
	c.State = SeekingDestination
}

// query is the roads-only view with the carrier's own cell forced open.
func (c *Carrier) query(env *Env) *grid.Query {
	return env.Grid.Query().RoadsOnly().Open(c.pos)
}

// Release clears the carrier's tile. Called on despawn.
func (c *Carrier) Release(env *Env) {
	env.Occupancy.Remove(c.ID, c.pos)
	c.clearPath()
}
