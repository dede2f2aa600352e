package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridcity/internal/agents"
	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

var (
	// ErrInvalidPlacement is wrapped with the reason a placement was refused.
	ErrInvalidPlacement = errors.New("invalid placement")
	// ErrNothingToRemove means the tile holds neither a road nor a building.
	ErrNothingToRemove = errors.New("nothing to remove")
	// ErrUnknownKind means the requested structure kind does not exist.
	ErrUnknownKind = errors.New("unknown structure kind")
)

// EditOp selects what a structural edit does.
type EditOp uint8

const (
	EditPlace EditOp = iota
	EditRemove
)

func (op EditOp) String() string {
	if op == EditRemove {
		return "remove"
	}
	return "place"
}

// Edit is a structural change requested from outside the tick.
type Edit struct {
	Op   EditOp
	Kind buildings.Kind // EditPlace only
	At   grid.Coord
}

type pendingEdit struct {
	Edit
	done chan error
}

// Request queues an edit for a later tick. Safe to call from any goroutine.
// The returned channel receives the outcome once the edit is applied.
func (s *Simulation) Request(e Edit) <-chan error {
	done := make(chan error, 1)
	s.editMu.Lock()
	s.edits = append(s.edits, pendingEdit{Edit: e, done: done})
	s.editMu.Unlock()
	return done
}

// PendingEdits returns the number of queued edits.
func (s *Simulation) PendingEdits() int {
	s.editMu.Lock()
	defer s.editMu.Unlock()
	return len(s.edits)
}

// applyNextEdit applies at most one queued edit.
func (s *Simulation) applyNextEdit() {
	s.editMu.Lock()
	if len(s.edits) == 0 {
		s.editMu.Unlock()
		return
	}
	next := s.edits[0]
	s.edits = s.edits[1:]
	s.editMu.Unlock()

	var err error
	switch next.Op {
	case EditPlace:
		err = s.Place(next.Kind, next.At)
	case EditRemove:
		err = s.Remove(next.At)
	default:
		err = fmt.Errorf("unknown edit op %d", next.Op)
	}
	if err != nil {
		slog.Info("edit rejected", "op", next.Op, "kind", next.Kind, "at", next.At, "err", err)
	}
	next.done <- err
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidPlacement, fmt.Sprintf(format, args...))
}

// Place validates and applies a placement immediately: bounds, vacancy,
// terrain, road adjacency and affordability, in that order.
func (s *Simulation) Place(k buildings.Kind, at grid.Coord) error {
	if _, err := buildings.ParseKind(string(k)); err != nil {
		return fmt.Errorf("%w: %q", ErrUnknownKind, k)
	}
	tile := s.Grid.Tile(at)
	if tile == nil {
		return invalid("%v is out of bounds", at)
	}
	if tile.Road || tile.Building {
		return invalid("%v is occupied", at)
	}
	if !k.AllowedOn(tile.Terrain) {
		return invalid("%s cannot be placed on %s", k, tile.Terrain)
	}
	road, hasRoad := s.Grid.AdjacentRoad(at)
	if k.NeedsRoadAccess() && !hasRoad {
		return invalid("%s at %v needs an adjacent road", k, at)
	}
	if !buildings.IsAffordable(s.Pool, k) {
		return invalid("%s costs %s thugoleons, treasury holds %s", k,
			humanize.Comma(int64(buildings.Cost(k)[economy.Thugoleons])),
			humanize.Comma(int64(s.Pool.Get(economy.Thugoleons))))
	}

	if k == buildings.KindRoad {
		buildings.ApplyCost(s.Pool, k)
		s.Grid.PlaceRoad(at)
		s.emit("construction", fmt.Sprintf("road laid at %v", at))
		return nil
	}

	// A failed registration leaves pool and grid untouched.
	id := s.newID()
	b, err := buildings.New(k, buildings.Placement{
		ID:      buildings.ID(id),
		Tile:    tile,
		Road:    road,
		HasRoad: hasRoad,
		Now:     s.Clock.Elapsed(),
	})
	if err != nil {
		return err
	}
	if err := s.Buildings.Add(b); err != nil {
		return err
	}
	buildings.ApplyCost(s.Pool, k)
	s.Grid.PlaceBuilding(at, false)
	s.order = append(s.order, entity{id: id, building: b})

	switch v := b.(type) {
	case *buildings.Residence:
		s.spawnResident(v, false)
	case *buildings.SolarPanels, *buildings.WaterPlant:
		s.spawnCarrier(v)
	}

	slog.Info("building placed", "kind", k, "at", at, "id", id)
	s.emit("construction", fmt.Sprintf("%s built at %v", k, at))
	return nil
}

// Remove demolishes the road or building at a tile immediately. Citizens
// employed by a demolished factory are detached, residents of a demolished
// residence and carriers of a demolished producer are despawned.
func (s *Simulation) Remove(at grid.Coord) error {
	tile := s.Grid.Tile(at)
	if tile == nil {
		return fmt.Errorf("%w: %v is out of bounds", ErrNothingToRemove, at)
	}
	if tile.Road {
		s.Grid.Clear(at)
		s.emit("demolition", fmt.Sprintf("road removed at %v", at))
		return nil
	}
	b, ok := s.Buildings.At(at)
	if !ok {
		return fmt.Errorf("%w at %v", ErrNothingToRemove, at)
	}

	var detached, evicted, recalled int
	switch b.(type) {
	case *buildings.Factory:
		for _, c := range s.Citizens() {
			if c.Workplace != nil && *c.Workplace == at {
				c.Detach()
				detached++
			}
		}
	case *buildings.Residence:
		for _, c := range s.Citizens() {
			if c.Home == at {
				s.despawnCitizen(c)
				evicted++
			}
		}
	}
	for _, c := range s.Carriers() {
		if c.Origin == at {
			s.despawnCarrier(c)
			recalled++
		}
	}

	s.Buildings.Remove(at)
	s.Grid.Clear(at)
	s.dropEntity(uint64(b.ID()))

	slog.Info("building removed", "kind", b.Kind(), "at", at,
		"detached", detached, "evicted", evicted, "carriers", recalled)
	s.emit("demolition", fmt.Sprintf("%s demolished at %v", b.Kind(), at))
	return nil
}

// CitizensOf returns the citizens whose workplace is at pos.
func (s *Simulation) CitizensOf(pos grid.Coord) []*agents.Citizen {
	var out []*agents.Citizen
	for _, c := range s.Citizens() {
		if c.Workplace != nil && *c.Workplace == pos {
			out = append(out, c)
		}
	}
	return out
}
