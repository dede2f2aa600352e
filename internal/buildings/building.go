package buildings

import (
	"time"

	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// CycleInterval is the cooldown between production (and, independently,
// consumption) cycles.
const CycleInterval = time.Second

// ID is a stable identifier for a building.
type ID uint64

// Building is implemented by every concrete building kind.
type Building interface {
	ID() ID
	Kind() Kind
	Pos() grid.Coord
	// AdjacentRoad is resolved once at placement and never re-derived.
	AdjacentRoad() (grid.Coord, bool)
	Stock() *Stock
	Rates() Rates
	// HasResources evaluates every consumption threshold against the local
	// stock (electricity, water) and the global pool (thugoleons).
	HasResources(p *economy.Pool) bool
	Update(now time.Duration, p *economy.Pool)
	Status(p *economy.Pool) Status
}

// Stock is the building-local store of deliverable resources, separate
// from the global pool.
type Stock struct {
	Electricity int `json:"electricity"`
	Water       int `json:"water"`
}

// Local reports whether a resource is held in building stock (as opposed to
// only in the global pool).
func Local(r economy.Resource) bool {
	return r == economy.Electricity || r == economy.Water
}

// Get returns the stocked quantity of a local resource.
func (s *Stock) Get(r economy.Resource) int {
	switch r {
	case economy.Electricity:
		return s.Electricity
	case economy.Water:
		return s.Water
	}
	return 0
}

// Add changes the stocked quantity of a local resource.
func (s *Stock) Add(r economy.Resource, n int) {
	switch r {
	case economy.Electricity:
		s.Electricity += n
	case economy.Water:
		s.Water += n
	}
}

// Rates are per simulated second.
type Rates struct {
	Consumption economy.Amounts `json:"consumption"`
	Production  economy.Amounts `json:"production"`
}

// Status is the inspection-panel view of a building.
type Status struct {
	ID           ID          `json:"id"`
	Kind         Kind        `json:"kind"`
	Pos          grid.Coord  `json:"pos"`
	AdjacentRoad *grid.Coord `json:"adjacent_road,omitempty"`
	Stock        Stock       `json:"stock"`
	Rates        Rates       `json:"rates"`
	Supplied     bool        `json:"supplied"` // False shows the warning marker

	Workers          int `json:"workers,omitempty"`
	WorkerCapacity   int `json:"worker_capacity,omitempty"`
	Residents        int `json:"residents,omitempty"`
	ResidentCapacity int `json:"resident_capacity,omitempty"`
}

// core holds the state and cycle logic shared by all building kinds.
type core struct {
	id      ID
	kind    Kind
	pos     grid.Coord
	road    grid.Coord
	hasRoad bool
	stock   Stock

	consumption economy.Amounts
	production  economy.Amounts

	// Timestamps of the last successful cycle, reset only on success.
	producedAt time.Duration
	consumedAt time.Duration
}

func newCore(id ID, kind Kind, pos grid.Coord, road grid.Coord, hasRoad bool, now time.Duration) core {
	return core{
		id:          id,
		kind:        kind,
		pos:         pos,
		road:        road,
		hasRoad:     hasRoad,
		consumption: economy.Amounts{},
		production:  economy.Amounts{},
		producedAt:  now,
		consumedAt:  now,
	}
}

func (c *core) ID() ID          { return c.id }
func (c *core) Kind() Kind      { return c.kind }
func (c *core) Pos() grid.Coord { return c.pos }
func (c *core) Stock() *Stock   { return &c.stock }

func (c *core) AdjacentRoad() (grid.Coord, bool) {
	return c.road, c.hasRoad
}

func (c *core) Rates() Rates {
	return Rates{Consumption: c.consumption.Clone(), Production: c.production.Clone()}
}

func (c *core) HasResources(p *economy.Pool) bool {
	for r, need := range c.consumption {
		have := p.Get(r)
		if Local(r) {
			have = c.stock.Get(r)
		}
		if have < need {
			return false
		}
	}
	return true
}

// Update runs the production and consumption checks. Both read the same
// pre-cycle affordability snapshot, so a building that cannot cover its
// consumption neither produces nor consumes.
func (c *core) Update(now time.Duration, p *economy.Pool) {
	supplied := c.HasResources(p)
	if !supplied {
		return
	}

	if now-c.producedAt >= CycleInterval {
		for r, n := range c.production {
			if Local(r) {
				c.stock.Add(r, n)
			}
			p.Add(r, n)
		}
		c.producedAt = now
	}

	if now-c.consumedAt >= CycleInterval {
		for r, n := range c.consumption {
			if Local(r) {
				c.stock.Add(r, -n)
			}
			p.Sub(r, n)
		}
		c.consumedAt = now
	}
}

func (c *core) Status(p *economy.Pool) Status {
	s := Status{
		ID:       c.id,
		Kind:     c.kind,
		Pos:      c.pos,
		Stock:    c.stock,
		Rates:    c.Rates(),
		Supplied: c.HasResources(p),
	}
	if c.hasRoad {
		road := c.road
		s.AdjacentRoad = &road
	}
	return s
}
