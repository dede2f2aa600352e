// Simulation ties together the grid, buildings and agents and runs them each tick.
package engine

import (
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridcity/internal/agents"
	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// Options are the simulation tunables.
type Options struct {
	StartHour      int             // Clock hour at tick 0
	HoursPerSecond float64         // Game hours per simulated second
	InitialPool    economy.Amounts // Starting treasury
	SpawnHour      int             // Hour at which supplied residences gain a resident
	MaxEvents      int             // Event ring size
}

// DefaultOptions returns the standard settings.
func DefaultOptions() Options {
	return Options{
		StartHour:      6,
		HoursPerSecond: 0.05,
		InitialPool:    economy.DefaultPool().Snapshot(),
		SpawnHour:      6,
		MaxEvents:      1000,
	}
}

// entity is one slot of the creation-ordered update list.
type entity struct {
	id       uint64
	building buildings.Building
	citizen  *agents.Citizen
	carrier  *agents.Carrier
}

// Simulation holds the complete city state. It is not safe for concurrent
// use; Engine serialises access.
type Simulation struct {
	Grid      *grid.Grid
	Pool      *economy.Pool
	Buildings *buildings.Registry
	Occupancy *agents.Occupancy
	Clock     Clock
	Opts      Options

	Tick   uint64
	Events []Event // Most recent events, oldest first
	Stats  Stats

	// OnDay is called with each completed day's report.
	OnDay func(DailyReport)

	order    []entity
	citizens map[agents.ID]*agents.Citizen
	carriers map[agents.ID]*agents.Carrier
	nextID   uint64
	env      agents.Env

	editMu sync.Mutex
	edits  []pendingEdit

	subMu       sync.Mutex
	subscribers map[chan Event]struct{}
}

// Stats are aggregate counters refreshed every tick.
type Stats struct {
	Population int `json:"population"`
	Employed   int `json:"employed"`
	AtWork     int `json:"at_work"`
	Wandering  int `json:"wandering"`
	Buildings  int `json:"buildings"`
	Roads      int `json:"roads"`
	Carriers   int `json:"carriers"`
	Unsupplied int `json:"unsupplied"`
}

// NewSimulation creates a simulation over a prepared grid.
func NewSimulation(g *grid.Grid, opts Options, seed int64) *Simulation {
	s := &Simulation{
		Grid:        g,
		Pool:        economy.NewPool(opts.InitialPool),
		Buildings:   buildings.NewRegistry(),
		Occupancy:   agents.NewOccupancy(),
		Clock:       NewClock(opts.StartHour, opts.HoursPerSecond),
		Opts:        opts,
		citizens:    make(map[agents.ID]*agents.Citizen),
		carriers:    make(map[agents.ID]*agents.Carrier),
		subscribers: make(map[chan Event]struct{}),
	}
	s.env = agents.Env{
		Hour:      s.Clock.Hour(),
		Grid:      g,
		Buildings: s.Buildings,
		Pool:      s.Pool,
		Occupancy: s.Occupancy,
		Rng:       rand.New(rand.NewSource(seed + 300)),
	}
	return s
}

// Step advances the city by dt of simulated time, then applies at most one
// queued structural edit. Long steps are split into sub-steps no longer
// than one move interval or one game hour, so every hour boundary is seen
// by the schedule and the daily spawn whatever the engine speed.
func (s *Simulation) Step(dt time.Duration) {
	s.Tick++
	limit := s.maxSubStep()
	for dt > 0 {
		sub := min(dt, limit)
		s.advance(sub)
		dt -= sub
	}
	s.applyNextEdit()
}

// advance runs one sub-step: clock, then every entity once in creation
// order, then hourly and daily work.
func (s *Simulation) advance(dt time.Duration) {
	prevHour, prevDay := s.Clock.Hour(), s.Clock.Day()
	s.Clock.Advance(dt)
	s.env.Now = s.Clock.Elapsed()
	s.env.Delta = dt
	s.env.Hour = s.Clock.Hour()

	for _, e := range s.order {
		switch {
		case e.building != nil:
			e.building.Update(s.env.Now, s.Pool)
		case e.citizen != nil:
			e.citizen.Update(&s.env)
		case e.carrier != nil:
			e.carrier.Update(&s.env)
		}
	}

	if hour := s.Clock.Hour(); hour != prevHour && hour == s.Opts.SpawnHour {
		s.spawnDaily()
	}
	s.updateStats()
	if s.Clock.Day() != prevDay {
		s.closeDay(prevDay)
	}
}

func (s *Simulation) maxSubStep() time.Duration {
	limit := agents.MoveInterval
	if hps := s.Clock.HoursPerSecond; hps > 0 {
		if hour := time.Duration(float64(time.Second) / hps); hour > 0 && hour < limit {
			limit = hour
		}
	}
	return limit
}

// Animate moves every agent's drawn position by real elapsed time.
func (s *Simulation) Animate(elapsed time.Duration) {
	for _, e := range s.order {
		switch {
		case e.citizen != nil:
			e.citizen.Animate(elapsed)
		case e.carrier != nil:
			e.carrier.Animate(elapsed)
		}
	}
}

// Env returns the handle passed to agent updates.
func (s *Simulation) Env() *agents.Env { return &s.env }

// Citizens returns the citizens in creation order.
func (s *Simulation) Citizens() []*agents.Citizen {
	var out []*agents.Citizen
	for _, e := range s.order {
		if e.citizen != nil {
			out = append(out, e.citizen)
		}
	}
	return out
}

// Carriers returns the carriers in creation order.
func (s *Simulation) Carriers() []*agents.Carrier {
	var out []*agents.Carrier
	for _, e := range s.order {
		if e.carrier != nil {
			out = append(out, e.carrier)
		}
	}
	return out
}

// Citizen looks up a citizen by ID.
func (s *Simulation) Citizen(id agents.ID) (*agents.Citizen, bool) {
	c, ok := s.citizens[id]
	return c, ok
}

// Carrier looks up a carrier by ID.
func (s *Simulation) Carrier(id agents.ID) (*agents.Carrier, bool) {
	c, ok := s.carriers[id]
	return c, ok
}

func (s *Simulation) newID() uint64 {
	s.nextID++
	return s.nextID
}

// spawnResident moves a new citizen into r. credit adds the head to the
// pool; construction already credited it through the residence cost.
func (s *Simulation) spawnResident(r *buildings.Residence, credit bool) bool {
	road, ok := r.AdjacentRoad()
	if !ok || !r.AddResident() {
		return false
	}
	id := s.newID()
	c := agents.NewCitizen(agents.ID(id), r.Pos(), road, &s.env)
	s.citizens[c.ID] = c
	s.order = append(s.order, entity{id: id, citizen: c})
	if credit {
		s.Pool.Add(economy.Citizens, 1)
	}
	return true
}

func (s *Simulation) spawnCarrier(b buildings.Building) {
	id := s.newID()
	c, err := agents.NewCarrier(agents.ID(id), b, &s.env)
	if err != nil {
		slog.Debug("no carrier spawned", "building", b.ID(), "err", err)
		return
	}
	s.carriers[c.ID] = c
	s.order = append(s.order, entity{id: id, carrier: c})
}

// spawnDaily gives every supplied residence below capacity one resident.
func (s *Simulation) spawnDaily() {
	for _, b := range s.Buildings.All() {
		r, ok := b.(*buildings.Residence)
		if !ok || r.Residents() >= buildings.ResidenceCapacity || !r.HasResources(s.Pool) {
			continue
		}
		if s.spawnResident(r, true) {
			s.emit("population", "a citizen moved into the residence at "+r.Pos().String())
		}
	}
}

func (s *Simulation) despawnCitizen(c *agents.Citizen) {
	c.Release(&s.env)
	if r, ok := s.residenceAt(c.Home); ok {
		r.RemoveResident()
	}
	s.Pool.Sub(economy.Citizens, 1)
	delete(s.citizens, c.ID)
	s.dropEntity(uint64(c.ID))
}

func (s *Simulation) despawnCarrier(c *agents.Carrier) {
	c.Release(&s.env)
	delete(s.carriers, c.ID)
	s.dropEntity(uint64(c.ID))
}

func (s *Simulation) residenceAt(pos grid.Coord) (*buildings.Residence, bool) {
	b, ok := s.Buildings.At(pos)
	if !ok {
		return nil, false
	}
	r, ok := b.(*buildings.Residence)
	return r, ok
}

func (s *Simulation) dropEntity(id uint64) {
	for i, e := range s.order {
		if e.id == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			return
		}
	}
}

func (s *Simulation) updateStats() {
	st := Stats{
		Buildings: s.Buildings.Len(),
		Roads:     len(s.Grid.Roads()),
		Carriers:  len(s.carriers),
	}
	for _, c := range s.citizens {
		st.Population++
		if c.Workplace != nil {
			st.Employed++
		}
		switch c.State {
		case agents.AtWork:
			st.AtWork++
		case agents.Wandering:
			st.Wandering++
		}
	}
	for _, b := range s.Buildings.All() {
		if !b.HasResources(s.Pool) {
			st.Unsupplied++
		}
	}
	s.Stats = st
}

// closeDay logs the day's report and hands it to OnDay.
func (s *Simulation) closeDay(day int) {
	report := DailyReport{
		Day:   day,
		Tick:  s.Tick,
		Pool:  s.Pool.Snapshot(),
		Stats: s.Stats,
	}
	for _, e := range s.Events {
		if e.Day == day {
			report.Events++
		}
	}

	slog.Info("daily report",
		"day", day+1,
		"tick", s.Tick,
		"thugoleons", humanize.Comma(int64(report.Pool[economy.Thugoleons])),
		"electricity", humanize.Comma(int64(report.Pool[economy.Electricity])),
		"water", humanize.Comma(int64(report.Pool[economy.Water])),
		"population", s.Stats.Population,
		"employed", s.Stats.Employed,
		"buildings", s.Stats.Buildings,
		"unsupplied", s.Stats.Unsupplied,
		"carriers", s.Stats.Carriers,
		"events", report.Events,
	)

	if s.OnDay != nil {
		s.OnDay(report)
	}
}

// DailyReport summarises one completed day.
type DailyReport struct {
	Day    int             `json:"day"`
	Tick   uint64          `json:"tick"`
	Pool   economy.Amounts `json:"pool"`
	Stats  Stats           `json:"stats"`
	Events int             `json:"events"`
}
