package engine

import (
	"github.com/talgya/gridcity/internal/agents"
	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// Snapshot is a point-in-time copy of everything a HUD draws.
type Snapshot struct {
	Tick      uint64             `json:"tick"`
	Day       int                `json:"day"`
	Hour      int                `json:"hour"`
	Time      string             `json:"time"`
	Pool      economy.Amounts    `json:"pool"`
	Buildings []buildings.Status `json:"buildings"`
	Citizens  []CitizenView      `json:"citizens"`
	Carriers  []CarrierView      `json:"carriers"`
	Stats     Stats              `json:"stats"`
}

// CitizenView is the drawable state of a citizen.
type CitizenView struct {
	ID        agents.ID   `json:"id"`
	Tile      grid.Coord  `json:"tile"`
	Position  agents.Vec  `json:"position"`
	State     string      `json:"state"`
	Heading   string      `json:"heading,omitempty"`
	Home      grid.Coord  `json:"home"`
	Workplace *grid.Coord `json:"workplace,omitempty"`
	Visible   bool        `json:"visible"`
}

// CarrierView is the drawable state of a carrier.
type CarrierView struct {
	ID          agents.ID        `json:"id"`
	Tile        grid.Coord       `json:"tile"`
	Position    agents.Vec       `json:"position"`
	State       string           `json:"state"`
	Resource    economy.Resource `json:"resource"`
	Carried     int              `json:"carried"`
	Capacity    int              `json:"capacity"`
	Origin      grid.Coord       `json:"origin"`
	Destination *grid.Coord      `json:"destination,omitempty"`
}

// ViewCitizen converts a citizen for display.
func ViewCitizen(c *agents.Citizen) CitizenView {
	v := CitizenView{
		ID:       c.ID,
		Tile:     c.Pos(),
		Position: c.Motion().Current,
		State:    c.State.String(),
		Heading:  c.Dest.String(),
		Home:     c.Home,
		Visible:  c.Visible(),
	}
	if c.Workplace != nil {
		w := *c.Workplace
		v.Workplace = &w
	}
	return v
}

// ViewCarrier converts a carrier for display.
func ViewCarrier(c *agents.Carrier) CarrierView {
	v := CarrierView{
		ID:       c.ID,
		Tile:     c.Pos(),
		Position: c.Motion().Current,
		State:    c.State.String(),
		Resource: c.Resource,
		Carried:  c.Carried,
		Capacity: c.Capacity,
		Origin:   c.Origin,
	}
	if c.Destination != nil {
		d := *c.Destination
		v.Destination = &d
	}
	return v
}

// Snapshot copies the current state.
func (s *Simulation) Snapshot() Snapshot {
	snap := Snapshot{
		Tick:  s.Tick,
		Day:   s.Clock.Day(),
		Hour:  s.Clock.Hour(),
		Time:  s.Clock.String(),
		Pool:  s.Pool.Snapshot(),
		Stats: s.Stats,
	}
	for _, b := range s.Buildings.All() {
		snap.Buildings = append(snap.Buildings, b.Status(s.Pool))
	}
	for _, c := range s.Citizens() {
		snap.Citizens = append(snap.Citizens, ViewCitizen(c))
	}
	for _, c := range s.Carriers() {
		snap.Carriers = append(snap.Carriers, ViewCarrier(c))
	}
	return snap
}
