// Package buildings provides the building kinds, their construction costs,
// and the per-second production/consumption cycle each building runs.
package buildings

import (
	"fmt"

	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// Kind tags a placeable structure. Roads are placeable but are not buildings.
type Kind string

const (
	KindRoad        Kind = "road"
	KindFactory     Kind = "factory"
	KindResidence   Kind = "residential_building"
	KindSolarPanels Kind = "solar_panels"
	KindWaterPlant  Kind = "water_treatment_plant"
)

// Kinds lists every placeable kind in menu order.
var Kinds = []Kind{KindRoad, KindFactory, KindResidence, KindSolarPanels, KindWaterPlant}

var descriptions = map[Kind]string{
	KindRoad:        "A road tile that connects buildings and allows citizens and resources to move around.",
	KindFactory:     "A factory that employs citizens and produces thugoleons.",
	KindResidence:   "A residential building that provides housing for citizens.",
	KindSolarPanels: "Solar panels that generate electricity. Best to place on high altitude.",
	KindWaterPlant:  "A water treatment plant that pumps, cleans and purifies water. Can only be placed on mud.",
}

// costs are debited from the global pool on construction. The residence's
// negative citizen cost credits one citizen to the head count.
var costs = map[Kind]economy.Amounts{
	KindFactory:     {economy.Thugoleons: 10_000},
	KindResidence:   {economy.Thugoleons: 5_000, economy.Citizens: -1},
	KindSolarPanels: {economy.Thugoleons: 180_000},
	KindWaterPlant:  {economy.Thugoleons: 220_000},
	KindRoad:        {economy.Thugoleons: 1_000},
}

// ParseKind converts a name into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := costs[k]; !ok {
		return "", fmt.Errorf("unknown structure kind %q", s)
	}
	return k, nil
}

// IsBuilding reports whether the kind produces a Building (everything but roads).
func (k Kind) IsBuilding() bool {
	_, known := costs[k]
	return known && k != KindRoad
}

// Description returns the inspection-panel text for the kind.
func (k Kind) Description() string {
	return descriptions[k]
}

// NeedsRoadAccess reports whether placement requires a road in a 4-neighbor.
func (k Kind) NeedsRoadAccess() bool {
	return k != KindRoad
}

// AllowedOn reports whether the kind may be placed on the terrain class.
func (k Kind) AllowedOn(t grid.Terrain) bool {
	switch k {
	case KindRoad:
		return t.Buildable() || t == grid.TerrainMud
	case KindWaterPlant:
		return t == grid.TerrainMud
	default:
		return t.Buildable()
	}
}

// Cost returns a copy of the kind's construction cost.
func Cost(k Kind) economy.Amounts {
	return costs[k].Clone()
}

// IsAffordable reports whether the pool covers the kind's cost. Pure.
func IsAffordable(p *economy.Pool, k Kind) bool {
	c, ok := costs[k]
	return ok && p.CanCover(c)
}

// ApplyCost debits the kind's cost from the pool.
func ApplyCost(p *economy.Pool, k Kind) {
	p.Charge(costs[k])
}
