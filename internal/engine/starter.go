package engine

import (
	"log/slog"

	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/grid"
)

const starterRoadLen = 10

// starterLayout is placed in order along the starter road.
var starterLayout = []buildings.Kind{
	buildings.KindResidence,
	buildings.KindFactory,
	buildings.KindResidence,
	buildings.KindSolarPanels,
	buildings.KindWaterPlant,
}

// StarterCity lays a straight road near the centre of the map and lines it
// with a small working city. Returns the number of structures placed; a
// kind with no legal tile along the road is skipped.
func StarterCity(s *Simulation) int {
	y, x0, ok := findRoadRun(s.Grid, starterRoadLen)
	if !ok {
		slog.Warn("no room for a starter city")
		return 0
	}
	placed := 0
	for x := x0; x < x0+starterRoadLen; x++ {
		if s.Place(buildings.KindRoad, grid.C(x, y)) == nil {
			placed++
		}
	}
	for _, k := range starterLayout {
		if placeAlong(s, k, y, x0) {
			placed++
		}
	}
	slog.Info("starter city built", "row", y, "from", x0, "structures", placed)
	return placed
}

func placeAlong(s *Simulation, k buildings.Kind, y, x0 int) bool {
	for x := x0; x < x0+starterRoadLen; x++ {
		for _, dy := range []int{-1, 1} {
			if s.Place(k, grid.C(x, y+dy)) == nil {
				return true
			}
		}
	}
	return false
}

// findRoadRun scans rows outward from the middle for n consecutive tiles
// that accept a road.
func findRoadRun(g *grid.Grid, n int) (y, x0 int, ok bool) {
	mid := g.Height / 2
	for d := 0; d <= g.Height; d++ {
		for _, row := range []int{mid - d, mid + d} {
			if row < 0 || row >= g.Height {
				continue
			}
			run := 0
			for x := 0; x < g.Width; x++ {
				t := g.Tile(grid.C(x, row))
				if t.Empty() && buildings.KindRoad.AllowedOn(t.Terrain) {
					run++
				} else {
					run = 0
				}
				if run == n {
					return row, x - n + 1, true
				}
			}
		}
	}
	return 0, 0, false
}
