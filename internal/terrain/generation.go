// Package terrain generates elevation and moisture for the city grid using
// layered simplex noise, then derives tile classes from them.
package terrain

import (
	"math/rand"

	opensimplex "github.com/ojrac/opensimplex-go"

	"github.com/talgya/gridcity/internal/grid"
)

// Config holds world generation parameters.
type Config struct {
	Width  int
	Height int
	Seed   int64   // Random seed (0 = random)
	Scale  float64 // Noise frequency per tile; smaller = broader features

	WaterLevel   float64 // Elevation at or below which tiles are water
	MudLevel     float64 // Elevation at or below which tiles are mud (shoreline)
	RockLevel    float64 // Elevation above which tiles are rock
	TreeMoisture float64 // Moisture above which low/mid land is wooded
}

// DefaultConfig returns the standard 40x40 city configuration.
func DefaultConfig() Config {
	return Config{
		Width:        40,
		Height:       40,
		Seed:         0,
		Scale:        0.05,
		WaterLevel:   0.35,
		MudLevel:     0.41,
		RockLevel:    0.8,
		TreeMoisture: 0.6,
	}
}

// Generate creates a grid with terrain, elevation, and moisture assigned.
func Generate(cfg Config) *grid.Grid {
	seed := cfg.Seed
	if seed == 0 {
		seed = rand.Int63()
	}

	elevNoise := opensimplex.NewNormalized(seed)
	moistNoise := opensimplex.NewNormalized(seed + 1)
	rng := rand.New(rand.NewSource(seed + 400))

	g := grid.New(cfg.Width, cfg.Height)
	for y := 0; y < cfg.Height; y++ {
		for x := 0; x < cfg.Width; x++ {
			fx, fy := float64(x), float64(y)

			elev := octaveNoise(elevNoise, fx, fy, 2, cfg.Scale, 0.5)
			moist := octaveNoise(moistNoise, fx, fy, 1, cfg.Scale*2, 0.5)

			t := Classify(cfg, elev, moist, rng.Float64())
			g.SetTerrain(grid.C(x, y), t, elev, moist)
		}
	}
	g.RebuildCollision()
	return g
}

// Classify derives the terrain class for one tile. variation is a uniform
// [0,1) roll that scatters occasional trees and rock across open land.
func Classify(cfg Config, elevation, moisture, variation float64) grid.Terrain {
	switch {
	case elevation <= cfg.WaterLevel:
		return grid.TerrainWater
	case elevation <= cfg.MudLevel:
		return grid.TerrainMud
	case elevation > cfg.RockLevel:
		return grid.TerrainRock
	case moisture > cfg.TreeMoisture && elevation < 0.7:
		return grid.TerrainTrees
	}

	if variation < 0.04 {
		if moisture > 0.4 {
			return grid.TerrainTrees
		}
		if elevation > 0.58 {
			return grid.TerrainRock
		}
	}
	return grid.TerrainPlain
}

// Counts returns the number of tiles of each terrain class.
func Counts(g *grid.Grid) map[grid.Terrain]int {
	counts := make(map[grid.Terrain]int)
	g.Tiles(func(t *grid.Tile) {
		counts[t.Terrain]++
	})
	return counts
}

func octaveNoise(noise opensimplex.Noise, x, y float64, octaves int, frequency, persistence float64) float64 {
	total := 0.0
	amplitude := 1.0
	maxVal := 0.0

	for i := 0; i < octaves; i++ {
		total += noise.Eval2(x*frequency, y*frequency) * amplitude
		maxVal += amplitude
		amplitude *= persistence
		frequency *= 2
	}

	return total / maxVal
}
