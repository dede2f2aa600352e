package grid

// Terrain classes for grid tiles, assigned by world generation.
type Terrain uint8

const (
	TerrainPlain Terrain = iota // Open ground: walkable, buildable
	TerrainTrees                // Woodland: buildable (cleared on placement), not walkable
	TerrainRock                 // Outcrop: neither walkable nor buildable
	TerrainMud                  // Shoreline: walkable; roads and water plants only
	TerrainWater                // Open water: impassable
)

var terrainNames = [...]string{"plain", "trees", "rock", "mud", "water"}

// TerrainName returns a human-readable name for a terrain class.
func TerrainName(t Terrain) string {
	if int(t) < len(terrainNames) {
		return terrainNames[t]
	}
	return "unknown"
}

func (t Terrain) String() string { return TerrainName(t) }

// Walkable reports the base walkability of a terrain class before any
// roads or buildings are placed on it.
func (t Terrain) Walkable() bool {
	return t == TerrainPlain || t == TerrainMud
}

// Buildable reports whether ordinary buildings may be placed on the terrain.
func (t Terrain) Buildable() bool {
	return t == TerrainPlain || t == TerrainTrees
}

// Tile represents a single cell on the grid.
type Tile struct {
	Coord   Coord   `json:"coord"`
	Terrain Terrain `json:"terrain"`

	// Set by world generation, immutable afterwards.
	Elevation float64 `json:"elevation"` // 0.0 (sea level) to 1.0 (peak)
	Moisture  float64 `json:"moisture"`  // 0.0 (arid) to 1.0 (saturated)

	Walkable bool `json:"walkable"`
	Road     bool `json:"road"`
	Building bool `json:"building"`
}

// Empty reports whether nothing has been built on the tile.
func (t *Tile) Empty() bool {
	return !t.Road && !t.Building
}

// Traversable is the collision-matrix value the tile derives.
func (t *Tile) Traversable() bool {
	return t.Walkable || t.Road
}
