package grid

import "fmt"

// Grid holds the complete tile state and the authoritative collision matrix.
type Grid struct {
	Width  int `json:"width"`
	Height int `json:"height"`

	tiles     []Tile
	collision *CollisionMatrix
}

// New creates a grid of plain, walkable tiles.
func New(width, height int) *Grid {
	g := &Grid{
		Width:     width,
		Height:    height,
		tiles:     make([]Tile, width*height),
		collision: NewCollisionMatrix(width, height),
	}
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			g.tiles[y*width+x] = Tile{
				Coord:    Coord{X: x, Y: y},
				Terrain:  TerrainPlain,
				Walkable: true,
			}
		}
	}
	g.RebuildCollision()
	return g
}

// InBounds returns true if the coordinate lies on the grid.
func (g *Grid) InBounds(c Coord) bool {
	return c.X >= 0 && c.Y >= 0 && c.X < g.Width && c.Y < g.Height
}

// Tile returns the tile at the given coordinate, or nil if out of bounds.
func (g *Grid) Tile(c Coord) *Tile {
	if !g.InBounds(c) {
		return nil
	}
	return &g.tiles[c.Y*g.Width+c.X]
}

// Collision returns the authoritative collision matrix.
func (g *Grid) Collision() *CollisionMatrix {
	return g.collision
}

// SetTerrain assigns world-generation attributes to a tile and resets its
// walkability from the terrain class. Roads and buildings are untouched.
func (g *Grid) SetTerrain(c Coord, t Terrain, elevation, moisture float64) {
	tile := g.Tile(c)
	if tile == nil {
		return
	}
	tile.Terrain = t
	tile.Elevation = elevation
	tile.Moisture = moisture
	if !tile.Building {
		tile.Walkable = t.Walkable()
	}
	g.patch(tile)
}

// PlaceRoad lays a road on the tile. Road tiles are always walkable.
func (g *Grid) PlaceRoad(c Coord) {
	tile := g.Tile(c)
	if tile == nil {
		return
	}
	if tile.Terrain == TerrainTrees {
		tile.Terrain = TerrainPlain
	}
	tile.Road = true
	tile.Walkable = true
	g.patch(tile)
}

// PlaceBuilding marks the tile as built on. Unless passable is set, the tile
// stops being walkable.
func (g *Grid) PlaceBuilding(c Coord, passable bool) {
	tile := g.Tile(c)
	if tile == nil {
		return
	}
	if tile.Terrain == TerrainTrees {
		tile.Terrain = TerrainPlain
	}
	tile.Building = true
	tile.Walkable = passable
	g.patch(tile)
}

// Clear removes any road or building from the tile and restores walkability
// from the terrain underneath.
func (g *Grid) Clear(c Coord) {
	tile := g.Tile(c)
	if tile == nil {
		return
	}
	tile.Road = false
	tile.Building = false
	tile.Walkable = tile.Terrain.Walkable()
	g.patch(tile)
}

// AdjacentRoad returns the first 4-neighbor carrying a road, scanning in
// NeighborDirections order.
func (g *Grid) AdjacentRoad(c Coord) (Coord, bool) {
	for _, n := range c.Neighbors() {
		if t := g.Tile(n); t != nil && t.Road {
			return n, true
		}
	}
	return Coord{}, false
}

// HasRoad reports whether the coordinate carries a road.
func (g *Grid) HasRoad(c Coord) bool {
	t := g.Tile(c)
	return t != nil && t.Road
}

// Roads returns every road coordinate in row-major order.
func (g *Grid) Roads() []Coord {
	var roads []Coord
	for i := range g.tiles {
		if g.tiles[i].Road {
			roads = append(roads, g.tiles[i].Coord)
		}
	}
	return roads
}

// Tiles calls fn for every tile in row-major order.
func (g *Grid) Tiles(fn func(t *Tile)) {
	for i := range g.tiles {
		fn(&g.tiles[i])
	}
}

// RebuildCollision recomputes the whole collision matrix from the tiles.
// Structural edits patch single cells instead; this is for bulk terrain loads.
func (g *Grid) RebuildCollision() {
	for i := range g.tiles {
		g.collision.cells[i] = g.tiles[i].Traversable()
	}
}

func (g *Grid) patch(t *Tile) {
	g.collision.Set(t.Coord, t.Traversable())
}

// String returns a summary of the grid.
func (g *Grid) String() string {
	return fmt.Sprintf("Grid(%dx%d, roads=%d)", g.Width, g.Height, len(g.Roads()))
}
