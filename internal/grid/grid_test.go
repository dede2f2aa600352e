package grid_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcity/internal/grid"
)

func TestNeighborsOrder(t *testing.T) {
	n := grid.C(3, 3).Neighbors()
	assert.Equal(t, [4]grid.Coord{grid.C(2, 3), grid.C(4, 3), grid.C(3, 2), grid.C(3, 4)}, n)
	for _, c := range n {
		assert.True(t, c.Adjacent(grid.C(3, 3)))
	}
	assert.Equal(t, 7, grid.Manhattan(grid.C(0, 0), grid.C(3, -4)))
}

func TestTileOutOfBounds(t *testing.T) {
	g := grid.New(4, 3)
	assert.Nil(t, g.Tile(grid.C(-1, 0)))
	assert.Nil(t, g.Tile(grid.C(4, 0)))
	assert.Nil(t, g.Tile(grid.C(0, 3)))
	require.NotNil(t, g.Tile(grid.C(3, 2)))
	assert.False(t, g.Collision().Walkable(grid.C(4, 0)))
}

func TestCollisionTracksTiles(t *testing.T) {
	g := grid.New(5, 5)
	c := grid.C(2, 2)
	m := g.Collision()

	g.SetTerrain(c, grid.TerrainWater, 0.1, 0.9)
	assert.False(t, m.Walkable(c), "water blocks")

	g.PlaceRoad(c)
	assert.True(t, m.Walkable(c), "road is always walkable")
	assert.True(t, g.Tile(c).Walkable)

	g.Clear(c)
	assert.False(t, m.Walkable(c), "clearing restores terrain walkability")

	b := grid.C(1, 1)
	g.PlaceBuilding(b, false)
	assert.False(t, m.Walkable(b))
	assert.True(t, g.Tile(b).Building)
	g.Clear(b)
	assert.True(t, m.Walkable(b))
}

func TestPlacementClearsTrees(t *testing.T) {
	g := grid.New(3, 3)
	c := grid.C(1, 1)
	g.SetTerrain(c, grid.TerrainTrees, 0.5, 0.7)
	assert.False(t, g.Collision().Walkable(c))

	g.PlaceBuilding(c, false)
	g.Clear(c)
	assert.Equal(t, grid.TerrainPlain, g.Tile(c).Terrain)
	assert.True(t, g.Collision().Walkable(c))
}

func TestAdjacentRoad(t *testing.T) {
	g := grid.New(5, 5)
	_, ok := g.AdjacentRoad(grid.C(2, 2))
	assert.False(t, ok)

	g.PlaceRoad(grid.C(2, 3))
	g.PlaceRoad(grid.C(3, 2))
	r, ok := g.AdjacentRoad(grid.C(2, 2))
	require.True(t, ok)
	assert.Equal(t, grid.C(3, 2), r, "right is scanned before down")
	assert.Equal(t, []grid.Coord{grid.C(3, 2), grid.C(2, 3)}, g.Roads())
}

func TestQueryPrecedence(t *testing.T) {
	g := grid.New(4, 1)
	g.PlaceRoad(grid.C(0, 0))
	g.PlaceRoad(grid.C(1, 0))
	g.PlaceBuilding(grid.C(3, 0), false)

	q := g.Query()
	assert.True(t, q.Walkable(grid.C(2, 0)))
	assert.False(t, q.Walkable(grid.C(3, 0)))
	assert.False(t, q.Walkable(grid.C(9, 0)))

	q = g.Query().RoadsOnly()
	assert.True(t, q.Walkable(grid.C(1, 0)))
	assert.False(t, q.Walkable(grid.C(2, 0)), "plain ground is off-road")

	q = g.Query().RoadsOnly().Open(grid.C(3, 0)).Block(grid.C(1, 0), grid.C(3, 0))
	assert.True(t, q.Walkable(grid.C(3, 0)), "open wins over blocked")
	assert.False(t, q.Walkable(grid.C(1, 0)))
	assert.True(t, q.Walkable(grid.C(0, 0)))

	// The base matrix is not touched by query exceptions.
	assert.False(t, g.Collision().Walkable(grid.C(3, 0)))
}

func TestCloneIsIndependent(t *testing.T) {
	g := grid.New(2, 2)
	snap := g.Collision().Clone()
	g.PlaceBuilding(grid.C(0, 0), false)
	assert.True(t, snap.Walkable(grid.C(0, 0)))
	assert.False(t, g.Collision().Walkable(grid.C(0, 0)))
}
