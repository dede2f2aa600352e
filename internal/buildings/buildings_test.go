package buildings_test

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

func placement(id buildings.ID, x, y int, elev, moist float64) buildings.Placement {
	return buildings.Placement{
		ID:      id,
		Tile:    &grid.Tile{Coord: grid.C(x, y), Elevation: elev, Moisture: moist},
		Road:    grid.C(x, y+1),
		HasRoad: true,
	}
}

func TestAffordability(t *testing.T) {
	p := economy.NewPool(economy.Amounts{economy.Thugoleons: 20_000})
	for i := 0; i < 2; i++ {
		require.True(t, buildings.IsAffordable(p, buildings.KindFactory))
		buildings.ApplyCost(p, buildings.KindFactory)
	}
	assert.Equal(t, 0, p.Get(economy.Thugoleons))
	assert.False(t, buildings.IsAffordable(p, buildings.KindFactory))
	assert.Equal(t, 0, p.Get(economy.Thugoleons), "predicate does not mutate")

	buildings.ApplyCost(p, buildings.KindResidence)
	assert.Equal(t, 1, p.Get(economy.Citizens))
	assert.False(t, buildings.IsAffordable(p, buildings.Kind("castle")))
}

func TestParseKindAndTerrainRules(t *testing.T) {
	k, err := buildings.ParseKind("water_treatment_plant")
	require.NoError(t, err)
	assert.Equal(t, buildings.KindWaterPlant, k)
	_, err = buildings.ParseKind("castle")
	assert.Error(t, err)

	assert.False(t, buildings.KindRoad.IsBuilding())
	assert.True(t, buildings.KindFactory.IsBuilding())
	assert.False(t, buildings.KindRoad.NeedsRoadAccess())

	assert.True(t, buildings.KindRoad.AllowedOn(grid.TerrainMud))
	assert.False(t, buildings.KindRoad.AllowedOn(grid.TerrainWater))
	assert.True(t, buildings.KindWaterPlant.AllowedOn(grid.TerrainMud))
	assert.False(t, buildings.KindWaterPlant.AllowedOn(grid.TerrainPlain))
	assert.True(t, buildings.KindFactory.AllowedOn(grid.TerrainTrees))
	assert.False(t, buildings.KindFactory.AllowedOn(grid.TerrainMud))
	assert.False(t, buildings.KindSolarPanels.AllowedOn(grid.TerrainRock))
	assert.NotEmpty(t, buildings.KindSolarPanels.Description())
}

func TestTerrainDerivedRates(t *testing.T) {
	s := buildings.NewSolarPanels(placement(1, 0, 0, 0.75, 0))
	rates := s.Rates()
	assert.Equal(t, 24, rates.Production[economy.Electricity])
	assert.Equal(t, 5, rates.Consumption[economy.Water], "round(1 + 24*0.15)")
	assert.Equal(t, 800, rates.Consumption[economy.Thugoleons])

	w := buildings.NewWaterPlant(placement(2, 0, 0, 0, 0.5))
	rates = w.Rates()
	assert.Equal(t, 16, rates.Production[economy.Water])
	assert.Equal(t, 6, rates.Consumption[economy.Electricity], "round(1 + 16*0.3)")

	r, ok := buildings.Produces(s)
	assert.True(t, ok)
	assert.Equal(t, economy.Electricity, r)
	_, ok = buildings.Produces(buildings.NewFactory(placement(3, 0, 0, 0, 0)))
	assert.False(t, ok)
}

func TestInsufficientCycleIsIdempotent(t *testing.T) {
	p := economy.NewPool(economy.Amounts{economy.Thugoleons: 100, economy.Electricity: 50, economy.Water: 50})
	f := buildings.NewFactory(placement(1, 0, 0, 0, 0))
	f.AddWorker()
	f.Stock().Electricity = 1 // needs 2

	before := p.Snapshot()
	for now := time.Duration(0); now <= 5*time.Second; now += 250 * time.Millisecond {
		f.Update(now, p)
	}
	assert.Equal(t, before, p.Snapshot())
	assert.Equal(t, buildings.Stock{Electricity: 1}, *f.Stock())
	assert.False(t, f.Status(p).Supplied)
}

func TestFactoryCycle(t *testing.T) {
	p := economy.NewPool(economy.Amounts{})
	f := buildings.NewFactory(placement(1, 0, 0, 0, 0))
	f.AddWorker()
	f.AddWorker()
	f.Stock().Electricity = 10
	f.Stock().Water = 10

	f.Update(500*time.Millisecond, p)
	assert.Equal(t, 0, p.Get(economy.Thugoleons), "cooldown not elapsed")

	f.Update(time.Second, p)
	assert.Equal(t, 2000, p.Get(economy.Thugoleons))
	assert.Equal(t, buildings.Stock{Electricity: 8, Water: 9}, *f.Stock())
	assert.Equal(t, -2, p.Get(economy.Electricity), "global pool mirrors consumption")
	assert.Equal(t, -1, p.Get(economy.Water))

	f.Update(1500*time.Millisecond, p)
	assert.Equal(t, 2000, p.Get(economy.Thugoleons), "cooldown restarted at the successful cycle")
	f.Update(2*time.Second, p)
	assert.Equal(t, 4000, p.Get(economy.Thugoleons))
}

func TestCooldownResetsOnlyOnSuccess(t *testing.T) {
	p := economy.NewPool(economy.Amounts{})
	r := buildings.NewResidence(placement(1, 0, 0, 0, 0))

	// Starved for three seconds: nothing happens, cooldown stays armed.
	r.Update(3*time.Second, p)
	assert.Equal(t, 0, p.Get(economy.Thugoleons))

	// Supplied mid-interval: cycles immediately because the last success
	// is still the construction time.
	r.Stock().Electricity = 1
	r.Stock().Water = 2
	r.Update(3*time.Second+100*time.Millisecond, p)
	assert.Equal(t, 500, p.Get(economy.Thugoleons))
	assert.Equal(t, buildings.Stock{}, *r.Stock())
}

func TestProducerStocksLocallyAndGlobally(t *testing.T) {
	p := economy.NewPool(economy.Amounts{economy.Thugoleons: 1000})
	s := buildings.NewSolarPanels(placement(1, 0, 0, 0.5, 0))
	s.Stock().Water = 10

	s.Update(time.Second, p)
	assert.Equal(t, 16, s.Stock().Electricity)
	assert.Equal(t, 16, p.Get(economy.Electricity))
	assert.Equal(t, 200, p.Get(economy.Thugoleons))
	assert.Equal(t, 7, s.Stock().Water, "round(1 + 16*0.15) = 3")

	// Upkeep no longer covered by the treasury.
	s.Update(2*time.Second, p)
	assert.Equal(t, 16, s.Stock().Electricity)
}

func TestWorkerBounds(t *testing.T) {
	f := buildings.NewFactory(placement(1, 0, 0, 0, 0))
	rng := rand.New(rand.NewSource(3))
	for i := 0; i < 500; i++ {
		if rng.Intn(2) == 0 {
			f.AddWorker()
		} else {
			f.RemoveWorker()
		}
		require.GreaterOrEqual(t, f.Workers(), 0)
		require.LessOrEqual(t, f.Workers(), f.Capacity())
		require.Equal(t, 1000*f.Workers(), f.Rates().Production[economy.Thugoleons])
	}

	for i := 0; i < 10; i++ {
		f.AddWorker()
	}
	assert.False(t, f.AddWorker())
	assert.Equal(t, 5, f.Status(economy.DefaultPool()).Workers)
}

func TestResidenceCapacity(t *testing.T) {
	r := buildings.NewResidence(placement(1, 0, 0, 0, 0))
	for i := 0; i < buildings.ResidenceCapacity; i++ {
		require.True(t, r.AddResident())
	}
	assert.False(t, r.AddResident())
	r.RemoveResident()
	assert.Equal(t, 3, r.Residents())
}

func TestRegistry(t *testing.T) {
	reg := buildings.NewRegistry()
	a := buildings.NewFactory(placement(1, 0, 0, 0, 0))
	b := buildings.NewResidence(placement(2, 1, 0, 0, 0))
	c := buildings.NewFactory(placement(3, 2, 0, 0, 0))
	require.NoError(t, reg.Add(a))
	require.NoError(t, reg.Add(b))
	require.NoError(t, reg.Add(c))
	assert.Error(t, reg.Add(buildings.NewFactory(placement(4, 0, 0, 0, 0))))

	assert.Equal(t, []*buildings.Factory{a, c}, reg.Factories())

	got, ok := reg.Remove(grid.C(0, 0))
	require.True(t, ok)
	assert.Equal(t, buildings.ID(1), got.ID())
	_, ok = reg.At(grid.C(0, 0))
	assert.False(t, ok)
	_, ok = reg.ByID(1)
	assert.False(t, ok)
	_, ok = reg.FactoryAt(grid.C(1, 0))
	assert.False(t, ok, "residence is not a factory")

	ids := []buildings.ID{}
	for _, bb := range reg.All() {
		ids = append(ids, bb.ID())
	}
	assert.Equal(t, []buildings.ID{2, 3}, ids)

	_, ok = reg.Remove(grid.C(9, 9))
	assert.False(t, ok)
}

func TestNewRejectsRoad(t *testing.T) {
	_, err := buildings.New(buildings.KindRoad, placement(1, 0, 0, 0, 0))
	assert.Error(t, err)
	b, err := buildings.New(buildings.KindWaterPlant, placement(1, 0, 0, 0, 0.25))
	require.NoError(t, err)
	road, ok := b.AdjacentRoad()
	assert.True(t, ok)
	assert.Equal(t, grid.C(0, 1), road)
}
