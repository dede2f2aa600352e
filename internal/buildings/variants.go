package buildings

import (
	"fmt"
	"math"
	"time"

	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/grid"
)

// Terrain-derived production multipliers.
const (
	ElectricityMultiplier = 32 // Solar output per unit of elevation
	MoistureMultiplier    = 32 // Water plant output per unit of moisture
)

// Factory and residence limits.
const (
	FactoryMaxOutput     = 5000 // Thugoleons per second with a full shift
	FactoryWorkerCap     = 5
	ResidenceCapacity    = 4
	ResidenceOutput      = 500
	solarBaseWater       = 1
	solarUpkeep          = 800
	waterPlantBaseEnergy = 1
	waterPlantUpkeep     = 1000
)

// Placement is what a constructor needs to know about the target tile.
type Placement struct {
	ID      ID
	Tile    *grid.Tile
	Road    grid.Coord
	HasRoad bool
	Now     time.Duration
}

// New constructs the building for a kind. Roads are not buildings.
func New(k Kind, at Placement) (Building, error) {
	switch k {
	case KindFactory:
		return NewFactory(at), nil
	case KindResidence:
		return NewResidence(at), nil
	case KindSolarPanels:
		return NewSolarPanels(at), nil
	case KindWaterPlant:
		return NewWaterPlant(at), nil
	}
	return nil, fmt.Errorf("%q is not a building", k)
}

// Factory employs citizens; output scales with the current shift.
type Factory struct {
	core
	workers  int
	capacity int
}

// NewFactory creates an empty factory.
func NewFactory(at Placement) *Factory {
	f := &Factory{
		core:     newCore(at.ID, KindFactory, at.Tile.Coord, at.Road, at.HasRoad, at.Now),
		capacity: FactoryWorkerCap,
	}
	f.consumption[economy.Electricity] = 2
	f.consumption[economy.Water] = 1
	f.production[economy.Thugoleons] = 0
	return f
}

// Workers returns the number of citizens currently on shift.
func (f *Factory) Workers() int { return f.workers }

// Capacity returns the maximum shift size.
func (f *Factory) Capacity() int { return f.capacity }

// AddWorker clocks a citizen in. False when the shift is full.
func (f *Factory) AddWorker() bool {
	if f.workers >= f.capacity {
		return false
	}
	f.workers++
	f.refreshOutput()
	return true
}

// RemoveWorker clocks a citizen out. False when nobody is on shift.
func (f *Factory) RemoveWorker() bool {
	if f.workers <= 0 {
		return false
	}
	f.workers--
	f.refreshOutput()
	return true
}

func (f *Factory) refreshOutput() {
	f.production[economy.Thugoleons] = FactoryMaxOutput / f.capacity * f.workers
}

// Status adds the shift to the shared status.
func (f *Factory) Status(p *economy.Pool) Status {
	s := f.core.Status(p)
	s.Workers = f.workers
	s.WorkerCapacity = f.capacity
	return s
}

// Residence houses citizens and pays a flat output while supplied.
type Residence struct {
	core
	residents int
}

// NewResidence creates an empty residence.
func NewResidence(at Placement) *Residence {
	r := &Residence{
		core: newCore(at.ID, KindResidence, at.Tile.Coord, at.Road, at.HasRoad, at.Now),
	}
	r.consumption[economy.Electricity] = 1
	r.consumption[economy.Water] = 2
	r.production[economy.Thugoleons] = ResidenceOutput
	return r
}

// Residents returns the number of citizens living here.
func (r *Residence) Residents() int { return r.residents }

// AddResident registers a new citizen. False when full.
func (r *Residence) AddResident() bool {
	if r.residents >= ResidenceCapacity {
		return false
	}
	r.residents++
	return true
}

// RemoveResident unregisters a citizen.
func (r *Residence) RemoveResident() {
	if r.residents > 0 {
		r.residents--
	}
}

// Status adds occupancy to the shared status.
func (r *Residence) Status(p *economy.Pool) Status {
	s := r.core.Status(p)
	s.Residents = r.residents
	s.ResidentCapacity = ResidenceCapacity
	return s
}

// SolarPanels produce electricity; output scales with tile elevation and
// drinks proportionally more water.
type SolarPanels struct {
	core
}

// NewSolarPanels derives rates from the tile's elevation.
func NewSolarPanels(at Placement) *SolarPanels {
	s := &SolarPanels{
		core: newCore(at.ID, KindSolarPanels, at.Tile.Coord, at.Road, at.HasRoad, at.Now),
	}
	rate := int(math.Round(at.Tile.Elevation * ElectricityMultiplier))
	s.production[economy.Electricity] = rate
	s.consumption[economy.Water] = int(math.Round(solarBaseWater + float64(rate)*0.15))
	s.consumption[economy.Thugoleons] = solarUpkeep
	return s
}

// WaterPlant produces water; output scales with tile moisture and draws
// proportionally more electricity.
type WaterPlant struct {
	core
}

// NewWaterPlant derives rates from the tile's moisture.
func NewWaterPlant(at Placement) *WaterPlant {
	w := &WaterPlant{
		core: newCore(at.ID, KindWaterPlant, at.Tile.Coord, at.Road, at.HasRoad, at.Now),
	}
	rate := int(math.Round(at.Tile.Moisture * MoistureMultiplier))
	w.production[economy.Water] = rate
	w.consumption[economy.Electricity] = int(math.Round(waterPlantBaseEnergy + float64(rate)*0.3))
	w.consumption[economy.Thugoleons] = waterPlantUpkeep
	return w
}

// Produces returns the local resource a building makes, if any.
func Produces(b Building) (economy.Resource, bool) {
	switch b.(type) {
	case *SolarPanels:
		return economy.Electricity, true
	case *WaterPlant:
		return economy.Water, true
	}
	return "", false
}
