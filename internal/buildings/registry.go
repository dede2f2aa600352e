package buildings

import (
	"fmt"

	"github.com/talgya/gridcity/internal/grid"
)

// Registry is the authoritative building table. Agents hold coordinates,
// not pointers, and resolve them here; a miss means the building is gone.
type Registry struct {
	byPos map[grid.Coord]Building
	byID  map[ID]Building
	order []Building // Creation order
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		byPos: make(map[grid.Coord]Building),
		byID:  make(map[ID]Building),
	}
}

// Add registers a building. Fails if the position is already taken.
func (r *Registry) Add(b Building) error {
	if _, taken := r.byPos[b.Pos()]; taken {
		return fmt.Errorf("building already at %v", b.Pos())
	}
	r.byPos[b.Pos()] = b
	r.byID[b.ID()] = b
	r.order = append(r.order, b)
	return nil
}

// Remove unregisters and returns the building at pos.
func (r *Registry) Remove(pos grid.Coord) (Building, bool) {
	b, ok := r.byPos[pos]
	if !ok {
		return nil, false
	}
	delete(r.byPos, pos)
	delete(r.byID, b.ID())
	for i, o := range r.order {
		if o == b {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return b, true
}

// At resolves a position to a building.
func (r *Registry) At(pos grid.Coord) (Building, bool) {
	b, ok := r.byPos[pos]
	return b, ok
}

// ByID resolves an ID to a building.
func (r *Registry) ByID(id ID) (Building, bool) {
	b, ok := r.byID[id]
	return b, ok
}

// FactoryAt resolves a position to a factory.
func (r *Registry) FactoryAt(pos grid.Coord) (*Factory, bool) {
	b, ok := r.byPos[pos]
	if !ok {
		return nil, false
	}
	f, ok := b.(*Factory)
	return f, ok
}

// Len returns the number of registered buildings.
func (r *Registry) Len() int { return len(r.order) }

// All returns the buildings in creation order. The slice is a copy.
func (r *Registry) All() []Building {
	out := make([]Building, len(r.order))
	copy(out, r.order)
	return out
}

// Factories returns every factory in creation order.
func (r *Registry) Factories() []*Factory {
	var out []*Factory
	for _, b := range r.order {
		if f, ok := b.(*Factory); ok {
			out = append(out, f)
		}
	}
	return out
}
