// Package economy provides the city-wide resource pool shared by every
// building, carrier, and construction cost.
package economy

import "sort"

// Resource names a fungible quantity tracked by the pool.
type Resource string

const (
	Electricity Resource = "electricity"
	Water       Resource = "water"
	Thugoleons  Resource = "thugoleons" // City currency
	Citizens    Resource = "citizens"   // Population head count
)

// Amounts maps resources to quantities. Missing entries read as zero.
type Amounts map[Resource]int

// Clone returns an independent copy.
func (a Amounts) Clone() Amounts {
	out := make(Amounts, len(a))
	for r, v := range a {
		out[r] = v
	}
	return out
}

// Resources returns the keys in sorted order.
func (a Amounts) Resources() []Resource {
	keys := make([]Resource, 0, len(a))
	for r := range a {
		keys = append(keys, r)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

// Pool is the global resource pool. Values may go negative transiently;
// producers and consumers gate themselves with explicit checks instead.
type Pool struct {
	amounts Amounts
}

// NewPool creates a pool holding a copy of the given starting amounts.
func NewPool(start Amounts) *Pool {
	return &Pool{amounts: start.Clone()}
}

// DefaultPool returns the standard starting treasury.
func DefaultPool() *Pool {
	return NewPool(Amounts{
		Electricity: 100,
		Water:       100,
		Thugoleons:  1_000_000,
		Citizens:    0,
	})
}

// Get returns the current quantity of a resource.
func (p *Pool) Get(r Resource) int {
	return p.amounts[r]
}

// Add increases a resource. Negative n decreases it.
func (p *Pool) Add(r Resource, n int) {
	p.amounts[r] += n
}

// Sub decreases a resource with no floor.
func (p *Pool) Sub(r Resource, n int) {
	p.amounts[r] -= n
}

// CanCover reports whether every line item of cost is covered. Pure.
func (p *Pool) CanCover(cost Amounts) bool {
	for r, n := range cost {
		if p.amounts[r] < n {
			return false
		}
	}
	return true
}

// Charge debits every line item of cost. Negative line items credit.
func (p *Pool) Charge(cost Amounts) {
	for r, n := range cost {
		p.amounts[r] -= n
	}
}

// Snapshot returns a copy of the current amounts.
func (p *Pool) Snapshot() Amounts {
	return p.amounts.Clone()
}
