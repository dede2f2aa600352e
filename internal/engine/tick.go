// Package engine provides the city simulation and the fixed-interval loop
// that drives it.
package engine

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Engine drives a Simulation forward and serialises access to it.
type Engine struct {
	Sim      *Simulation
	Interval time.Duration // Real time between ticks

	// OnTick runs after every tick, outside the lock.
	OnTick func(tick uint64)

	mu    sync.Mutex // Guards Sim
	speed float64    // Multiplier: 1.0 = real-time, 0 = paused
	cmu   sync.Mutex // Guards speed and cancel
	stop  context.CancelFunc
}

// NewEngine creates an engine ticking every interval at speed 1.
func NewEngine(sim *Simulation, interval time.Duration) *Engine {
	return &Engine{
		Sim:      sim,
		Interval: interval,
		speed:    1.0,
	}
}

// Speed returns the current multiplier.
func (e *Engine) Speed() float64 {
	e.cmu.Lock()
	defer e.cmu.Unlock()
	return e.speed
}

// SetSpeed changes the multiplier. Zero or less pauses.
func (e *Engine) SetSpeed(v float64) {
	e.cmu.Lock()
	e.speed = v
	e.cmu.Unlock()
	slog.Info("speed changed", "speed", v)
}

// Run starts the simulation loop. Blocks until ctx is done or Stop is called.
func (e *Engine) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	e.cmu.Lock()
	e.stop = cancel
	e.cmu.Unlock()
	defer cancel()

	slog.Info("simulation engine started", "tick", e.tick(), "interval", e.Interval, "speed", e.Speed())

	ticker := time.NewTicker(e.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("simulation engine stopped", "tick", e.tick())
			return
		case <-ticker.C:
			if e.Speed() <= 0 {
				continue
			}
			e.Step()
		}
	}
}

// Stop halts a running loop.
func (e *Engine) Stop() {
	e.cmu.Lock()
	defer e.cmu.Unlock()
	if e.stop != nil {
		e.stop()
	}
}

// Step advances the simulation by one interval scaled by speed.
func (e *Engine) Step() {
	dt := time.Duration(float64(e.Interval) * e.Speed())
	e.mu.Lock()
	e.Sim.Step(dt)
	e.Sim.Animate(e.Interval)
	tick := e.Sim.Tick
	e.mu.Unlock()

	if e.OnTick != nil {
		e.OnTick(tick)
	}
}

// View runs fn with exclusive access to the simulation.
func (e *Engine) View(fn func(s *Simulation)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	fn(e.Sim)
}

func (e *Engine) tick() uint64 {
	var t uint64
	e.View(func(s *Simulation) { t = s.Tick })
	return t
}
