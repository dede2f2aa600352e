// Command citysim runs the grid city simulation with its HTTP API and
// SQLite journal.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"github.com/talgya/gridcity/internal/api"
	"github.com/talgya/gridcity/internal/config"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/engine"
	"github.com/talgya/gridcity/internal/grid"
	"github.com/talgya/gridcity/internal/journal"
	"github.com/talgya/gridcity/internal/terrain"
)

// journalFlush is how often buffered events are written to the journal.
const journalFlush = 5 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	var handler slog.Handler = slog.NewJSONHandler(os.Stdout, opts)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	slog.SetDefault(slog.New(handler))

	// ── Terrain ───────────────────────────────────────────────────────
	genCfg := terrain.DefaultConfig()
	genCfg.Seed = cfg.Seed
	genCfg.Width = cfg.Width
	genCfg.Height = cfg.Height
	g := terrain.Generate(genCfg)

	for t, c := range terrain.Counts(g) {
		slog.Info("terrain", "type", grid.TerrainName(t), "count", c)
	}

	// ── Simulation ────────────────────────────────────────────────────
	simOpts := engine.DefaultOptions()
	simOpts.StartHour = cfg.StartHour
	simOpts.HoursPerSecond = cfg.HoursPerSecond
	sim := engine.NewSimulation(g, simOpts, cfg.Seed)

	eng := engine.NewEngine(sim, cfg.Tick)
	eng.SetSpeed(cfg.Speed)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Journal ───────────────────────────────────────────────────────
	var db *journal.DB
	var runID string
	var flushed chan struct{}
	if cfg.DBPath != "" {
		db, err = journal.Open(cfg.DBPath)
		if err != nil {
			slog.Error("failed to open journal", "path", cfg.DBPath, "error", err)
			os.Exit(1)
		}
		defer db.Close()

		runID, err = db.BeginRun(cfg.Seed, cfg.Width, cfg.Height)
		if err != nil {
			slog.Error("failed to record run", "error", err)
			os.Exit(1)
		}
		slog.Info("journal opened", "path", cfg.DBPath, "run", runID)

		sim.OnDay = func(r engine.DailyReport) {
			if err := db.SaveReport(runID, r); err != nil {
				slog.Error("daily report save failed", "day", r.Day, "error", err)
			}
		}
		flushed = make(chan struct{})
		go recordEvents(ctx, db, runID, sim, sim.Subscribe(), flushed)
	} else {
		slog.Warn("CITYSIM_DB_PATH empty, journal disabled")
	}

	if cfg.StarterCity {
		engine.StarterCity(sim)
		slog.Info("treasury", "thugoleons", humanize.Comma(int64(sim.Pool.Get(economy.Thugoleons))))
	}

	// ── HTTP API ──────────────────────────────────────────────────────
	if cfg.APIPort > 0 {
		if cfg.AdminKey == "" {
			slog.Warn("CITYSIM_ADMIN_KEY not set, build and demolish endpoints are disabled")
		}
		srv := &api.Server{
			Eng:      eng,
			Journal:  db,
			RunID:    runID,
			Port:     cfg.APIPort,
			AdminKey: cfg.AdminKey,
		}
		srv.Start(ctx)
		fmt.Printf("API: http://localhost:%d/api/v1/status\n", cfg.APIPort)
	}

	fmt.Printf("\nGrid city is running on a %dx%d map (seed %d), %s.\n",
		cfg.Width, cfg.Height, cfg.Seed, sim.Clock.String())
	fmt.Println("Starting simulation... (Ctrl+C to stop)")

	eng.Run(ctx)
	slog.Info("simulation stopped", "tick", sim.Tick, "time", sim.Clock.String())

	if flushed != nil {
		<-flushed
	}
}

// recordEvents batches simulation events into the journal until ctx is done,
// then writes whatever is left.
func recordEvents(ctx context.Context, db *journal.DB, runID string, sim *engine.Simulation, events chan engine.Event, done chan<- struct{}) {
	defer close(done)
	defer sim.Unsubscribe(events)

	var batch []engine.Event
	flush := func() {
		if len(batch) == 0 {
			return
		}
		if err := db.SaveEvents(runID, batch); err != nil {
			slog.Error("event journal write failed", "events", len(batch), "error", err)
		}
		batch = batch[:0]
	}

	ticker := time.NewTicker(journalFlush)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case e := <-events:
			batch = append(batch, e)
			if len(batch) >= 256 {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
