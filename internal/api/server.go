// Package api provides the HTTP API for observing the city.
// GET endpoints are public (read-only observation).
// POST endpoints require a bearer token and queue structural edits that the
// simulation applies on a later tick.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/talgya/gridcity/internal/agents"
	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/engine"
	"github.com/talgya/gridcity/internal/grid"
	"github.com/talgya/gridcity/internal/journal"
)

// Defaults for the optional Server fields.
const (
	DefaultEditTimeout    = 2 * time.Second
	DefaultStreamInterval = 500 * time.Millisecond
)

// Server serves the city state over HTTP.
type Server struct {
	Eng      *engine.Engine
	Journal  *journal.DB // Optional; enables /api/v1/reports
	RunID    string
	Port     int
	AdminKey string // Bearer token for POST endpoints. Empty = POST disabled.

	EditTimeout    time.Duration // How long POST edits wait for the tick to apply them
	StreamInterval time.Duration // Snapshot period on the websocket stream

	hub     *Hub
	limiter *RateLimiter
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	if s.hub == nil {
		s.hub = NewHub()
	}
	if s.limiter == nil {
		s.limiter = NewRateLimiter(120, time.Minute)
	}

	mux := http.NewServeMux()

	// Public endpoints (GET, read-only).
	mux.HandleFunc("/api/v1/status", s.handleStatus)
	mux.HandleFunc("/api/v1/pool", s.handlePool)
	mux.HandleFunc("/api/v1/kinds", s.handleKinds)
	mux.HandleFunc("/api/v1/buildings", s.handleBuildings)
	mux.HandleFunc("/api/v1/building", s.handleBuilding)
	mux.HandleFunc("/api/v1/citizens", s.handleCitizens)
	mux.HandleFunc("/api/v1/carriers", s.handleCarriers)
	mux.HandleFunc("/api/v1/events", s.handleEvents)
	mux.HandleFunc("/api/v1/tile", s.handleTile)
	mux.HandleFunc("/api/v1/reports", s.handleReports)
	mux.HandleFunc("/api/v1/ws", s.handleWS)

	// Admin endpoints (POST, require bearer token).
	mux.HandleFunc("/api/v1/speed", s.adminOnly(s.handleSpeed))
	mux.HandleFunc("/api/v1/build", RateLimitMiddleware(s.limiter, s.adminOnly(s.handleBuild)))
	mux.HandleFunc("/api/v1/demolish", RateLimitMiddleware(s.limiter, s.adminOnly(s.handleDemolish)))

	return corsMiddleware(mux)
}

// Start serves the API and the snapshot stream until ctx is done.
func (s *Server) Start(ctx context.Context) {
	handler := s.Handler()
	addr := fmt.Sprintf(":%d", s.Port)
	srv := &http.Server{Addr: addr, Handler: handler}
	slog.Info("HTTP API starting", "addr", addr, "admin_auth", s.AdminKey != "")

	go s.hub.Run(ctx)
	go s.stream(ctx)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", "error", err)
		}
	}()
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
}

// corsMiddleware adds CORS headers for allowed frontend origins.
// Set CORS_ORIGINS to a comma-separated list of extra allowed origins.
// Localhost dev servers are always allowed.
func corsMiddleware(next http.Handler) http.Handler {
	allowedOrigins := map[string]bool{
		"http://localhost:5173": true,
		"http://localhost:3000": true,
	}
	if env := os.Getenv("CORS_ORIGINS"); env != "" {
		for _, origin := range strings.Split(env, ",") {
			origin = strings.TrimSpace(origin)
			if origin != "" {
				allowedOrigins[origin] = true
			}
		}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if allowedOrigins[origin] {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// checkBearerToken returns true if the request has a valid admin bearer token.
func (s *Server) checkBearerToken(r *http.Request) bool {
	auth := r.Header.Get("Authorization")
	return strings.HasPrefix(auth, "Bearer ") && strings.TrimPrefix(auth, "Bearer ") == s.AdminKey
}

// adminOnly wraps a handler to require bearer token auth on POST requests.
// GET requests pass through (for endpoints that support both GET and POST).
func (s *Server) adminOnly(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			if s.AdminKey == "" {
				http.Error(w, "admin endpoints disabled (no CITYSIM_ADMIN_KEY set)", http.StatusForbidden)
				return
			}

			if !s.checkBearerToken(r) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}

		next(w, r)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	var status map[string]any
	s.Eng.View(func(sim *engine.Simulation) {
		status = map[string]any{
			"name":          "gridcity",
			"tick":          sim.Tick,
			"day":           sim.Clock.Day() + 1,
			"hour":          sim.Clock.Hour(),
			"time":          sim.Clock.String(),
			"treasury":      humanize.Comma(int64(sim.Pool.Get(economy.Thugoleons))),
			"pending_edits": sim.PendingEdits(),
			"stats":         sim.Stats,
			"width":         sim.Grid.Width,
			"height":        sim.Grid.Height,
		}
	})
	status["speed"] = s.Eng.Speed()
	status["run_id"] = s.RunID
	writeJSON(w, status)
}

func (s *Server) handlePool(w http.ResponseWriter, r *http.Request) {
	var pool economy.Amounts
	s.Eng.View(func(sim *engine.Simulation) { pool = sim.Pool.Snapshot() })
	writeJSON(w, pool)
}

func (s *Server) handleKinds(w http.ResponseWriter, r *http.Request) {
	type kindInfo struct {
		Kind        buildings.Kind  `json:"kind"`
		Description string          `json:"description"`
		Cost        economy.Amounts `json:"cost"`
	}
	out := make([]kindInfo, 0, len(buildings.Kinds))
	for _, k := range buildings.Kinds {
		out = append(out, kindInfo{Kind: k, Description: k.Description(), Cost: buildings.Cost(k)})
	}
	writeJSON(w, out)
}

func (s *Server) handleBuildings(w http.ResponseWriter, r *http.Request) {
	var out []buildings.Status
	s.Eng.View(func(sim *engine.Simulation) {
		for _, b := range sim.Buildings.All() {
			out = append(out, b.Status(sim.Pool))
		}
	})
	if kind := r.URL.Query().Get("kind"); kind != "" {
		filtered := out[:0]
		for _, st := range out {
			if string(st.Kind) == kind {
				filtered = append(filtered, st)
			}
		}
		out = filtered
	}
	writeJSON(w, out)
}

func (s *Server) handleBuilding(w http.ResponseWriter, r *http.Request) {
	at, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	type buildingDetail struct {
		buildings.Status
		Description string      `json:"description"`
		Employees   []agents.ID `json:"employees,omitempty"`
	}
	var detail *buildingDetail
	s.Eng.View(func(sim *engine.Simulation) {
		b, ok := sim.Buildings.At(at)
		if !ok {
			return
		}
		detail = &buildingDetail{Status: b.Status(sim.Pool), Description: b.Kind().Description()}
		for _, c := range sim.CitizensOf(at) {
			detail.Employees = append(detail.Employees, c.ID)
		}
	})
	if detail == nil {
		http.Error(w, "no building at "+at.String(), http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleCitizens(w http.ResponseWriter, r *http.Request) {
	var out []engine.CitizenView
	s.Eng.View(func(sim *engine.Simulation) {
		for _, c := range sim.Citizens() {
			out = append(out, engine.ViewCitizen(c))
		}
	})
	if state := r.URL.Query().Get("state"); state != "" {
		filtered := out[:0]
		for _, c := range out {
			if c.State == state {
				filtered = append(filtered, c)
			}
		}
		out = filtered
	}
	writeJSON(w, out)
}

func (s *Server) handleCarriers(w http.ResponseWriter, r *http.Request) {
	var out []engine.CarrierView
	s.Eng.View(func(sim *engine.Simulation) {
		for _, c := range sim.Carriers() {
			out = append(out, engine.ViewCarrier(c))
		}
	})
	writeJSON(w, out)
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	var events []engine.Event
	s.Eng.View(func(sim *engine.Simulation) { events = sim.RecentEvents(0) })

	// Optional category filter.
	if category := r.URL.Query().Get("category"); category != "" {
		var filtered []engine.Event
		for _, e := range events {
			if e.Category == category {
				filtered = append(filtered, e)
			}
		}
		events = filtered
	}

	start := 0
	if len(events) > limit {
		start = len(events) - limit
	}
	writeJSON(w, events[start:])
}

func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	at, err := parseCoord(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	type tileDetail struct {
		grid.Tile
		TerrainName string      `json:"terrain_name"`
		Traversable bool        `json:"traversable"`
		Occupants   []agents.ID `json:"occupants"`
	}
	var detail *tileDetail
	s.Eng.View(func(sim *engine.Simulation) {
		t := sim.Grid.Tile(at)
		if t == nil {
			return
		}
		detail = &tileDetail{
			Tile:        *t,
			TerrainName: t.Terrain.String(),
			Traversable: sim.Grid.Collision().Walkable(at),
			Occupants:   sim.Occupancy.At(at),
		}
	})
	if detail == nil {
		http.Error(w, at.String()+" is out of bounds", http.StatusNotFound)
		return
	}
	writeJSON(w, detail)
}

func (s *Server) handleReports(w http.ResponseWriter, r *http.Request) {
	if s.Journal == nil {
		http.Error(w, "journal disabled", http.StatusNotFound)
		return
	}
	run := r.URL.Query().Get("run")
	if run == "" {
		run = s.RunID
	}
	reports, err := s.Journal.Reports(run)
	if err != nil {
		slog.Error("reports query failed", "run", run, "error", err)
		http.Error(w, "journal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, reports)
}

func (s *Server) handleSpeed(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodPost {
		var req struct {
			Speed float64 `json:"speed"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json", http.StatusBadRequest)
			return
		}
		if req.Speed < 0 || req.Speed > 1000 {
			http.Error(w, "speed must be 0-1000", http.StatusBadRequest)
			return
		}
		s.Eng.SetSpeed(req.Speed)
	}

	writeJSON(w, map[string]float64{"speed": s.Eng.Speed()})
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		Kind string `json:"kind"`
		X    int    `json:"x"`
		Y    int    `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	kind, err := buildings.ParseKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.submit(w, engine.Edit{Op: engine.EditPlace, Kind: kind, At: grid.C(req.X, req.Y)})
}

func (s *Server) handleDemolish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		X int `json:"x"`
		Y int `json:"y"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}
	s.submit(w, engine.Edit{Op: engine.EditRemove, At: grid.C(req.X, req.Y)})
}

// submit queues an edit and waits briefly for the tick that applies it.
func (s *Server) submit(w http.ResponseWriter, e engine.Edit) {
	done := s.Eng.Sim.Request(e)
	timeout := s.EditTimeout
	if timeout <= 0 {
		timeout = DefaultEditTimeout
	}

	resp := map[string]any{"op": e.Op.String(), "x": e.At.X, "y": e.At.Y}
	if e.Op == engine.EditPlace {
		resp["kind"] = e.Kind
	}

	select {
	case err := <-done:
		if err != nil {
			resp["status"] = "rejected"
			resp["error"] = err.Error()
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusUnprocessableEntity)
			json.NewEncoder(w).Encode(resp)
			return
		}
		resp["status"] = "applied"
		writeJSON(w, resp)
	case <-time.After(timeout):
		resp["status"] = "queued"
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusAccepted)
		json.NewEncoder(w).Encode(resp)
	}
}

func parseCoord(r *http.Request) (grid.Coord, error) {
	x, err := strconv.Atoi(r.URL.Query().Get("x"))
	if err != nil {
		return grid.Coord{}, fmt.Errorf("invalid x: %w", err)
	}
	y, err := strconv.Atoi(r.URL.Query().Get("y"))
	if err != nil {
		return grid.Coord{}, fmt.Errorf("invalid y: %w", err)
	}
	return grid.C(x, y), nil
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(data)
}
