package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcity/internal/buildings"
	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/engine"
	"github.com/talgya/gridcity/internal/grid"
	"github.com/talgya/gridcity/internal/journal"
)

const testKey = "secret"

func newTestServer(t *testing.T, key string) (*Server, *httptest.Server) {
	t.Helper()
	g := grid.New(12, 5)
	for x := 0; x < g.Width; x++ {
		g.PlaceRoad(grid.C(x, 2))
	}
	sim := engine.NewSimulation(g, engine.DefaultOptions(), 1)
	s := &Server{
		Eng:            engine.NewEngine(sim, time.Millisecond),
		AdminKey:       key,
		EditTimeout:    time.Second,
		StreamInterval: 10 * time.Millisecond,
	}
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func runEngine(t *testing.T, s *Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	go s.Eng.Run(ctx)
	t.Cleanup(cancel)
}

func post(t *testing.T, url, key string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(data))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil && resp.StatusCode == http.StatusOK {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestStatusAndKinds(t *testing.T) {
	_, ts := newTestServer(t, "")

	var status map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/status", &status))
	assert.Equal(t, "gridcity", status["name"])
	assert.Equal(t, "1,000,000", status["treasury"])
	assert.Equal(t, float64(1), status["speed"])

	var kinds []map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/kinds", &kinds))
	assert.Len(t, kinds, len(buildings.Kinds))

	var pool map[string]int
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/pool", &pool))
	assert.Equal(t, 1_000_000, pool["thugoleons"])
}

func TestAdminAuth(t *testing.T) {
	_, open := newTestServer(t, "")
	resp := post(t, open.URL+"/api/v1/build", testKey, map[string]any{"kind": "road", "x": 0, "y": 0})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	_, locked := newTestServer(t, testKey)
	resp = post(t, locked.URL+"/api/v1/build", "", map[string]any{"kind": "road", "x": 0, "y": 0})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	resp = post(t, locked.URL+"/api/v1/demolish", "wrong", map[string]any{"x": 0, "y": 2})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestBuildAndDemolish(t *testing.T) {
	s, ts := newTestServer(t, testKey)
	runEngine(t, s)

	resp := post(t, ts.URL+"/api/v1/build", testKey, map[string]any{"kind": "factory", "x": 1, "y": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "applied", out["status"])

	var detail map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/building?x=1&y=1", &detail))
	assert.Equal(t, "factory", detail["kind"])
	assert.NotEmpty(t, detail["description"])

	resp = post(t, ts.URL+"/api/v1/build", testKey, map[string]any{"kind": "factory", "x": 1, "y": 1})
	require.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	assert.Equal(t, "rejected", out["status"])
	assert.Contains(t, out["error"], "occupied")

	resp = post(t, ts.URL+"/api/v1/demolish", testKey, map[string]any{"x": 1, "y": 1})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/building?x=1&y=1", nil))
}

func TestBuildQueuedWhileIdle(t *testing.T) {
	s, ts := newTestServer(t, testKey)
	s.EditTimeout = 20 * time.Millisecond

	resp := post(t, ts.URL+"/api/v1/build", testKey, map[string]any{"kind": "road", "x": 0, "y": 0})
	assert.Equal(t, http.StatusAccepted, resp.StatusCode)
	assert.Equal(t, 1, s.Eng.Sim.PendingEdits())

	s.Eng.Step()
	assert.True(t, s.Eng.Sim.Grid.HasRoad(grid.C(0, 0)))
}

func TestBuildBadRequests(t *testing.T) {
	_, ts := newTestServer(t, testKey)

	resp := post(t, ts.URL+"/api/v1/build", testKey, map[string]any{"kind": "castle", "x": 0, "y": 0})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	req, err := http.NewRequest(http.MethodPost, ts.URL+"/api/v1/build", strings.NewReader("{"))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+testKey)
	raw, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	raw.Body.Close()
	assert.Equal(t, http.StatusBadRequest, raw.StatusCode)

	assert.Equal(t, http.StatusMethodNotAllowed, getJSON(t, ts.URL+"/api/v1/build", nil))
}

func TestTile(t *testing.T) {
	_, ts := newTestServer(t, "")

	var tile map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/tile?x=3&y=2", &tile))
	assert.Equal(t, true, tile["road"])
	assert.Equal(t, true, tile["traversable"])
	assert.Equal(t, "plain", tile["terrain_name"])

	assert.Equal(t, http.StatusBadRequest, getJSON(t, ts.URL+"/api/v1/tile?x=a&y=2", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/tile?x=99&y=0", nil))
}

func TestCitizensCarriersEvents(t *testing.T) {
	s, ts := newTestServer(t, "")
	s.Eng.View(func(sim *engine.Simulation) {
		require.NoError(t, sim.Place(buildings.KindResidence, grid.C(0, 1)))
		require.NoError(t, sim.Place(buildings.KindSolarPanels, grid.C(1, 1)))
	})

	var citizens []engine.CitizenView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/citizens", &citizens))
	require.Len(t, citizens, 1)
	assert.Equal(t, "at_home", citizens[0].State)
	assert.False(t, citizens[0].Visible)

	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/citizens?state=wandering", &citizens))
	assert.Empty(t, citizens)

	var carriers []engine.CarrierView
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/carriers", &carriers))
	require.Len(t, carriers, 1)
	assert.Equal(t, economy.Electricity, carriers[0].Resource)

	var all []buildings.Status
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/buildings?kind=solar_panels", &all))
	assert.Len(t, all, 1)

	var events []engine.Event
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/events?category=construction&limit=1", &events))
	require.Len(t, events, 1)
	assert.Contains(t, events[0].Description, "solar_panels")
}

func TestSpeed(t *testing.T) {
	s, ts := newTestServer(t, testKey)

	resp := post(t, ts.URL+"/api/v1/speed", testKey, map[string]float64{"speed": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, 2.0, s.Eng.Speed())

	resp = post(t, ts.URL+"/api/v1/speed", testKey, map[string]float64{"speed": 2000})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	var out map[string]float64
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/speed", &out))
	assert.Equal(t, 2.0, out["speed"])
}

func TestReports(t *testing.T) {
	s, ts := newTestServer(t, "")
	assert.Equal(t, http.StatusNotFound, getJSON(t, ts.URL+"/api/v1/reports", nil))

	db, err := journal.Open(filepath.Join(t.TempDir(), "j.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	run, err := db.BeginRun(1, 12, 5)
	require.NoError(t, err)
	require.NoError(t, db.SaveReport(run, engine.DailyReport{Day: 0, Pool: economy.Amounts{economy.Thugoleons: 5}}))
	s.Journal = db
	s.RunID = run

	var reports []engine.DailyReport
	require.Equal(t, http.StatusOK, getJSON(t, ts.URL+"/api/v1/reports", &reports))
	require.Len(t, reports, 1)
	assert.Equal(t, 5, reports[0].Pool[economy.Thugoleons])
}

func TestWebSocketStream(t *testing.T) {
	s, ts := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go s.hub.Run(ctx)
	go s.stream(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))
	assert.Equal(t, "snapshot", env.Type)
	var snap engine.Snapshot
	require.NoError(t, json.Unmarshal(env.Payload, &snap))
	assert.Equal(t, 1_000_000, snap.Pool[economy.Thugoleons])

	// Periodic snapshots keep coming.
	require.NoError(t, conn.ReadJSON(&env))
	assert.Contains(t, []string{"snapshot", "event"}, env.Type)
}

func TestWebSocketAfterHubStopped(t *testing.T) {
	s, ts := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)
	cancel()
	select {
	case <-s.hub.done:
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler gives up on registration and hangs up instead of blocking.
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) {
		assert.False(t, netErr.Timeout(), "connection should be closed, not left hanging")
	}
}

func TestWebSocketClientOutlivesHub(t *testing.T) {
	s, ts := newTestServer(t, "")
	ctx, cancel := context.WithCancel(context.Background())
	go s.hub.Run(ctx)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env Envelope
	require.NoError(t, conn.ReadJSON(&env))

	cancel()
	<-s.hub.done
	// Shutdown closes the send queue; the writer sends a close frame and the
	// reader exits without waiting on the stopped hub.
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure))
}

func TestRateLimiter(t *testing.T) {
	clock := time.Unix(0, 0)
	rl := NewRateLimiter(2, time.Minute)
	rl.now = func() time.Time { return clock }

	assert.True(t, rl.Allow("a"))
	assert.True(t, rl.Allow("a"))
	assert.False(t, rl.Allow("a"))
	assert.True(t, rl.Allow("b"), "buckets are per client")
	assert.Equal(t, 61, rl.RetryAfter("a"))
	assert.Equal(t, 0, rl.RetryAfter("nobody"))

	clock = clock.Add(time.Minute)
	assert.True(t, rl.Allow("a"))
}

func TestRateLimitMiddleware(t *testing.T) {
	rl := NewRateLimiter(1, time.Hour)
	h := RateLimitMiddleware(rl, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/", nil)
	req.RemoteAddr = "10.0.0.1:5555"
	rec := httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = httptest.NewRecorder()
	h(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("Retry-After"))

	req.Header.Set("X-Forwarded-For", "10.0.0.2, 10.0.0.1")
	assert.Equal(t, "10.0.0.2", clientAddr(req))
}
