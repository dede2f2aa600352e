package journal

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/engine"
)

func openTemp(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "sub", "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunsAndMeta(t *testing.T) {
	db := openTemp(t)
	id, err := db.BeginRun(42, 40, 30)
	require.NoError(t, err)
	assert.Len(t, id, 36)

	last, err := db.GetMeta("last_run")
	require.NoError(t, err)
	assert.Equal(t, id, last)

	runs, err := db.Runs()
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, int64(42), runs[0].Seed)
	assert.Equal(t, 30, runs[0].Height)

	_, err = db.GetMeta("missing")
	assert.Error(t, err)
}

func TestEvents(t *testing.T) {
	db := openTemp(t)
	a, err := db.BeginRun(1, 10, 10)
	require.NoError(t, err)
	b, err := db.BeginRun(2, 10, 10)
	require.NoError(t, err)

	require.NoError(t, db.SaveEvents(a, nil))
	require.NoError(t, db.SaveEvents(a, []engine.Event{
		{Tick: 1, Day: 0, Time: "06:00", Category: "construction", Description: "road laid at (1,1)"},
		{Tick: 2, Day: 0, Time: "06:01", Category: "demolition", Description: "road removed at (1,1)"},
	}))
	require.NoError(t, db.SaveEvents(b, []engine.Event{{Tick: 9, Category: "population", Description: "x"}}))

	got, err := db.RecentEvents(a, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "demolition", got[0].Category)
	assert.Equal(t, uint64(1), got[1].Tick)
	assert.Equal(t, "06:00", got[1].Time)

	got, err = db.RecentEvents(a, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestReports(t *testing.T) {
	db := openTemp(t)
	run, err := db.BeginRun(1, 10, 10)
	require.NoError(t, err)

	r := engine.DailyReport{
		Day:    0,
		Tick:   480,
		Pool:   economy.Amounts{economy.Thugoleons: 995_000, economy.Citizens: 3},
		Stats:  engine.Stats{Population: 3, Employed: 2, Buildings: 4},
		Events: 7,
	}
	require.NoError(t, db.SaveReport(run, r))
	r.Events = 8
	require.NoError(t, db.SaveReport(run, r), "same day replaces")
	require.NoError(t, db.SaveReport(run, engine.DailyReport{Day: 1, Pool: economy.Amounts{}}))

	got, err := db.Reports(run)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 8, got[0].Events)
	assert.Equal(t, 995_000, got[0].Pool[economy.Thugoleons])
	assert.Equal(t, 2, got[0].Stats.Employed)
	assert.Equal(t, 1, got[1].Day)

	none, err := db.Reports("nope")
	require.NoError(t, err)
	assert.Empty(t, none)
}
