// Package journal records simulation runs, events and daily reports in SQLite.
package journal

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/gridcity/internal/economy"
	"github.com/talgya/gridcity/internal/engine"
)

// DB wraps a SQLite connection for the run journal.
type DB struct {
	conn *sqlx.DB
}

// Run describes one simulation run.
type Run struct {
	ID        string `db:"id" json:"id"`
	Seed      int64  `db:"seed" json:"seed"`
	Width     int    `db:"width" json:"width"`
	Height    int    `db:"height" json:"height"`
	StartedAt string `db:"started_at" json:"started_at"`
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		seed INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		started_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		day INTEGER NOT NULL,
		time TEXT NOT NULL,
		category TEXT NOT NULL,
		description TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS daily_reports (
		run_id TEXT NOT NULL,
		day INTEGER NOT NULL,
		tick INTEGER NOT NULL,
		thugoleons INTEGER NOT NULL,
		population INTEGER NOT NULL,
		employed INTEGER NOT NULL,
		buildings INTEGER NOT NULL,
		unsupplied INTEGER NOT NULL,
		events INTEGER NOT NULL,
		pool_json TEXT NOT NULL,
		stats_json TEXT NOT NULL,
		PRIMARY KEY (run_id, day)
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_events_run ON events(run_id, id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// BeginRun registers a new run and returns its ID.
func (db *DB) BeginRun(seed int64, width, height int) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(
		"INSERT INTO runs (id, seed, width, height, started_at) VALUES (?, ?, ?, ?, ?)",
		id, seed, width, height, time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return "", fmt.Errorf("begin run: %w", err)
	}
	if err := db.SaveMeta("last_run", id); err != nil {
		return "", err
	}
	return id, nil
}

// Runs lists every recorded run, newest first.
func (db *DB) Runs() ([]Run, error) {
	var runs []Run
	err := db.conn.Select(&runs, "SELECT id, seed, width, height, started_at FROM runs ORDER BY started_at DESC, rowid DESC")
	return runs, err
}

// SaveEvents appends events to a run.
func (db *DB) SaveEvents(runID string, events []engine.Event) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		_, err := tx.Exec(
			"INSERT INTO events (run_id, tick, day, time, category, description) VALUES (?, ?, ?, ?, ?, ?)",
			runID, e.Tick, e.Day, e.Time, e.Category, e.Description,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// RecentEvents returns the most recent events of a run, newest first.
func (db *DB) RecentEvents(runID string, limit int) ([]engine.Event, error) {
	var events []engine.Event
	err := db.conn.Select(&events,
		"SELECT tick, day, time, category, description FROM events WHERE run_id = ? ORDER BY id DESC LIMIT ?",
		runID, limit,
	)
	return events, err
}

// SaveReport stores a day's report, replacing any earlier copy.
func (db *DB) SaveReport(runID string, r engine.DailyReport) error {
	poolJSON, err := json.Marshal(r.Pool)
	if err != nil {
		return fmt.Errorf("encode pool: %w", err)
	}
	statsJSON, err := json.Marshal(r.Stats)
	if err != nil {
		return fmt.Errorf("encode stats: %w", err)
	}
	_, err = db.conn.Exec(`INSERT OR REPLACE INTO daily_reports
		(run_id, day, tick, thugoleons, population, employed, buildings, unsupplied, events, pool_json, stats_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, r.Day, r.Tick, r.Pool[economy.Thugoleons], r.Stats.Population, r.Stats.Employed,
		r.Stats.Buildings, r.Stats.Unsupplied, r.Events, string(poolJSON), string(statsJSON),
	)
	return err
}

type reportRow struct {
	Day       int    `db:"day"`
	Tick      uint64 `db:"tick"`
	Events    int    `db:"events"`
	PoolJSON  string `db:"pool_json"`
	StatsJSON string `db:"stats_json"`
}

// Reports returns a run's daily reports in day order.
func (db *DB) Reports(runID string) ([]engine.DailyReport, error) {
	var rows []reportRow
	err := db.conn.Select(&rows,
		"SELECT day, tick, events, pool_json, stats_json FROM daily_reports WHERE run_id = ? ORDER BY day",
		runID,
	)
	if err != nil {
		return nil, err
	}
	out := make([]engine.DailyReport, 0, len(rows))
	for _, row := range rows {
		r := engine.DailyReport{Day: row.Day, Tick: row.Tick, Events: row.Events}
		if err := json.Unmarshal([]byte(row.PoolJSON), &r.Pool); err != nil {
			return nil, fmt.Errorf("decode pool for day %d: %w", row.Day, err)
		}
		if err := json.Unmarshal([]byte(row.StatsJSON), &r.Stats); err != nil {
			return nil, fmt.Errorf("decode stats for day %d: %w", row.Day, err)
		}
		out = append(out, r)
	}
	return out, nil
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}
