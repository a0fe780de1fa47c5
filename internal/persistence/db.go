// Package persistence provides SQLite-based export of simulation runs: run
// parameters, per-tick metrics, per-agent wealth, the activity log and a final
// agent snapshot. Nothing is read back to resume a run.
package persistence

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/mini-market/internal/agents"
	"github.com/talgya/mini-market/internal/engine"
)

// ErrRunNotFound is returned when a run ID has no row.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a SQLite connection for run export.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	conn.SetMaxOpenConns(1)

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
		started_at TEXT NOT NULL,
		finished_at TEXT,
		strategy TEXT NOT NULL,
		agents INTEGER NOT NULL,
		width INTEGER NOT NULL,
		height INTEGER NOT NULL,
		initial_wealth REAL NOT NULL,
		seed INTEGER NOT NULL,
		ticks INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS tick_metrics (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		gini REAL,
		total_wealth REAL NOT NULL,
		average_wealth REAL,
		wealthiest REAL,
		wealthy INTEGER NOT NULL,
		non_wealthy INTEGER NOT NULL,
		total_trades INTEGER NOT NULL,
		total_interactions INTEGER NOT NULL,
		PRIMARY KEY (run_id, tick)
	);

	CREATE TABLE IF NOT EXISTS agent_wealth (
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		wealth REAL NOT NULL,
		PRIMARY KEY (run_id, tick, agent_id)
	);

	CREATE TABLE IF NOT EXISTS activities (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		tick INTEGER NOT NULL,
		agent_id INTEGER NOT NULL,
		kind TEXT NOT NULL,
		old_x INTEGER NOT NULL,
		old_y INTEGER NOT NULL,
		new_x INTEGER NOT NULL,
		new_y INTEGER NOT NULL,
		partner_id INTEGER,
		wealth REAL,
		partner_wealth REAL
	);

	CREATE TABLE IF NOT EXISTS agents (
		run_id TEXT NOT NULL,
		agent_id INTEGER NOT NULL,
		wealth REAL NOT NULL,
		strategy TEXT NOT NULL,
		mood INTEGER NOT NULL,
		x INTEGER NOT NULL,
		y INTEGER NOT NULL,
		trades INTEGER NOT NULL,
		interactions INTEGER NOT NULL,
		assets_json TEXT NOT NULL,
		PRIMARY KEY (run_id, agent_id)
	);

	CREATE INDEX IF NOT EXISTS idx_activities_run_tick ON activities(run_id, tick);
	CREATE INDEX IF NOT EXISTS idx_activities_agent ON activities(run_id, agent_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// CreateRun records the effective parameters of a new run and returns its ID.
func (db *DB) CreateRun(p engine.Params) (string, error) {
	id := uuid.NewString()
	_, err := db.conn.Exec(`INSERT INTO runs
		(id, started_at, strategy, agents, width, height, initial_wealth, seed)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC().Format(time.RFC3339), p.Strategy.String(),
		p.Agents, p.Width, p.Height, p.InitialWealth, p.Seed,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	slog.Info("run created", "run_id", id)
	return id, nil
}

// FinishRun stamps the completion time and tick count.
func (db *DB) FinishRun(runID string, ticks uint64) error {
	res, err := db.conn.Exec(
		"UPDATE runs SET finished_at = ?, ticks = ? WHERE id = ?",
		time.Now().UTC().Format(time.RFC3339), ticks, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run %s: %w", runID, ErrRunNotFound)
	}
	return nil
}

// nullFloat stores NaN and infinities as NULL.
func nullFloat(v float64) sql.NullFloat64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: v, Valid: true}
}

// SaveTickMetrics appends one tick's aggregates and every agent's wealth.
func (db *DB) SaveTickMetrics(runID string, m engine.TickMetrics) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.Exec(`INSERT INTO tick_metrics
		(run_id, tick, gini, total_wealth, average_wealth, wealthiest,
		 wealthy, non_wealthy, total_trades, total_interactions)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, m.Tick, nullFloat(m.Gini), m.TotalWealth,
		nullFloat(m.AverageWealth), nullFloat(m.Wealthiest),
		m.Wealthy, m.NonWealthy, m.TotalTrades, m.TotalInteractions,
	)
	if err != nil {
		return fmt.Errorf("insert tick %d: %w", m.Tick, err)
	}

	if len(m.AgentWealth) > 0 {
		stmt, err := tx.Preparex(`INSERT INTO agent_wealth
			(run_id, tick, agent_id, wealth) VALUES (?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for id, w := range m.AgentWealth {
			if _, err := stmt.Exec(runID, m.Tick, id, w); err != nil {
				return fmt.Errorf("insert wealth of agent %d: %w", id, err)
			}
		}
	}

	return tx.Commit()
}

// SaveActivities appends flushed activity records.
func (db *DB) SaveActivities(runID string, acts []agents.Activity) error {
	if len(acts) == 0 {
		return nil
	}

	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Preparex(`INSERT INTO activities
		(run_id, tick, agent_id, kind, old_x, old_y, new_x, new_y,
		 partner_id, wealth, partner_wealth)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, act := range acts {
		var partner sql.NullInt64
		var wealth, partnerWealth sql.NullFloat64
		if act.Kind == agents.ActivityTrade {
			partner = sql.NullInt64{Int64: int64(act.PartnerID), Valid: true}
			wealth = nullFloat(act.Wealth)
			partnerWealth = nullFloat(act.PartnerWealth)
		}
		_, err := stmt.Exec(
			runID, act.Tick, act.AgentID, act.Kind.String(),
			act.OldPos.X, act.OldPos.Y, act.NewPos.X, act.NewPos.Y,
			partner, wealth, partnerWealth,
		)
		if err != nil {
			return fmt.Errorf("insert activity of agent %d: %w", act.AgentID, err)
		}
	}

	return tx.Commit()
}

// SaveAgents writes the agent snapshot of a run (full replace).
func (db *DB) SaveAgents(runID string, snaps []engine.Snapshot) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM agents WHERE run_id = ?", runID); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO agents
		(run_id, agent_id, wealth, strategy, mood, x, y, trades, interactions, assets_json)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, s := range snaps {
		assetsJSON, err := json.Marshal(s.Assets)
		if err != nil {
			return fmt.Errorf("encode assets of agent %d: %w", s.ID, err)
		}
		_, err = stmt.Exec(
			runID, s.ID, s.Wealth, s.Strategy.String(), s.Mood,
			s.Position.X, s.Position.Y, s.TradesCompleted, s.Interactions,
			string(assetsJSON),
		)
		if err != nil {
			return fmt.Errorf("insert agent %d: %w", s.ID, err)
		}
	}

	return tx.Commit()
}
