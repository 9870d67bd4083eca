package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const sqliteDriverName = "sqlite"

const schemaCookCycles = `
CREATE TABLE IF NOT EXISTS cook_cycles (
    id TEXT PRIMARY KEY,
    mode TEXT NOT NULL,
    doneness TEXT NOT NULL,
    target_c INTEGER NOT NULL,
    duration_ms INTEGER NOT NULL,
    started_at INTEGER NOT NULL,
    ended_at INTEGER NOT NULL,
    heater_on_count INTEGER NOT NULL,
    max_temp_c INTEGER NOT NULL
);
`

const indexCookCyclesStarted = `
CREATE INDEX IF NOT EXISTS idx_cook_cycles_started_at ON cook_cycles (started_at);
`

// InitDB opens/creates a SQLite DB file and ensures tables exist.
func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open(sqliteDriverName, path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite at %q: %w", path, err)
	}

	// A single writer: the event loop.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA busy_timeout = 5000;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("set %s: %w", pragma, err)
		}
	}

	if err := ensureSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	// Fail fast if the DB cannot be reached
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return db, nil
}

func ensureSchema(db *sql.DB) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("begin schema transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	for i, stmt := range []string{schemaCookCycles, indexCookCyclesStarted} {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("apply schema statement %d: %w", i+1, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema transaction: %w", err)
	}
	return nil
}

// SQLite stores cycles in the cook_cycles table. Times are unix milliseconds.
type SQLite struct {
	db *sql.DB
}

// NewSQLite wraps an initialised database.
func NewSQLite(db *sql.DB) *SQLite { return &SQLite{db: db} }

// Append inserts c.
func (s *SQLite) Append(ctx context.Context, c Cycle) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO cook_cycles (id, mode, doneness, target_c, duration_ms, started_at, ended_at, heater_on_count, max_temp_c)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		c.ID,
		c.Mode,
		c.Doneness,
		c.TargetC,
		c.Duration.Milliseconds(),
		c.StartedAt.UnixMilli(),
		c.EndedAt.UnixMilli(),
		c.HeaterOnCount,
		c.MaxTempC,
	)
	if err != nil {
		return fmt.Errorf("insert cycle %s: %w", c.ID, err)
	}
	return nil
}

// List returns up to limit cycles, newest first.
func (s *SQLite) List(ctx context.Context, limit int) ([]Cycle, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, mode, doneness, target_c, duration_ms, started_at, ended_at, heater_on_count, max_temp_c
		FROM cook_cycles
		ORDER BY started_at DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query cycles: %w", err)
	}
	defer rows.Close()

	out := make([]Cycle, 0, limit)
	for rows.Next() {
		var (
			c                  Cycle
			durationMs         int64
			startedMs, endedMs int64
		)
		if err := rows.Scan(&c.ID, &c.Mode, &c.Doneness, &c.TargetC, &durationMs,
			&startedMs, &endedMs, &c.HeaterOnCount, &c.MaxTempC); err != nil {
			return nil, fmt.Errorf("scan cycle: %w", err)
		}
		c.Duration = time.Duration(durationMs) * time.Millisecond
		c.StartedAt = time.UnixMilli(startedMs).UTC()
		c.EndedAt = time.UnixMilli(endedMs).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cycles: %w", err)
	}
	return out, nil
}
