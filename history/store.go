// Package history persists a run's scalar and evaluation history in a
// SQLite database, keyed by run ID. It implements the trainer's scalar
// sink so every reported value lands in a durable record.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// Store manages run-history persistence backed by SQLite.
type Store struct {
	db     *sql.DB
	runID  string
	logger *slog.Logger
}

// Open initializes or connects to the history database at dbPath and
// registers the run.
func Open(dbPath, runID string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("ensure history directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, runID: runID, logger: logger}
	if err := store.applyMigrations(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	if _, err := db.Exec(
		`INSERT OR IGNORE INTO runs (run_id, started_at) VALUES (?, ?)`,
		runID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("register run: %w", err)
	}

	return store, nil
}

func (s *Store) applyMigrations(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			run_id     TEXT PRIMARY KEY,
			started_at TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS scalars (
			run_id      TEXT NOT NULL,
			name        TEXT NOT NULL,
			step        INTEGER NOT NULL,
			value       REAL NOT NULL,
			recorded_at TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_scalars_run_name
			ON scalars (run_id, name, step)`,
		`CREATE TABLE IF NOT EXISTS epochs (
			run_id      TEXT NOT NULL,
			epoch       INTEGER NOT NULL,
			wer         REAL NOT NULL,
			cer         REAL NOT NULL,
			mean_loss   REAL NOT NULL,
			recorded_at TEXT NOT NULL,
			PRIMARY KEY (run_id, epoch)
		)`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply migration: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordScalar appends one named scalar at a step.
func (s *Store) RecordScalar(ctx context.Context, name string, value float64, step int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO scalars (run_id, name, step, value, recorded_at) VALUES (?, ?, ?, ?, ?)`,
		s.runID, name, step, value, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record scalar: %w", err)
	}
	return nil
}

// RecordEpoch upserts the evaluation result for an epoch.
func (s *Store) RecordEpoch(ctx context.Context, epoch int, wer, cer, meanLoss float64) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO epochs (run_id, epoch, wer, cer, mean_loss, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT (run_id, epoch) DO UPDATE SET
			wer = excluded.wer, cer = excluded.cer,
			mean_loss = excluded.mean_loss, recorded_at = excluded.recorded_at`,
		s.runID, epoch, wer, cer, meanLoss, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record epoch: %w", err)
	}
	return nil
}

// ScalarPoint is one recorded (step, value) observation.
type ScalarPoint struct {
	Step  int
	Value float64
}

// Scalars returns the recorded series for a name in step order.
func (s *Store) Scalars(ctx context.Context, name string) ([]ScalarPoint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT step, value FROM scalars WHERE run_id = ? AND name = ? ORDER BY step`,
		s.runID, name,
	)
	if err != nil {
		return nil, fmt.Errorf("query scalars: %w", err)
	}
	defer rows.Close()

	var out []ScalarPoint
	for rows.Next() {
		var p ScalarPoint
		if err := rows.Scan(&p.Step, &p.Value); err != nil {
			return nil, fmt.Errorf("scan scalar: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// Scalar implements the trainer's sink interface. Persistence failures are
// logged rather than surfaced: a metrics write must never abort training.
func (s *Store) Scalar(name string, value float64, step int) {
	if err := s.RecordScalar(context.Background(), name, value, step); err != nil {
		s.logger.Warn("history scalar write failed",
			slog.String("name", name),
			slog.Int("step", step),
			slog.String("error", err.Error()),
		)
	}
}
