package tracker

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/pario-ai/conduit/pkg/models"
)

// Tracker records and queries the outcome of orchestrated calls. It holds
// diagnostics only; cache and rate-limit state are never written here.
type Tracker interface {
	// Record stores a call record.
	Record(ctx context.Context, rec models.CallRecord) error
	// Recent returns the newest records, optionally filtered by operation.
	Recent(ctx context.Context, operation string, limit int) ([]models.CallRecord, error)
	// Summary aggregates records since a given time, optionally filtered by operation.
	Summary(ctx context.Context, operation string, since time.Time) ([]models.CallSummary, error)
	// Prune deletes records created before the given time.
	Prune(ctx context.Context, before time.Time) (int64, error)
	// Close releases resources.
	Close() error
}

// SQLiteTracker implements Tracker with a SQLite database.
type SQLiteTracker struct {
	db *sql.DB
}

const createTable = `
CREATE TABLE IF NOT EXISTS call_records (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	request_id TEXT NOT NULL DEFAULT '',
	operation TEXT NOT NULL,
	provider TEXT NOT NULL DEFAULT '',
	chain TEXT NOT NULL DEFAULT '',
	outcome TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	status_code INTEGER NOT NULL DEFAULT 0,
	error TEXT NOT NULL DEFAULT '',
	latency_ms INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_calls_op_time ON call_records(operation, created_at);
`

// New creates a SQLiteTracker and runs auto-migration.
func New(dbPath string) (*SQLiteTracker, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open tracker db: %w", err)
	}
	// Calls are recorded from many goroutines; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createTable); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate tracker db: %w", err)
	}

	return &SQLiteTracker{db: db}, nil
}

// Record stores a call record.
func (t *SQLiteTracker) Record(ctx context.Context, rec models.CallRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	_, err := t.db.ExecContext(ctx,
		`INSERT INTO call_records (request_id, operation, provider, chain, outcome, attempts, status_code, error, latency_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.RequestID, rec.Operation, rec.Provider, strings.Join(rec.Chain, ","), string(rec.Outcome),
		rec.Attempts, rec.StatusCode, rec.Error, rec.LatencyMs, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("record call: %w", err)
	}
	return nil
}

// Recent returns up to limit records, newest first.
func (t *SQLiteTracker) Recent(ctx context.Context, operation string, limit int) ([]models.CallRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT id, request_id, operation, provider, chain, outcome, attempts, status_code, error, latency_ms, created_at
		 FROM call_records`
	var args []any
	if operation != "" {
		query += ` WHERE operation = ?`
		args = append(args, operation)
	}
	query += ` ORDER BY id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("recent calls: %w", err)
	}
	defer rows.Close()

	var records []models.CallRecord
	for rows.Next() {
		var r models.CallRecord
		var chain, outcome string
		if err := rows.Scan(&r.ID, &r.RequestID, &r.Operation, &r.Provider, &chain, &outcome,
			&r.Attempts, &r.StatusCode, &r.Error, &r.LatencyMs, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan call: %w", err)
		}
		if chain != "" {
			r.Chain = strings.Split(chain, ",")
		}
		r.Outcome = models.CallOutcome(outcome)
		records = append(records, r)
	}
	return records, rows.Err()
}

// Summary returns call counts grouped by operation, provider and outcome.
func (t *SQLiteTracker) Summary(ctx context.Context, operation string, since time.Time) ([]models.CallSummary, error) {
	query := `SELECT operation, provider, outcome, COUNT(*), AVG(latency_ms), MAX(attempts)
		 FROM call_records WHERE created_at >= ?`
	args := []any{since}
	if operation != "" {
		query += ` AND operation = ?`
		args = append(args, operation)
	}
	query += ` GROUP BY operation, provider, outcome ORDER BY operation, provider, outcome`

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("summary: %w", err)
	}
	defer rows.Close()

	var summaries []models.CallSummary
	for rows.Next() {
		var s models.CallSummary
		var outcome string
		if err := rows.Scan(&s.Operation, &s.Provider, &outcome, &s.Count, &s.AvgLatencyMs, &s.MaxAttempts); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		s.Outcome = models.CallOutcome(outcome)
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

// Prune removes records older than before.
func (t *SQLiteTracker) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := t.db.ExecContext(ctx, `DELETE FROM call_records WHERE created_at < ?`, before)
	if err != nil {
		return 0, fmt.Errorf("prune calls: %w", err)
	}
	return res.RowsAffected()
}

// Close releases the database connection.
func (t *SQLiteTracker) Close() error {
	return t.db.Close()
}
