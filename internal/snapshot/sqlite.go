package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/davidbz/tokenledger/internal/domain"
)

const sqliteSchema = `
CREATE TABLE meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE buckets (
	phase         TEXT PRIMARY KEY,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost          REAL NOT NULL,
	calls         INTEGER NOT NULL
);

CREATE TABLE log_entries (
	seq           INTEGER PRIMARY KEY,
	phase         TEXT NOT NULL,
	model         TEXT NOT NULL,
	description   TEXT,
	input_tokens  INTEGER NOT NULL,
	output_tokens INTEGER NOT NULL,
	cost          REAL NOT NULL,
	timestamp     TEXT NOT NULL
);

CREATE INDEX idx_log_entries_phase ON log_entries(phase);
`

// IsSQLitePath reports whether path names a SQLite snapshot.
func IsSQLitePath(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return true
	default:
		return false
	}
}

// SQLiteWriter writes snapshots as standalone SQLite databases.
type SQLiteWriter struct{}

// NewSQLiteWriter creates a SQLite snapshot writer.
func NewSQLiteWriter() *SQLiteWriter {
	return &SQLiteWriter{}
}

// Write builds a fresh database next to path and renames it over path.
func (w *SQLiteWriter) Write(ctx context.Context, path string, snapshot domain.Snapshot) error {
	dir, base := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	tmp, err := os.CreateTemp(dir, "."+base+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp database: %w", err)
	}
	tmpPath := tmp.Name()
	_ = tmp.Close()

	committed := false
	defer func() {
		if !committed {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := writeDatabase(ctx, tmpPath, snapshot); err != nil {
		return err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to replace %q: %w", path, err)
	}

	committed = true
	return nil
}

func writeDatabase(ctx context.Context, path string, snapshot domain.Snapshot) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(1) // SQLite only supports single writer

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	meta := map[string]string{
		"run_id":       snapshot.RunID,
		"generated_at": snapshot.GeneratedAt.Format(time.RFC3339Nano),
	}
	for key, value := range meta {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO meta (key, value) VALUES (?, ?)`, key, value); err != nil {
			return fmt.Errorf("failed to insert meta %s: %w", key, err)
		}
	}

	for phase, bucket := range snapshot.Summary {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO buckets (phase, input_tokens, output_tokens, cost, calls) VALUES (?, ?, ?, ?, ?)`,
			phase, bucket.InputTokens, bucket.OutputTokens, bucket.Cost, bucket.Calls); err != nil {
			return fmt.Errorf("failed to insert bucket %s: %w", phase, err)
		}
	}

	for i, entry := range snapshot.DetailedLogs {
		var description sql.NullString
		if entry.Description != nil {
			description = sql.NullString{String: *entry.Description, Valid: true}
		}

		if _, err := tx.ExecContext(ctx,
			`INSERT INTO log_entries (seq, phase, model, description, input_tokens, output_tokens, cost, timestamp)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			i, entry.Phase, entry.Model, description, entry.InputTokens, entry.OutputTokens,
			entry.Cost, entry.Timestamp.Format(time.RFC3339Nano)); err != nil {
			return fmt.Errorf("failed to insert log entry %d: %w", i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit snapshot: %w", err)
	}

	return nil
}

// ReadSQLite loads a snapshot written by SQLiteWriter.
func ReadSQLite(ctx context.Context, path string) (domain.Snapshot, error) {
	snapshot := domain.Snapshot{
		Summary:      make(map[string]domain.PhaseBucket),
		DetailedLogs: make([]domain.LogEntry, 0),
	}

	if _, err := os.Stat(path); err != nil {
		return snapshot, fmt.Errorf("failed to open snapshot %q: %w", path, err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return snapshot, fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	var generatedAt string
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'run_id'`).Scan(&snapshot.RunID); err != nil {
		return snapshot, fmt.Errorf("failed to read run id: %w", err)
	}
	if err := db.QueryRowContext(ctx, `SELECT value FROM meta WHERE key = 'generated_at'`).Scan(&generatedAt); err != nil {
		return snapshot, fmt.Errorf("failed to read generation time: %w", err)
	}
	if snapshot.GeneratedAt, err = time.Parse(time.RFC3339Nano, generatedAt); err != nil {
		return snapshot, fmt.Errorf("failed to parse generation time: %w", err)
	}

	if err := readBuckets(ctx, db, snapshot.Summary); err != nil {
		return snapshot, err
	}

	entries, err := readEntries(ctx, db)
	if err != nil {
		return snapshot, err
	}
	snapshot.DetailedLogs = entries

	return snapshot, nil
}

func readBuckets(ctx context.Context, db *sql.DB, into map[string]domain.PhaseBucket) error {
	rows, err := db.QueryContext(ctx,
		`SELECT phase, input_tokens, output_tokens, cost, calls FROM buckets`)
	if err != nil {
		return fmt.Errorf("failed to query buckets: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var phase string
		var bucket domain.PhaseBucket
		if err := rows.Scan(&phase, &bucket.InputTokens, &bucket.OutputTokens, &bucket.Cost, &bucket.Calls); err != nil {
			return fmt.Errorf("failed to scan bucket: %w", err)
		}
		into[phase] = bucket
	}

	return rows.Err()
}

func readEntries(ctx context.Context, db *sql.DB) ([]domain.LogEntry, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT phase, model, description, input_tokens, output_tokens, cost, timestamp
		 FROM log_entries ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("failed to query log entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.LogEntry, 0)
	for rows.Next() {
		var entry domain.LogEntry
		var description sql.NullString
		var timestamp string
		if err := rows.Scan(&entry.Phase, &entry.Model, &description,
			&entry.InputTokens, &entry.OutputTokens, &entry.Cost, &timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		if description.Valid {
			entry.Description = &description.String
		}
		if entry.Timestamp, err = time.Parse(time.RFC3339Nano, timestamp); err != nil {
			return nil, fmt.Errorf("failed to parse log timestamp: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, rows.Err()
}
