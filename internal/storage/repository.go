package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"fluidspend/internal/cache"

	_ "modernc.org/sqlite"
)

// SQLiteRepository persists source cache entries and the ledger export log.
// It satisfies cache.Store.
type SQLiteRepository struct {
	db *sql.DB
}

var _ cache.Store = (*SQLiteRepository)(nil)

func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}
	// Single writer keeps SQLite from returning SQLITE_BUSY under concurrent refreshes.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	version, err := RunMigrations(dbPath)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	slog.Info("SQLite schema ready", "db_path", dbPath, "schema_version", version)

	return &SQLiteRepository{db: db}, nil
}

func (r *SQLiteRepository) Close() error {
	if r.db != nil {
		return r.db.Close()
	}
	return nil
}

// Load implements cache.Store.
func (r *SQLiteRepository) Load(ctx context.Context, key string) ([]byte, error) {
	var payload []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT payload FROM cache_entries WHERE cache_key = ?`, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, cache.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load cache entry %s: %w", key, err)
	}
	return payload, nil
}

// Save implements cache.Store. The upsert is a single statement, so readers
// see either the previous payload or the new one.
func (r *SQLiteRepository) Save(ctx context.Context, key string, data []byte) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO cache_entries (cache_key, payload, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(cache_key) DO UPDATE SET
			payload = excluded.payload,
			updated_at = excluded.updated_at`,
		key, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save cache entry %s: %w", key, err)
	}
	slog.DebugContext(ctx, "Cache entry saved to SQLite", "cache_key", key, "bytes", len(data))
	return nil
}

// Delete implements cache.Store.
func (r *SQLiteRepository) Delete(ctx context.Context, key string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cache_entries WHERE cache_key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete cache entry %s: %w", key, err)
	}
	if n == 0 {
		return cache.ErrNotFound
	}
	return nil
}

// ExportRun is one row of the ledger export log.
type ExportRun struct {
	ID         int64
	ExportedAt time.Time
	Records    int
	TotalUSD   string
	Status     string
	Error      string
}

const (
	ExportOK    = "ok"
	ExportError = "error"
)

// RecordExport appends an export attempt to the log.
func (r *SQLiteRepository) RecordExport(ctx context.Context, run ExportRun) (int64, error) {
	if run.Status != ExportOK && run.Status != ExportError {
		return 0, fmt.Errorf("invalid export status %q", run.Status)
	}
	if run.ExportedAt.IsZero() {
		run.ExportedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO ledger_exports (exported_at, records, total_usd, status, error)
		VALUES (?, ?, ?, ?, ?)`,
		run.ExportedAt.UTC(), run.Records, run.TotalUSD, run.Status, run.Error)
	if err != nil {
		return 0, fmt.Errorf("record export: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("record export: %w", err)
	}

	slog.InfoContext(ctx, "Ledger export recorded",
		"id", id,
		"status", run.Status,
		"records", run.Records)
	return id, nil
}

// LastSuccessfulExport returns the most recent export with status ok.
// ok is false when no export has succeeded yet.
func (r *SQLiteRepository) LastSuccessfulExport(ctx context.Context) (ExportRun, bool, error) {
	var run ExportRun
	err := r.db.QueryRowContext(ctx, `
		SELECT id, exported_at, records, total_usd, status, error
		FROM ledger_exports
		WHERE status = 'ok'
		ORDER BY exported_at DESC, id DESC
		LIMIT 1`).Scan(&run.ID, &run.ExportedAt, &run.Records, &run.TotalUSD, &run.Status, &run.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return ExportRun{}, false, nil
	}
	if err != nil {
		return ExportRun{}, false, fmt.Errorf("last successful export: %w", err)
	}
	return run, true, nil
}
