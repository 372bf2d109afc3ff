package history

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"

	"patina/internal/config"
	"patina/internal/pipeline"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes; mismatched databases must
// be cleared or deleted.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by a different
// version of the schema.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// ErrLocked indicates another process holds the history database.
var ErrLocked = errors.New("history database is locked by another process")

const (
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages run history persistence backed by SQLite. A flock on the
// data directory keeps concurrent patina processes from writing the same
// database.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
}

var _ pipeline.Recorder = (*Store)(nil)

// Open initializes or connects to the history database under the configured
// data directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.DataDir, "history.lock"))
	held, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire history lock: %w", err)
	}
	if !held {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(cfg.Paths.DataDir, "history.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			_ = lock.Unlock()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath, lock: lock}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return store, nil
}

// Close closes the database and releases the directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var firstErr error
	if s.db != nil {
		firstErr = s.db.Close()
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Path returns the database file location.
func (s *Store) Path() string { return s.path }

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (run 'patina history clear' or delete the database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == 5 {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

// RecordRun persists a finished run with its per-item outcomes.
func (s *Store) RecordRun(ctx context.Context, report pipeline.Report) error {
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		_, err = tx.ExecContext(ctx,
			`INSERT INTO runs (id, status, started_at, finished_at, total_items, completed, failed, cancelled)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			report.RunID,
			string(report.Status),
			report.StartedAt.UTC().Format(time.RFC3339Nano),
			report.FinishedAt.UTC().Format(time.RFC3339Nano),
			len(report.Items),
			report.Completed(),
			report.Failed(),
			report.Cancelled(),
		)
		if err != nil {
			return fmt.Errorf("insert run: %w", err)
		}

		for _, item := range report.Items {
			photos, err := json.Marshal(photoRecords(item))
			if err != nil {
				return fmt.Errorf("marshal photos: %w", err)
			}
			_, err = tx.ExecContext(ctx,
				`INSERT INTO run_items (run_id, item_id, name, status, failed_stage, error, photo_count, duration_ms, photos_json)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				report.RunID,
				item.ItemID,
				item.Name,
				string(item.Status),
				string(item.FailedStage),
				item.Error,
				item.PhotoCount,
				item.Duration.Milliseconds(),
				string(photos),
			)
			if err != nil {
				return fmt.Errorf("insert run item: %w", err)
			}
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit record: %w", err)
		}
		return nil
	})
}

func photoRecords(item pipeline.ItemReport) []PhotoRecord {
	records := make([]PhotoRecord, 0, len(item.Photos))
	for _, photo := range item.Photos {
		record := PhotoRecord{
			Index:        photo.Index,
			Label:        photo.Label,
			Width:        photo.Width,
			Height:       photo.Height,
			Rotation:     photo.Rotation,
			Outpainted:   photo.Outpainted,
			Restored:     photo.Restored,
			Improvements: photo.Improvements,
			OutputPath:   photo.OutputPath,
		}
		for _, note := range photo.Notes {
			if note.Stage == "restoration" || record.NotesPassed == nil {
				passed := note.Passed
				record.NotesPassed = &passed
				record.NoteSummary = note.Summary
			}
		}
		records = append(records, record)
	}
	return records
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, finished_at, total_items, completed, failed, cancelled
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunRecord
	for rows.Next() {
		record, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, record)
	}
	return runs, rows.Err()
}

// GetRun returns one run and its item outcomes.
func (s *Store) GetRun(ctx context.Context, runID string) (RunRecord, []ItemRecord, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, started_at, finished_at, total_items, completed, failed, cancelled
		 FROM runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return RunRecord{}, nil, fmt.Errorf("run %s not found", runID)
		}
		return RunRecord{}, nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, item_id, name, status, failed_stage, error, photo_count, duration_ms, photos_json
		 FROM run_items WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return RunRecord{}, nil, fmt.Errorf("list run items: %w", err)
	}
	defer rows.Close()

	var items []ItemRecord
	for rows.Next() {
		var (
			item       ItemRecord
			durationMS int64
			photosJSON string
		)
		if err := rows.Scan(&item.RunID, &item.ItemID, &item.Name, &item.Status,
			&item.FailedStage, &item.Error, &item.PhotoCount, &durationMS, &photosJSON); err != nil {
			return RunRecord{}, nil, fmt.Errorf("scan run item: %w", err)
		}
		item.Duration = time.Duration(durationMS) * time.Millisecond
		if err := json.Unmarshal([]byte(photosJSON), &item.Photos); err != nil {
			return RunRecord{}, nil, fmt.Errorf("decode photos: %w", err)
		}
		items = append(items, item)
	}
	return run, items, rows.Err()
}

// Stats aggregates totals across all recorded runs.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var stats Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1), COALESCE(SUM(completed), 0), COALESCE(SUM(failed), 0), COALESCE(SUM(cancelled), 0) FROM runs`,
	).Scan(&stats.Runs, &stats.ItemsCompleted, &stats.ItemsFailed, &stats.ItemsCancelled)
	if err != nil {
		return Stats{}, fmt.Errorf("history stats: %w", err)
	}
	return stats, nil
}

// Clear removes all recorded history.
func (s *Store) Clear(ctx context.Context) error {
	return retryOnBusy(ctx, func() error {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM runs"); err != nil {
			return fmt.Errorf("clear history: %w", err)
		}
		return nil
	})
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunRecord, error) {
	var (
		record   RunRecord
		started  string
		finished string
	)
	if err := row.Scan(&record.ID, &record.Status, &started, &finished,
		&record.TotalItems, &record.Completed, &record.Failed, &record.Cancelled); err != nil {
		return RunRecord{}, err
	}
	if ts, err := time.Parse(time.RFC3339Nano, started); err == nil {
		record.StartedAt = ts
	}
	if ts, err := time.Parse(time.RFC3339Nano, finished); err == nil {
		record.FinishedAt = ts
	}
	return record, nil
}
