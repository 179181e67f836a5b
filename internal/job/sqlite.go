package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteRepository implements Repository.
var _ Repository = (*SQLiteRepository)(nil)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// timeLayout is fixed width so the text columns sort chronologically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const schema = `CREATE TABLE IF NOT EXISTS jobs (
    id         TEXT PRIMARY KEY,
    status     TEXT NOT NULL,
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL,
    data       TEXT NOT NULL
)`

// SQLiteRepository persists jobs as JSON documents in a SQLite database so
// the run log survives restarts.
type SQLiteRepository struct {
	db *sql.DB
}

// OpenSQLiteRepository opens (or creates) the database at path.
func OpenSQLiteRepository(ctx context.Context, path string) (*SQLiteRepository, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create jobs table: %w", err)
	}

	return &SQLiteRepository{db: db}, nil
}

// Close closes the underlying database connection.
func (r *SQLiteRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Save inserts or replaces the job.
func (r *SQLiteRepository) Save(ctx context.Context, job *Job) error {
	snapshot := job.Clone()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", snapshot.ID, err)
	}

	return retryOnBusy(ctx, func() error {
		_, execErr := r.db.ExecContext(ctx,
			`INSERT INTO jobs (id, status, created_at, updated_at, data)
             VALUES (?, ?, ?, ?, ?)
             ON CONFLICT(id) DO UPDATE SET
                 status = excluded.status,
                 updated_at = excluded.updated_at,
                 data = excluded.data`,
			snapshot.ID,
			string(snapshot.Status),
			snapshot.CreatedAt.UTC().Format(timeLayout),
			snapshot.UpdatedAt.UTC().Format(timeLayout),
			string(data),
		)
		if execErr != nil {
			return fmt.Errorf("save job %s: %w", snapshot.ID, execErr)
		}
		return nil
	})
}

// Update replaces an existing job; a deleted job stays deleted.
func (r *SQLiteRepository) Update(ctx context.Context, job *Job) error {
	snapshot := job.Clone()
	data, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("marshal job %s: %w", snapshot.ID, err)
	}

	var affected int64
	err = retryOnBusy(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx,
			`UPDATE jobs SET status = ?, updated_at = ?, data = ? WHERE id = ?`,
			string(snapshot.Status),
			snapshot.UpdatedAt.UTC().Format(timeLayout),
			string(data),
			snapshot.ID,
		)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update job %s: %w", snapshot.ID, err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

// FindByID loads a job by ID.
func (r *SQLiteRepository) FindByID(ctx context.Context, id string) (*Job, error) {
	var data string
	err := r.db.QueryRowContext(ctx, `SELECT data FROM jobs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("find job %s: %w", id, err)
	}
	return decodeJob(data)
}

// List returns all jobs, newest first.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Job, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT data FROM jobs ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	jobs := make([]*Job, 0)
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		j, err := decodeJob(data)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// Delete removes a job.
func (r *SQLiteRepository) Delete(ctx context.Context, id string) error {
	var affected int64
	err := retryOnBusy(ctx, func() error {
		res, execErr := r.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id)
		if execErr != nil {
			return execErr
		}
		affected, execErr = res.RowsAffected()
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete job %s: %w", id, err)
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

func decodeJob(data string) (*Job, error) {
	j := &Job{}
	if err := json.Unmarshal([]byte(data), j); err != nil {
		return nil, fmt.Errorf("decode job: %w", err)
	}
	if j.Steps == nil {
		j.Steps = make([]StepLog, 0)
	}
	return j, nil
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := range busyRetryAttempts {
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
		delay = min(delay*2, busyRetryMaxBackoff)
	}
	return lastErr
}
