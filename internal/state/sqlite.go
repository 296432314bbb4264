package state

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

// SQLiteStore persists state in a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite creates or opens the database at path.
// The parent directory is created if it does not exist.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("state: failed to create directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("state: failed to open database: %w", err)
	}
	// Reconcile workers write concurrently; one connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the tables if they don't exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
		CREATE TABLE IF NOT EXISTS resources (
			stack       TEXT NOT NULL,
			id          TEXT NOT NULL,
			kind        TEXT NOT NULL,
			region      TEXT NOT NULL DEFAULT '',
			fingerprint TEXT NOT NULL DEFAULT '',
			properties  TEXT NOT NULL DEFAULT '{}',
			outputs     TEXT NOT NULL DEFAULT '{}',
			depends_on  TEXT NOT NULL DEFAULT '[]',
			updated_at  TEXT NOT NULL,
			PRIMARY KEY (stack, id)
		);
		CREATE TABLE IF NOT EXISTS locks (
			stack     TEXT PRIMARY KEY,
			holder    TEXT NOT NULL,
			locked_at TEXT NOT NULL
		);
	`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("state: migration failed: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Load(ctx context.Context, stack string) (Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, region, fingerprint, properties, outputs, depends_on, updated_at
		FROM resources WHERE stack = ?`, stack)
	if err != nil {
		return nil, fmt.Errorf("state: query failed: %w", err)
	}
	defer rows.Close()

	snap := make(Snapshot)
	for rows.Next() {
		rec := &Record{Stack: stack}
		var props, outputs, deps, updated string
		if err := rows.Scan(&rec.ID, &rec.Kind, &rec.Region, &rec.Fingerprint, &props, &outputs, &deps, &updated); err != nil {
			return nil, fmt.Errorf("state: scan failed: %w", err)
		}
		if err := json.Unmarshal([]byte(props), &rec.Properties); err != nil {
			return nil, fmt.Errorf("state: record %s: bad properties: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(outputs), &rec.Outputs); err != nil {
			return nil, fmt.Errorf("state: record %s: bad outputs: %w", rec.ID, err)
		}
		if err := json.Unmarshal([]byte(deps), &rec.DependsOn); err != nil {
			return nil, fmt.Errorf("state: record %s: bad depends_on: %w", rec.ID, err)
		}
		rec.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updated)
		snap[rec.ID] = rec
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("state: rows iteration failed: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec *Record) error {
	if err := validateRecord(rec); err != nil {
		return err
	}
	if rec.UpdatedAt.IsZero() {
		rec.UpdatedAt = time.Now().UTC()
	}

	props, err := marshalJSON(rec.Properties, "{}")
	if err != nil {
		return fmt.Errorf("state: record %s: %w", rec.ID, err)
	}
	outputs, err := marshalJSON(rec.Outputs, "{}")
	if err != nil {
		return fmt.Errorf("state: record %s: %w", rec.ID, err)
	}
	deps, err := marshalJSON(rec.DependsOn, "[]")
	if err != nil {
		return fmt.Errorf("state: record %s: %w", rec.ID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO resources (stack, id, kind, region, fingerprint, properties, outputs, depends_on, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(stack, id) DO UPDATE SET
			kind=excluded.kind, region=excluded.region, fingerprint=excluded.fingerprint,
			properties=excluded.properties, outputs=excluded.outputs,
			depends_on=excluded.depends_on, updated_at=excluded.updated_at`,
		rec.Stack, rec.ID, rec.Kind, rec.Region, rec.Fingerprint, props, outputs, deps,
		rec.UpdatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("state: upsert %s failed: %w", rec.ID, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(ctx context.Context, stack, id string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM resources WHERE stack = ? AND id = ?`, stack, id); err != nil {
		return fmt.Errorf("state: delete %s failed: %w", id, err)
	}
	return nil
}

func (s *SQLiteStore) Lock(ctx context.Context, stack, holder string) error {
	now := time.Now().UTC()
	_, err := s.db.ExecContext(ctx, `INSERT INTO locks (stack, holder, locked_at) VALUES (?, ?, ?)`,
		stack, holder, now.Format(time.RFC3339Nano))
	if err == nil {
		return nil
	}
	if !isConstraintError(err) {
		return fmt.Errorf("state: lock %s failed: %w", stack, err)
	}

	var current, since string
	row := s.db.QueryRowContext(ctx, `SELECT holder, locked_at FROM locks WHERE stack = ?`, stack)
	if err := row.Scan(&current, &since); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return s.Lock(ctx, stack, holder)
		}
		return fmt.Errorf("state: lock %s failed: %w", stack, err)
	}
	if current == holder {
		return nil
	}
	at, _ := time.Parse(time.RFC3339Nano, since)
	return &LockedError{Stack: stack, Holder: current, Since: at}
}

func (s *SQLiteStore) Unlock(ctx context.Context, stack, holder string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM locks WHERE stack = ? AND holder = ?`, stack, holder)
	if err != nil {
		return fmt.Errorf("state: unlock %s failed: %w", stack, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var exists int
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM locks WHERE stack = ?`, stack).Scan(&exists); err == nil && exists > 0 {
			return fmt.Errorf("unlock %q: %w", stack, ErrNotLockHolder)
		}
	}
	return nil
}

func (s *SQLiteStore) ForceUnlock(ctx context.Context, stack string) (*Lease, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("state: force unlock %s failed: %w", stack, err)
	}
	defer func() { _ = tx.Rollback() }()

	var holder, since string
	err = tx.QueryRowContext(ctx, `SELECT holder, locked_at FROM locks WHERE stack = ?`, stack).Scan(&holder, &since)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("state: force unlock %s failed: %w", stack, err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM locks WHERE stack = ?`, stack); err != nil {
		return nil, fmt.Errorf("state: force unlock %s failed: %w", stack, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("state: force unlock %s failed: %w", stack, err)
	}
	at, _ := time.Parse(time.RFC3339Nano, since)
	return &Lease{Holder: holder, Since: at}, nil
}

// Close releases database resources.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func marshalJSON(v any, empty string) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return empty, nil
	}
	return string(data), nil
}

func isConstraintError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "constraint failed")
}
