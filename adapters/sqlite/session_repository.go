package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"dataexplorer/domain/core"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS active_session (
	slot       INTEGER PRIMARY KEY CHECK (slot = 1),
	session_id TEXT NOT NULL,
	saved_at   TIMESTAMP NOT NULL
)`

type activeSessionRow struct {
	SessionID string `db:"session_id"`
}

// SessionRepository keeps the active session id in a single-row SQLite table
type SessionRepository struct {
	db *sqlx.DB
}

// Open creates (if needed) and opens the session database at path
func Open(path string) (*SessionRepository, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create store directory: %w", err)
	}

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec(`PRAGMA journal_mode = WAL`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set journal mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA busy_timeout = 5000`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SessionRepository{db: db}, nil
}

// Close releases the database handle
func (r *SessionRepository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

// Load implements ports.SessionRepository
func (r *SessionRepository) Load(ctx context.Context) (core.SessionID, bool, error) {
	var row activeSessionRow
	err := r.db.GetContext(ctx, &row, `SELECT session_id FROM active_session WHERE slot = 1`)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("load active session: %w", err)
	}
	return core.SessionID(row.SessionID), true, nil
}

// Save implements ports.SessionRepository; the single slot is overwritten
func (r *SessionRepository) Save(ctx context.Context, id core.SessionID) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO active_session (slot, session_id, saved_at)
		VALUES (1, ?, ?)
		ON CONFLICT(slot) DO UPDATE SET session_id = excluded.session_id, saved_at = excluded.saved_at
	`, id.String(), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save active session: %w", err)
	}
	return nil
}
