package unlock

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// SQLiteStorage persists session values in a session_values table.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage creates the session_values table if needed.
func NewSQLiteStorage(ctx context.Context, db *sql.DB) (*SQLiteStorage, error) {
	_, err := db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS session_values (
		session_id TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		updated_at DATETIME NOT NULL,
		PRIMARY KEY (session_id, key)
	)`)
	if err != nil {
		return nil, fmt.Errorf("create session_values table: %w", err)
	}
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

func (s *SQLiteStorage) Get(ctx context.Context, sessionID, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNoValue
	}
	if err != nil {
		return "", fmt.Errorf("read session value: %w", err)
	}
	return value, nil
}

func (s *SQLiteStorage) Update(ctx context.Context, sessionID, key string, fn func(string, bool) string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin session update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var current string
	found := true
	err = tx.QueryRowContext(ctx,
		`SELECT value FROM session_values WHERE session_id = ? AND key = ?`,
		sessionID, key,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		found = false
	} else if err != nil {
		return fmt.Errorf("read session value: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO session_values (session_id, key, value, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (session_id, key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, sessionID, key, fn(current, found), s.now().UTC())
	if err != nil {
		return fmt.Errorf("write session value: %w", err)
	}
	return tx.Commit()
}

func (s *SQLiteStorage) Clear(ctx context.Context, sessionID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM session_values WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *SQLiteStorage) Touch(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE session_values SET updated_at = ? WHERE session_id = ?`,
		s.now().UTC(), sessionID,
	)
	if err != nil {
		return fmt.Errorf("touch session: %w", err)
	}
	return nil
}

// Expire deletes values of sessions idle for longer than idle and returns how many rows went.
func (s *SQLiteStorage) Expire(ctx context.Context, idle time.Duration) (int64, error) {
	cutoff := s.now().UTC().Add(-idle)
	res, err := s.db.ExecContext(ctx, `DELETE FROM session_values WHERE updated_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire sessions: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
