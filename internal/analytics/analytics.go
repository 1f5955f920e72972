// Package analytics records privacy-conscious visitor and unlock metrics in SQLite.
package analytics

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"
)

// Retention is how long visitor rows are kept.
const Retention = 365 * 24 * time.Hour

// Visitor is one tracked page view. The IP is stored only as a salted hash.
type Visitor struct {
	ID        int       `json:"id"`
	HashedIP  string    `json:"hashed_ip"`
	UserAgent string    `json:"user_agent"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"timestamp"`
}

// ProjectStat aggregates password attempts for one case study.
type ProjectStat struct {
	ProjectID  string `json:"project_id"`
	Unlocks    int64  `json:"unlocks"`
	Mismatches int64  `json:"mismatches"`
}

type Stats struct {
	TotalVisitors    int64         `json:"total_visitors"`
	UniqueVisitors   int64         `json:"unique_visitors"`
	VisitorsToday    int64         `json:"visitors_today"`
	VisitorsThisWeek int64         `json:"visitors_this_week"`
	TotalUnlocks     int64         `json:"total_unlocks"`
	Projects         []ProjectStat `json:"projects"`
	RecentVisitors   []Visitor     `json:"recent_visitors"`
}

type Store struct {
	db   *sql.DB
	salt string
	now  func() time.Time
}

// New creates the analytics tables. The hashing salt lives for the process,
// so hashes cannot be joined across restarts.
func New(ctx context.Context, db *sql.DB) (*Store, error) {
	salt := make([]byte, 32)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate hashing salt: %w", err)
	}
	s := &Store{db: db, salt: hex.EncodeToString(salt), now: time.Now}

	schema := []string{
		`CREATE TABLE IF NOT EXISTS visitors (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			hashed_ip TEXT NOT NULL,
			user_agent TEXT,
			path TEXT,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS unlock_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			project_id TEXT NOT NULL,
			hashed_session TEXT NOT NULL,
			outcome TEXT NOT NULL,
			timestamp DATETIME NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_visitors_timestamp ON visitors (timestamp)`,
		`CREATE INDEX IF NOT EXISTS idx_unlock_events_project ON unlock_events (project_id)`,
	}
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return nil, fmt.Errorf("create analytics schema: %w", err)
		}
	}
	return s, nil
}

// Hash returns a salted, truncated hash of value, consistent for the life of the process.
func (s *Store) Hash(value string) string {
	sum := sha256.Sum256([]byte(value + s.salt))
	return hex.EncodeToString(sum[:])[:16]
}

func (s *Store) TrackVisit(ctx context.Context, ip, userAgent, path string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO visitors (hashed_ip, user_agent, path, timestamp)
		VALUES (?, ?, ?, ?)
	`, s.Hash(ip), userAgent, path, s.now().UTC())
	if err != nil {
		return fmt.Errorf("record visitor: %w", err)
	}
	return nil
}

// RecordAttempt stores the outcome ("unlocked" or "mismatch") of a password attempt.
func (s *Store) RecordAttempt(ctx context.Context, projectID, sessionID, outcome string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO unlock_events (project_id, hashed_session, outcome, timestamp)
		VALUES (?, ?, ?, ?)
	`, projectID, s.Hash(sessionID), outcome, s.now().UTC())
	if err != nil {
		return fmt.Errorf("record unlock attempt: %w", err)
	}
	return nil
}

// Cleanup removes visitor rows older than Retention.
func (s *Store) Cleanup(ctx context.Context) (int64, error) {
	cutoff := s.now().UTC().Add(-Retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM visitors WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup visitors: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	week := now.Add(-7 * 24 * time.Hour)

	counts := []struct {
		query string
		args  []any
		dest  *int64
	}{
		{`SELECT COUNT(*) FROM visitors`, nil, &stats.TotalVisitors},
		{`SELECT COUNT(DISTINCT hashed_ip) FROM visitors`, nil, &stats.UniqueVisitors},
		{`SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{today}, &stats.VisitorsToday},
		{`SELECT COUNT(*) FROM visitors WHERE timestamp >= ?`, []any{week}, &stats.VisitorsThisWeek},
		{`SELECT COUNT(*) FROM unlock_events WHERE outcome = 'unlocked'`, nil, &stats.TotalUnlocks},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, c.query, c.args...).Scan(c.dest); err != nil {
			return nil, fmt.Errorf("analytics count: %w", err)
		}
	}

	projects, err := s.projectStats(ctx)
	if err != nil {
		return nil, err
	}
	stats.Projects = projects

	recent, err := s.RecentVisitors(ctx, 50)
	if err != nil {
		return nil, err
	}
	stats.RecentVisitors = recent
	return stats, nil
}

func (s *Store) projectStats(ctx context.Context) ([]ProjectStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT project_id,
			SUM(CASE WHEN outcome = 'unlocked' THEN 1 ELSE 0 END),
			SUM(CASE WHEN outcome = 'mismatch' THEN 1 ELSE 0 END)
		FROM unlock_events
		GROUP BY project_id
		ORDER BY project_id
	`)
	if err != nil {
		return nil, fmt.Errorf("project stats: %w", err)
	}
	defer rows.Close()

	var out []ProjectStat
	for rows.Next() {
		var p ProjectStat
		if err := rows.Scan(&p.ProjectID, &p.Unlocks, &p.Mismatches); err != nil {
			return nil, fmt.Errorf("scan project stats: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) RecentVisitors(ctx context.Context, limit int) ([]Visitor, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, hashed_ip, COALESCE(user_agent, ''), COALESCE(path, ''), timestamp
		FROM visitors
		ORDER BY timestamp DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("recent visitors: %w", err)
	}
	defer rows.Close()

	var out []Visitor
	for rows.Next() {
		var v Visitor
		if err := rows.Scan(&v.ID, &v.HashedIP, &v.UserAgent, &v.Path, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("scan visitor: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
