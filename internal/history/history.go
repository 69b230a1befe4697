// Package history records applied mute transitions in a local SQLite
// database so they can be inspected after the fact.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/1broseidon/focusmute/internal/engine"
)

const schema = `
CREATE TABLE IF NOT EXISTS transitions (
	id TEXT PRIMARY KEY,
	at REAL NOT NULL,
	pid INTEGER NOT NULL,
	app TEXT NOT NULL,
	action TEXT NOT NULL,
	reason TEXT NOT NULL,
	volume REAL NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS transitions_at ON transitions(at);
CREATE INDEX IF NOT EXISTS transitions_app ON transitions(app, at);
`

// Entry is one stored transition.
type Entry struct {
	ID string `json:"id"`
	engine.Transition
}

// Store persists transitions.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ engine.Sink = (*Store)(nil)

// DefaultPath returns the default database path.
func DefaultPath() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, "focusmute", "history.sqlite")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "focusmute", "history.sqlite")
}

// Open opens (creating if needed) the database at path. ":memory:" is
// accepted for tests.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("create history dir: %w", err)
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(2000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	// Verify connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{db: db, logger: logger}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Record inserts a transition and returns its id.
func (s *Store) Record(ctx context.Context, t engine.Transition) (string, error) {
	id := uuid.New().String()
	at := t.Time
	if at.IsZero() {
		at = time.Now()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transitions (id, at, pid, app, action, reason, volume)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, unixFromTime(at), int64(t.PID), t.App, string(t.Action), string(t.Reason), float64(t.Volume))
	if err != nil {
		return "", fmt.Errorf("insert transition: %w", err)
	}
	return id, nil
}

// Transition implements engine.Sink. Failures are logged and dropped.
func (s *Store) Transition(t engine.Transition) {
	if _, err := s.Record(context.Background(), t); err != nil {
		s.logger.Warn("failed to record transition", "app", t.App, "error", err)
	}
}

// Recent returns up to limit transitions, newest first. An empty app
// returns every app.
func (s *Store) Recent(ctx context.Context, limit int, app string) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, at, pid, app, action, reason, volume FROM transitions`
	args := []any{}
	if app != "" {
		query += ` WHERE app = ?`
		args = append(args, app)
	}
	query += ` ORDER BY at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query transitions: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var at, volume float64
		var pid int64
		var action, reason string
		if err := rows.Scan(&e.ID, &at, &pid, &e.App, &action, &reason, &volume); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		e.Time = timeFromUnix(at)
		e.PID = uint32(pid)
		e.Action = engine.Action(action)
		e.Reason = engine.Reason(reason)
		e.Volume = float32(volume)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Prune deletes transitions older than before and reports how many were
// removed.
func (s *Store) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM transitions WHERE at < ?`, unixFromTime(before))
	if err != nil {
		return 0, fmt.Errorf("prune transitions: %w", err)
	}
	return res.RowsAffected()
}

func unixFromTime(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func timeFromUnix(ts float64) time.Time {
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec)
}
