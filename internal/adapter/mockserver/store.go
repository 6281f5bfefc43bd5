// Package mockserver is a local stand-in for the assistant service. It
// speaks the same HTTP/SSE contract as the real one, keeps users and chats
// in SQLite and answers with canned, deterministic replies.
package mockserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"chatline/internal/domain"
)

// Record is one stored chat message.
type Record struct {
	SessionID  string
	Username   string
	Role       domain.Role
	Message    string
	SourceType domain.SourceType
	Sources    []string
	CreatedAt  time.Time
}

// Store persists users and messages in SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) a SQLite database at dbPath and runs the
// schema migration.
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open mock db: %w", err)
	}
	// One writer at a time; SQLite serializes writes anyway.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if err := migrate(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate mock db: %w", err)
	}
	return &Store{db: db}, nil
}

func migrate(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS users (
			username      TEXT PRIMARY KEY,
			password_hash TEXT NOT NULL,
			created_at    TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT NOT NULL,
			username    TEXT NOT NULL,
			role        TEXT NOT NULL,
			message     TEXT NOT NULL,
			source_type TEXT NOT NULL DEFAULT '',
			sources     TEXT NOT NULL DEFAULT '[]',
			created_at  TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_user_session ON messages (username, session_id);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// CreateUser stores a new user. An existing username yields domain.ErrDuplicate.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string) error {
	res, err := s.db.ExecContext(ctx,
		"INSERT INTO users (username, password_hash, created_at) VALUES (?, ?, ?) ON CONFLICT(username) DO NOTHING",
		username, passwordHash, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrDuplicate
	}
	return nil
}

// PasswordHash returns the stored hash of username, or domain.ErrNotFound.
func (s *Store) PasswordHash(ctx context.Context, username string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, "SELECT password_hash FROM users WHERE username = ?", username).Scan(&hash)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("load user: %w", err)
	}
	return hash, nil
}

// SaveMessage appends one message. A zero CreatedAt is stamped with now.
func (s *Store) SaveMessage(ctx context.Context, r Record) error {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	if r.Sources == nil {
		r.Sources = []string{}
	}
	srcJSON, err := json.Marshal(r.Sources)
	if err != nil {
		return fmt.Errorf("marshal sources: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		"INSERT INTO messages (session_id, username, role, message, source_type, sources, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)",
		r.SessionID, r.Username, string(r.Role), r.Message, string(r.SourceType), string(srcJSON),
		r.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("save message: %w", err)
	}
	return nil
}

// History returns the messages of one session in insertion order. An
// unknown session yields an empty slice.
func (s *Store) History(ctx context.Context, sessionID, username string) ([]Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, username, role, message, source_type, sources, created_at
		   FROM messages WHERE session_id = ? AND username = ? ORDER BY id`,
		sessionID, username,
	)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	defer rows.Close()

	out := make([]Record, 0)
	for rows.Next() {
		var (
			r                             Record
			role, st, srcJSON, createdStr string
		)
		if err := rows.Scan(&r.SessionID, &r.Username, &role, &r.Message, &st, &srcJSON, &createdStr); err != nil {
			return nil, err
		}
		r.Role = domain.Role(role)
		r.SourceType = domain.SourceType(st)
		if err := json.Unmarshal([]byte(srcJSON), &r.Sources); err != nil {
			return nil, fmt.Errorf("unmarshal sources: %w", err)
		}
		r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Sessions lists the user's sessions, most recently started first. The
// preview is the first message of each session.
func (s *Store) Sessions(ctx context.Context, username string) ([]domain.SessionSummary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT m.session_id, m.message
		  FROM messages m
		  JOIN (SELECT session_id, MIN(id) AS first_id
		          FROM messages WHERE username = ? GROUP BY session_id) f
		    ON m.id = f.first_id
		 ORDER BY f.first_id DESC`, username)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	out := make([]domain.SessionSummary, 0)
	for rows.Next() {
		var sum domain.SessionSummary
		if err := rows.Scan(&sum.ID, &sum.Preview); err != nil {
			return nil, err
		}
		out = append(out, sum)
	}
	return out, rows.Err()
}

// DeleteSession removes every message of a session and returns how many
// were deleted. Nothing to delete yields domain.ErrSessionNotFound.
func (s *Store) DeleteSession(ctx context.Context, sessionID, username string) (int64, error) {
	res, err := s.db.ExecContext(ctx, "DELETE FROM messages WHERE session_id = ? AND username = ?", sessionID, username)
	if err != nil {
		return 0, fmt.Errorf("delete session: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return 0, domain.ErrSessionNotFound
	}
	return n, nil
}

// RenameSession rewrites the first user message of a session, which is
// what the session list shows as its name.
func (s *Store) RenameSession(ctx context.Context, sessionID, username, name string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET message = ?
		 WHERE id = (SELECT MIN(id) FROM messages
		              WHERE session_id = ? AND username = ? AND role = ?)`,
		name, sessionID, username, string(domain.RoleUser),
	)
	if err != nil {
		return fmt.Errorf("rename session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}
