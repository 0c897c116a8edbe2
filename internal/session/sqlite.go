package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aplomb-care/aplomb/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite, for deployments that must
// survive restarts.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite creates a new SQLite-backed session store.
func NewSQLite(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS sessions (
		session_key TEXT PRIMARY KEY,
		crisis_json TEXT NOT NULL,
		medical_json TEXT NOT NULL,
		aspects_json TEXT NOT NULL,
		blocked INTEGER NOT NULL DEFAULT 0,
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at) WHERE blocked = 0;
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Ping verifies database connectivity.
func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Get retrieves a session by key.
func (s *SQLiteStore) Get(ctx context.Context, key string) (*domain.Session, error) {
	query := `
		SELECT session_key, crisis_json, medical_json, aspects_json, created_at, updated_at
		FROM sessions WHERE session_key = ?`

	row := s.db.QueryRowContext(ctx, query, key)

	var sess domain.Session
	var crisisJSON, medicalJSON, aspectsJSON string
	var createdAt, updatedAt int64

	err := row.Scan(&sess.Key, &crisisJSON, &medicalJSON, &aspectsJSON, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan session row: %w", err)
	}

	if err := json.Unmarshal([]byte(crisisJSON), &sess.Crisis); err != nil {
		return nil, fmt.Errorf("decode crisis state: %w", err)
	}
	if err := json.Unmarshal([]byte(medicalJSON), &sess.Medical); err != nil {
		return nil, fmt.Errorf("decode medical state: %w", err)
	}
	if err := json.Unmarshal([]byte(aspectsJSON), &sess.Aspects); err != nil {
		return nil, fmt.Errorf("decode aspect stack: %w", err)
	}
	sess.CreatedAt = time.Unix(createdAt, 0)
	sess.UpdatedAt = time.Unix(updatedAt, 0)

	return &sess, nil
}

// Put creates or replaces a session record.
func (s *SQLiteStore) Put(ctx context.Context, sess *domain.Session) error {
	crisisJSON, err := json.Marshal(sess.Crisis)
	if err != nil {
		return fmt.Errorf("encode crisis state: %w", err)
	}
	medicalJSON, err := json.Marshal(sess.Medical)
	if err != nil {
		return fmt.Errorf("encode medical state: %w", err)
	}
	aspects := sess.Aspects
	if aspects == nil {
		aspects = []domain.Aspect{}
	}
	aspectsJSON, err := json.Marshal(aspects)
	if err != nil {
		return fmt.Errorf("encode aspect stack: %w", err)
	}

	blocked := 0
	if sess.Blocked() {
		blocked = 1
	}

	query := `
		INSERT INTO sessions (session_key, crisis_json, medical_json, aspects_json, blocked, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET
			crisis_json = excluded.crisis_json,
			medical_json = excluded.medical_json,
			aspects_json = excluded.aspects_json,
			blocked = excluded.blocked,
			updated_at = excluded.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		sess.Key, string(crisisJSON), string(medicalJSON), string(aspectsJSON),
		blocked, sess.CreatedAt.Unix(), time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("upsert session: %w", err)
	}
	return nil
}

// Delete removes a session record.
// Implements retry logic with exponential backoff to handle SQLITE_BUSY errors.
func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	maxRetries := 3
	baseDelay := 100 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		_, err := s.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_key = ?`, key)
		if err == nil {
			return nil
		}

		if isSQLiteConflict(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i)
			slog.Debug("Delete failed with SQLITE_BUSY, retrying",
				"session_key", key, "attempt", i+1, "delay", delay)
			time.Sleep(delay)
			continue
		}

		return fmt.Errorf("delete session %s: %w", key, err)
	}

	return nil
}

// CleanupExpired removes idle sessions older than ttl, never blocked ones.
func (s *SQLiteStore) CleanupExpired(ctx context.Context, ttl time.Duration) (int64, error) {
	threshold := time.Now().Add(-ttl).Unix()
	query := `DELETE FROM sessions WHERE blocked = 0 AND updated_at < ?`
	result, err := s.db.ExecContext(ctx, query, threshold)
	if err != nil {
		return 0, fmt.Errorf("cleanup expired sessions: %w", err)
	}
	return result.RowsAffected()
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// isSQLiteConflict checks for SQLITE_BUSY / locked-database errors that
// warrant retry.
func isSQLiteConflict(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}
