// Package querylog persists an append-only audit log of answered queries
// in SQLite. It records outcomes, not conversation state; answering never
// reads from it.
package querylog

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"coursechat/internal/domain"
)

// Store implements domain.QueryRecorder on a local SQLite file.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

var _ domain.QueryRecorder = (*Store)(nil)

func NewStore(dbPath string, logger *slog.Logger) (*Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cannot create database directory %s: %w", dir, err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("cannot open database: %w", err)
	}

	// Single connection; SQLite serializes writers anyway.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	store := &Store{db: db, logger: logger}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("database migration failed: %w", err)
	}
	return store, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS queries (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP,
		session_id   TEXT NOT NULL,
		question     TEXT NOT NULL,
		answer_len   INTEGER NOT NULL,
		source_count INTEGER NOT NULL,
		latency_ms   INTEGER NOT NULL,
		provider     TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_queries_time ON queries(created_at);
	CREATE INDEX IF NOT EXISTS idx_queries_session ON queries(session_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one answered query.
func (s *Store) Record(ctx context.Context, rec domain.QueryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO queries (created_at, session_id, question, answer_len, source_count, latency_ms, provider)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.CreatedAt, rec.SessionID, rec.Question, rec.AnswerLen, rec.SourceCount, rec.LatencyMs, rec.Provider,
	)
	return err
}

// Recent returns the newest entries, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]domain.QueryRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, session_id, question, answer_len, source_count, latency_ms, provider
		 FROM queries ORDER BY id DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var recs []domain.QueryRecord
	for rows.Next() {
		var r domain.QueryRecord
		var provider sql.NullString
		if err := rows.Scan(&r.ID, &r.CreatedAt, &r.SessionID, &r.Question,
			&r.AnswerLen, &r.SourceCount, &r.LatencyMs, &provider); err != nil {
			return nil, err
		}
		r.Provider = provider.String
		recs = append(recs, r)
	}
	return recs, rows.Err()
}

// Stats summarizes the whole log.
type Stats struct {
	TotalQueries int64
	Sessions     int64
	AvgLatencyMs float64
	LastQueryAt  time.Time
}

func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT session_id), COALESCE(AVG(latency_ms), 0) FROM queries`,
	).Scan(&st.TotalQueries, &st.Sessions, &st.AvgLatencyMs)
	if err != nil {
		return nil, err
	}

	// Selected as a plain column so the driver maps DATETIME to time.Time.
	err = s.db.QueryRowContext(ctx,
		`SELECT created_at FROM queries ORDER BY id DESC LIMIT 1`,
	).Scan(&st.LastQueryAt)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return &st, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
