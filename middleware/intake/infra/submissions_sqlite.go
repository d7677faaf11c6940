package infra

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/AllMaxMind/AllMaxMind-System-sub001/middleware/intake/domain"

	_ "modernc.org/sqlite"
)

const submissionsSchema = `
CREATE TABLE IF NOT EXISTS submissions (
	id          TEXT PRIMARY KEY,
	visitor_id  TEXT NOT NULL,
	domain      TEXT NOT NULL DEFAULT '',
	text        TEXT NOT NULL,
	received_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_submissions_visitor ON submissions(visitor_id, received_at);
`

// SQLiteSubmissionLog grava as submissões aceitas em SQLite (driver puro Go,
// sem CGO). Use ":memory:" em testes.
type SQLiteSubmissionLog struct {
	db *sql.DB
}

func NewSQLiteSubmissionLog(path string) (*SQLiteSubmissionLog, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening submission log: %w", err)
	}
	// cada conexão ":memory:" seria um banco diferente
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(submissionsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("creating submission log schema: %w", err)
	}
	return &SQLiteSubmissionLog{db: db}, nil
}

// Append implementa domain.SubmissionLog. IDs repetidos são ignorados.
func (s *SQLiteSubmissionLog) Append(ctx context.Context, sub domain.Submission) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO submissions (id, visitor_id, domain, text, received_at) VALUES (?, ?, ?, ?, ?)`,
		sub.ID, string(sub.VisitorID), string(sub.Domain), sub.Text, sub.ReceivedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("inserting submission: %w", err)
	}
	return nil
}

// ListByVisitor devolve as submissões do visitante, mais recentes primeiro.
// limit <= 0 significa sem limite.
func (s *SQLiteSubmissionLog) ListByVisitor(ctx context.Context, visitor domain.Key, limit int) ([]domain.Submission, error) {
	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, visitor_id, domain, text, received_at FROM submissions
		 WHERE visitor_id = ? ORDER BY received_at DESC, id LIMIT ?`,
		string(visitor), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying submissions: %w", err)
	}
	defer rows.Close()

	var out []domain.Submission
	for rows.Next() {
		var (
			sub        domain.Submission
			visitorID  string
			dom        string
			receivedAt int64
		)
		if err := rows.Scan(&sub.ID, &visitorID, &dom, &sub.Text, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning submission: %w", err)
		}
		sub.VisitorID = domain.Key(visitorID)
		sub.Domain = domain.Domain(dom)
		sub.ReceivedAt = time.UnixMilli(receivedAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

func (s *SQLiteSubmissionLog) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteSubmissionLog) Close() error {
	return s.db.Close()
}
