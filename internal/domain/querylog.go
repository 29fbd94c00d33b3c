package domain

import (
	"context"
	"time"
)

// QueryRecord is one answered query in the audit log.
type QueryRecord struct {
	ID          int64     `json:"id"`
	CreatedAt   time.Time `json:"created_at"`
	SessionID   string    `json:"session_id"`
	Question    string    `json:"question"`
	AnswerLen   int       `json:"answer_len"`
	SourceCount int       `json:"source_count"`
	LatencyMs   int64     `json:"latency_ms"`
	Provider    string    `json:"provider"`
}

// QueryRecorder appends answered queries to the audit log. Recording is
// best-effort; callers treat a failure as log noise, never a query failure.
type QueryRecorder interface {
	Record(ctx context.Context, rec QueryRecord) error
}
