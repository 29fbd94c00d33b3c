package agent

import (
	"context"
	"log/slog"
	"time"

	"coursechat/internal/domain"
)

// Coordinator is the single entry point for answering a user query. It owns
// the session lifecycle around each orchestrator run and appends to the
// query log when one is configured.
type Coordinator struct {
	sessions *SessionStore
	orch     *Orchestrator
	recorder domain.QueryRecorder
	logger   *slog.Logger
}

type CoordinatorConfig struct {
	Sessions     *SessionStore
	Orchestrator *Orchestrator
	// Recorder is optional; nil disables query logging.
	Recorder domain.QueryRecorder
	Logger   *slog.Logger
}

func NewCoordinator(cfg CoordinatorConfig) *Coordinator {
	return &Coordinator{
		sessions: cfg.Sessions,
		orch:     cfg.Orchestrator,
		recorder: cfg.Recorder,
		logger:   cfg.Logger,
	}
}

// Query answers userText within the given session, creating a session when
// the id is empty. It returns the answer, its sources, and the session id
// the exchange was recorded under. On error nothing is recorded.
func (c *Coordinator) Query(ctx context.Context, userText, sessionID string) (string, []domain.SourceRef, string, error) {
	if sessionID == "" {
		sessionID = c.sessions.Create()
	}
	history := c.sessions.History(sessionID)

	start := time.Now()
	answer, sources, err := c.orch.Answer(ctx, userText, history)
	if err != nil {
		return "", nil, sessionID, err
	}

	c.sessions.AddExchange(sessionID, userText, answer)

	if c.recorder != nil {
		rec := domain.QueryRecord{
			CreatedAt:   time.Now(),
			SessionID:   sessionID,
			Question:    userText,
			AnswerLen:   len(answer),
			SourceCount: len(sources),
			LatencyMs:   time.Since(start).Milliseconds(),
			Provider:    c.orch.ProviderName(),
		}
		if err := c.recorder.Record(ctx, rec); err != nil {
			c.logger.Warn("query log write failed", "error", err)
		}
	}

	return answer, sources, sessionID, nil
}

// ClearSession drops one session's history.
func (c *Coordinator) ClearSession(id string) {
	c.sessions.Clear(id)
}
