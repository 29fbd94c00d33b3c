package agent

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"

	"coursechat/internal/domain"
)

const sessionIDPrefix = "session_"

// SessionStore keeps conversation history in memory for the lifetime of the
// process. Only the most recent 2*maxHistory messages are retained per
// session; older messages are evicted oldest-first.
type SessionStore struct {
	mu         sync.RWMutex
	sessions   map[string][]domain.Message
	maxHistory int
	logger     *slog.Logger
}

func NewSessionStore(maxHistory int, logger *slog.Logger) *SessionStore {
	if maxHistory <= 0 {
		maxHistory = 2
	}
	return &SessionStore{
		sessions:   make(map[string][]domain.Message),
		maxHistory: maxHistory,
		logger:     logger,
	}
}

// Create returns a fresh unique session id.
func (s *SessionStore) Create() string {
	id := sessionIDPrefix + uuid.New().String()
	s.mu.Lock()
	s.sessions[id] = nil
	s.mu.Unlock()
	s.logger.Debug("created session", "session", id)
	return id
}

// History renders the session's messages oldest-first, one "Role: content"
// line per message. Unknown or empty ids yield "".
func (s *SessionStore) History(id string) string {
	if id == "" {
		return ""
	}
	s.mu.RLock()
	msgs := s.sessions[id]
	s.mu.RUnlock()

	if len(msgs) == 0 {
		return ""
	}
	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		lines = append(lines, fmt.Sprintf("%s: %s", roleLabel(m.Role), m.Content))
	}
	return strings.Join(lines, "\n")
}

// AddExchange appends the user and assistant turns of one completed query
// and trims the session to its retention bound. An unknown id creates the
// session implicitly.
func (s *SessionStore) AddExchange(id, userText, assistantText string) {
	if id == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	msgs := append(s.sessions[id],
		domain.Message{Role: domain.RoleUser, Content: userText},
		domain.Message{Role: domain.RoleAssistant, Content: assistantText},
	)
	if limit := 2 * s.maxHistory; len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	s.sessions[id] = msgs
}

// Clear drops one session's history. Clearing an unknown id is a no-op.
func (s *SessionStore) Clear(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

// Count returns the number of sessions currently held.
func (s *SessionStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

func roleLabel(role string) string {
	if role == "" {
		return ""
	}
	return strings.ToUpper(role[:1]) + role[1:]
}
