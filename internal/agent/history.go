package agent

import (
	"context"
	"strings"
	"sync"

	"github.com/soyeahso/rentdesk/internal/catalog"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/llm"
)

// DefaultContextWindow is how many recent turns are loaded per request.
const DefaultContextWindow = 10

// HistoryStore keeps the full conversation history per session.
type HistoryStore interface {
	// Append records turns in order. Writes to one session are serialized.
	Append(ctx context.Context, sessionID string, turns ...domain.ConversationTurn) error

	// Recent returns up to n of the latest turns, oldest first.
	Recent(ctx context.Context, sessionID string, n int) ([]domain.ConversationTurn, error)

	// All returns every recorded turn, oldest first.
	All(ctx context.Context, sessionID string) ([]domain.ConversationTurn, error)

	// Search returns up to limit turns matching query, most recent first.
	Search(ctx context.Context, sessionID, query string, limit int) ([]domain.ConversationTurn, error)

	// Clear forgets a session's history.
	Clear(ctx context.Context, sessionID string) error
}

// MemoryHistory is an in-memory HistoryStore. Each session has its own lock.
type MemoryHistory struct {
	mu       sync.RWMutex
	sessions map[string]*sessionHistory
}

type sessionHistory struct {
	mu    sync.RWMutex
	turns []domain.ConversationTurn
}

// NewMemoryHistory creates an empty in-memory history.
func NewMemoryHistory() *MemoryHistory {
	return &MemoryHistory{sessions: make(map[string]*sessionHistory)}
}

func (h *MemoryHistory) session(id string, create bool) *sessionHistory {
	h.mu.RLock()
	s, ok := h.sessions[id]
	h.mu.RUnlock()
	if ok || !create {
		return s
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if s, ok = h.sessions[id]; !ok {
		s = &sessionHistory{}
		h.sessions[id] = s
	}
	return s
}

func (h *MemoryHistory) Append(_ context.Context, sessionID string, turns ...domain.ConversationTurn) error {
	s := h.session(sessionID, true)
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range turns {
		t.SessionID = sessionID
		s.turns = append(s.turns, t)
	}
	return nil
}

func (h *MemoryHistory) Recent(_ context.Context, sessionID string, n int) ([]domain.ConversationTurn, error) {
	s := h.session(sessionID, false)
	if s == nil || n <= 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ConversationTurn(nil), lastTurns(s.turns, n)...), nil
}

func (h *MemoryHistory) All(_ context.Context, sessionID string) ([]domain.ConversationTurn, error) {
	s := h.session(sessionID, false)
	if s == nil {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.ConversationTurn(nil), s.turns...), nil
}

// Search matches case- and diacritic-insensitively on the turn content.
func (h *MemoryHistory) Search(_ context.Context, sessionID, query string, limit int) ([]domain.ConversationTurn, error) {
	s := h.session(sessionID, false)
	q := catalog.Normalize(strings.TrimSpace(query))
	if s == nil || q == "" {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []domain.ConversationTurn
	for i := len(s.turns) - 1; i >= 0; i-- {
		if limit > 0 && len(out) >= limit {
			break
		}
		if strings.Contains(catalog.Normalize(s.turns[i].Content), q) {
			out = append(out, s.turns[i])
		}
	}
	return out, nil
}

func (h *MemoryHistory) Clear(_ context.Context, sessionID string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.sessions, sessionID)
	return nil
}

func lastTurns(turns []domain.ConversationTurn, n int) []domain.ConversationTurn {
	if n <= 0 {
		return nil
	}
	if len(turns) > n {
		return turns[len(turns)-n:]
	}
	return turns
}

// toMessages converts turns to model messages.
func toMessages(turns []domain.ConversationTurn) []llm.Message {
	msgs := make([]llm.Message, 0, len(turns)+1)
	for _, t := range turns {
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}
