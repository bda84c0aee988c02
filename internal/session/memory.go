package session

import (
	"context"
	"hash/fnv"
	"sync"
	"time"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
)

const shardCount = 16

type shard struct {
	mu      sync.Mutex
	entries map[string]domain.SessionCredential
}

// MemoryStore is an in-process Store. Keys are spread across shards so that
// writes to different sessions rarely contend; each shard lock makes
// read-modify-write on one key atomic.
type MemoryStore struct {
	shards [shardCount]*shard
	ttl    time.Duration
	now    func() time.Time
	log    *logging.Logger
}

// NewMemoryStore creates an in-memory store. A non-positive ttl uses DefaultTTL.
func NewMemoryStore(ttl time.Duration, log *logging.Logger) *MemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &MemoryStore{ttl: ttl, now: time.Now, log: log.Sub("session")}
	for i := range s.shards {
		s.shards[i] = &shard{entries: make(map[string]domain.SessionCredential)}
	}
	return s
}

func (s *MemoryStore) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return s.shards[h.Sum32()%shardCount]
}

func (s *MemoryStore) SetToken(_ context.Context, token, userID, sessionID string, opts TokenOptions) error {
	id := domain.ResolveSessionID(sessionID)
	now := s.now()
	cred := domain.SessionCredential{
		SessionID:      id,
		UserID:         userID,
		Token:          token,
		TokenExpiresAt: expiryFor(now, s.ttl, opts),
		RefreshToken:   opts.RefreshToken,
		LoginTime:      now,
	}

	sh := s.shardFor(id)
	sh.mu.Lock()
	sh.entries[id] = cred
	sh.mu.Unlock()

	s.log.Debug().Str("sessionId", id).Str("userId", userID).Time("expiresAt", cred.TokenExpiresAt).Msg("token stored")
	return nil
}

// load returns the credential for id, evicting it first if it has expired.
func (s *MemoryStore) load(id string) (domain.SessionCredential, bool) {
	sh := s.shardFor(id)
	sh.mu.Lock()
	defer sh.mu.Unlock()

	cred, ok := sh.entries[id]
	if !ok {
		return domain.SessionCredential{}, false
	}
	if !cred.ValidAt(s.now()) {
		delete(sh.entries, id)
		s.log.Debug().Str("sessionId", id).Msg("expired session evicted")
		return domain.SessionCredential{}, false
	}
	return cred, true
}

func (s *MemoryStore) GetToken(_ context.Context, sessionID string) (string, bool) {
	cred, ok := s.load(domain.ResolveSessionID(sessionID))
	if !ok {
		return "", false
	}
	return cred.Token, true
}

func (s *MemoryStore) GetSessionContext(_ context.Context, sessionID string) domain.SessionContext {
	id := domain.ResolveSessionID(sessionID)
	cred, ok := s.load(id)
	if !ok {
		return domain.Anonymous(id)
	}
	return domain.ContextFrom(cred, s.now())
}

func (s *MemoryStore) ClearSession(_ context.Context, sessionID string) error {
	id := domain.ResolveSessionID(sessionID)
	sh := s.shardFor(id)
	sh.mu.Lock()
	delete(sh.entries, id)
	sh.mu.Unlock()
	return nil
}

func (s *MemoryStore) ClearAllSessions(_ context.Context) error {
	for _, sh := range s.shards {
		sh.mu.Lock()
		clear(sh.entries)
		sh.mu.Unlock()
	}
	return nil
}

func (s *MemoryStore) Len(_ context.Context) int {
	n := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		n += len(sh.entries)
		sh.mu.Unlock()
	}
	return n
}

// Sweep evicts every expired credential and returns how many were removed.
func (s *MemoryStore) Sweep(_ context.Context) int {
	now := s.now()
	removed := 0
	for _, sh := range s.shards {
		sh.mu.Lock()
		for id, cred := range sh.entries {
			if !cred.ValidAt(now) {
				delete(sh.entries, id)
				removed++
			}
		}
		sh.mu.Unlock()
	}
	return removed
}
