package session

import (
	"context"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// Hash fields of a stored session.
const (
	fieldToken     = "token"
	fieldUserID    = "user_id"
	fieldRefresh   = "refresh_token"
	fieldExpiresAt = "expires_at"
	fieldLoginTime = "login_time"
)

// RedisStore keeps sessions as Redis hashes. Redis key expiry removes stale
// sessions, so no sweep is needed.
type RedisStore struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
	log    *logging.Logger
}

// NewRedisStore wraps an existing client.
func NewRedisStore(rdb *redis.Client, prefix string, ttl time.Duration, log *logging.Logger) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, prefix: prefix, ttl: ttl, now: time.Now, log: log.Sub("session")}
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) SetToken(ctx context.Context, token, userID, sessionID string, opts TokenOptions) error {
	id := domain.ResolveSessionID(sessionID)
	now := s.now()
	exp := expiryFor(now, s.ttl, opts)
	key := s.key(id)

	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, key)
		pipe.HSet(ctx, key,
			fieldToken, token,
			fieldUserID, userID,
			fieldRefresh, opts.RefreshToken,
			fieldExpiresAt, exp.UnixMilli(),
			fieldLoginTime, now.UnixMilli(),
		)
		pipe.ExpireAt(ctx, key, exp)
		return nil
	})
	if err != nil {
		s.log.Error().Err(err).Str("sessionId", id).Msg("storing token failed")
		return err
	}
	return nil
}

func (s *RedisStore) load(ctx context.Context, id string) (domain.SessionCredential, bool) {
	key := s.key(id)
	data, err := s.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		if err != redis.Nil {
			s.log.Warn().Err(err).Str("sessionId", id).Msg("reading session failed")
		}
		return domain.SessionCredential{}, false
	}
	if len(data) == 0 {
		return domain.SessionCredential{}, false
	}

	cred := domain.SessionCredential{
		SessionID:    id,
		UserID:       data[fieldUserID],
		Token:        data[fieldToken],
		RefreshToken: data[fieldRefresh],
	}
	if ms, err := strconv.ParseInt(data[fieldExpiresAt], 10, 64); err == nil && ms > 0 {
		cred.TokenExpiresAt = time.UnixMilli(ms)
	}
	if ms, err := strconv.ParseInt(data[fieldLoginTime], 10, 64); err == nil {
		cred.LoginTime = time.UnixMilli(ms)
	}

	// Redis expiry has millisecond granularity but the clocks may disagree.
	if !cred.ValidAt(s.now()) {
		if _, err := s.evictIfUnchanged(ctx, key, data[fieldToken], data[fieldExpiresAt]); err != nil {
			s.log.Warn().Err(err).Str("sessionId", id).Msg("evicting expired session failed")
		}
		return domain.SessionCredential{}, false
	}
	return cred, true
}

// evictScript deletes a session only while it still holds the token and
// expiry that were read, so a SetToken landing in between survives.
var evictScript = redis.NewScript(`
if redis.call("HGET", KEYS[1], ARGV[1]) == ARGV[2] and redis.call("HGET", KEYS[1], ARGV[3]) == ARGV[4] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

func (s *RedisStore) evictIfUnchanged(ctx context.Context, key, token, expiresAt string) (bool, error) {
	n, err := evictScript.Run(ctx, s.rdb, []string{key},
		fieldToken, token, fieldExpiresAt, expiresAt).Int()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisStore) GetToken(ctx context.Context, sessionID string) (string, bool) {
	cred, ok := s.load(ctx, domain.ResolveSessionID(sessionID))
	if !ok {
		return "", false
	}
	return cred.Token, true
}

func (s *RedisStore) GetSessionContext(ctx context.Context, sessionID string) domain.SessionContext {
	id := domain.ResolveSessionID(sessionID)
	cred, ok := s.load(ctx, id)
	if !ok {
		return domain.Anonymous(id)
	}
	return domain.ContextFrom(cred, s.now())
}

func (s *RedisStore) ClearSession(ctx context.Context, sessionID string) error {
	return s.rdb.Del(ctx, s.key(domain.ResolveSessionID(sessionID))).Err()
}

func (s *RedisStore) ClearAllSessions(ctx context.Context) error {
	keys, err := s.keys(ctx)
	if err != nil {
		return err
	}
	if len(keys) == 0 {
		return nil
	}
	return s.rdb.Del(ctx, keys...).Err()
}

func (s *RedisStore) Len(ctx context.Context) int {
	keys, err := s.keys(ctx)
	if err != nil {
		return 0
	}
	return len(keys)
}

func (s *RedisStore) keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.rdb.Scan(ctx, 0, s.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	return keys, iter.Err()
}
