package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/soyeahso/rentdesk/internal/config"
	"github.com/soyeahso/rentdesk/internal/logging"
)

// NewFromConfig builds the configured store. A redis store is pinged once
// so that a bad address fails at startup rather than on the first chat.
func NewFromConfig(ctx context.Context, cfg config.SessionConfig, log *logging.Logger) (Store, error) {
	ttl := time.Duration(cfg.DefaultTTLSeconds) * time.Second
	switch cfg.Store {
	case "", "memory":
		return NewMemoryStore(ttl, log), nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("connecting to redis at %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(rdb, cfg.KeyPrefix, ttl, log), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrNoStore, cfg.Store)
	}
}
