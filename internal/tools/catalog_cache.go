package tools

import (
	"context"
	"sync"
	"time"

	"github.com/soyeahso/rentdesk/internal/domain"
	"github.com/soyeahso/rentdesk/internal/logging"
	"golang.org/x/sync/singleflight"
)

// defaultFetchTimeout bounds one shared catalog listing.
const defaultFetchTimeout = 30 * time.Second

// CatalogCache holds the backend's tool list for a short TTL. Concurrent
// misses share a single backend request. Failed listings are not cached.
type CatalogCache struct {
	backend Backend
	ttl     time.Duration
	log     *logging.Logger
	now     func() time.Time
	group   singleflight.Group

	fetchTimeout time.Duration

	mu      sync.RWMutex
	tools   []domain.ToolDescriptor
	fetched time.Time
}

// NewCatalogCache wraps backend. A non-positive ttl disables caching.
func NewCatalogCache(backend Backend, ttl time.Duration, log *logging.Logger) *CatalogCache {
	return &CatalogCache{
		backend: backend,
		ttl:     ttl,
		log:     log.Sub("tools.catalog"),
		now:     time.Now,

		fetchTimeout: defaultFetchTimeout,
	}
}

// Tools returns the catalog, fetching it when the cached copy is stale.
// The shared fetch is detached from ctx, so one caller giving up does not
// fail the others waiting on it.
func (c *CatalogCache) Tools(ctx context.Context) ([]domain.ToolDescriptor, error) {
	if tools, ok := c.cached(); ok {
		return tools, nil
	}

	ch := c.group.DoChan("catalog", func() (any, error) {
		fetchCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.fetchTimeout)
		defer cancel()
		tools, err := c.backend.ListTools(fetchCtx)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.tools = tools
		c.fetched = c.now()
		c.mu.Unlock()
		return tools, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			c.log.Warn().Err(res.Err).Msg("tool catalog fetch failed")
			return nil, res.Err
		}
		tools := res.Val.([]domain.ToolDescriptor)
		c.log.Debug().Int("tools", len(tools)).Bool("shared", res.Shared).Msg("tool catalog fetched")
		return tools, nil
	}
}

// Lookup returns the descriptor named name.
func (c *CatalogCache) Lookup(ctx context.Context, name string) (domain.ToolDescriptor, bool) {
	tools, err := c.Tools(ctx)
	if err != nil {
		return domain.ToolDescriptor{}, false
	}
	for _, t := range tools {
		if t.Name == name {
			return t, true
		}
	}
	return domain.ToolDescriptor{}, false
}

// Invalidate forgets the cached catalog.
func (c *CatalogCache) Invalidate() {
	c.mu.Lock()
	c.tools = nil
	c.fetched = time.Time{}
	c.mu.Unlock()
}

func (c *CatalogCache) cached() ([]domain.ToolDescriptor, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.fetched.IsZero() || c.now().Sub(c.fetched) >= c.ttl {
		return nil, false
	}
	return c.tools, true
}
