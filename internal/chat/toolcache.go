package chat

import (
	"context"
	"sync"
	"time"

	"github.com/parleychat/parley/internal/llm"
)

// ToolsetCache caches the tool-definition list for a short TTL so the
// remote tool server's list is not re-fetched on every turn. Concurrent
// refreshes may fetch redundantly; the last writer wins and the cached
// value is never mutated after it is stored.
type ToolsetCache struct {
	loader func(ctx context.Context) ([]llm.ToolSpec, error)
	ttl    time.Duration

	mu        sync.Mutex
	value     []llm.ToolSpec
	fetchedAt time.Time
}

func NewToolsetCache(ttl time.Duration, loader func(ctx context.Context) ([]llm.ToolSpec, error)) *ToolsetCache {
	return &ToolsetCache{loader: loader, ttl: ttl}
}

// GetOrRefresh returns the cached toolset, refreshing it when the TTL
// has elapsed or nothing has been fetched yet.
func (c *ToolsetCache) GetOrRefresh(ctx context.Context) ([]llm.ToolSpec, error) {
	c.mu.Lock()
	if !c.fetchedAt.IsZero() && time.Since(c.fetchedAt) < c.ttl {
		value := c.value
		c.mu.Unlock()
		return value, nil
	}
	c.mu.Unlock()

	value, err := c.loader(ctx)
	if err != nil {
		return nil, err
	}

	c.mu.Lock()
	c.value = value
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return value, nil
}
