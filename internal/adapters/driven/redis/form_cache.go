package redis

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/finplan-core/internal/core/domain"
	"github.com/custodia-labs/finplan-core/internal/core/ports/driven"
)

// Verify interface compliance
var _ driven.FormSource = (*FormCache)(nil)

const formCacheKey = "finplan:form:schema"

// DefaultFormCacheTTL bounds how stale a cached schema may be
const DefaultFormCacheTTL = 5 * time.Minute

// FormCache is a read-through cache in front of another FormSource.
// Redis errors fall through to the origin; the origin's errors are returned as is.
type FormCache struct {
	client redis.UniversalClient
	origin driven.FormSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewFormCache wraps origin. A zero ttl uses DefaultFormCacheTTL.
func NewFormCache(client redis.UniversalClient, origin driven.FormSource, ttl time.Duration, logger *slog.Logger) *FormCache {
	if ttl <= 0 {
		ttl = DefaultFormCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &FormCache{client: client, origin: origin, ttl: ttl, logger: logger}
}

// Load returns the cached schema or loads and caches it from the origin
func (c *FormCache) Load(ctx context.Context) (*domain.FormSchema, error) {
	data, err := c.client.Get(ctx, formCacheKey).Bytes()
	switch {
	case err == nil:
		var form domain.FormSchema
		if err := json.Unmarshal(data, &form); err == nil {
			return &form, nil
		}
		c.logger.Warn("discarding malformed cached form schema", "error", err)
	case err != redis.Nil:
		c.logger.Warn("form cache unavailable, reading origin", "error", err)
	}

	form, err := c.origin.Load(ctx)
	if err != nil {
		return nil, err
	}

	if data, err := json.Marshal(form); err != nil {
		c.logger.Warn("failed to encode form schema for cache", "error", err)
	} else if err := c.client.Set(ctx, formCacheKey, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache form schema", "error", err)
	}
	return form, nil
}

// Invalidate drops the cached schema so the next Load reads the origin
func (c *FormCache) Invalidate(ctx context.Context) error {
	return c.client.Del(ctx, formCacheKey).Err()
}
