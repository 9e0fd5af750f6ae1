// Package cache provides caching decorators for detection providers.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"surveillance_backend/internal/feature/detection/domain/entity"
	"surveillance_backend/internal/feature/detection/usecase"
)

const (
	// DefaultTTL is used when a non-positive ttl is given.
	DefaultTTL = 30 * time.Second
	// DefaultNamespace prefixes every cache key.
	DefaultNamespace = "detections"
)

// CachingProvider decorates a Provider with Redis caching keyed by the image digest.
// Only successful results are cached; failures always reach the provider again.
type CachingProvider struct {
	inner     usecase.Provider
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.Provider = (*CachingProvider)(nil)

// cachedResult is the JSON stored for one successful provider call.
type cachedResult struct {
	Predictions []entity.Prediction `json:"predictions"`
	Body        json.RawMessage     `json:"body,omitempty"`
}

// NewCachingProvider decorates inner with Redis caching.
// If ttl is 0, it defaults to 30 seconds. If namespace is empty, it uses "detections".
// A nil rdb disables caching.
func NewCachingProvider(rdb *redis.Client, ttl time.Duration, inner usecase.Provider, namespace string) *CachingProvider {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &CachingProvider{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Kind returns the kind of the wrapped provider.
func (c *CachingProvider) Kind() entity.ProviderKind {
	return c.inner.Kind()
}

// Invoke returns a cached result for the same image when present, otherwise calls the provider.
func (c *CachingProvider) Invoke(ctx context.Context, payload entity.ImagePayload, timeout time.Duration) entity.ProviderResult {
	// Bypass cache if Redis is not configured or there is nothing to key on
	if c.rdb == nil || payload.Empty() {
		return c.inner.Invoke(ctx, payload, timeout)
	}

	kind := c.inner.Kind()
	key := c.cacheKey(kind, payload.SHA256())

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var cached cachedResult
		if err := json.Unmarshal(b, &cached); err == nil {
			slog.Debug("provider cache hit", "kind", kind, "key", key)
			return entity.Success(kind, cached.Predictions, cached.Body)
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to the provider
	res := c.inner.Invoke(ctx, payload, timeout)
	if !res.OK() {
		return res
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(cachedResult{Predictions: res.PredictionsOrEmpty(), Body: res.Body}); err == nil {
		if err := c.rdb.Set(ctx, key, b, c.ttl).Err(); err != nil {
			slog.Warn("failed to cache provider result", "kind", kind, "error", err)
		}
	}
	return res
}

// cacheKey generates the cache key for one kind and image digest.
func (c *CachingProvider) cacheKey(kind entity.ProviderKind, digest string) string {
	return fmt.Sprintf("%s:%s:%s", c.namespace, kind, digest)
}
