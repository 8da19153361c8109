package cache

import (
	"context"
	"time"

	"golang.org/x/sync/singleflight"
)

// LoadFunc produces a value on a cache miss.
type LoadFunc func(ctx context.Context) ([]byte, error)

// Loader reads through a Cache. Concurrent misses for the same key share a
// single LoadFunc call.
type Loader struct {
	cache  Cache
	policy Policy
	group  singleflight.Group
}

// NewLoader wraps c with policy. A nil cache is replaced by a MemoryCache.
func NewLoader(c Cache, policy Policy) *Loader {
	if c == nil {
		c = NewMemoryCache()
	}
	return &Loader{cache: c, policy: policy}
}

// Load returns the cached value for key or calls fn to produce it. The
// boolean reports a cache hit. Errors from fn are returned to every waiter
// and are not cached. When the effective TTL is zero, fn is always called.
func (l *Loader) Load(ctx context.Context, key string, ttl time.Duration, fn LoadFunc) ([]byte, bool, error) {
	ttl = l.policy.EffectiveTTL(ttl)
	if ttl <= 0 {
		v, err := fn(ctx)
		return v, false, err
	}
	if err := ValidateKey(key); err != nil {
		return nil, false, err
	}

	if v, ok := l.cache.Get(ctx, key); ok {
		return v, true, nil
	}

	v, err, _ := l.group.Do(key, func() (any, error) {
		if v, ok := l.cache.Get(ctx, key); ok {
			return v, nil
		}
		v, err := fn(ctx)
		if err != nil {
			return nil, err
		}
		if err := l.cache.Set(ctx, key, v, ttl); err != nil {
			return nil, err
		}
		return v, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.([]byte), false, nil
}

// Invalidate drops the cached value for key.
func (l *Loader) Invalidate(ctx context.Context, key string) error {
	return l.cache.Delete(ctx, key)
}
