package cache

import "time"

// Policy configures how long responses are kept.
type Policy struct {
	// DefaultTTL is used when a caller passes no TTL.
	// If zero, caching is disabled by default.
	DefaultTTL time.Duration

	// MaxTTL clamps every TTL. If zero, no maximum is enforced.
	MaxTTL time.Duration
}

// DefaultPolicy keeps responses for 5 seconds and never longer than a
// minute.
func DefaultPolicy() Policy {
	return Policy{
		DefaultTTL: 5 * time.Second,
		MaxTTL:     time.Minute,
	}
}

// NoCachePolicy returns a policy that disables caching entirely.
func NoCachePolicy() Policy {
	return Policy{}
}

// ShouldCache reports whether the policy caches by default.
func (p Policy) ShouldCache() bool {
	return p.DefaultTTL > 0
}

// EffectiveTTL returns override, or DefaultTTL when override is not
// positive, clamped to MaxTTL.
func (p Policy) EffectiveTTL(override time.Duration) time.Duration {
	ttl := override
	if ttl <= 0 {
		ttl = p.DefaultTTL
	}
	if p.MaxTTL > 0 && ttl > p.MaxTTL {
		ttl = p.MaxTTL
	}
	return ttl
}
