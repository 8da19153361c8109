package cache

import (
	"context"
	"strings"
	"time"
	"unicode"
)

// MaxKeyLength is the maximum allowed length for a cache key.
const MaxKeyLength = 512

// Cache stores rendered responses by key.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Get never errors; it returns (nil, false) on miss or expiry.
// - TTL: Set with a non-positive TTL stores nothing.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

// ValidateKey rejects blank keys, keys longer than MaxKeyLength and keys
// containing control characters.
func ValidateKey(key string) error {
	switch {
	case strings.TrimSpace(key) == "":
		return ErrInvalidKey
	case len(key) > MaxKeyLength:
		return ErrKeyTooLong
	case strings.IndexFunc(key, unicode.IsControl) >= 0:
		return ErrInvalidKey
	}
	return nil
}
