package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/url"
)

// Keyer derives cache keys for health responses.
//
// Contract:
// - Determinism: the same route and query produce the same key regardless
//   of parameter order.
// - Concurrency: implementations must be safe for concurrent use.
type Keyer interface {
	Key(route string, query url.Values) (string, error)
}

// RequestKeyer hashes the route and its sorted query.
type RequestKeyer struct {
	prefix string
}

// NewRequestKeyer creates a keyer whose keys start with prefix. An empty
// prefix defaults to "health".
func NewRequestKeyer(prefix string) *RequestKeyer {
	if prefix == "" {
		prefix = "health"
	}
	return &RequestKeyer{prefix: prefix}
}

// Key returns "<prefix>:<route>:<hash>" where hash is the first 16 hex
// characters of SHA-256 over the encoded query.
func (k *RequestKeyer) Key(route string, query url.Values) (string, error) {
	if route == "" {
		return "", ErrInvalidKey
	}
	// Encode sorts by parameter name.
	hash := sha256.Sum256([]byte(query.Encode()))
	key := fmt.Sprintf("%s:%s:%s", k.prefix, route, hex.EncodeToString(hash[:8]))
	if err := ValidateKey(key); err != nil {
		return "", err
	}
	return key, nil
}

var _ Keyer = (*RequestKeyer)(nil)
