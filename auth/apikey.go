package auth

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"strconv"
	"strings"
	"sync"
	"time"
)

// APIKeyConfig configures the API key authenticator.
type APIKeyConfig struct {
	// HeaderName is the header containing the API key.
	// Default: "X-API-Key"
	HeaderName string
}

// APIKeyInfo describes a registered API key.
type APIKeyInfo struct {
	// ID identifies the key without revealing it.
	ID string

	// KeyHash is the SHA-256 hex digest of the key.
	KeyHash string

	// Principal is the identity associated with this key.
	Principal string

	// ExpiresAt is when this key expires (zero = never).
	ExpiresAt time.Time
}

// APIKeyStore looks up keys by hash.
type APIKeyStore interface {
	// Lookup returns nil when no key has the hash.
	Lookup(ctx context.Context, keyHash string) (*APIKeyInfo, error)
}

// APIKeyAuthenticator validates API keys.
type APIKeyAuthenticator struct {
	config APIKeyConfig
	store  APIKeyStore
}

// NewAPIKeyAuthenticator creates a new API key authenticator.
func NewAPIKeyAuthenticator(config APIKeyConfig, store APIKeyStore) *APIKeyAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "X-API-Key"
	}
	return &APIKeyAuthenticator{config: config, store: store}
}

// Name returns "api_key".
func (a *APIKeyAuthenticator) Name() string {
	return string(AuthMethodAPIKey)
}

// Supports returns true if the request carries the API key header.
func (a *APIKeyAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return req.GetHeader(a.config.HeaderName) != ""
}

// Authenticate validates the API key.
func (a *APIKeyAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	apiKey := strings.TrimSpace(req.GetHeader(a.config.HeaderName))
	if apiKey == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	info, err := a.store.Lookup(ctx, HashAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if info == nil {
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}
	if !info.ExpiresAt.IsZero() && time.Now().After(info.ExpiresAt) {
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	}

	return AuthSuccess(&Identity{
		Principal: info.Principal,
		Method:    AuthMethodAPIKey,
		ExpiresAt: info.ExpiresAt,
		Claims:    map[string]any{"key_id": info.ID},
	}), nil
}

// HashAPIKey hashes an API key using SHA-256 for storage.
func HashAPIKey(key string) string {
	hash := sha256.Sum256([]byte(key))
	return hex.EncodeToString(hash[:])
}

// MemoryAPIKeyStore is an in-memory API key store.
type MemoryAPIKeyStore struct {
	mu   sync.RWMutex
	keys map[string]*APIKeyInfo
}

// NewMemoryAPIKeyStore creates a new in-memory API key store.
func NewMemoryAPIKeyStore() *MemoryAPIKeyStore {
	return &MemoryAPIKeyStore{keys: make(map[string]*APIKeyInfo)}
}

// StoreFromKeys registers each plain key under the principal "key-<n>",
// numbered from 1. Blank keys are ignored.
func StoreFromKeys(keys ...string) *MemoryAPIKeyStore {
	s := NewMemoryAPIKeyStore()
	n := 0
	for _, k := range keys {
		k = strings.TrimSpace(k)
		if k == "" {
			continue
		}
		n++
		id := "key-" + strconv.Itoa(n)
		s.Add(&APIKeyInfo{ID: id, KeyHash: HashAPIKey(k), Principal: id})
	}
	return s
}

// Lookup retrieves an API key by its hash. Stored hashes are compared in
// constant time.
func (s *MemoryAPIKeyStore) Lookup(_ context.Context, keyHash string) (*APIKeyInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *APIKeyInfo
	for hash, info := range s.keys {
		if subtle.ConstantTimeCompare([]byte(hash), []byte(keyHash)) == 1 {
			found = info
		}
	}
	return found, nil
}

// Add registers a key.
func (s *MemoryAPIKeyStore) Add(info *APIKeyInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys[info.KeyHash] = info
}

// Remove unregisters a key by hash.
func (s *MemoryAPIKeyStore) Remove(keyHash string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, keyHash)
}

// Len returns the number of registered keys.
func (s *MemoryAPIKeyStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.keys)
}

var (
	_ Authenticator = (*APIKeyAuthenticator)(nil)
	_ APIKeyStore   = (*MemoryAPIKeyStore)(nil)
)
