package auth

import (
	"slices"
	"time"
)

// AuthMethod indicates how authentication was performed.
type AuthMethod string

const (
	AuthMethodJWT    AuthMethod = "jwt"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Identity is the caller of a guarded endpoint.
type Identity struct {
	// Principal identifies the caller, for example a key ID or token subject.
	Principal string

	// Roles granted to the caller, taken from the token when configured.
	Roles []string

	// Method indicates how authentication was performed.
	Method AuthMethod

	// Claims holds raw token claims or key metadata.
	Claims map[string]any

	// ExpiresAt is when the credential expires. Zero means never.
	ExpiresAt time.Time
}

// HasRole reports whether the identity carries role.
func (id *Identity) HasRole(role string) bool {
	return slices.Contains(id.Roles, role)
}

// IsExpired reports whether the credential has expired.
func (id *Identity) IsExpired() bool {
	return !id.ExpiresAt.IsZero() && time.Now().After(id.ExpiresAt)
}
