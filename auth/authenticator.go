package auth

import (
	"context"
	"net/http"
)

// Authenticator validates credentials and returns an identity.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Errors: Authenticate returns (nil, error) for internal errors and
//   (AuthResult, nil) for accepted or rejected credentials.
type Authenticator interface {
	// Name identifies the authenticator in results and logs.
	Name() string

	// Supports reports whether the request carries credentials this
	// authenticator understands.
	Supports(ctx context.Context, req *AuthRequest) bool

	// Authenticate validates the credentials.
	Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error)
}

// AuthRequest carries the credentials of an inbound request.
type AuthRequest struct {
	// Headers are the HTTP request headers.
	Headers http.Header

	// Resource is the requested path.
	Resource string
}

// GetHeader returns the first value of the canonicalized header key.
func (r *AuthRequest) GetHeader(key string) string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get(key)
}

// AuthResult is the result of an authentication attempt.
type AuthResult struct {
	// Authenticated is true if the credentials were accepted.
	Authenticated bool

	// Identity is set when Authenticated is true.
	Identity *Identity

	// Error explains a rejection.
	Error error

	// Method names the authenticator that produced the result.
	Method string
}

// AuthSuccess creates a successful authentication result.
func AuthSuccess(identity *Identity) *AuthResult {
	return &AuthResult{
		Authenticated: true,
		Identity:      identity,
		Method:        string(identity.Method),
	}
}

// AuthFailure creates a failed authentication result.
func AuthFailure(err error, method string) *AuthResult {
	return &AuthResult{Error: err, Method: method}
}
