package auth

import "context"

// CompositeAuthenticator tries authenticators in order and returns the
// first success.
type CompositeAuthenticator struct {
	authenticators []Authenticator
}

// NewCompositeAuthenticator creates a composite authenticator. Nil entries
// are dropped.
func NewCompositeAuthenticator(auths ...Authenticator) *CompositeAuthenticator {
	c := &CompositeAuthenticator{}
	for _, a := range auths {
		if a != nil {
			c.authenticators = append(c.authenticators, a)
		}
	}
	return c
}

// Name returns "composite".
func (c *CompositeAuthenticator) Name() string {
	return "composite"
}

// Len returns the number of wrapped authenticators.
func (c *CompositeAuthenticator) Len() int {
	return len(c.authenticators)
}

// Supports returns true if any authenticator supports the request.
func (c *CompositeAuthenticator) Supports(ctx context.Context, req *AuthRequest) bool {
	for _, a := range c.authenticators {
		if a.Supports(ctx, req) {
			return true
		}
	}
	return false
}

// Authenticate tries each supporting authenticator in order. Internal
// errors stop the search. When none succeeds, the last rejection is
// returned, or ErrMissingCredentials if no authenticator applied.
func (c *CompositeAuthenticator) Authenticate(ctx context.Context, req *AuthRequest) (*AuthResult, error) {
	if len(c.authenticators) == 0 {
		return AuthFailure(ErrNoAuthenticators, c.Name()), nil
	}

	var last *AuthResult
	for _, a := range c.authenticators {
		if !a.Supports(ctx, req) {
			continue
		}
		result, err := a.Authenticate(ctx, req)
		if err != nil {
			return nil, err
		}
		if result.Authenticated {
			return result, nil
		}
		last = result
	}
	if last != nil {
		return last, nil
	}
	return AuthFailure(ErrMissingCredentials, c.Name()), nil
}

var _ Authenticator = (*CompositeAuthenticator)(nil)
