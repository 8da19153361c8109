package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWTConfig configures the JWT authenticator.
type JWTConfig struct {
	// Issuer is the expected token issuer (iss claim). Empty skips the check.
	Issuer string

	// Audience is the expected token audience (aud claim). Empty skips the check.
	Audience string

	// HeaderName is the header containing the token.
	// Default: "Authorization"
	HeaderName string

	// TokenPrefix is the prefix before the token in the header.
	// Default: "Bearer "
	TokenPrefix string

	// PrincipalClaim is the claim containing the principal.
	// Default: "sub"
	PrincipalClaim string

	// RolesClaim is the claim containing roles. Empty skips roles.
	RolesClaim string
}

// JWTAuthenticator validates HMAC-signed JWTs.
type JWTAuthenticator struct {
	config JWTConfig
	secret []byte
	parser *jwt.Parser
}

// NewJWTAuthenticator creates a JWT authenticator that verifies tokens
// signed with secret using HS256, HS384 or HS512.
func NewJWTAuthenticator(config JWTConfig, secret []byte) *JWTAuthenticator {
	if config.HeaderName == "" {
		config.HeaderName = "Authorization"
	}
	if config.TokenPrefix == "" {
		config.TokenPrefix = "Bearer "
	}
	if config.PrincipalClaim == "" {
		config.PrincipalClaim = "sub"
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if config.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(config.Issuer))
	}
	if config.Audience != "" {
		opts = append(opts, jwt.WithAudience(config.Audience))
	}

	return &JWTAuthenticator{
		config: config,
		secret: secret,
		parser: jwt.NewParser(opts...),
	}
}

// Name returns "jwt".
func (a *JWTAuthenticator) Name() string {
	return string(AuthMethodJWT)
}

// Supports returns true if the header carries the token prefix.
func (a *JWTAuthenticator) Supports(_ context.Context, req *AuthRequest) bool {
	return strings.HasPrefix(req.GetHeader(a.config.HeaderName), a.config.TokenPrefix)
}

// Authenticate validates the token.
func (a *JWTAuthenticator) Authenticate(_ context.Context, req *AuthRequest) (*AuthResult, error) {
	header := req.GetHeader(a.config.HeaderName)
	tokenString, found := strings.CutPrefix(header, a.config.TokenPrefix)
	if !found || strings.TrimSpace(tokenString) == "" {
		return AuthFailure(ErrMissingCredentials, a.Name()), nil
	}

	claims := jwt.MapClaims{}
	token, err := a.parser.ParseWithClaims(strings.TrimSpace(tokenString), claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	})
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return AuthFailure(ErrTokenExpired, a.Name()), nil
	case errors.Is(err, jwt.ErrTokenMalformed):
		return AuthFailure(ErrTokenMalformed, a.Name()), nil
	case err != nil || !token.Valid:
		return AuthFailure(ErrInvalidCredentials, a.Name()), nil
	}

	return AuthSuccess(a.buildIdentity(claims)), nil
}

func (a *JWTAuthenticator) buildIdentity(claims jwt.MapClaims) *Identity {
	identity := &Identity{
		Method: AuthMethodJWT,
		Claims: make(map[string]any, len(claims)),
	}
	for k, v := range claims {
		identity.Claims[k] = v
	}

	if principal, ok := claims[a.config.PrincipalClaim].(string); ok {
		identity.Principal = principal
	}
	if a.config.RolesClaim != "" {
		if roles, ok := claims[a.config.RolesClaim].([]any); ok {
			for _, r := range roles {
				if s, ok := r.(string); ok {
					identity.Roles = append(identity.Roles, s)
				}
			}
		}
	}
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		identity.ExpiresAt = exp.Time
	}
	return identity
}

// SignHS256 issues a token for subject that expires after ttl. It is used
// by healthd to mint tokens for operators and by tests.
func SignHS256(secret []byte, subject string, ttl time.Duration, extra map[string]any) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": subject,
		"iat": now.Unix(),
		"exp": now.Add(ttl).Unix(),
	}
	for k, v := range extra {
		claims[k] = v
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

var _ Authenticator = (*JWTAuthenticator)(nil)
