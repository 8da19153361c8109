// Package auth guards the health endpoint with API key or JWT credentials.
//
// Authenticators inspect an AuthRequest built from HTTP headers and
// return an AuthResult. Middleware rejects unauthenticated requests with
// 401 and stores the Identity of accepted ones in the request context.
package auth
