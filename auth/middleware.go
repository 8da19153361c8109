package auth

import (
	"net/http"

	"github.com/jonwraymond/probekit/observe"
)

// Middleware rejects requests that authn does not accept. Rejections get
// 401 with a WWW-Authenticate challenge; internal authenticator errors
// get 500. Accepted requests carry the Identity in their context.
func Middleware(authn Authenticator, logger observe.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = observe.NopLogger()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			req := &AuthRequest{Headers: r.Header, Resource: r.URL.Path}

			result, err := authn.Authenticate(ctx, req)
			if err != nil {
				logger.Error(ctx, "authentication error",
					observe.F("path", r.URL.Path), observe.F("error", err.Error()))
				http.Error(w, "internal error", http.StatusInternalServerError)
				return
			}
			if !result.Authenticated {
				reason := "unauthorized"
				if result.Error != nil {
					reason = result.Error.Error()
				}
				logger.Warn(ctx, "request rejected",
					observe.F("path", r.URL.Path),
					observe.F("method", result.Method),
					observe.F("reason", reason))
				w.Header().Set("WWW-Authenticate", `Bearer realm="health"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithIdentity(ctx, result.Identity)))
		})
	}
}
