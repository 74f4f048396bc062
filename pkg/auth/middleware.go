package auth

import (
	"log/slog"
	"net/http"

	"github.com/dirigent-dev/dirigent/pkg/api"
	"github.com/dirigent-dev/dirigent/pkg/observability"
	"github.com/dirigent-dev/dirigent/pkg/storage"
	"github.com/dirigent-dev/dirigent/pkg/transport"
)

// DefaultBypassEndpoints lists paths served without authentication.
var DefaultBypassEndpoints = []string{"/healthz", "/readyz", "/metrics"}

// Middleware builds HTTP middleware around a Chain and an optional
// RateLimiter. Requests to bypass endpoints pass through untouched.
// Everything else must authenticate; accepted identities land on the
// request context together with their tenant, and the limiter (when
// present) gets a veto after authentication succeeds.
func Middleware(chain *Chain, limiter RateLimiter, bypassEndpoints []string) func(http.Handler) http.Handler {
	bypass := make(map[string]bool, len(bypassEndpoints))
	for _, ep := range bypassEndpoints {
		bypass[ep] = true
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if bypass[r.URL.Path] {
				next.ServeHTTP(w, r)
				return
			}

			result := chain.Authenticate(r.Context(), r)
			switch {
			case result.Decision == No:
				slog.Warn("authentication failed",
					"path", r.URL.Path,
					"remote_addr", r.RemoteAddr,
					"error", result.Err,
				)
				transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
				return
			case result.Decision != Yes || result.Identity == nil:
				transport.WriteAPIError(w, api.NewUnauthorizedError("authentication required"))
				return
			case result.Identity.Subject == "":
				// An authenticator that accepts without naming a subject is
				// broken; refuse rather than let an anonymous write through.
				slog.Error("authenticator accepted request without a subject")
				transport.WriteAPIError(w, api.NewServerError("internal authentication error"))
				return
			}

			identity := result.Identity
			slog.Debug("authentication succeeded",
				"subject", identity.Subject,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			if limiter != nil {
				if err := limiter.Allow(r.Context(), identity); err != nil {
					slog.Warn("rate limit exceeded",
						"subject", identity.Subject,
						"tier", identity.ServiceTier,
					)
					observability.RateLimitRejectedTotal.WithLabelValues(identity.ServiceTier).Inc()
					transport.WriteAPIError(w, api.NewTooManyRequestsError("rate limit exceeded"))
					return
				}
			}

			ctx := SetIdentity(r.Context(), identity)
			if tenantID := identity.TenantID(); tenantID != "" {
				ctx = storage.WithTenant(ctx, tenantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
