package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tg-relay-go/internal/audit"
	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
	"github.com/openclaw/tg-relay-go/internal/httputil"
	"github.com/openclaw/tg-relay-go/internal/redis"
)

// LoginRateLimitMiddleware bounds how often one client IP may hit the
// code-dispatch and sign-in routes. Each route has its own budget.
type LoginRateLimitMiddleware struct {
	limiter Limiter
	limit   int
}

func NewLoginRateLimitMiddleware(limiter Limiter, limit int) *LoginRateLimitMiddleware {
	return &LoginRateLimitMiddleware{limiter: limiter, limit: limit}
}

func (m *LoginRateLimitMiddleware) Handler(route string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := audit.ClientIP(r)
			allowed, remaining, resetAt := m.limiter.Check(r.Context(), redis.LoginLimitKey(route, ip), m.limit)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(m.limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt, 10))

			if !allowed {
				log.Warn().Str("ip", ip).Str("route", route).Msg("login rate limit exceeded")
				audit.LogFromRequest(r, audit.Event{
					Type:    audit.EventRateLimitExceed,
					Details: map[string]interface{}{"route": route},
				})

				retryAfter := int(time.Until(time.Unix(resetAt, 0)).Seconds())
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				httputil.WriteError(w, apperrors.RateLimitExceeded(retryAfter))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
