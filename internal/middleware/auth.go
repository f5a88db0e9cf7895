package middleware

import (
	"net/http"
	"strings"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/openclaw/tg-relay-go/internal/audit"
	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
	"github.com/openclaw/tg-relay-go/internal/util"
)

// APIKeyMiddleware requires callers to present the key whose bcrypt hash is
// configured. With no hash configured every request passes.
type APIKeyMiddleware struct {
	keyHash string

	// verified holds SHA-256 digests of keys that already passed bcrypt.
	verified sync.Map
}

func NewAPIKeyMiddleware(keyHash string) *APIKeyMiddleware {
	if keyHash == "" {
		log.Warn().Msg("API_KEY_HASH not set, relay endpoints are unauthenticated")
	}
	return &APIKeyMiddleware{keyHash: keyHash}
}

func (m *APIKeyMiddleware) Handler(next http.Handler) http.Handler {
	if m.keyHash == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := extractKey(r)
		if key == "" {
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Missing API key")
			return
		}

		if !m.check(key) {
			log.Warn().Str("path", r.URL.Path).Msg("api key middleware: invalid key attempt")
			audit.LogFromRequest(r, audit.Event{
				Type:    audit.EventAuthFailure,
				Details: map[string]interface{}{"path": r.URL.Path},
			})
			writeError(w, http.StatusUnauthorized, apperrors.ErrCodeUnauthorized, "Invalid API key")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (m *APIKeyMiddleware) check(key string) bool {
	digest := util.HashToken(key)
	if _, ok := m.verified.Load(digest); ok {
		return true
	}
	if !util.CheckKeyHash(key, m.keyHash) {
		return false
	}
	m.verified.Store(digest, struct{}{})
	return true
}

func extractKey(r *http.Request) string {
	if key := r.Header.Get("X-API-Key"); key != "" {
		return key
	}

	authHeader := r.Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}

	return ""
}
