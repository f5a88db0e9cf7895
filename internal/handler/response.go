package handler

import (
	"net/http"

	"github.com/rs/zerolog/log"

	apperrors "github.com/openclaw/tg-relay-go/internal/errors"
	"github.com/openclaw/tg-relay-go/internal/httputil"
)

func writeJSON(w http.ResponseWriter, status int, data any) {
	httputil.WriteJSON(w, status, data)
}

// writeError logs server-side failures before writing the error body.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := apperrors.GetCode(err)
	if httputil.StatusFromCode(code) >= http.StatusInternalServerError {
		log.Error().
			Err(err).
			Str("path", r.URL.Path).
			Str("code", string(code)).
			Msg("request failed")
	}
	httputil.WriteError(w, err)
}
