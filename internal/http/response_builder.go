package http

import (
	"encoding/json"
	"errors"
	"net/http"

	"shgbook/internal/auth"
	"shgbook/internal/core"
	"shgbook/internal/log"
)

// errorBody is the JSON shape of every failed request.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps error kinds to HTTP status codes.
func statusFor(err error) int {
	if errors.Is(err, auth.ErrUnauthenticated) {
		return http.StatusUnauthorized
	}
	switch core.KindOf(err) {
	case core.KindValidation:
		return http.StatusBadRequest
	case core.KindAuthorization, core.KindPermissionDenied:
		return http.StatusForbidden
	case core.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// WriteError renders err the way API handlers do. It is meant as the auth
// middleware's error writer.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	writeError(w, r, err)
}

// writeError renders err, logging server-side failures with their cause.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	kind := core.KindOf(err)

	msg := core.Message(err)
	if kind == 0 {
		msg = "Internal server error"
	}
	if status >= 500 {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Request failed",
			log.FieldPath, r.URL.Path,
			log.FieldErrorKind, kind.String(),
			log.FieldError, err)
	}

	kindName := kind.String()
	if status == http.StatusUnauthorized {
		kindName = "unauthenticated"
	}
	writeJSON(w, status, errorBody{Error: msg, Kind: kindName})
}
