package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/testiflow-api/internal/domain"
	"github.com/testiflow-api/internal/pkg/logger"
	"github.com/testiflow-api/internal/transport/http/middleware"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// Envelope is the {success, message, ...payload} response shape every endpoint uses.
type Envelope map[string]interface{}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeOK merges payload into a successful envelope.
func writeOK(w http.ResponseWriter, status int, msg string, payload Envelope) {
	env := Envelope{"success": true}
	if msg != "" {
		env["message"] = msg
	}
	for k, v := range payload {
		env[k] = v
	}
	writeJSON(w, status, env)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, Envelope{"success": false, "message": msg})
}

// writeServiceError maps a service error onto a status code. Unknown errors are
// logged and reported as a generic 500.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidCredentials):
		writeError(w, http.StatusBadRequest, "Invalid credentials")
	case errors.Is(err, domain.ErrInvalidOrExpired):
		writeError(w, http.StatusBadRequest, "Invalid or expired token")
	case errors.Is(err, domain.ErrValidation):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrValidation))
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrBadRequest))
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusBadRequest, publicMessage(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrConcurrentUpdate):
		writeError(w, http.StatusConflict, "The space was changed by another request, please retry")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, publicMessage(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, publicMessage(err, domain.ErrNotFound))
	case errors.Is(err, domain.ErrUpstream):
		logger.FromContext(r.Context()).Warn("upstream failure", "error", err)
		writeError(w, http.StatusBadGateway, "Upstream service unavailable, please try again later")
	default:
		logger.FromContext(r.Context()).Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Server error")
	}
}

// publicMessage drops the sentinel suffix from a wrapped error, leaving the
// context the service attached.
func publicMessage(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

// decodeJSON reads a bounded JSON body into dst, writing a 400 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// callerID returns the authenticated account id or writes a 401.
func callerID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := middleware.AccountIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
	}
	return id, ok
}
