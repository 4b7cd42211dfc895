package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/kset/verifikator/internal/domain"
)

// MessageEnvelope is the generic response wrapper.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// LinkEnvelope wraps /generate-oauth-link responses.
type LinkEnvelope struct {
	OAuthURL string `json:"oauth_url"`
	State    string `json:"state"`
}

// StatusEnvelope wraps /oauth/status responses. Member fields are flattened
// into the envelope on success.
type StatusEnvelope struct {
	Status        string `json:"status"`
	Reason        string `json:"reason,omitempty"`
	ResolvedEmail string `json:"resolved_email,omitempty"`
	Receipt       string `json:"receipt,omitempty"`
	*domain.MemberRecord
}

// CacheEnvelope wraps cache administration responses.
type CacheEnvelope struct {
	Status     string `json:"status"`
	SnapshotID string `json:"snapshot_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

// httpError is the single boundary translating domain error kinds to status
// codes. Full detail stays in the server log; callers get the minimum.
func httpError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrCacheUnavailable):
		writeError(w, http.StatusServiceUnavailable, "roster data unavailable, retry later")
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, domain.ErrExpired):
		writeError(w, http.StatusBadRequest, "verification link expired")
	case errors.Is(err, domain.ErrAlreadyResolved):
		writeError(w, http.StatusBadRequest, "verification link already used")
	case errors.Is(err, domain.ErrTokenExchange), errors.Is(err, domain.ErrUserInfo):
		writeError(w, http.StatusBadRequest, "verification failed")
	case errors.Is(err, domain.ErrBadRequest):
		writeError(w, http.StatusBadRequest, "bad request")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	default:
		slog.Error("request failed", "err", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}
