package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kset/verifikator/internal/application/roster"
	"github.com/kset/verifikator/internal/pkg/validate"
)

// RosterHandler handles direct roster lookup endpoints.
type RosterHandler struct {
	cache *roster.Cache
}

func NewRosterHandler(cache *roster.Cache) *RosterHandler {
	return &RosterHandler{cache: cache}
}

type verifyEmailRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type verifyEmailsRequest struct {
	Emails []string `json:"emails" validate:"required,min=1,max=100,dive,required,email"`
}

func (h *RosterHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	member, err := h.cache.Lookup(req.Email)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, member)
}

func (h *RosterHandler) VerifyEmails(w http.ResponseWriter, r *http.Request) {
	var req verifyEmailsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	matches, err := h.cache.LookupMany(req.Emails)
	if err != nil {
		httpError(w, err)
		return
	}
	// Only matched emails appear in the mapping; absent keys mean "not on
	// the roster".
	writeJSON(w, http.StatusOK, matches)
}
