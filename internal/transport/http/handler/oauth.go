package handler

import (
	"encoding/json"
	"net/http"

	"github.com/kset/verifikator/internal/application/verification"
	"github.com/kset/verifikator/internal/domain"
	"github.com/kset/verifikator/internal/pkg/validate"
)

// OAuthHandler handles the verification flow endpoints: start, poll,
// provider callback.
type OAuthHandler struct {
	svc verification.Service
}

func NewOAuthHandler(svc verification.Service) *OAuthHandler {
	return &OAuthHandler{svc: svc}
}

func (h *OAuthHandler) GenerateLink(w http.ResponseWriter, r *http.Request) {
	var req verification.StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := h.svc.Start(r.Context(), req)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, LinkEnvelope{OAuthURL: res.OAuthURL, State: res.State})
}

func (h *OAuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	if state == "" {
		writeError(w, http.StatusBadRequest, "state query parameter is required")
		return
	}

	res, err := h.svc.Status(r.Context(), state)
	if err != nil {
		httpError(w, err)
		return
	}

	env := StatusEnvelope{Status: string(res.Status)}
	switch res.Status {
	case domain.AttemptSuccess:
		env.ResolvedEmail = res.Email
		env.MemberRecord = res.Member
		env.Receipt = res.Receipt
	case domain.AttemptFail:
		// One generic reason for every terminal failure; pollers must not
		// learn whether the email was off-roster or the provider balked.
		env.Reason = "verification failed or link invalid"
	}
	writeJSON(w, http.StatusOK, env)
}

// Callback is the provider-facing half of the redirect round-trip. It renders
// HTML, not JSON, because the user's browser lands here.
func (h *OAuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	code := r.URL.Query().Get("code")
	state := r.URL.Query().Get("state")
	if code == "" || state == "" {
		renderView(w, http.StatusBadRequest, viewInvalid, nil)
		return
	}

	res, err := h.svc.Resolve(r.Context(), state, code)
	if err != nil {
		renderView(w, http.StatusInternalServerError, viewError, nil)
		return
	}

	switch res.Outcome {
	case verification.ResolveSuccess:
		renderView(w, http.StatusOK, viewSuccess, successView{Email: res.Email, Member: res.Member})
	case verification.ResolveExpired:
		renderView(w, http.StatusBadRequest, viewExpired, nil)
	case verification.ResolveAlreadyUsed:
		renderView(w, http.StatusBadRequest, viewUsed, nil)
	case verification.ResolveUnknownState:
		renderView(w, http.StatusBadRequest, viewInvalid, nil)
	default:
		renderView(w, http.StatusForbidden, viewFail, nil)
	}
}
