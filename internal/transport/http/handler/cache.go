package handler

import (
	"net/http"

	"github.com/kset/verifikator/internal/application/roster"
)

// CacheHandler handles roster cache administration endpoints.
type CacheHandler struct {
	cache *roster.Cache
}

func NewCacheHandler(cache *roster.Cache) *CacheHandler {
	return &CacheHandler{cache: cache}
}

// Refresh forces a reload from the roster source.
func (h *CacheHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	snapshotID, err := h.cache.Refresh(r.Context(), true)
	if err != nil {
		httpError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, CacheEnvelope{Status: "refreshed", SnapshotID: snapshotID})
}

// Clear evicts the snapshot; lookups return 503 until the next refresh.
func (h *CacheHandler) Clear(w http.ResponseWriter, r *http.Request) {
	h.cache.Clear()
	writeJSON(w, http.StatusOK, CacheEnvelope{Status: "cleared"})
}
