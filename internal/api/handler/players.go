package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/gridironlab/gridiron-data/internal/api/respond"
	"github.com/gridironlab/gridiron-data/internal/cache"
	"github.com/gridironlab/gridiron-data/internal/store"
)

// ListPlayers returns the sorted identifiers of all stored player records.
func (h *Handler) ListPlayers(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "players:list"
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if r.Header.Get("If-None-Match") == etag {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLList, true)
		return
	}

	idSet, err := h.store.ListIDs(r.Context())
	if err != nil {
		h.logger.Error("List players failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to list player records")
		return
	}

	ids := make([]string, 0, len(idSet))
	for id := range idSet {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	data, err := json.Marshal(map[string]interface{}{
		"total":   len(ids),
		"players": ids,
	})
	if err != nil {
		respond.WriteError(w, http.StatusInternalServerError, "MARSHAL_ERROR", "Failed to encode response")
		return
	}

	etag := h.cache.Set(cacheKey, data, cache.TTLList)
	respond.WriteJSON(w, data, etag, cache.TTLList, false)
}

// GetPlayer returns one stored player record verbatim.
func (h *Handler) GetPlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "playerID")
	if id == "" || store.IsHousekeeping(id) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No such player record")
		return
	}

	cacheKey := "players:" + id
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if r.Header.Get("If-None-Match") == etag {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLRecord, true)
		return
	}

	var doc json.RawMessage
	err := h.store.Load(r.Context(), id, &doc)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No such player record")
		return
	}
	if err != nil {
		h.logger.Error("Load player failed", "id", id, "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load player record")
		return
	}

	etag := h.cache.Set(cacheKey, doc, cache.TTLRecord)
	respond.WriteJSON(w, doc, etag, cache.TTLRecord, false)
}

// GetSummary returns the latest scrape summary report.
func (h *Handler) GetSummary(w http.ResponseWriter, r *http.Request) {
	const cacheKey = "summary"
	if data, etag, ok := h.cache.Get(cacheKey); ok {
		if r.Header.Get("If-None-Match") == etag {
			respond.WriteNotModified(w, etag)
			return
		}
		respond.WriteJSON(w, data, etag, cache.TTLSummary, true)
		return
	}

	var doc json.RawMessage
	err := h.store.Load(r.Context(), store.SummaryReportID, &doc)
	if errors.Is(err, store.ErrNotFound) {
		respond.WriteError(w, http.StatusNotFound, "NOT_FOUND", "No scrape summary has been generated yet")
		return
	}
	if err != nil {
		h.logger.Error("Load summary failed", "error", err)
		respond.WriteError(w, http.StatusInternalServerError, "STORAGE_ERROR", "Failed to load summary report")
		return
	}

	etag := h.cache.Set(cacheKey, doc, cache.TTLSummary)
	respond.WriteJSON(w, doc, etag, cache.TTLSummary, false)
}
