package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// EmbeddingStore reports and edits the enrolled embeddings.
type EmbeddingStore interface {
	Stats() (service.Stats, error)
	RemoveSubject(ctx context.Context, label string) (string, int, error)
}

// RemoveResponse represents the result of removing a subject's embeddings
type RemoveResponse struct {
	Subject string `json:"subject"`
	Removed int    `json:"removed"`
}

// StatsHandler handles embedding store endpoints.
type StatsHandler struct {
	store EmbeddingStore
	log   *zap.Logger
}

// NewStatsHandler creates a stats handler.
func NewStatsHandler(store EmbeddingStore, log *zap.Logger) *StatsHandler {
	return &StatsHandler{store: store, log: log}
}

// Get returns the store statistics.
func (h *StatsHandler) Get(w http.ResponseWriter, r *http.Request) {
	stats, err := h.store.Stats()
	if err != nil {
		h.log.Error("reading stats failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to read stats")
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// RemoveSubject deletes every embedding of a subject and persists the store.
func (h *StatsHandler) RemoveSubject(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	subject, removed, err := h.store.RemoveSubject(r.Context(), name)
	switch {
	case errors.Is(err, service.ErrLabelNotFound):
		respondError(w, http.StatusNotFound, "subject not enrolled")
		return
	case errors.Is(err, enrollment.ErrAlreadyRunning):
		respondError(w, http.StatusConflict, err.Error())
		return
	case err != nil:
		h.log.Error("removing subject failed", zap.String("subject", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to remove subject")
		return
	}

	respondJSON(w, http.StatusOK, RemoveResponse{Subject: subject, Removed: removed})
}
