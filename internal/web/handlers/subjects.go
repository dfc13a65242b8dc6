package handlers

import (
	"errors"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/photos"
)

// Library lists the raw photos of enrolled subjects.
type Library interface {
	Subjects() ([]photos.Subject, error)
	Photos(subject string) (string, []photos.Photo, error)
	PhotoPath(subject, file string) (string, error)
}

// PhotoResponse represents a raw photo in API responses
type PhotoResponse struct {
	photos.Photo
	URL string `json:"url"`
}

// SubjectPhotosResponse represents the photo listing of one subject
type SubjectPhotosResponse struct {
	Subject     string          `json:"subject"`
	TotalPhotos int             `json:"total_photos"`
	Photos      []PhotoResponse `json:"photos"`
}

// SubjectsHandler handles photo library endpoints.
type SubjectsHandler struct {
	library Library
	log     *zap.Logger
}

// NewSubjectsHandler creates a subjects handler.
func NewSubjectsHandler(lib Library, log *zap.Logger) *SubjectsHandler {
	return &SubjectsHandler{library: lib, log: log}
}

// photoURL builds the download URL of one photo.
func photoURL(subject, file string) string {
	return "/api/v1/subjects/" + url.PathEscape(subject) + "/photos/" + url.PathEscape(file)
}

// List returns all subjects with at least one photo.
func (h *SubjectsHandler) List(w http.ResponseWriter, r *http.Request) {
	subjects, err := h.library.Subjects()
	if err != nil {
		h.log.Error("listing subjects failed", zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list subjects")
		return
	}
	respondJSON(w, http.StatusOK, subjects)
}

// Photos lists a subject's photos in library order.
func (h *SubjectsHandler) Photos(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	if name == "" {
		respondError(w, http.StatusBadRequest, "name is required")
		return
	}

	subject, list, err := h.library.Photos(name)
	if errors.Is(err, photos.ErrSubjectNotFound) {
		respondError(w, http.StatusNotFound, "subject not found")
		return
	}
	if err != nil {
		h.log.Error("listing photos failed", zap.String("subject", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to list photos")
		return
	}

	response := SubjectPhotosResponse{
		Subject:     subject,
		TotalPhotos: len(list),
		Photos:      make([]PhotoResponse, len(list)),
	}
	for i, p := range list {
		response.Photos[i] = PhotoResponse{Photo: p, URL: photoURL(subject, p.Name)}
	}
	respondJSON(w, http.StatusOK, response)
}

// Photo serves one raw photo.
func (h *SubjectsHandler) Photo(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	file := chi.URLParam(r, "file")
	if name == "" || file == "" {
		respondError(w, http.StatusBadRequest, "name and file are required")
		return
	}

	path, err := h.library.PhotoPath(name, file)
	if errors.Is(err, photos.ErrSubjectNotFound) || errors.Is(err, photos.ErrPhotoNotFound) {
		respondError(w, http.StatusNotFound, "photo not found")
		return
	}
	if err != nil {
		h.log.Error("resolving photo failed", zap.String("subject", sanitizeForLog(name)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to resolve photo")
		return
	}

	w.Header().Set("Cache-Control", "private, max-age=3600")
	http.ServeFile(w, r, path)
}
