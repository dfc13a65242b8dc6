package handlers

import (
	"context"
	"image"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/recognition"
)

// Recognizer labels the faces of a frame.
type Recognizer interface {
	Recognize(ctx context.Context, frame image.Image) []recognition.Result
	Candidates(ctx context.Context, frame image.Image, k int) []recognition.CandidateResult
}

// recognizeRequest carries one frame as a data URL or bare base64.
type recognizeRequest struct {
	Image string `json:"image"`
	K     int    `json:"k,omitempty"`
}

// RecognizeHandler handles recognition endpoints.
type RecognizeHandler struct {
	recognizer Recognizer
	log        *zap.Logger
}

// NewRecognizeHandler creates a recognize handler.
func NewRecognizeHandler(rec Recognizer, log *zap.Logger) *RecognizeHandler {
	return &RecognizeHandler{recognizer: rec, log: log}
}

// frame decodes the request. A body that is not JSON is answered with 400 and
// ok=false; an image that does not decode yields a nil frame.
func (h *RecognizeHandler) frame(w http.ResponseWriter, r *http.Request) (recognizeRequest, image.Image, bool) {
	var req recognizeRequest
	if err := decodeJSON(w, r, constants.MaxRecognizeBodyBytes, &req); err != nil {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return req, nil, false
	}

	img, err := imaging.DecodeDataURL(req.Image)
	if err != nil {
		h.log.Debug("undecodable frame", zap.Error(err))
		return req, nil, true
	}
	return req, img, true
}

// Recognize returns one labeled result per gated face. An undecodable image
// yields an empty list.
func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	_, img, ok := h.frame(w, r)
	if !ok {
		return
	}
	if img == nil {
		respondJSON(w, http.StatusOK, []recognition.Result{})
		return
	}
	respondJSON(w, http.StatusOK, h.recognizer.Recognize(r.Context(), img))
}

// Candidates returns the nearest enrolled entries per gated face.
func (h *RecognizeHandler) Candidates(w http.ResponseWriter, r *http.Request) {
	req, img, ok := h.frame(w, r)
	if !ok {
		return
	}
	if req.K < 0 {
		respondError(w, http.StatusBadRequest, "k must not be negative")
		return
	}
	if img == nil {
		respondJSON(w, http.StatusOK, []recognition.CandidateResult{})
		return
	}
	respondJSON(w, http.StatusOK, h.recognizer.Candidates(r.Context(), img, req.K))
}
