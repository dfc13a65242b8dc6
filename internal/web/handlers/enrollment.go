package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// Enroller runs enrollment jobs.
type Enroller interface {
	StartEnrollment(scope string) (service.Status, error)
	StopEnrollment() bool
	EnrollmentStatus() service.Status
	ObserveEnrollment(fn func(service.Status)) func()
}

// EnrollmentRequest represents the request body for starting a job.
type EnrollmentRequest struct {
	Subject string `json:"subject"`
}

// EnrollmentHandler handles enrollment job endpoints.
type EnrollmentHandler struct {
	enroller    Enroller
	events      *EventBroadcaster
	unsubscribe func()
	log         *zap.Logger
}

// NewEnrollmentHandler creates an enrollment handler relaying job progress to SSE
// listeners until Close.
func NewEnrollmentHandler(e Enroller, log *zap.Logger) *EnrollmentHandler {
	h := &EnrollmentHandler{
		enroller: e,
		events:   &EventBroadcaster{},
		log:      log,
	}
	h.unsubscribe = e.ObserveEnrollment(func(st service.Status) {
		h.events.SendEvent(statusEvent(st))
	})
	return h
}

// Close stops relaying progress and ends open event streams.
func (h *EnrollmentHandler) Close() {
	h.unsubscribe()
	h.events.Close()
}

// Start launches an enrollment job for one subject or, when the body is empty or
// names "all", for every subject.
func (h *EnrollmentHandler) Start(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentRequest
	if err := decodeJSON(w, r, 1<<10, &req); err != nil && !errors.Is(err, io.EOF) {
		respondError(w, http.StatusBadRequest, errInvalidRequestBody)
		return
	}
	if req.Subject == "" {
		req.Subject = constants.AllSubjects
	}

	status, err := h.enroller.StartEnrollment(req.Subject)
	if errors.Is(err, enrollment.ErrAlreadyRunning) {
		respondError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		h.log.Error("starting enrollment failed", zap.String("subject", sanitizeForLog(req.Subject)), zap.Error(err))
		respondError(w, http.StatusInternalServerError, "failed to start enrollment")
		return
	}

	h.log.Info("enrollment started",
		zap.String("job_id", status.JobID),
		zap.String("subject", sanitizeForLog(status.Scope)),
	)
	respondJSON(w, http.StatusAccepted, status)
}

// Status returns the latest progress snapshot.
func (h *EnrollmentHandler) Status(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.enroller.EnrollmentStatus())
}

// Stop asks the running job to stop.
func (h *EnrollmentHandler) Stop(w http.ResponseWriter, r *http.Request) {
	if !h.enroller.StopEnrollment() {
		respondError(w, http.StatusConflict, "no enrollment is running")
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]any{
		"stopping": true,
		"message":  enrollment.MsgStopped,
	})
}

// Events streams job progress as server-sent events.
func (h *EnrollmentHandler) Events(w http.ResponseWriter, r *http.Request) {
	streamSSEEvents(w, r, h.events, func() (JobEvent, bool) {
		st := h.enroller.EnrollmentStatus()
		return statusEvent(st), st.Running
	})
}
