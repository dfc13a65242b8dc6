package handlers

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/enrollment"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

func TestStatsHandler_GetAndRemove(t *testing.T) {
	cfg := testConfig(t)
	writePhoto(t, cfg, "José", "1.png", color.RGBA{R: 255, G: 20, A: 255})
	writePhoto(t, cfg, "José", "2.png", color.RGBA{R: 255, G: 24, A: 255})
	writePhoto(t, cfg, "Rick", "1.png", color.RGBA{R: 255, G: 230, A: 255})
	svc := newTestService(t, cfg)
	if _, err := svc.RunEnrollment(context.Background(), constants.AllSubjects); err != nil {
		t.Fatalf("enrollment failed: %v", err)
	}
	handler := NewStatsHandler(svc, zap.NewNop())

	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/embeddings", nil))
	assertStatusCode(t, recorder, http.StatusOK)
	var stats service.Stats
	parseJSONResponse(t, recorder, &stats)
	if stats.TotalEmbeddings != 3 || stats.Dim != 2 || stats.TotalFaces != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}
	if stats.Location != cfg.Store.Path {
		t.Errorf("expected location %q, got %q", cfg.Store.Path, stats.Location)
	}

	req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"name": "jose"})
	recorder = httptest.NewRecorder()
	handler.RemoveSubject(recorder, req)
	assertStatusCode(t, recorder, http.StatusOK)
	var removed RemoveResponse
	parseJSONResponse(t, recorder, &removed)
	if removed != (RemoveResponse{Subject: "José", Removed: 2}) {
		t.Errorf("unexpected remove response %+v", removed)
	}

	recorder = httptest.NewRecorder()
	handler.RemoveSubject(recorder, req)
	assertStatusCode(t, recorder, http.StatusNotFound)
	assertJSONError(t, recorder, "subject not enrolled")
}

// fakeStore returns canned results.
type fakeStore struct {
	statsErr  error
	removeErr error
}

func (f fakeStore) Stats() (service.Stats, error) { return service.Stats{}, f.statsErr }

func (f fakeStore) RemoveSubject(_ context.Context, label string) (string, int, error) {
	if f.removeErr != nil {
		return "", 0, f.removeErr
	}
	return label, 1, nil
}

func TestStatsHandler_Errors(t *testing.T) {
	tests := []struct {
		name       string
		removeErr  error
		wantStatus int
		wantError  string
	}{
		{"not enrolled", fmt.Errorf("%w: %q", service.ErrLabelNotFound, "Morty"), http.StatusNotFound, "subject not enrolled"},
		{"enrollment running", enrollment.ErrAlreadyRunning, http.StatusConflict, enrollment.ErrAlreadyRunning.Error()},
		{"save failed", errors.New("disk full"), http.StatusInternalServerError, "failed to remove subject"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			handler := NewStatsHandler(fakeStore{removeErr: tc.removeErr}, zap.NewNop())
			req := requestWithChiParams(httptest.NewRequest(http.MethodDelete, "/", nil), map[string]string{"name": "Morty"})
			recorder := httptest.NewRecorder()
			handler.RemoveSubject(recorder, req)

			assertStatusCode(t, recorder, tc.wantStatus)
			assertJSONError(t, recorder, tc.wantError)
		})
	}

	handler := NewStatsHandler(fakeStore{statsErr: errors.New("disk gone")}, zap.NewNop())
	recorder := httptest.NewRecorder()
	handler.Get(recorder, httptest.NewRequest(http.MethodGet, "/", nil))
	assertStatusCode(t, recorder, http.StatusInternalServerError)
	assertJSONError(t, recorder, "failed to read stats")
}
