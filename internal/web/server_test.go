package web

import (
	"context"
	"encoding/json"
	"image"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

type noFaces struct{}

func (noFaces) Detect(image.Image) []detector.Detection { return nil }

type zeroEmbedder struct{}

func (zeroEmbedder) Embed(context.Context, image.Image) ([]float32, error) {
	return []float32{1, 0}, nil
}

func testServer(t *testing.T) *Server {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.Data.Dir = filepath.Join(root, "data")
	cfg.Data.CropsDir = filepath.Join(root, "data", "crops")
	cfg.Store.Path = filepath.Join(root, "data", "embeddings.gob")
	cfg.Web.AllowedOrigins = []string{"https://faces.example.com"}

	svc, err := service.New(context.Background(), cfg, zap.NewNop(), service.Components{
		Detector: noFaces{},
		Embedder: zeroEmbedder{},
		Backend:  database.NewFileBackend(cfg.Store.Path),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })

	s := NewServer(cfg, svc, zap.NewNop())
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})
	return s
}

func TestServer_Routes(t *testing.T) {
	s := testServer(t)

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/health", "", http.StatusOK},
		{http.MethodPost, "/api/v1/recognize", `{"image":""}`, http.StatusOK},
		{http.MethodPost, "/api/v1/recognize/candidates", `{"image":"","k":2}`, http.StatusOK},
		{http.MethodGet, "/api/v1/enrollment", "", http.StatusOK},
		{http.MethodDelete, "/api/v1/enrollment", "", http.StatusConflict},
		{http.MethodGet, "/api/v1/subjects", "", http.StatusOK},
		{http.MethodGet, "/api/v1/subjects/Rick/photos", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/subjects/Rick/photos/1.jpg", "", http.StatusNotFound},
		{http.MethodDelete, "/api/v1/subjects/Rick/embeddings", "", http.StatusNotFound},
		{http.MethodGet, "/api/v1/embeddings", "", http.StatusOK},
		{http.MethodGet, "/api/v1/unknown", "", http.StatusNotFound},
		{http.MethodPut, "/api/v1/enrollment", "", http.StatusMethodNotAllowed},
	}

	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			req := httptest.NewRequest(tc.method, tc.path, strings.NewReader(tc.body))
			recorder := httptest.NewRecorder()
			s.Router().ServeHTTP(recorder, req)

			if recorder.Code != tc.want {
				t.Errorf("expected status %d, got %d\nBody: %s", tc.want, recorder.Code, recorder.Body.String())
			}
		})
	}
}

func TestServer_EnrollmentLifecycle(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/enrollment", strings.NewReader(`{"subject":"all"}`))
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)
	if recorder.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", recorder.Code, recorder.Body.String())
	}

	s.service.WaitEnrollment()

	recorder = httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/api/v1/enrollment", nil))
	var status map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &status); err != nil {
		t.Fatal(err)
	}
	// An empty library finishes as failed with nothing to embed.
	if status["phase"] != "failed" || status["running"] != false || status["progress"] != float64(100) {
		t.Errorf("unexpected terminal status %v", status)
	}
}

func TestServer_Middleware(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/health", nil)
	req.Header.Set("Origin", "https://faces.example.com")
	recorder := httptest.NewRecorder()
	s.Router().ServeHTTP(recorder, req)

	if got := recorder.Header().Get("Access-Control-Allow-Origin"); got != "https://faces.example.com" {
		t.Errorf("expected configured origin allowed, got %q", got)
	}
	if got := recorder.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("expected security headers, got %q", got)
	}
}
