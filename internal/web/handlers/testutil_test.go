package handlers

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"math"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
	"github.com/kozaktomas/face-recognizer/internal/service"
)

// redDetector finds one face on frames whose first pixel is fully red.
type redDetector struct{}

func (redDetector) Detect(frame image.Image) []detector.Detection {
	r, _, _, _ := frame.At(frame.Bounds().Min.X, frame.Bounds().Min.Y).RGBA()
	if r>>8 != 255 {
		return nil
	}
	return []detector.Detection{{Box: facematch.Box{X0: 4, Y0: 4, X1: 20, Y1: 20}, Confidence: 0.93}}
}

// greenEmbedder maps a crop's green channel onto an angle in [0, pi].
type greenEmbedder struct{}

func (greenEmbedder) Embed(_ context.Context, face image.Image) ([]float32, error) {
	_, g, _, _ := face.At(face.Bounds().Min.X, face.Bounds().Min.Y).RGBA()
	angle := float64(g>>8) / 255 * math.Pi
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}, nil
}

// testConfig creates a config rooted in a temp dir
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()
	cfg := config.Defaults()
	cfg.Data.Dir = filepath.Join(root, "data")
	cfg.Data.CropsDir = filepath.Join(root, "data", "crops")
	cfg.Store.Path = filepath.Join(root, "data", "embeddings.gob")
	return cfg
}

// newTestService creates a service over the fake models
func newTestService(t *testing.T, cfg *config.Config) *service.Service {
	t.Helper()
	svc, err := service.New(context.Background(), cfg, zap.NewNop(), service.Components{
		Detector: redDetector{},
		Embedder: greenEmbedder{},
		Backend:  database.NewFileBackend(cfg.Store.Path),
	})
	if err != nil {
		t.Fatalf("failed to create service: %v", err)
	}
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func solid(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 32, 32))
	for y := range 32 {
		for x := range 32 {
			img.Set(x, y, c)
		}
	}
	return img
}

// writePhoto stores a solid-color raw photo for subject
func writePhoto(t *testing.T, cfg *config.Config, subject, name string, c color.RGBA) {
	t.Helper()
	if err := imaging.WritePNG(filepath.Join(cfg.Data.Dir, subject, name), solid(c)); err != nil {
		t.Fatalf("failed to write photo: %v", err)
	}
}

// dataURL encodes img as a PNG data URL
func dataURL(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("failed to encode png: %v", err)
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
}

// jsonRequest creates a request with a JSON body
func jsonRequest(t *testing.T, method, path string, body any) *http.Request {
	t.Helper()
	var payload []byte
	switch b := body.(type) {
	case string:
		payload = []byte(b)
	case nil:
	default:
		var err error
		if payload, err = json.Marshal(b); err != nil {
			t.Fatalf("failed to marshal body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, strings.NewReader(string(payload)))
	req.Header.Set("Content-Type", "application/json")
	return req
}

// requestWithChiParams creates a request with chi URL parameters
func requestWithChiParams(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// parseJSONResponse parses a JSON response body into the target type
func parseJSONResponse(t *testing.T, recorder *httptest.ResponseRecorder, target any) {
	t.Helper()
	if err := json.Unmarshal(recorder.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to parse JSON response: %v\nBody: %s", err, recorder.Body.String())
	}
}

// assertStatusCode checks if the response has the expected status code
func assertStatusCode(t *testing.T, recorder *httptest.ResponseRecorder, expected int) {
	t.Helper()
	if recorder.Code != expected {
		t.Errorf("expected status %d, got %d\nBody: %s", expected, recorder.Code, recorder.Body.String())
	}
}

// assertContentType checks if the response has the expected content type
func assertContentType(t *testing.T, recorder *httptest.ResponseRecorder, expected string) {
	t.Helper()
	ct := recorder.Header().Get("Content-Type")
	if ct != expected {
		t.Errorf("expected Content-Type '%s', got '%s'", expected, ct)
	}
}

// assertJSONError checks if the response is a JSON error with the expected message
func assertJSONError(t *testing.T, recorder *httptest.ResponseRecorder, expectedMessage string) {
	t.Helper()
	var result map[string]string
	if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
		t.Fatalf("failed to parse error response: %v\nBody: %s", err, recorder.Body.String())
	}
	if result["error"] != expectedMessage {
		t.Errorf("expected error '%s', got '%s'", expectedMessage, result["error"])
	}
}
