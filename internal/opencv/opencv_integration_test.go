//go:build integration

package opencv

import (
	"context"
	"errors"
	"image"
	"image/color"
	"os"
	"testing"

	"github.com/kozaktomas/face-recognizer/internal/config"
)

func requireModels(t *testing.T, paths ...string) {
	t.Helper()
	for _, p := range paths {
		if _, err := os.Stat(p); err != nil {
			t.Skipf("model file %s not available: %v", p, err)
		}
	}
}

func TestNewSSDDetector_MissingModel(t *testing.T) {
	cfg := config.Defaults().Detector
	cfg.Model = "does-not-exist.caffemodel"

	if _, err := NewSSDDetector(cfg); !errors.Is(err, ErrModelLoad) {
		t.Fatalf("expected ErrModelLoad, got %v", err)
	}
}

func TestSSDDetector_BlankFrame(t *testing.T) {
	cfg := config.Defaults().Detector
	requireModels(t, cfg.Prototxt, cfg.Model)

	d, err := NewSSDDetector(cfg)
	if err != nil {
		t.Fatalf("loading detector: %v", err)
	}
	defer d.Close()

	frame := image.NewRGBA(image.Rect(0, 0, 640, 480))
	for y := range 480 {
		for x := range 640 {
			frame.Set(x, y, color.RGBA{R: 200, G: 200, B: 200, A: 255})
		}
	}

	for _, det := range d.Detect(frame) {
		if det.Confidence >= cfg.MinConfidence {
			t.Errorf("unexpected face on a blank frame: %+v", det)
		}
		if det.Box.X1 > 640 || det.Box.Y1 > 480 || det.Box.X0 < 0 || det.Box.Y0 < 0 {
			t.Errorf("box outside frame: %v", det.Box)
		}
	}

	if got := d.Detect(image.NewRGBA(image.Rectangle{})); got != nil {
		t.Errorf("expected no detections for an empty frame, got %+v", got)
	}
}

func TestDNNEmbedder_Embed(t *testing.T) {
	cfg := config.Defaults().Embedder
	requireModels(t, cfg.Model)

	e, err := NewDNNEmbedder(cfg)
	if err != nil {
		t.Fatalf("loading embedder: %v", err)
	}
	defer e.Close()

	face := image.NewRGBA(image.Rect(0, 0, 120, 140))
	for y := range 140 {
		for x := range 120 {
			face.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 90, A: 255})
		}
	}

	emb, err := e.Embed(context.Background(), face)
	if err != nil {
		t.Fatalf("embedding failed: %v", err)
	}
	if cfg.Dim > 0 && len(emb) != cfg.Dim {
		t.Errorf("expected %d values, got %d", cfg.Dim, len(emb))
	}
}
