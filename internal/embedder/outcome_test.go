package embedder

import (
	"context"
	"errors"
	"image"
	"strings"
	"testing"
)

type fakeEmbedder struct {
	emb []float32
	err error
}

func (f fakeEmbedder) Embed(context.Context, image.Image) ([]float32, error) {
	return f.emb, f.err
}

func TestCheckCrop(t *testing.T) {
	if err := CheckCrop(nil); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for nil, got %v", err)
	}
	if err := CheckCrop(image.NewRGBA(image.Rect(0, 0, 0, 10))); !errors.Is(err, ErrEmptyInput) {
		t.Errorf("expected ErrEmptyInput for zero width, got %v", err)
	}
	if err := CheckCrop(image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Errorf("expected no error, got %v", err)
	}
}

func TestAttempt(t *testing.T) {
	face := image.NewRGBA(image.Rect(0, 0, 4, 4))

	tests := []struct {
		name       string
		embedder   Embedder
		face       image.Image
		wantSkip   bool
		wantReason string
	}{
		{name: "ok", embedder: fakeEmbedder{emb: []float32{1, 2}}, face: face},
		{name: "empty crop", embedder: fakeEmbedder{emb: []float32{1}}, face: image.NewRGBA(image.Rectangle{}), wantSkip: true, wantReason: "empty face crop"},
		{name: "failure", embedder: fakeEmbedder{err: &FailureError{Reason: "corrupt"}}, face: face, wantSkip: true, wantReason: "corrupt"},
		{name: "empty vector", embedder: fakeEmbedder{}, face: face, wantSkip: true, wantReason: "empty vector"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Attempt(context.Background(), tt.embedder, tt.face)
			if got.Skipped() != tt.wantSkip {
				t.Fatalf("expected skipped=%v, got %+v", tt.wantSkip, got)
			}
			if tt.wantSkip && !strings.Contains(got.SkipReason, tt.wantReason) {
				t.Errorf("expected reason containing %q, got %q", tt.wantReason, got.SkipReason)
			}
			if !tt.wantSkip && len(got.Embedding) != 2 {
				t.Errorf("expected embedding, got %+v", got)
			}
		})
	}
}

func TestFailureError(t *testing.T) {
	inner := errors.New("boom")
	err := &FailureError{Reason: "request failed", Err: inner}

	if !errors.Is(err, inner) {
		t.Error("expected FailureError to unwrap")
	}
	if err.Error() != "embedding failed: request failed: boom" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if (&FailureError{Reason: "x"}).Error() != "embedding failed: x" {
		t.Error("unexpected message without cause")
	}
}
