// Package embedder defines the face embedding contract and its per-item outcomes.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"image"
)

// ErrEmptyInput is returned for a crop with zero width or height.
var ErrEmptyInput = errors.New("empty face crop")

// FailureError is a recoverable per-image inference failure.
type FailureError struct {
	Reason string
	Err    error
}

func (e *FailureError) Error() string {
	if e.Err == nil {
		return "embedding failed: " + e.Reason
	}
	return fmt.Sprintf("embedding failed: %s: %v", e.Reason, e.Err)
}

func (e *FailureError) Unwrap() error {
	return e.Err
}

// Embedder converts a cropped face into a fixed-length vector. Implementations
// resize and normalize the crop to their own input size.
type Embedder interface {
	Embed(ctx context.Context, face image.Image) ([]float32, error)
}

// CheckCrop returns ErrEmptyInput when face has no pixels.
func CheckCrop(face image.Image) error {
	if face == nil || face.Bounds().Empty() {
		return ErrEmptyInput
	}
	return nil
}
