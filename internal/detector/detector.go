// Package detector defines the face detection contract shared by the recognition
// and enrollment pipelines.
package detector

import (
	"image"
	"sync"

	"github.com/kozaktomas/face-recognizer/internal/facematch"
)

// Detection is one candidate face region on a frame.
type Detection struct {
	Box        facematch.Box `json:"box"`
	Confidence float64       `json:"confidence"`
}

// Detector finds face regions on a decoded frame. Results are in network output
// order with boxes in original frame pixels. An empty or malformed frame yields no
// detections. Implementations may return candidates below the confidence gate.
type Detector interface {
	Detect(frame image.Image) []Detection
}

// Exclusive serializes access to a Detector whose model is not safe for concurrent
// inference. The lock is held for a single Detect call only.
type Exclusive struct {
	mu    sync.Mutex
	inner Detector
}

// NewExclusive wraps d.
func NewExclusive(d Detector) *Exclusive {
	return &Exclusive{inner: d}
}

// Detect runs the wrapped detector under the lock.
func (e *Exclusive) Detect(frame image.Image) []Detection {
	if frame == nil {
		return nil
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inner.Detect(frame)
}

// Gate keeps detections with confidence >= minConfidence and a non-degenerate box,
// preserving order.
func Gate(dets []Detection, minConfidence float64) []Detection {
	result := make([]Detection, 0, len(dets))
	for _, d := range dets {
		if d.Confidence >= minConfidence && !d.Box.Empty() {
			result = append(result, d)
		}
	}
	return result
}

// Best returns the highest-confidence detection passing the gate. Ties go to the
// earliest detection.
func Best(dets []Detection, minConfidence float64) (Detection, bool) {
	var best Detection
	found := false
	for _, d := range Gate(dets, minConfidence) {
		if !found || d.Confidence > best.Confidence {
			best = d
			found = true
		}
	}
	return best, found
}
