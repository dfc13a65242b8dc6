package opencv

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/detector"
)

// SSDDetector runs the res10 300x300 Caffe SSD face detector.
// It is not safe for concurrent use; wrap it in detector.Exclusive.
type SSDDetector struct {
	net       gocv.Net
	inputSize int
	mean      gocv.Scalar
	floor     float64
}

// NewSSDDetector loads the Caffe network. A missing or unreadable model is a
// fatal ErrModelLoad.
func NewSSDDetector(cfg config.DetectorConfig) (*SSDDetector, error) {
	if err := requireFiles(cfg.Prototxt, cfg.Model); err != nil {
		return nil, err
	}

	net := gocv.ReadNetFromCaffe(cfg.Prototxt, cfg.Model)
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("%w: cannot read caffe model %s", ErrModelLoad, cfg.Model)
	}

	return &SSDDetector{
		net:       net,
		inputSize: cfg.InputSize,
		mean:      scalar(cfg.Mean),
		floor:     cfg.CandidateConfidence,
	}, nil
}

// Detect resizes the frame to the network input, runs one forward pass and maps
// boxes back to the original frame. Malformed frames yield no detections.
func (d *SSDDetector) Detect(frame image.Image) []detector.Detection {
	mat, ok := toMat(frame)
	if !ok {
		return nil
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, 1.0, image.Pt(d.inputSize, d.inputSize), d.mean, false, false)
	defer blob.Close()

	raw, err := forwardFloats(&d.net, blob, true)
	if err != nil {
		return nil
	}
	return detector.DecodeSSD(raw, mat.Cols(), mat.Rows(), d.floor)
}

// Close releases the network.
func (d *SSDDetector) Close() error {
	return d.net.Close()
}
