package opencv

import (
	"context"
	"fmt"
	"image"
	"sync"

	"gocv.io/x/gocv"

	"github.com/kozaktomas/face-recognizer/internal/config"
	"github.com/kozaktomas/face-recognizer/internal/embedder"
)

// DNNEmbedder computes face embeddings with an OpenCV-readable network
// (OpenFace .t7, ONNX, ...). Calls are serialized on the network.
type DNNEmbedder struct {
	mu        sync.Mutex
	net       gocv.Net
	inputSize int
	scale     float64
	mean      gocv.Scalar
	swapRB    bool
	dim       int
}

// NewDNNEmbedder loads the embedding network. A missing or unreadable model is a
// fatal ErrModelLoad.
func NewDNNEmbedder(cfg config.EmbedderConfig) (*DNNEmbedder, error) {
	if err := requireFiles(cfg.Model); err != nil {
		return nil, err
	}

	net := gocv.ReadNet(cfg.Model, "")
	if net.Empty() {
		_ = net.Close()
		return nil, fmt.Errorf("%w: cannot read embedding model %s", ErrModelLoad, cfg.Model)
	}

	return &DNNEmbedder{
		net:       net,
		inputSize: cfg.InputSize,
		scale:     cfg.Scale,
		mean:      scalar(cfg.Mean),
		swapRB:    cfg.SwapRB,
		dim:       cfg.Dim,
	}, nil
}

// Embed resizes the crop to the network input and returns the output vector.
func (e *DNNEmbedder) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	if err := embedder.CheckCrop(face); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	mat, ok := toMat(face)
	if !ok {
		return nil, &embedder.FailureError{Reason: "cannot convert crop"}
	}
	defer mat.Close()

	blob := gocv.BlobFromImage(mat, e.scale, image.Pt(e.inputSize, e.inputSize), e.mean, e.swapRB, false)
	defer blob.Close()

	e.mu.Lock()
	vec, err := forwardFloats(&e.net, blob, false)
	e.mu.Unlock()
	if err != nil {
		return nil, &embedder.FailureError{Reason: "inference", Err: err}
	}
	if e.dim > 0 && len(vec) != e.dim {
		return nil, &embedder.FailureError{Reason: fmt.Sprintf("expected %d values, got %d", e.dim, len(vec))}
	}
	return vec, nil
}

// Close releases the network.
func (e *DNNEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.net.Close()
}
