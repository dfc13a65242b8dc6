// Package opencv implements the detector and embedder on top of the OpenCV DNN
// module. It is the only package that links against OpenCV.
package opencv

import (
	"errors"
	"fmt"
	"image"
	"os"

	"gocv.io/x/gocv"
)

// ErrModelLoad is returned when a network cannot be read from disk.
var ErrModelLoad = errors.New("model load failure")

// requireFiles checks that every model file exists before handing paths to OpenCV,
// whose readers only report an empty network.
func requireFiles(paths ...string) error {
	for _, p := range paths {
		if p == "" {
			return fmt.Errorf("%w: model path is empty", ErrModelLoad)
		}
		if _, err := os.Stat(p); err != nil {
			return fmt.Errorf("%w: %w", ErrModelLoad, err)
		}
	}
	return nil
}

// scalar converts a B, G, R mean into an OpenCV scalar.
func scalar(mean []float64) gocv.Scalar {
	var v [3]float64
	copy(v[:], mean)
	return gocv.NewScalar(v[0], v[1], v[2], 0)
}

// toMat converts a decoded frame into an 8-bit BGR Mat. The caller closes it.
func toMat(img image.Image) (gocv.Mat, bool) {
	if img == nil || img.Bounds().Empty() {
		return gocv.Mat{}, false
	}
	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return gocv.Mat{}, false
	}
	if mat.Empty() {
		mat.Close()
		return gocv.Mat{}, false
	}
	return mat, true
}

// forwardFloats runs a forward pass and copies the named channel of the output
// blob out of OpenCV memory.
func forwardFloats(net *gocv.Net, blob gocv.Mat, channel bool) ([]float32, error) {
	net.SetInput(blob, "")
	out := net.Forward("")
	defer out.Close()
	if out.Empty() {
		return nil, errors.New("network produced no output")
	}

	src := out
	if channel {
		ch := gocv.GetBlobChannel(out, 0, 0)
		defer ch.Close()
		src = ch
	}

	data, err := src.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("reading network output: %w", err)
	}
	return append([]float32(nil), data...), nil
}
