package embedder

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
)

const faceJPEGQuality = 90

// embeddingResponse is the JSON body returned by the embedding server.
type embeddingResponse struct {
	Dim       int       `json:"dim"`
	Embedding []float32 `json:"embedding"`
	Model     string    `json:"model"`
}

// Remote computes embeddings with an HTTP embedding server that accepts a
// multipart image upload on /embed/image.
type Remote struct {
	client *resty.Client
	dim    int
}

// NewRemote creates a client for the server at baseURL. When dim is positive,
// responses with a different embedding length are rejected.
func NewRemote(baseURL string, timeout time.Duration, dim int) *Remote {
	client := resty.New().
		SetBaseURL(strings.TrimSuffix(baseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Remote{client: client, dim: dim}
}

// Embed uploads the crop as JPEG and returns the server's embedding.
func (r *Remote) Embed(ctx context.Context, face image.Image) ([]float32, error) {
	if err := CheckCrop(face); err != nil {
		return nil, err
	}

	data, err := imaging.EncodeJPEG(imaging.Fit(face, constants.MaxFaceUploadSize), faceJPEGQuality)
	if err != nil {
		return nil, &FailureError{Reason: "encoding face", Err: err}
	}

	var result embeddingResponse
	resp, err := r.client.R().
		SetContext(ctx).
		SetFileReader("file", "face.jpg", bytes.NewReader(data)).
		SetResult(&result).
		Post("/embed/image")
	if err != nil {
		return nil, &FailureError{Reason: "request failed", Err: err}
	}
	if resp.IsError() {
		return nil, &FailureError{Reason: fmt.Sprintf("server returned status %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))}
	}

	if len(result.Embedding) == 0 {
		return nil, &FailureError{Reason: "server returned no embedding"}
	}
	if result.Dim != 0 && result.Dim != len(result.Embedding) {
		return nil, &FailureError{Reason: fmt.Sprintf("server reported dim %d but sent %d values", result.Dim, len(result.Embedding))}
	}
	if r.dim > 0 && len(result.Embedding) != r.dim {
		return nil, &FailureError{Reason: fmt.Sprintf("expected %d values, got %d", r.dim, len(result.Embedding))}
	}
	return result.Embedding, nil
}
