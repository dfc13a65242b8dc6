package embedder

import (
	"context"
	"errors"
	"image"
)

// Outcome is the result of embedding one face: either Ok with an embedding or
// Skip with a reason. Pipelines aggregate outcomes instead of aborting on failure.
type Outcome struct {
	Embedding  []float32
	SkipReason string
}

// Ok wraps a successful embedding.
func Ok(embedding []float32) Outcome {
	return Outcome{Embedding: embedding}
}

// Skip records why a face produced no embedding.
func Skip(reason string) Outcome {
	return Outcome{SkipReason: reason}
}

// Skipped reports whether the outcome carries no embedding.
func (o Outcome) Skipped() bool {
	return o.Embedding == nil
}

// Attempt embeds face and folds every per-item failure into a Skip. Context
// cancellation is reported as a skip as well; callers check ctx themselves.
func Attempt(ctx context.Context, e Embedder, face image.Image) Outcome {
	if err := CheckCrop(face); err != nil {
		return Skip(err.Error())
	}

	emb, err := e.Embed(ctx, face)
	switch {
	case errors.Is(err, ErrEmptyInput):
		return Skip(ErrEmptyInput.Error())
	case err != nil:
		return Skip(err.Error())
	case len(emb) == 0:
		return Skip("embedder returned an empty vector")
	}
	return Ok(emb)
}
