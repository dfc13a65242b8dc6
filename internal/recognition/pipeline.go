// Package recognition labels the faces found on a single frame.
package recognition

import (
	"context"
	"image"

	"go.uber.org/zap"

	"github.com/kozaktomas/face-recognizer/internal/database"
	"github.com/kozaktomas/face-recognizer/internal/detector"
	"github.com/kozaktomas/face-recognizer/internal/embedder"
	"github.com/kozaktomas/face-recognizer/internal/facematch"
	"github.com/kozaktomas/face-recognizer/internal/imaging"
)

// Result is one labeled face. Confidence is the detector confidence.
type Result struct {
	Label      string        `json:"name"`
	Confidence float64       `json:"confidence"`
	Box        facematch.Box `json:"box"`
	Distance   float64       `json:"-"`
}

// CandidateResult lists the nearest enrolled entries for one detected face.
type CandidateResult struct {
	Result
	Candidates []database.Candidate `json:"candidates"`
}

// SnapshotSource provides the current store view.
type SnapshotSource interface {
	Snapshot() *database.Snapshot
}

// NearestSource answers approximate top-k queries.
type NearestSource interface {
	Nearest(probe []float32, k int) ([]database.Candidate, error)
}

// Pipeline runs detect, embed and match for one frame. It holds no state of its
// own across calls.
type Pipeline struct {
	detector      detector.Detector
	embedder      embedder.Embedder
	store         SnapshotSource
	matcher       *facematch.Matcher
	minConfidence float64
	log           *zap.Logger
}

// NewPipeline creates a recognition pipeline. The detector should already be
// wrapped in detector.Exclusive when the model is shared.
func NewPipeline(det detector.Detector, emb embedder.Embedder, store SnapshotSource, matcher *facematch.Matcher, minConfidence float64, log *zap.Logger) *Pipeline {
	return &Pipeline{
		detector:      det,
		embedder:      emb,
		store:         store,
		matcher:       matcher,
		minConfidence: minConfidence,
		log:           log,
	}
}

// Recognize returns one result per detection passing the confidence gate, in
// detector order. Faces that cannot be embedded are omitted.
func (p *Pipeline) Recognize(ctx context.Context, frame image.Image) []Result {
	results := []Result{}
	if frame == nil || frame.Bounds().Empty() {
		return results
	}

	// One view per frame so every face is matched against the same store state.
	snap := p.store.Snapshot()

	p.eachFace(ctx, frame, func(det detector.Detection, emb []float32) {
		if snap.Len() > 0 && len(emb) != snap.Dim() {
			p.log.Warn("skipping face with unexpected embedding length",
				zap.Stringer("box", det.Box),
				zap.Int("expected", snap.Dim()),
				zap.Int("actual", len(emb)))
			return
		}
		m := p.matcher.Classify(emb, snap.Entries())
		results = append(results, Result{
			Label:      m.Label,
			Confidence: det.Confidence,
			Box:        det.Box,
			Distance:   m.Distance,
		})
	})
	return results
}

// Candidates returns, per gated detection, the label and the k nearest enrolled
// entries from the candidate index.
func (p *Pipeline) Candidates(ctx context.Context, frame image.Image, nearest NearestSource, k int) []CandidateResult {
	results := []CandidateResult{}
	if frame == nil || frame.Bounds().Empty() {
		return results
	}
	snap := p.store.Snapshot()

	p.eachFace(ctx, frame, func(det detector.Detection, emb []float32) {
		m := p.matcher.Classify(emb, snap.Entries())
		cands, err := nearest.Nearest(emb, k)
		if err != nil {
			p.log.Warn("candidate search failed", zap.Stringer("box", det.Box), zap.Error(err))
			return
		}
		results = append(results, CandidateResult{
			Result:     Result{Label: m.Label, Confidence: det.Confidence, Box: det.Box, Distance: m.Distance},
			Candidates: cands,
		})
	})
	return results
}

// eachFace detects once, gates, crops and embeds each face, calling fn for the
// ones that produced an embedding. It stops early when ctx is done.
func (p *Pipeline) eachFace(ctx context.Context, frame image.Image, fn func(detector.Detection, []float32)) {
	dets := detector.Gate(p.detector.Detect(frame), p.minConfidence)

	for _, det := range dets {
		if ctx.Err() != nil {
			return
		}

		// Boxes are relative to the frame origin.
		crop := imaging.Crop(frame, det.Box.Rect())
		out := embedder.Attempt(ctx, p.embedder, crop)
		if out.Skipped() {
			p.log.Debug("skipping face", zap.Stringer("box", det.Box), zap.String("reason", out.SkipReason))
			continue
		}
		fn(det, out.Embedding)
	}
}
