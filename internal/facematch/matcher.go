// Package facematch provides face matching utilities shared between the pipelines,
// the CLI and the web handlers.
package facematch

import (
	"math"

	"github.com/kozaktomas/face-recognizer/internal/constants"
	"github.com/kozaktomas/face-recognizer/internal/database"
)

// Match is the outcome of classifying one probe embedding.
type Match struct {
	Label    string  // enrolled label, or constants.UnknownLabel
	Distance float64 // cosine distance to the nearest entry, +Inf for an empty store
	Index    int     // position of the nearest entry in store order, -1 when none
	Matched  bool    // true when Distance is strictly below the threshold
}

// Matcher classifies embeddings by linear nearest-neighbor scan under a cosine
// distance threshold.
type Matcher struct {
	threshold float64
}

// NewMatcher creates a matcher. A non-positive threshold falls back to
// constants.DefaultDistanceThreshold.
func NewMatcher(threshold float64) *Matcher {
	if threshold <= 0 {
		threshold = constants.DefaultDistanceThreshold
	}
	return &Matcher{threshold: threshold}
}

// Threshold returns the distance threshold.
func (m *Matcher) Threshold() float64 {
	return m.threshold
}

// Classify scans entries in order and returns the label of the nearest one when
// its distance is strictly below the threshold, otherwise "unknown". Ties resolve
// to the first entry reaching the minimum.
func (m *Matcher) Classify(probe []float32, entries []database.Entry) Match {
	best := Match{
		Label:    constants.UnknownLabel,
		Distance: math.Inf(1),
		Index:    -1,
	}

	for i := range entries {
		d := database.CosineDistance(probe, entries[i].Embedding)
		if d < best.Distance {
			best.Distance = d
			best.Index = i
		}
	}

	if best.Index >= 0 && best.Distance < m.threshold {
		best.Label = entries[best.Index].Label
		best.Matched = true
	}
	return best
}
