// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Detection constants
const (
	// MinDetectionConfidence is the confidence gate: detections below it are never
	// treated as faces by the recognition or enrollment pipelines.
	MinDetectionConfidence = 0.8

	// DefaultCandidateConfidence is the lowest confidence the detector reports at all.
	// Candidates between this and MinDetectionConfidence are visible but never embedded.
	DefaultCandidateConfidence = 0.2

	// DetectorInputSize is the square input resolution of the res10 SSD network.
	DetectorInputSize = 300
)

// Face matching constants
const (
	// DefaultDistanceThreshold is the default maximum cosine distance for face matching.
	// A probe matches only when its distance is strictly below it.
	DefaultDistanceThreshold = 0.5

	// UnknownLabel is returned for faces that do not match any enrolled subject.
	UnknownLabel = "unknown"

	// DefaultCandidateCount is the default number of nearest candidates reported for diagnostics.
	DefaultCandidateCount = 3
)

// Enrollment constants
const (
	// AllSubjects is the enrollment scope that rebuilds the whole store.
	AllSubjects = "all"

	// DetectingShare is the percentage of the progress bar covered by the detecting phase.
	DetectingShare = 50
)

// Remote embedding constants
const (
	// MaxFaceUploadSize caps the longer side of a face crop sent to the embedding server.
	MaxFaceUploadSize = 512
)

// Web constants
const (
	// EventChannelBuffer is the buffer size of SSE listener channels.
	EventChannelBuffer = 100

	// MaxRecognizeBodyBytes limits the size of a recognition request payload.
	MaxRecognizeBodyBytes = 20 << 20
)

// PhotoExtensions lists the raw photo and crop file extensions, lowercase.
var PhotoExtensions = []string{".jpg", ".jpeg", ".png", ".bmp"}

// DetectorMean holds the per-channel (B, G, R) means subtracted by the SSD detector.
var DetectorMean = [3]float64{104.0, 177.0, 123.0}
