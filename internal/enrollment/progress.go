package enrollment

import "time"

// State is the phase of an enrollment job.
type State string

const (
	StateIdle      State = "idle"
	StateDetecting State = "detecting"
	StateEmbedding State = "embedding"
	StateComplete  State = "complete"
	StateFailed    State = "failed"
)

// Terminal reports whether the job has finished.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateFailed
}

// SkippedItem records a photo or crop that produced nothing.
type SkippedItem struct {
	Subject string `json:"subject"`
	File    string `json:"file"`
	Reason  string `json:"reason"`
}

// Progress is an immutable snapshot of the current or last enrollment job.
// A new value is published on every change; readers never see a partial update.
type Progress struct {
	JobID           string        `json:"job_id,omitempty"`
	Scope           string        `json:"scope,omitempty"`
	State           State         `json:"phase"`
	TotalImages     int           `json:"total_images"`
	ProcessedImages int           `json:"processed_images"`
	TotalCrops      int           `json:"total_crops"`
	EmbeddedCrops   int           `json:"embedded_crops"`
	Percent         float64       `json:"progress"`
	StatusMessage   string        `json:"status_message"`
	Running         bool          `json:"running"`
	TotalSaved      int           `json:"total_saved"`
	Skipped         []SkippedItem `json:"skipped"`
	StartedAt       *time.Time    `json:"started_at,omitempty"`
	FinishedAt      *time.Time    `json:"finished_at,omitempty"`
}

func idleProgress() *Progress {
	return &Progress{State: StateIdle, StatusMessage: "idle", Skipped: []SkippedItem{}}
}
