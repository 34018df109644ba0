package jobs

import (
	"time"

	"citron/subtitle"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Terminal reports whether no further transition is permitted from s.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Job is one unit of tracked transcription work. Jobs are only mutated
// through the Store's transition methods; everything handed out is a
// snapshot.
type Job struct {
	ID          string
	Status      Status
	CreatedAt   time.Time
	CompletedAt *time.Time
	Result      *Result
	Error       string
}

// Result is the recognition output stored on a completed job. It
// serializes as the API's `{"result": [...]}` payload.
type Result struct {
	Segments []ResultSegment `json:"result"`
}

type ResultSegment struct {
	Text      string                  `json:"text"`
	Timestamp []subtitle.TimeInterval `json:"timestamp"`
	SRT       string                  `json:"srt,omitempty"`
}
