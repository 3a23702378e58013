package model

import "github.com/google/uuid"

// ProgressEvent is one message in a job's progress stream. A terminal
// event (Complete set or Error non-empty) ends the stream for that job.
type ProgressEvent struct {
	JobID      uuid.UUID `json:"job_id"`
	Progress   int       `json:"progress"`
	Message    string    `json:"message,omitempty"`
	Error      string    `json:"error,omitempty"`
	Complete   bool      `json:"complete,omitempty"`
	OutputPath string    `json:"output_path,omitempty"`
}

// Terminal reports whether the event ends the job's stream.
func (e ProgressEvent) Terminal() bool {
	return e.Complete || e.Error != ""
}
