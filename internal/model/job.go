package model

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus describes the lifecycle state of a processing job.
type JobStatus string

const (
	StatusPending   JobStatus = "pending"
	StatusRunning   JobStatus = "running"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// ProcessingJob represents one batch transformation run over a set of
// source archives. It is mutated only by the orchestrator driving it.
type ProcessingJob struct {
	ID              uuid.UUID `json:"id"`
	Status          JobStatus `json:"status"`
	Progress        int       `json:"progress"` // 0-100, never decreases
	FolderCount     int       `json:"folder_count"`
	ProcessedImages int       `json:"processed_images"`
	ArchivePath     string    `json:"archive_path,omitempty"` // set once completed
	ObjectPath      string    `json:"object_path,omitempty"`  // set when uploaded to object storage
	Error           string    `json:"error,omitempty"`        // set once failed
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// BatchRequest is the queue message that asks the worker to run a batch job.
type BatchRequest struct {
	JobID        uuid.UUID `json:"job_id"`
	ArchivePaths []string  `json:"archive_paths"`
	NumFolders   int       `json:"num_folders,omitempty"` // overrides the configured sample size when > 0
}

// ArchiveReady announces a finished output archive to the delivery plumbing.
type ArchiveReady struct {
	JobID       uuid.UUID `json:"job_id"`
	ArchivePath string    `json:"archive_path"`
	ObjectPath  string    `json:"object_path,omitempty"` // set when uploaded to object storage
	ImageCount  int       `json:"image_count"`
}
