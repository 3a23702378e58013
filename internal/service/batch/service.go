package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

// ErrJobNotFound is returned when no job with the requested id is known.
var ErrJobNotFound = errors.New("job not found")

// orchestrator drives batch jobs and tracks their snapshots.
type orchestrator interface {
	CreateJob() model.ProcessingJob
	Job(id uuid.UUID) (model.ProcessingJob, bool)
	Run(ctx context.Context, req model.BatchRequest)
}

// producer enqueues batch requests for asynchronous processing.
type producer interface {
	Enqueue(ctx context.Context, req model.BatchRequest) error
}

// Service provides the business logic for batch jobs: submission
// registers a job and enqueues it; the queue consumer later calls Run.
type Service struct {
	orchestrator orchestrator
	producer     producer
}

// NewService creates a Service over the given orchestrator and producer.
func NewService(o orchestrator, p producer) *Service {
	return &Service{orchestrator: o, producer: p}
}

// Submit registers a new job for the given source archives and enqueues
// it. Returns the pending job snapshot.
func (s *Service) Submit(ctx context.Context, archivePaths []string, numFolders int) (model.ProcessingJob, error) {
	if len(archivePaths) == 0 {
		return model.ProcessingJob{}, fmt.Errorf("submit: no source archives given")
	}

	job := s.orchestrator.CreateJob()

	req := model.BatchRequest{
		JobID:        job.ID,
		ArchivePaths: archivePaths,
		NumFolders:   numFolders,
	}
	if err := s.producer.Enqueue(ctx, req); err != nil {
		return model.ProcessingJob{}, fmt.Errorf("submit: failed to enqueue batch: %w", err)
	}

	zlog.Logger.Info().
		Str("job", job.ID.String()).
		Int("archives", len(archivePaths)).
		Msg("batch submitted")

	return job, nil
}

// Job returns the snapshot of one job.
func (s *Service) Job(id uuid.UUID) (model.ProcessingJob, error) {
	job, ok := s.orchestrator.Job(id)
	if !ok {
		return model.ProcessingJob{}, ErrJobNotFound
	}

	return job, nil
}

// Run executes one dequeued batch request on the caller's goroutine.
func (s *Service) Run(ctx context.Context, req model.BatchRequest) {
	s.orchestrator.Run(ctx, req)
}
