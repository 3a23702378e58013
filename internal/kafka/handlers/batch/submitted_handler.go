package batch

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/wb-go/wbf/zlog"

	"github.com/aliskhannn/imageforge/internal/model"
)

// service defines the interface for running submitted batch jobs.
type service interface {
	Run(ctx context.Context, req model.BatchRequest)
}

// SubmittedHandler handles queue messages for submitted batch jobs.
// Each job runs on its own goroutine so a long batch never blocks the
// consumer loop or other jobs' progress streams.
type SubmittedHandler struct {
	service service
}

// NewSubmittedHandler creates a new handler with the given service.
func NewSubmittedHandler(s service) *SubmittedHandler {
	return &SubmittedHandler{service: s}
}

// Handle unmarshals a submitted batch request and dispatches it.
func (h *SubmittedHandler) Handle(ctx context.Context, msg kafka.Message) error {
	var req model.BatchRequest
	if err := json.Unmarshal(msg.Value, &req); err != nil {
		return fmt.Errorf("unmarshal batch request: %w", err)
	}

	zlog.Logger.Info().
		Str("job", req.JobID.String()).
		Int("archives", len(req.ArchivePaths)).
		Msg("batch request received")

	go h.service.Run(ctx, req)

	return nil
}
