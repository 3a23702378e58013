package producer

import (
	"context"
	"encoding/json"
	"fmt"

	wbfkafka "github.com/wb-go/wbf/kafka"
	"github.com/wb-go/wbf/retry"

	"github.com/aliskhannn/imageforge/internal/config"
	"github.com/aliskhannn/imageforge/internal/model"
)

// Producer publishes batch requests on the submission topic and
// finished-archive announcements on the ready topic.
type Producer struct {
	Submit   *wbfkafka.Producer
	Ready    *wbfkafka.Producer
	strategy retry.Strategy
	cfg      *config.Kafka
}

// New creates a new Producer.
// - cfg: Kafka configuration struct
// - s: retry strategy
func New(
	cfg *config.Kafka,
	s retry.Strategy,
) *Producer {
	return &Producer{
		Submit:   wbfkafka.NewProducer(cfg.Brokers, cfg.SubmitTopic),
		Ready:    wbfkafka.NewProducer(cfg.Brokers, cfg.ReadyTopic),
		cfg:      cfg,
		strategy: s,
	}
}

// Enqueue serializes a batch request and sends it to the submission
// topic. The job ID is used as the message key for partitioning.
func (p *Producer) Enqueue(ctx context.Context, req model.BatchRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to marshal batch request: %v", err)
	}

	key := []byte(req.JobID.String())

	if err = p.Submit.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send batch request: %v", err)
	}

	return nil
}

// Announce serializes a finished-archive record and sends it to the
// ready topic for the delivery plumbing.
func (p *Producer) Announce(ctx context.Context, ready model.ArchiveReady) error {
	data, err := json.Marshal(ready)
	if err != nil {
		return fmt.Errorf("failed to marshal archive announcement: %v", err)
	}

	key := []byte(ready.JobID.String())

	if err = p.Ready.SendWithRetry(ctx, p.strategy, key, data); err != nil {
		return fmt.Errorf("failed to send archive announcement: %v", err)
	}

	return nil
}

// Close closes both underlying producer clients.
func (p *Producer) Close() error {
	if err := p.Submit.Close(); err != nil {
		return err
	}
	return p.Ready.Close()
}
