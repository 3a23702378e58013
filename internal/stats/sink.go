package stats

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
)

const (
	keyImagesProcessed     = "stats:images_processed"
	keyFailed              = "stats:failed"
	keyArchivesSent        = "stats:archives_sent"
	keyTotalSourceArchives = "stats:total_source_archives"
	keyActivityLog         = "activity:log"
)

// ActivityRecord is one entry of the service activity log.
type ActivityRecord struct {
	Action    string    `json:"action"`
	Details   string    `json:"details,omitempty"`
	Status    string    `json:"status"`
	Filename  string    `json:"filename,omitempty"`
	Size      int64     `json:"size,omitempty"`
	User      string    `json:"user,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Sink records processing statistics in Redis. All counter updates are
// single atomic commands, so concurrent jobs may share one Sink.
type Sink struct {
	client   *redis.Client
	strategy retry.Strategy
}

// NewSink creates a Sink over the given Redis client.
func NewSink(client *redis.Client, s retry.Strategy) *Sink {
	return &Sink{client: client, strategy: s}
}

// IncrementProcessed adds n to the processed-image counter.
func (s *Sink) IncrementProcessed(ctx context.Context, n int) error {
	return s.do(ctx, func() error {
		return s.client.IncrBy(ctx, keyImagesProcessed, int64(n)).Err()
	})
}

// IncrementFailed bumps the failed-job counter.
func (s *Sink) IncrementFailed(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.client.Incr(ctx, keyFailed).Err()
	})
}

// IncrementSent bumps the sent-archive counter.
func (s *Sink) IncrementSent(ctx context.Context) error {
	return s.do(ctx, func() error {
		return s.client.Incr(ctx, keyArchivesSent).Err()
	})
}

// SetTotalSourceArchives records the number of source archives known
// to the service.
func (s *Sink) SetTotalSourceArchives(ctx context.Context, n int) error {
	return s.do(ctx, func() error {
		return s.client.Set(ctx, keyTotalSourceArchives, n, 0).Err()
	})
}

// RecordActivity appends an activity record to the activity log.
func (s *Sink) RecordActivity(ctx context.Context, rec ActivityRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}

	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal activity record: %w", err)
	}

	return s.do(ctx, func() error {
		return s.client.LPush(ctx, keyActivityLog, raw).Err()
	})
}

// do runs one Redis command with the configured retry strategy.
// Statistics are best-effort: callers log failures and move on.
func (s *Sink) do(ctx context.Context, fn func() error) error {
	err := retry.Do(fn, s.strategy)
	if err != nil {
		zlog.Logger.Err(err).Msg("stats update failed")
	}

	return err
}
