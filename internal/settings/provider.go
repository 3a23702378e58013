package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const configKey = "transform:config"

// Provider reads the current transformation settings from Redis.
// Callers are expected to read one snapshot per job and hold on to it;
// the stored value may change between jobs but never mid-job.
type Provider struct {
	client *redis.Client
}

// NewProvider creates a Provider over the given Redis client.
func NewProvider(client *redis.Client) *Provider {
	return &Provider{client: client}
}

// Get returns the stored configuration, or Default() when none is stored.
func (p *Provider) Get(ctx context.Context) (TransformationConfig, error) {
	raw, err := p.client.Get(ctx, configKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Default(), nil
		}

		return TransformationConfig{}, fmt.Errorf("get config: %w", err)
	}

	var cfg TransformationConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return TransformationConfig{}, fmt.Errorf("unmarshal config: %w", err)
	}

	return cfg, nil
}

// Set stores a new configuration snapshot. Jobs already running keep
// the snapshot they captured at start.
func (p *Provider) Set(ctx context.Context, cfg TransformationConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	if err := p.client.Set(ctx, configKey, raw, 0).Err(); err != nil {
		return fmt.Errorf("set config: %w", err)
	}

	return nil
}
