package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"

	jobhandler "github.com/aliskhannn/imageforge/internal/api/handlers/job"
	"github.com/aliskhannn/imageforge/internal/api/router"
	"github.com/aliskhannn/imageforge/internal/api/server"
	"github.com/aliskhannn/imageforge/internal/archive"
	"github.com/aliskhannn/imageforge/internal/broadcast"
	"github.com/aliskhannn/imageforge/internal/config"
	"github.com/aliskhannn/imageforge/internal/executor"
	"github.com/aliskhannn/imageforge/internal/exiftool"
	"github.com/aliskhannn/imageforge/internal/infra/kafka/consumer"
	"github.com/aliskhannn/imageforge/internal/infra/kafka/producer"
	batchmsg "github.com/aliskhannn/imageforge/internal/kafka/handlers/batch"
	"github.com/aliskhannn/imageforge/internal/magick"
	"github.com/aliskhannn/imageforge/internal/metadata"
	"github.com/aliskhannn/imageforge/internal/orchestrator"
	"github.com/aliskhannn/imageforge/internal/planner"
	batchsvc "github.com/aliskhannn/imageforge/internal/service/batch"
	"github.com/aliskhannn/imageforge/internal/settings"
	"github.com/aliskhannn/imageforge/internal/stats"
	"github.com/aliskhannn/imageforge/internal/storage/file"
	"github.com/aliskhannn/imageforge/internal/ws"
)

func main() {
	// Context & signals: used for graceful shutdown on system interrupts.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Initialize logger and load application configuration.
	zlog.Init()
	cfg := config.MustLoad("./config/config.yml")

	if err := os.MkdirAll(cfg.Worker.WorkDir, 0o755); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to create work directory")
	}

	// Retry strategy for Kafka and Redis side-effect calls.
	strategy := retry.Strategy{
		Attempts: cfg.Retry.Attempts,
		Delay:    cfg.Retry.Delay,
		Backoff:  cfg.Retry.Backoff,
	}

	// Connect to Redis: configuration provider and statistics sink.
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		zlog.Logger.Fatal().Err(err).Msg("failed to connect to redis")
	}

	provider := settings.NewProvider(rdb)
	sink := stats.NewSink(rdb, strategy)

	// Optional archive object storage (MinIO).
	var store *file.Storage
	if cfg.Storage.Enable {
		var err error
		store, err = file.NewStorage(ctx, cfg.Storage.Endpoint, cfg.Storage.AccessKey, cfg.Storage.SecretKey, cfg.Storage.BucketName, cfg.Storage.UseSSL)
		if err != nil {
			zlog.Logger.Fatal().Err(err).Msg("failed to connect to storage")
		}
	}

	// Kafka producer: batch submissions and finished-archive announcements.
	p := producer.New(&cfg.Kafka, strategy)

	// Pipeline components.
	ingest := archive.NewIngestor(cfg.Worker.WorkDir)
	exec := executor.New(magick.New(cfg.Tools.Magick), exiftool.New(cfg.Tools.Exiftool))
	broadcaster := broadcast.New()

	deps := orchestrator.Deps{
		Ingestor:    ingest,
		Planner:     planner.New(nil),
		Synthesizer: metadata.New(nil),
		Executor:    exec,
		Provider:    provider,
		Sink:        sink,
		Broadcast:   broadcaster,
		Notifier:    p,
	}
	if store != nil {
		deps.Store = store
	}
	orch := orchestrator.New(cfg.Worker.WorkDir, deps, nil)

	// Service layer and transports.
	service := batchsvc.NewService(orch, p)
	submittedHandler := batchmsg.NewSubmittedHandler(service)
	bridge := ws.NewBridge(broadcaster)
	handler := jobhandler.NewHandler(service, bridge, nil)
	if store != nil {
		handler = jobhandler.NewHandler(service, bridge, store)
	}

	// Kafka consumer for processing submitted batch jobs.
	c := consumer.New(&cfg.Kafka, strategy, submittedHandler)

	// Start Kafka consumer in a separate goroutine.
	var wg sync.WaitGroup
	wg.Add(1)
	go c.Consume(ctx, &wg)

	// Start HTTP server in a separate goroutine.
	r := router.Setup(handler)
	s := server.New(cfg.Server.HTTPPort, r)
	go func() {
		if err := s.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zlog.Logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	// Block until context is canceled (SIGINT/SIGTERM).
	<-ctx.Done()
	zlog.Logger.Info().Msg("context done")

	// Wait for Kafka consumer goroutine to finish.
	wg.Wait()

	// Graceful shutdown with timeout for HTTP server.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	zlog.Logger.Info().Msg("shutting down server")
	if err := s.Shutdown(shutdownCtx); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to shutdown server")
	}
	if errors.Is(shutdownCtx.Err(), context.DeadlineExceeded) {
		zlog.Logger.Info().Msg("timeout exceeded, forcing shutdown")
	}

	// Close Kafka producer and consumer clients.
	if err := p.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka producer clients")
	}
	if err := c.Client.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close kafka consumer client")
	}

	// Close the Redis client.
	if err := rdb.Close(); err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to close redis client")
	}
}
