package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"feedqueue/internal/application"
	"feedqueue/internal/domain/repository"
	"feedqueue/internal/infrastructure/logging"
	"feedqueue/internal/infrastructure/metrics"
	"feedqueue/internal/infrastructure/queue"
	"feedqueue/internal/infrastructure/rss"
	"feedqueue/internal/infrastructure/storage"
	"feedqueue/internal/interfaces/config"
)

// app holds the wired components for one process.
type app struct {
	logger      *zap.Logger
	closeLogger func()
	registry    *prometheus.Registry
	metrics     *metrics.Metrics
	history     *storage.HistoryStore
	queue       repository.QueueRepository
	service     *application.FeedService
}

func newLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	logger, closeLogger, err := logging.New(logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		File:   cfg.LogFile,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return logger, closeLogger, nil
}

func openHistoryBackend(cfg *config.Config) (repository.HistoryBackend, error) {
	switch cfg.HistoryBackend {
	case config.HistoryBackendFile:
		return storage.NewFileBackend(cfg.HistoryPath)
	case config.HistoryBackendSQLite:
		return storage.NewSQLiteBackend(cfg.HistoryPath)
	case config.HistoryBackendMemory:
		return storage.NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown history backend: %s", cfg.HistoryBackend)
	}
}

func openHistory(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*storage.HistoryStore, error) {
	backend, err := openHistoryBackend(cfg)
	if err != nil {
		return nil, err
	}

	store, err := storage.NewHistoryStore(ctx, backend, storage.Options{
		EntryCount: cfg.HistoryEntryCount,
		DaysToKeep: cfg.HistoryDaysToKeep,
		Logger:     logger,
	})
	if err != nil {
		backend.Close()
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return store, nil
}

func openQueue(ctx context.Context, cfg *config.Config, codec queue.Codec, out io.Writer) (repository.QueueRepository, error) {
	switch cfg.QueueBackend {
	case config.QueueBackendRedis:
		return queue.NewRedisQueue(ctx, queue.RedisConfig{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.QueueName,
		})
	case config.QueueBackendWebhook:
		return queue.NewWebhookQueue(queue.WebhookConfig{
			URL:            cfg.WebhookURL,
			Token:          cfg.WebhookToken,
			ContentType:    codec.ContentType(),
			MaxPermits:     cfg.MaxPermits,
			RefillInterval: cfg.GetRefillInterval(),
		})
	case config.QueueBackendStdout:
		return queue.NewWriterQueue(out), nil
	default:
		return nil, fmt.Errorf("unknown queue backend: %s", cfg.QueueBackend)
	}
}

// newApp wires every component from cfg. out receives messages when the
// stdout queue is selected.
func newApp(ctx context.Context, cfg *config.Config, out io.Writer) (*app, error) {
	logger, closeLogger, err := newLogger(cfg)
	if err != nil {
		return nil, err
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(registry)

	codec, err := queue.NewCodec(cfg.MessageFormat)
	if err != nil {
		closeLogger()
		return nil, err
	}

	history, err := openHistory(ctx, cfg, logger)
	if err != nil {
		closeLogger()
		return nil, err
	}

	q, err := openQueue(ctx, cfg, codec, out)
	if err != nil {
		history.Close()
		closeLogger()
		return nil, err
	}

	feeds := rss.NewFeedRepository(rss.Options{
		Timeout:    cfg.GetFetchTimeout(),
		UserAgent:  cfg.UserAgent,
		Retries:    cfg.FetchRetries,
		RetryDelay: time.Second,
	})

	service := application.NewFeedService(
		feeds,
		application.NewDeduplicator(history, logger, m),
		q,
		codec,
		logger,
		m,
		application.Options{Concurrency: cfg.FetchConcurrency},
	)

	return &app{
		logger:      logger,
		closeLogger: closeLogger,
		registry:    registry,
		metrics:     m,
		history:     history,
		queue:       q,
		service:     service,
	}, nil
}

// runPass processes every feed once. Only a persistence failure is returned;
// other problems are logged by the service.
func (a *app) runPass(ctx context.Context, feeds []string) error {
	if len(feeds) == 0 {
		a.logger.Warn("No feeds configured, skipping pass")
		return nil
	}

	a.logger.Info("Fetching RSS feeds...", zap.Int("feeds", len(feeds)))
	if _, err := a.service.ProcessAllFeeds(ctx, feeds); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}

func (a *app) Close() error {
	err := errors.Join(a.queue.Close(), a.history.Close())
	a.closeLogger()
	return err
}
