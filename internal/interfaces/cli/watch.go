package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"feedqueue/internal/domain/repository"
	"feedqueue/internal/interfaces/config"
)

func newWatchCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Process feeds on an interval or cron schedule until stopped",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.RequireFeeds(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, cfg, cmd.OutOrStdout())
			if err != nil {
				return err
			}
			defer a.Close()

			return watch(ctx, cfg, a)
		},
	}
}

func watch(ctx context.Context, cfg *config.Config, a *app) error {
	triggers, stopTriggers, err := newTrigger(cfg.FetchSchedule, cfg.GetFetchInterval())
	if err != nil {
		return err
	}
	defer stopTriggers()

	var reloads <-chan struct{}
	if cfg.FeedsFile != "" {
		reloads, err = watchFeedsFile(ctx, cfg.FeedsFile, a.logger)
		if err != nil {
			return err
		}
	}

	if cfg.MetricsAddr != "" {
		srv := startMetricsServer(cfg.MetricsAddr, a.registry, a.logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if cfg.FetchSchedule != "" {
		a.logger.Info("RSS fetch schedule", zap.String("cron", cfg.FetchSchedule))
	} else {
		a.logger.Info("RSS fetch interval", zap.Duration("interval", cfg.GetFetchInterval()))
	}
	a.metrics.FeedsConfigured(len(cfg.Feeds))

	if err := a.runPass(ctx, cfg.Feeds); err != nil {
		return stopOnPassError(a.logger, err)
	}

	for {
		select {
		case <-ctx.Done():
			a.logger.Info("Shutting down...")
			return nil
		case <-reloads:
			if err := cfg.ReloadFeeds(); err != nil {
				a.logger.Warn("Failed to reload feeds file, keeping previous feeds", zap.Error(err))
				continue
			}
			a.metrics.FeedsConfigured(len(cfg.Feeds))
			a.logger.Info("Reloaded feeds file", zap.Int("feeds", len(cfg.Feeds)))
		case <-triggers:
			if err := a.runPass(ctx, cfg.Feeds); err != nil {
				return stopOnPassError(a.logger, err)
			}
		}
	}
}

// stopOnPassError ends the watch loop. The history on disk is the last good
// state; a restart reloads it.
func stopOnPassError(logger *zap.Logger, err error) error {
	if errors.Is(err, repository.ErrPersist) {
		logger.Error("Failed to persist history, stopping", zap.Error(err))
	} else {
		logger.Error("RSS processing error, stopping", zap.Error(err))
	}
	return err
}

// newTrigger fires on the cron schedule when one is given and on the
// interval otherwise.
func newTrigger(schedule string, interval time.Duration) (<-chan time.Time, func(), error) {
	if schedule == "" {
		if interval <= 0 {
			return nil, nil, fmt.Errorf("fetch interval must be positive, got %v", interval)
		}
		ticker := time.NewTicker(interval)
		return ticker.C, ticker.Stop, nil
	}

	ticks := make(chan time.Time, 1)
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		select {
		case ticks <- time.Now():
		default:
		}
	})
	if err != nil {
		return nil, nil, fmt.Errorf("invalid FETCH_SCHEDULE %q: %w", schedule, err)
	}
	c.Start()

	return ticks, func() { <-c.Stop().Done() }, nil
}

// watchFeedsFile signals whenever path is written or recreated. The parent
// directory is watched so editors that replace the file are noticed.
func watchFeedsFile(ctx context.Context, path string, logger *zap.Logger) (<-chan struct{}, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve feeds file: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch feeds file: %w", err)
	}

	changes := make(chan struct{}, 1)
	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != abs {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				select {
				case changes <- struct{}{}:
				default:
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Feeds file watcher error", zap.Error(err))
			}
		}
	}()

	return changes, nil
}

func startMetricsServer(addr string, registry *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("Serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("Metrics server stopped", zap.Error(err))
		}
	}()

	return srv
}
