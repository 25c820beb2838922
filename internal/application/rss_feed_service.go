package application

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
	"feedqueue/internal/infrastructure/metrics"
	"feedqueue/internal/infrastructure/queue"
)

const DefaultConcurrency = 4

type Options struct {
	// Concurrency bounds the number of feeds fetched in parallel.
	Concurrency int
	Now         func() time.Time
}

// Summary counts the outcome of one pass over all feeds.
type Summary struct {
	Feeds           int
	FailedFeeds     int
	Fetched         int
	New             int
	Published       int
	PublishFailures int
}

type FeedService struct {
	feeds       repository.FeedRepository
	dedup       *Deduplicator
	queue       repository.QueueRepository
	codec       queue.Codec
	logger      *zap.Logger
	metrics     *metrics.Metrics
	concurrency int
	now         func() time.Time
}

func NewFeedService(
	feeds repository.FeedRepository,
	dedup *Deduplicator,
	queueRepo repository.QueueRepository,
	codec queue.Codec,
	logger *zap.Logger,
	m *metrics.Metrics,
	opts Options,
) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	concurrency := opts.Concurrency
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	return &FeedService{
		feeds:       feeds,
		dedup:       dedup,
		queue:       queueRepo,
		codec:       codec,
		logger:      logger,
		metrics:     m,
		concurrency: concurrency,
		now:         now,
	}
}

// ProcessFeed fetches one feed and enqueues its new entries. It returns the
// number of messages put on the queue.
func (s *FeedService) ProcessFeed(ctx context.Context, feedURL string) (int, error) {
	entries, err := s.feeds.Fetch(ctx, feedURL)
	if err != nil {
		s.metrics.FetchFailed()
		return 0, fmt.Errorf("failed to fetch RSS feed [%s]: %w", feedURL, err)
	}

	var summary Summary
	if err := s.handleEntries(ctx, feedURL, entries, &summary); err != nil {
		return summary.Published, err
	}
	return summary.Published, nil
}

type fetchResult struct {
	entries []*entity.FeedEntry
	err     error
}

// ProcessAllFeeds fetches the feeds concurrently, then deduplicates and
// publishes them one at a time in the given order. A feed that fails to
// fetch is skipped; a persistence failure aborts the pass.
func (s *FeedService) ProcessAllFeeds(ctx context.Context, feedURLs []string) (Summary, error) {
	start := s.now()
	summary := Summary{Feeds: len(feedURLs)}

	results := make([]fetchResult, len(feedURLs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, feedURL := range feedURLs {
		i, feedURL := i, feedURL
		g.Go(func() error {
			entries, err := s.feeds.Fetch(gctx, feedURL)
			results[i] = fetchResult{entries: entries, err: err}
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return summary, err
	}

	for i, feedURL := range feedURLs {
		if err := ctx.Err(); err != nil {
			return summary, err
		}

		res := results[i]
		if res.err != nil {
			summary.FailedFeeds++
			s.metrics.FetchFailed()
			s.logger.Error("RSS processing error",
				zap.String("feed", feedURL),
				zap.Error(res.err),
			)
			continue
		}

		if err := s.handleEntries(ctx, feedURL, res.entries, &summary); err != nil {
			return summary, err
		}
	}

	end := s.now()
	s.metrics.PassCompleted(start, end)
	s.logger.Info("Finished processing feeds",
		zap.Int("feeds", summary.Feeds),
		zap.Int("failed_feeds", summary.FailedFeeds),
		zap.Int("new", summary.New),
		zap.Int("published", summary.Published),
		zap.Duration("elapsed", end.Sub(start)),
	)
	return summary, nil
}

func (s *FeedService) handleEntries(ctx context.Context, feedURL string, entries []*entity.FeedEntry, summary *Summary) error {
	summary.Fetched += len(entries)
	s.metrics.EntriesFetched(len(entries))

	if len(entries) == 0 {
		s.logger.Debug("No entries found", zap.String("feed", feedURL))
		return nil
	}

	newEntries, err := s.dedup.ProcessEntries(ctx, feedURL, entries)
	if err != nil {
		return fmt.Errorf("failed to record entries of [%s]: %w", feedURL, err)
	}
	summary.New += len(newEntries)

	for _, entry := range newEntries {
		if err := ctx.Err(); err != nil {
			return err
		}

		msg := entity.NewMessageFromEntry(feedURL, entry, s.now())
		body, err := s.codec.Encode(msg)
		if err == nil {
			err = s.queue.Put(ctx, body)
		}
		if err != nil {
			summary.PublishFailures++
			s.metrics.PublishFailed()
			s.logger.Warn("Failed to enqueue entry",
				zap.String("feed", feedURL),
				zap.String("entry", entry.ID),
				zap.Error(err),
			)
			continue
		}

		summary.Published++
		s.metrics.Published()
		s.logger.Debug("Enqueued entry",
			zap.String("feed", feedURL),
			zap.String("entry", entry.ID),
			zap.String("title", entry.Title),
		)
	}

	if len(newEntries) > 0 {
		s.logger.Info("Processed new entries",
			zap.String("feed", feedURL),
			zap.Int("count", len(newEntries)),
		)
	}
	return nil
}
