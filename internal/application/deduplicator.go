package application

import (
	"context"

	"go.uber.org/zap"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
	"feedqueue/internal/infrastructure/metrics"
)

// Deduplicator filters feed entries down to the ones the history has not
// seen and records them.
type Deduplicator struct {
	history repository.HistoryRepository
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewDeduplicator(history repository.HistoryRepository, logger *zap.Logger, m *metrics.Metrics) *Deduplicator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Deduplicator{
		history: history,
		logger:  logger,
		metrics: m,
	}
}

// ProcessEntries returns the entries of feedID that were not seen before, in
// input order, after recording and saving them. Nothing is saved when there
// are no new entries. When the save fails the batch is taken back out of the
// history, so a later call offers the same entries again.
func (d *Deduplicator) ProcessEntries(ctx context.Context, feedID string, entries []*entity.FeedEntry) ([]*entity.FeedEntry, error) {
	var newEntries []*entity.FeedEntry

	for i, entry := range entries {
		if err := entry.Validate(); err != nil {
			d.logger.Warn("Skipping malformed entry",
				zap.String("feed", feedID),
				zap.Int("index", i),
				zap.Error(err),
			)
			d.metrics.EntrySkipped(metrics.ReasonMalformed)
			continue
		}
		if d.history.Contains(feedID, entry.ID) {
			d.metrics.EntrySkipped(metrics.ReasonDuplicate)
			continue
		}
		newEntries = append(newEntries, entry)
	}

	if len(newEntries) == 0 {
		return nil, nil
	}

	for _, entry := range newEntries {
		d.history.AddEntry(feedID, entry.ID, entry.Published)
	}

	err := d.history.Save(ctx)
	d.metrics.HistorySaved(err)
	if err != nil {
		for _, entry := range newEntries {
			d.history.RemoveEntry(feedID, entry.ID)
		}
		return nil, err
	}

	d.metrics.EntriesNew(len(newEntries))
	return newEntries, nil
}
