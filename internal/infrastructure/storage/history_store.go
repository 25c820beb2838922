package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
)

const (
	DefaultEntryCount = 50
	DefaultDaysToKeep = 30
)

type Options struct {
	// EntryCount is the per-feed record count above which pruning kicks in.
	// Zero selects DefaultEntryCount.
	EntryCount int
	// DaysToKeep is the age in whole days a record may reach before it
	// becomes eligible for pruning.
	DaysToKeep int
	// Now overrides the wall clock used by the pruning pass.
	Now    func() time.Time
	Logger *zap.Logger
}

// HistoryStore keeps the seen-entry history in memory and writes it to a
// backend on Save. It is the only owner of the history it loads.
type HistoryStore struct {
	mu      sync.Mutex
	backend repository.HistoryBackend
	history entity.History
	logger  *zap.Logger
}

var _ repository.HistoryRepository = (*HistoryStore)(nil)

// NewHistoryStore loads prior history from backend and runs one pruning
// pass. A missing history starts empty; any other load failure is returned.
func NewHistoryStore(ctx context.Context, backend repository.HistoryBackend, opts Options) (*HistoryStore, error) {
	if backend == nil {
		return nil, fmt.Errorf("history backend is required")
	}
	entryCount := opts.EntryCount
	if entryCount == 0 {
		entryCount = DefaultEntryCount
	}
	if entryCount < 0 {
		return nil, fmt.Errorf("entry count must be positive, got %d", opts.EntryCount)
	}
	if opts.DaysToKeep < 0 {
		return nil, fmt.Errorf("days to keep must be >= 0, got %d", opts.DaysToKeep)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	history, err := backend.Load(ctx)
	switch {
	case errors.Is(err, repository.ErrStorageNotFound):
		logger.Info("no history found, starting empty")
		history = entity.NewHistory()
	case err != nil:
		return nil, fmt.Errorf("failed to load history: %w", err)
	case history == nil:
		history = entity.NewHistory()
	}

	if err := history.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", repository.ErrStorageCorrupt, err)
	}

	removed := history.Prune(now(), entryCount, opts.DaysToKeep)
	logger.Info("history loaded",
		zap.Int("feeds", len(history)),
		zap.Int("records", history.Len()),
		zap.Int("pruned", removed),
	)

	return &HistoryStore{
		backend: backend,
		history: history,
		logger:  logger,
	}, nil
}

func (s *HistoryStore) Contains(feedID, entryID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Contains(feedID, entryID)
}

func (s *HistoryStore) AddEntry(feedID, entryID string, published time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Add(feedID, entryID, published)
}

func (s *HistoryStore) RemoveEntry(feedID, entryID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.history.Remove(feedID, entryID)
}

// Save writes the full history to the backend, replacing what was there.
func (s *HistoryStore) Save(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.backend.Store(ctx, s.history); err != nil {
		return fmt.Errorf("%w: %w", repository.ErrPersist, err)
	}
	return nil
}

// Snapshot returns a copy of the current history for inspection.
func (s *HistoryStore) Snapshot() entity.History {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.history.Clone()
}

func (s *HistoryStore) Close() error {
	return s.backend.Close()
}
