package repository

import (
	"context"
	"errors"
	"time"

	"feedqueue/internal/domain/entity"
)

var (
	// ErrStorageNotFound means no history has been persisted yet.
	ErrStorageNotFound = errors.New("history storage not found")
	// ErrStorageCorrupt means persisted history could not be decoded or failed validation.
	ErrStorageCorrupt = errors.New("history storage corrupt")
	// ErrStorageIO covers any other failure reading persisted history.
	ErrStorageIO = errors.New("history storage I/O error")
	// ErrPersist wraps failures writing history.
	ErrPersist = errors.New("failed to persist history")
)

// HistoryRepository answers membership questions about seen entries and
// records new ones. Save persists every recorded entry. RemoveEntry undoes
// an AddEntry whose batch could not be saved.
type HistoryRepository interface {
	Contains(feedID, entryID string) bool
	AddEntry(feedID, entryID string, published time.Time)
	RemoveEntry(feedID, entryID string)
	Save(ctx context.Context) error
}

// HistoryBackend is the persistence medium behind a history store.
// Load returns ErrStorageNotFound when nothing has been stored yet.
type HistoryBackend interface {
	Load(ctx context.Context) (entity.History, error)
	Store(ctx context.Context, history entity.History) error
	Close() error
}
