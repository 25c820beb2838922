package storage

import (
	"context"
	"sync"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
)

// MemoryBackend keeps the last stored history in process memory.
type MemoryBackend struct {
	mu      sync.RWMutex
	history entity.History
	stores  int
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{}
}

func (b *MemoryBackend) Load(ctx context.Context) (entity.History, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.history == nil {
		return nil, repository.ErrStorageNotFound
	}
	return b.history.Clone(), nil
}

func (b *MemoryBackend) Store(ctx context.Context, history entity.History) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = history.Clone()
	b.stores++
	return nil
}

// Stores returns how many times Store has been called.
func (b *MemoryBackend) Stores() int {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return b.stores
}

func (b *MemoryBackend) Close() error {
	return nil
}
