package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"feedqueue/internal/domain/entity"
)

type mockFeedRepository struct {
	entries map[string][]*entity.FeedEntry
	errs    map[string]error
}

func (m *mockFeedRepository) Fetch(ctx context.Context, url string) ([]*entity.FeedEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.errs[url]; err != nil {
		return nil, err
	}
	return m.entries[url], nil
}

type mockQueueRepository struct {
	mu     sync.Mutex
	bodies [][]byte
	// failures holds the zero-based Put calls that return an error.
	failures map[int]bool
	calls    int
}

func (m *mockQueueRepository) Put(ctx context.Context, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	call := m.calls
	m.calls++
	if m.failures[call] {
		return errors.New("queue unavailable")
	}
	m.bodies = append(m.bodies, body)
	return nil
}

func (m *mockQueueRepository) Close() error {
	return nil
}

type mockHistoryRepository struct {
	records map[string]map[string]time.Time
	saves   int
	saveErr error
}

func newMockHistoryRepository() *mockHistoryRepository {
	return &mockHistoryRepository{records: make(map[string]map[string]time.Time)}
}

func (m *mockHistoryRepository) Contains(feedID, entryID string) bool {
	_, ok := m.records[feedID][entryID]
	return ok
}

func (m *mockHistoryRepository) AddEntry(feedID, entryID string, published time.Time) {
	if m.records[feedID] == nil {
		m.records[feedID] = make(map[string]time.Time)
	}
	m.records[feedID][entryID] = published
}

func (m *mockHistoryRepository) RemoveEntry(feedID, entryID string) {
	delete(m.records[feedID], entryID)
}

func (m *mockHistoryRepository) Save(ctx context.Context) error {
	m.saves++
	return m.saveErr
}

func newEntry(id string, published time.Time) *entity.FeedEntry {
	return entity.NewFeedEntry(id, "Article "+id, "https://example.tld/"+id, "Desc "+id, published)
}

func entryIDs(entries []*entity.FeedEntry) []string {
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}
