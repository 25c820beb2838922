package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
)

const fileFormatVersion = 1

type fileDocument struct {
	Version int                             `json:"version"`
	Feeds   map[string]map[string]time.Time `json:"feeds"`
}

type fileBackend struct {
	path string
}

// NewFileBackend stores history as a JSON document at path.
func NewFileBackend(path string) (repository.HistoryBackend, error) {
	if path == "" {
		return nil, fmt.Errorf("history file path is required")
	}
	return &fileBackend{path: path}, nil
}

func (b *fileBackend) Load(ctx context.Context) (entity.History, error) {
	data, err := os.ReadFile(b.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, repository.ErrStorageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", repository.ErrStorageIO, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, fmt.Errorf("%w: %s is empty", repository.ErrStorageCorrupt, b.path)
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()

	var doc fileDocument
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: failed to decode %s: %v", repository.ErrStorageCorrupt, b.path, err)
	}
	if doc.Version != fileFormatVersion {
		return nil, fmt.Errorf("%w: unsupported version %d in %s", repository.ErrStorageCorrupt, doc.Version, b.path)
	}

	history := make(entity.History, len(doc.Feeds))
	for feedID, entries := range doc.Feeds {
		feed := make(entity.FeedHistory, len(entries))
		for id, published := range entries {
			feed[id] = published
		}
		history[feedID] = feed
	}
	return history, nil
}

// Store writes to a temporary file next to the target and renames it into
// place, so a failed write leaves the previous document intact.
func (b *fileBackend) Store(ctx context.Context, history entity.History) error {
	doc := fileDocument{
		Version: fileFormatVersion,
		Feeds:   make(map[string]map[string]time.Time, len(history)),
	}
	for feedID, feed := range history {
		doc.Feeds[feedID] = map[string]time.Time(feed)
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode history: %w", err)
	}

	dir := filepath.Dir(b.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(b.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to write history: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("failed to sync history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("failed to close history: %w", err)
	}
	if err := os.Rename(tmpPath, b.path); err != nil {
		cleanup()
		return fmt.Errorf("failed to replace history file: %w", err)
	}

	return nil
}

func (b *fileBackend) Close() error {
	return nil
}
