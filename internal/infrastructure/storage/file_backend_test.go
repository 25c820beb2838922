package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
)

func TestFileBackend_MissingFileIsNotFound(t *testing.T) {
	backend, err := NewFileBackend(filepath.Join(t.TempDir(), "history.json"))
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	_, err = backend.Load(context.Background())
	if !errors.Is(err, repository.ErrStorageNotFound) {
		t.Errorf("expected ErrStorageNotFound, got %v", err)
	}
}

func TestFileBackend_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "history.json")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	ctx := context.Background()

	published := time.Date(2012, 1, 12, 23, 59, 59, 987654321, time.FixedZone("CET", 3600))
	history := entity.NewHistory()
	history.Add("foo", "link1", published)
	history.Add("bar", "link1", published.Add(-time.Hour))

	if err := backend.Store(ctx, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := loaded["foo"]["link1"]; !got.Equal(published) {
		t.Errorf("expected %v, got %v", published, got)
	}
	if got := loaded["bar"]["link1"]; !got.Equal(published.Add(-time.Hour)) {
		t.Errorf("expected %v, got %v", published.Add(-time.Hour), got)
	}
}

func TestFileBackend_CorruptContents(t *testing.T) {
	testCases := []struct {
		name string
		body string
	}{
		{"empty file", ""},
		{"whitespace only", "  \n"},
		{"not json", "this is not json"},
		{"wrong shape", `{"version":1,"feeds":["a","b"]}`},
		{"bad timestamp", `{"version":1,"feeds":{"foo":{"1":"yesterday"}}}`},
		{"unknown field", `{"version":1,"feeds":{},"extra":true}`},
		{"unknown version", `{"version":99,"feeds":{}}`},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "history.json")
			if err := os.WriteFile(path, []byte(tc.body), 0o644); err != nil {
				t.Fatalf("failed to write fixture: %v", err)
			}
			backend, err := NewFileBackend(path)
			if err != nil {
				t.Fatalf("failed to create backend: %v", err)
			}

			_, err = backend.Load(context.Background())
			if !errors.Is(err, repository.ErrStorageCorrupt) {
				t.Errorf("expected ErrStorageCorrupt, got %v", err)
			}
		})
	}
}

func TestFileBackend_ReadErrorIsIOError(t *testing.T) {
	backend, err := NewFileBackend(t.TempDir())
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	_, err = backend.Load(context.Background())
	if !errors.Is(err, repository.ErrStorageIO) {
		t.Errorf("expected ErrStorageIO, got %v", err)
	}
}

func TestFileBackend_FailedStoreLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	target := filepath.Join(dir, "history.json")
	if err := os.Mkdir(target, 0o755); err != nil {
		t.Fatalf("failed to create blocking directory: %v", err)
	}
	if err := os.WriteFile(filepath.Join(target, "keep"), []byte("x"), 0o644); err != nil {
		t.Fatalf("failed to populate blocking directory: %v", err)
	}

	backend, err := NewFileBackend(target)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}

	history := entity.NewHistory()
	history.Add("foo", "1", time.Now())
	if err := backend.Store(context.Background(), history); err == nil {
		t.Fatal("expected store to fail when the target is a directory")
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("failed to read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("temp file %s left behind", e.Name())
		}
	}
}

func TestFileBackend_StrayTempFileIsIgnored(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "history.json")
	backend, err := NewFileBackend(path)
	if err != nil {
		t.Fatalf("failed to create backend: %v", err)
	}
	ctx := context.Background()

	history := entity.NewHistory()
	history.Add("foo", "1", time.Now())
	if err := backend.Store(ctx, history); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// A crash mid-write leaves a half-written temp file next to the target.
	stray := filepath.Join(dir, ".history.json.123.tmp")
	if err := os.WriteFile(stray, []byte(`{"version":1,"fe`), 0o644); err != nil {
		t.Fatalf("failed to write stray file: %v", err)
	}

	loaded, err := backend.Load(ctx)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !loaded.Contains("foo", "1") {
		t.Error("expected previous history to be intact")
	}
}
