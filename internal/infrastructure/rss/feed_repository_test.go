package rss

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const twoItemFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test Feed</title>
		<item>
			<title>Article 1</title>
			<link>https://example.com/article1</link>
			<description>Description 1</description>
			<guid>guid-1</guid>
			<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
		</item>
		<item>
			<title>Article 2</title>
			<link>https://example.com/article2</link>
			<description>Description 2</description>
			<guid>guid-2</guid>
			<pubDate>Tue, 03 Jan 2006 15:04:05 GMT</pubDate>
		</item>
	</channel>
</rss>`

func serveFeed(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestRepository() *feedRepository {
	return NewFeedRepository(Options{Retries: 3, RetryDelay: time.Millisecond}).(*feedRepository)
}

func TestFeedRepository_Fetch_Success(t *testing.T) {
	server := serveFeed(t, twoItemFeed)

	entries, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}

	if entries[0].Title != "Article 1" {
		t.Errorf("expected title 'Article 1', got '%s'", entries[0].Title)
	}
	if entries[0].Link != "https://example.com/article1" {
		t.Errorf("expected link 'https://example.com/article1', got '%s'", entries[0].Link)
	}
	if entries[0].ID != "guid-1" {
		t.Errorf("expected ID 'guid-1', got '%s'", entries[0].ID)
	}
	want := time.Date(2006, 1, 2, 15, 4, 5, 0, time.UTC)
	if !entries[0].Published.Equal(want) {
		t.Errorf("expected published %v, got %v", want, entries[0].Published)
	}
	if entries[1].ID != "guid-2" {
		t.Errorf("expected document order to be preserved, got '%s' second", entries[1].ID)
	}
}

func TestFeedRepository_Fetch_SendsUserAgent(t *testing.T) {
	var got atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.Store(r.Header.Get("User-Agent"))
		w.Write([]byte(twoItemFeed))
	}))
	defer server.Close()

	repo := NewFeedRepository(Options{UserAgent: "feedqueue-test/2.0"})
	if _, err := repo.Fetch(context.Background(), server.URL); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if ua, _ := got.Load().(string); ua != "feedqueue-test/2.0" {
		t.Errorf("expected user agent 'feedqueue-test/2.0', got '%s'", ua)
	}
}

func TestFeedRepository_Fetch_EmptyGUID(t *testing.T) {
	server := serveFeed(t, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test Feed</title>
		<item>
			<title>Article Without GUID</title>
			<link>https://example.com/article</link>
			<description>Description</description>
			<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
		</item>
	</channel>
</rss>`)

	entries, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	if entries[0].ID != "https://example.com/article" {
		t.Errorf("expected ID to fallback to link 'https://example.com/article', got '%s'", entries[0].ID)
	}
}

func TestFeedRepository_Fetch_AtomUpdatedFallback(t *testing.T) {
	server := serveFeed(t, `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
	<title>Atom Feed</title>
	<id>urn:feed</id>
	<updated>2024-03-01T10:00:00Z</updated>
	<entry>
		<title>Only Updated</title>
		<id>urn:entry:1</id>
		<link href="https://example.com/atom/1"/>
		<updated>2024-03-01T09:00:00+02:00</updated>
	</entry>
</feed>`)

	entries, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}

	want := time.Date(2024, 3, 1, 7, 0, 0, 0, time.UTC)
	if !entries[0].Published.Equal(want) {
		t.Errorf("expected published to fall back to updated %v, got %v", want, entries[0].Published)
	}
	if entries[0].Published.Location() != time.UTC {
		t.Errorf("expected UTC timestamps, got %v", entries[0].Published.Location())
	}
}

func TestFeedRepository_Fetch_NoPubDatePassesThrough(t *testing.T) {
	server := serveFeed(t, `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
	<channel>
		<title>Test Feed</title>
		<item>
			<title>Article With Date</title>
			<link>https://example.com/article1</link>
			<guid>guid-1</guid>
			<pubDate>Mon, 02 Jan 2006 15:04:05 GMT</pubDate>
		</item>
		<item>
			<title>Article Without Date</title>
			<link>https://example.com/article2</link>
			<guid>guid-2</guid>
		</item>
	</channel>
</rss>`)

	entries, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if err := entries[1].Validate(); err == nil {
		t.Error("expected the undated entry to fail validation")
	}
}

func TestFeedRepository_Fetch_LocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "feed.xml")
	if err := os.WriteFile(path, []byte(twoItemFeed), 0o644); err != nil {
		t.Fatalf("failed to write feed file: %v", err)
	}

	entries, err := newTestRepository().Fetch(context.Background(), path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
}

func TestFeedRepository_Fetch_MissingLocalFile(t *testing.T) {
	_, err := newTestRepository().Fetch(context.Background(), filepath.Join(t.TempDir(), "missing.xml"))
	if err == nil {
		t.Error("expected error for missing file, got nil")
	}
}

func TestFeedRepository_Fetch_DiscoversFeedFromHTML(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><head><link rel="alternate" type="application/rss+xml" href="/feed.xml"></head><body>blog</body></html>`))
	})
	mux.HandleFunc("/feed.xml", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(twoItemFeed))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	entries, err := newTestRepository().Fetch(context.Background(), server.URL+"/")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries from the discovered feed, got %d", len(entries))
	}
}

func TestFeedRepository_Fetch_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(twoItemFeed))
	}))
	defer server.Close()

	entries, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Errorf("expected 3 requests, got %d", calls)
	}
}

func TestFeedRepository_Fetch_ClientErrorIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for 404, got nil")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

func TestFeedRepository_Fetch_InvalidXML(t *testing.T) {
	server := serveFeed(t, "invalid xml content")

	_, err := newTestRepository().Fetch(context.Background(), server.URL)
	if err == nil {
		t.Error("expected error for invalid XML, got nil")
	}
}

func TestFeedRepository_Fetch_BodyTooLarge(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(twoItemFeed))
	}))
	defer server.Close()

	repo := newTestRepository()
	repo.maxBytes = 64

	_, err := repo.Fetch(context.Background(), server.URL)
	if err == nil {
		t.Fatal("expected error for oversized feed, got nil")
	}
	if !strings.Contains(err.Error(), "too large") {
		t.Errorf("expected size error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Errorf("expected 1 request, got %d", calls)
	}
}

func TestFeedRepository_Fetch_BodyAtLimit(t *testing.T) {
	server := serveFeed(t, twoItemFeed)

	repo := newTestRepository()
	repo.maxBytes = int64(len(twoItemFeed))

	entries, err := repo.Fetch(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("expected 2 entries, got %d", len(entries))
	}
}

func TestFeedRepository_Fetch_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte("<rss></rss>"))
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newTestRepository().Fetch(ctx, server.URL)
	if err == nil {
		t.Error("expected error for cancelled context, got nil")
	}
}

func TestFeedRepository_Fetch_EmptyLocator(t *testing.T) {
	if _, err := newTestRepository().Fetch(context.Background(), " "); err == nil {
		t.Error("expected error for empty locator, got nil")
	}
}
