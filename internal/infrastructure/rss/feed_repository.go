package rss

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"feedqueue/internal/domain/entity"
	"feedqueue/internal/domain/repository"
	"feedqueue/internal/infrastructure/html"
	"feedqueue/internal/infrastructure/retry"

	"github.com/mmcdole/gofeed"
)

const maxFeedBytes = int64(10 * 1024 * 1024)

type Options struct {
	Timeout   time.Duration
	UserAgent string
	// Retries is the number of attempts per HTTP request.
	Retries int
	// RetryDelay is the first backoff delay; it doubles per attempt.
	RetryDelay time.Duration
	Client     *http.Client
}

type feedRepository struct {
	parser     *gofeed.Parser
	client     *http.Client
	userAgent  string
	retries    int
	retryDelay time.Duration
	maxBytes   int64
}

func NewFeedRepository(opts Options) repository.FeedRepository {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = "feedqueue/1.0"
	}
	retries := opts.Retries
	if retries <= 0 {
		retries = 3
	}

	return &feedRepository{
		parser:     gofeed.NewParser(),
		client:     client,
		userAgent:  userAgent,
		retries:    retries,
		retryDelay: opts.RetryDelay,
		maxBytes:   maxFeedBytes,
	}
}

// Fetch parses the feed at locator, which is either an http(s) URL or a
// local file path.
func (r *feedRepository) Fetch(ctx context.Context, locator string) ([]*entity.FeedEntry, error) {
	locator = strings.TrimSpace(locator)
	if locator == "" {
		return nil, fmt.Errorf("feed locator is required")
	}

	var (
		feed *gofeed.Feed
		err  error
	)
	if isRemote(locator) {
		feed, err = r.fetchRemote(ctx, locator, true)
	} else {
		feed, err = r.parseFile(locator)
	}
	if err != nil {
		return nil, err
	}

	return toEntries(feed), nil
}

func (r *feedRepository) parseFile(path string) (*gofeed.Feed, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feed file: %w", err)
	}
	defer f.Close()

	feed, err := r.parser.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}
	return feed, nil
}

func (r *feedRepository) fetchRemote(ctx context.Context, feedURL string, discover bool) (*gofeed.Feed, error) {
	body, err := r.get(ctx, feedURL)
	if err != nil {
		return nil, err
	}

	feed, err := r.parser.Parse(bytes.NewReader(body))
	if err == nil {
		return feed, nil
	}
	if !discover || !errors.Is(err, gofeed.ErrFeedTypeNotDetected) {
		return nil, fmt.Errorf("failed to parse RSS feed: %w", err)
	}

	base, _ := url.Parse(feedURL)
	discovered, derr := html.DiscoverFeedURL(bytes.NewReader(body), base)
	if derr != nil {
		return nil, fmt.Errorf("failed to parse RSS feed: %w (discovery: %v)", err, derr)
	}
	return r.fetchRemote(ctx, discovered, false)
}

func (r *feedRepository) get(ctx context.Context, feedURL string) ([]byte, error) {
	var body []byte
	err := retry.Do(ctx, retry.Config{Attempts: r.retries, BaseDelay: r.retryDelay}, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
		if err != nil {
			return retry.Permanent(fmt.Errorf("failed to create request: %w", err))
		}
		req.Header.Set("User-Agent", r.userAgent)

		resp, err := r.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return retry.Permanent(ctx.Err())
			}
			return fmt.Errorf("failed to fetch feed: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= http.StatusInternalServerError || resp.StatusCode == http.StatusTooManyRequests {
			return fmt.Errorf("unexpected status code: %s", resp.Status)
		}
		if resp.StatusCode >= http.StatusBadRequest {
			return retry.Permanent(fmt.Errorf("unexpected status code: %s", resp.Status))
		}

		data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if int64(len(data)) > r.maxBytes {
			return retry.Permanent(fmt.Errorf("feed too large: exceeds %d bytes", r.maxBytes))
		}
		body = data
		return nil
	})
	if err != nil {
		return nil, err
	}
	return body, nil
}

func toEntries(feed *gofeed.Feed) []*entity.FeedEntry {
	entries := make([]*entity.FeedEntry, 0, len(feed.Items))

	for _, item := range feed.Items {
		id := strings.TrimSpace(item.GUID)
		if id == "" {
			id = strings.TrimSpace(item.Link)
		}

		var published time.Time
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.UTC()
		} else if item.UpdatedParsed != nil {
			published = item.UpdatedParsed.UTC()
		}

		entry := entity.NewFeedEntry(id, item.Title, item.Link, item.Description, published)
		entry.Content = item.Content
		entry.Categories = item.Categories
		if item.UpdatedParsed != nil {
			entry.Updated = item.UpdatedParsed.UTC()
		}
		if item.Author != nil {
			entry.Author = item.Author.Name
		}

		entries = append(entries, entry)
	}

	return entries
}

func isRemote(locator string) bool {
	u, err := url.Parse(locator)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
