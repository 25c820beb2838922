package queue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"feedqueue/internal/domain/repository"
)

const (
	DefaultMaxPermits     = 3
	DefaultRefillInterval = 10 * time.Second
)

type WebhookConfig struct {
	URL            string
	Token          string
	ContentType    string
	MaxPermits     int
	RefillInterval time.Duration
	Timeout        time.Duration
	Client         *http.Client
}

type webhookQueue struct {
	url         string
	token       string
	contentType string
	client      *http.Client
	rateLimiter *rateLimiter
}

// NewWebhookQueue POSTs each message body to an HTTP endpoint, throttled by
// a token bucket.
func NewWebhookQueue(cfg WebhookConfig) (repository.QueueRepository, error) {
	target := strings.TrimSpace(cfg.URL)
	if target == "" {
		return nil, fmt.Errorf("webhook url is required")
	}
	if !strings.HasPrefix(target, "http://") && !strings.HasPrefix(target, "https://") {
		target = "https://" + target
	}

	maxPermits := cfg.MaxPermits
	if maxPermits <= 0 {
		maxPermits = DefaultMaxPermits
	}
	refillInterval := cfg.RefillInterval
	if refillInterval <= 0 {
		refillInterval = DefaultRefillInterval
	}
	client := cfg.Client
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	contentType := cfg.ContentType
	if contentType == "" {
		contentType = "application/yaml"
	}

	return &webhookQueue{
		url:         target,
		token:       cfg.Token,
		contentType: contentType,
		client:      client,
		rateLimiter: newRateLimiter(maxPermits, refillInterval),
	}, nil
}

func (q *webhookQueue) Put(ctx context.Context, body []byte) error {
	if err := q.rateLimiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter error: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, q.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", q.contentType)
	if q.token != "" {
		req.Header.Set("Authorization", "Bearer "+q.token)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send message to webhook: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned non-success status: %d", resp.StatusCode)
	}

	return nil
}

func (q *webhookQueue) Close() error {
	q.client.CloseIdleConnections()
	return nil
}
