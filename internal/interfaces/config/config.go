package config

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	HistoryBackendFile   = "file"
	HistoryBackendSQLite = "sqlite"
	HistoryBackendMemory = "memory"

	QueueBackendRedis   = "redis"
	QueueBackendWebhook = "webhook"
	QueueBackendStdout  = "stdout"
)

type Config struct {
	HistoryBackend    string `envconfig:"HISTORY_BACKEND" default:"file"`
	HistoryPath       string `envconfig:"HISTORY_PATH" default:"feed_history.json"`
	HistoryEntryCount int    `envconfig:"HISTORY_ENTRY_COUNT" default:"50"`
	HistoryDaysToKeep int    `envconfig:"HISTORY_DAYS_TO_KEEP" default:"30"`

	FeedsFile string   `envconfig:"FEEDS_FILE"`
	RSSURL    []string `envconfig:"RSS_URL"`
	// Feeds is every configured locator: RSS_URL_n (or RSS_URL) followed by
	// the feeds file.
	Feeds []string `ignored:"true"`

	QueueBackend  string `envconfig:"QUEUE_BACKEND" default:"redis"`
	QueueName     string `envconfig:"QUEUE_NAME" default:"feedqueue:entries"`
	RedisAddr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
	WebhookURL    string `envconfig:"WEBHOOK_URL"`
	WebhookToken  string `envconfig:"WEBHOOK_TOKEN"`
	MessageFormat string `envconfig:"MESSAGE_FORMAT" default:"yaml"`

	MaxPermits int `envconfig:"MAX_PERMITS" default:"3"`

	RefillInterval int `envconfig:"REFILL_INTERVAL" default:"10"`

	FetchInterval    int    `envconfig:"FETCH_INTERVAL" default:"300"`
	FetchSchedule    string `envconfig:"FETCH_SCHEDULE"`
	FetchTimeout     int    `envconfig:"FETCH_TIMEOUT" default:"30"`
	FetchRetries     int    `envconfig:"FETCH_RETRIES" default:"3"`
	FetchConcurrency int    `envconfig:"FETCH_CONCURRENCY" default:"4"`
	UserAgent        string `envconfig:"USER_AGENT" default:"feedqueue/1.0"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`
	LogFile   string `envconfig:"LOG_FILE"`

	MetricsAddr string `envconfig:"METRICS_ADDR"`
}

// LoadConfig reads envFile (or .env when empty, if present) into the
// environment and processes it. A non-empty feedsFile overrides FEEDS_FILE.
func LoadConfig(envFile, feedsFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			return nil, fmt.Errorf("failed to load env file %s: %w", envFile, err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if feedsFile != "" {
		cfg.FeedsFile = feedsFile
	}

	if rssURLs := loadRSSURLs(); len(rssURLs) > 0 {
		cfg.RSSURL = rssURLs
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.ReloadFeeds(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) Validate() error {
	var errs []error

	switch c.HistoryBackend {
	case HistoryBackendFile, HistoryBackendSQLite, HistoryBackendMemory:
	default:
		errs = append(errs, fmt.Errorf("unknown HISTORY_BACKEND: %s", c.HistoryBackend))
	}
	if c.HistoryBackend != HistoryBackendMemory && strings.TrimSpace(c.HistoryPath) == "" {
		errs = append(errs, errors.New("HISTORY_PATH is required"))
	}
	if c.HistoryEntryCount <= 0 {
		errs = append(errs, fmt.Errorf("HISTORY_ENTRY_COUNT must be positive, got %d", c.HistoryEntryCount))
	}
	if c.HistoryDaysToKeep < 0 {
		errs = append(errs, fmt.Errorf("HISTORY_DAYS_TO_KEEP must not be negative, got %d", c.HistoryDaysToKeep))
	}

	switch c.QueueBackend {
	case QueueBackendRedis:
		if c.QueueName == "" {
			errs = append(errs, errors.New("QUEUE_NAME is required for the redis queue"))
		}
	case QueueBackendWebhook:
		if c.WebhookURL == "" {
			errs = append(errs, errors.New("WEBHOOK_URL is required for the webhook queue"))
		}
	case QueueBackendStdout:
	default:
		errs = append(errs, fmt.Errorf("unknown QUEUE_BACKEND: %s", c.QueueBackend))
	}

	switch strings.ToLower(c.MessageFormat) {
	case "yaml", "json":
	default:
		errs = append(errs, fmt.Errorf("unknown MESSAGE_FORMAT: %s", c.MessageFormat))
	}

	if c.FetchInterval <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_INTERVAL must be positive, got %d", c.FetchInterval))
	}
	if c.FetchConcurrency <= 0 {
		errs = append(errs, fmt.Errorf("FETCH_CONCURRENCY must be positive, got %d", c.FetchConcurrency))
	}

	return errors.Join(errs...)
}

// RequireFeeds fails when no feed locator is configured.
func (c *Config) RequireFeeds() error {
	if len(c.Feeds) == 0 {
		return fmt.Errorf("no RSS URLs configured. Please set RSS_URL, RSS_URL_1, RSS_URL_2, etc. or FEEDS_FILE")
	}
	return nil
}

// ReloadFeeds rebuilds Feeds from the environment URLs and the feeds file.
func (c *Config) ReloadFeeds() error {
	feeds := append([]string(nil), c.RSSURL...)

	if c.FeedsFile != "" {
		fromFile, err := LoadFeedsFile(c.FeedsFile)
		if err != nil {
			return err
		}
		feeds = append(feeds, fromFile...)
	}

	c.Feeds = uniqueLocators(feeds)
	return nil
}

func loadRSSURLs() []string {
	var urls []string

	for i := 1; ; i++ {
		url := os.Getenv(fmt.Sprintf("RSS_URL_%d", i))
		if url == "" {
			break
		}
		urls = append(urls, url)
	}

	return urls
}

// LoadFeedsFile reads one feed locator per line. Blank lines and lines
// starting with # are ignored.
func LoadFeedsFile(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open feeds file: %w", err)
	}
	defer f.Close()

	return parseFeeds(f)
}

func parseFeeds(r io.Reader) ([]string, error) {
	var feeds []string

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		feeds = append(feeds, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read feeds file: %w", err)
	}

	return feeds, nil
}

func uniqueLocators(locators []string) []string {
	seen := make(map[string]struct{}, len(locators))
	out := make([]string, 0, len(locators))
	for _, l := range locators {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

func (c *Config) GetFetchInterval() time.Duration {
	return time.Duration(c.FetchInterval) * time.Second
}

func (c *Config) GetRefillInterval() time.Duration {
	return time.Duration(c.RefillInterval) * time.Second
}

func (c *Config) GetFetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeout) * time.Second
}
