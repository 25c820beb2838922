package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"feedqueue/internal/domain/repository"
)

type RedisConfig struct {
	Addr        string
	Password    string
	DB          int
	Key         string
	DialTimeout time.Duration
}

type redisQueue struct {
	client *redis.Client
	key    string
}

// NewRedisQueue pushes each message onto the tail of a Redis list.
func NewRedisQueue(ctx context.Context, cfg RedisConfig) (repository.QueueRepository, error) {
	if cfg.Key == "" {
		return nil, fmt.Errorf("redis queue key is required")
	}
	dialTimeout := cfg.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 5 * time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: dialTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}

	return newRedisQueue(client, cfg.Key), nil
}

func newRedisQueue(client *redis.Client, key string) *redisQueue {
	return &redisQueue{client: client, key: key}
}

func (q *redisQueue) Put(ctx context.Context, body []byte) error {
	if err := q.client.RPush(ctx, q.key, body).Err(); err != nil {
		return fmt.Errorf("failed to push message to %s: %w", q.key, err)
	}
	return nil
}

func (q *redisQueue) Close() error {
	return q.client.Close()
}
