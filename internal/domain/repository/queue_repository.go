package repository

import "context"

// QueueRepository accepts one serialized entry at a time.
type QueueRepository interface {
	Put(ctx context.Context, body []byte) error
	Close() error
}
