package repository

import (
	"context"

	"feedqueue/internal/domain/entity"
)

// FeedRepository retrieves a feed and returns its entries in document order.
type FeedRepository interface {
	Fetch(ctx context.Context, locator string) ([]*entity.FeedEntry, error)
}
