package entity

import (
	"time"

	"github.com/google/uuid"
)

// Message is the envelope handed to the downstream queue for one new entry.
type Message struct {
	ID          string    `json:"id" yaml:"id"`
	FeedID      string    `json:"feed_id" yaml:"feed_id"`
	EnqueuedAt  time.Time `json:"enqueued_at" yaml:"enqueued_at"`
	EntryID     string    `json:"entry_id" yaml:"entry_id"`
	Title       string    `json:"title,omitempty" yaml:"title,omitempty"`
	Link        string    `json:"link,omitempty" yaml:"link,omitempty"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Content     string    `json:"content,omitempty" yaml:"content,omitempty"`
	Author      string    `json:"author,omitempty" yaml:"author,omitempty"`
	Categories  []string  `json:"categories,omitempty" yaml:"categories,omitempty"`
	Published   time.Time `json:"published" yaml:"published"`
	Updated     time.Time `json:"updated,omitzero" yaml:"updated,omitempty"`
}

func NewMessageFromEntry(feedID string, entry *FeedEntry, enqueuedAt time.Time) *Message {
	return &Message{
		ID:          uuid.NewString(),
		FeedID:      feedID,
		EnqueuedAt:  enqueuedAt.UTC(),
		EntryID:     entry.ID,
		Title:       entry.Title,
		Link:        entry.Link,
		Description: entry.Description,
		Content:     entry.Content,
		Author:      entry.Author,
		Categories:  entry.Categories,
		Published:   entry.Published,
		Updated:     entry.Updated,
	}
}
