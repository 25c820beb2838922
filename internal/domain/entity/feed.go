package entity

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrMalformedEntry is returned by Validate when an entry cannot be deduplicated.
var ErrMalformedEntry = errors.New("malformed feed entry")

type FeedEntry struct {
	ID          string
	Title       string
	Link        string
	Description string
	Content     string
	Author      string
	Categories  []string
	Published   time.Time
	Updated     time.Time
}

const (
	minStorableYear = 0
	maxStorableYear = 9999
)

// InStorableRange reports whether t has a four-digit year, the range every
// history backend can round-trip.
func InStorableRange(t time.Time) bool {
	year := t.UTC().Year()
	return year >= minStorableYear && year <= maxStorableYear
}

func NewFeedEntry(id, title, link, description string, published time.Time) *FeedEntry {
	return &FeedEntry{
		ID:          id,
		Title:       title,
		Link:        link,
		Description: description,
		Published:   published,
	}
}

// Validate reports whether the entry carries the identifier and publish
// time the history needs.
func (f *FeedEntry) Validate() error {
	if f == nil {
		return fmt.Errorf("%w: nil entry", ErrMalformedEntry)
	}
	if strings.TrimSpace(f.ID) == "" {
		return fmt.Errorf("%w: missing id (title %q)", ErrMalformedEntry, f.Title)
	}
	if f.Published.IsZero() {
		return fmt.Errorf("%w: missing publish time (id %q)", ErrMalformedEntry, f.ID)
	}
	if !InStorableRange(f.Published) {
		return fmt.Errorf("%w: publish time %s out of range (id %q)", ErrMalformedEntry, f.Published.UTC(), f.ID)
	}
	return nil
}
