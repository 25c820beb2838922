package entity

import (
	"fmt"
	"strings"
	"time"
)

// FeedHistory maps an entry id to the entry's declared publish time.
type FeedHistory map[string]time.Time

// History maps a feed id to the entries already seen for that feed.
type History map[string]FeedHistory

func NewHistory() History {
	return make(History)
}

func (h History) Contains(feedID, entryID string) bool {
	feed, ok := h[feedID]
	if !ok {
		return false
	}
	_, ok = feed[entryID]
	return ok
}

// Add records entryID for feedID, overwriting any earlier publish time.
func (h History) Add(feedID, entryID string, published time.Time) {
	feed, ok := h[feedID]
	if !ok || feed == nil {
		feed = make(FeedHistory)
		h[feedID] = feed
	}
	feed[entryID] = published
}

// Remove deletes one record and drops the feed once it is empty.
func (h History) Remove(feedID, entryID string) {
	feed, ok := h[feedID]
	if !ok {
		return
	}
	delete(feed, entryID)
	if len(feed) == 0 {
		delete(h, feedID)
	}
}

// Len returns the total number of records across all feeds.
func (h History) Len() int {
	n := 0
	for _, feed := range h {
		n += len(feed)
	}
	return n
}

// Prune drops old records from every feed holding more than entryCount
// records. A record is old when its age in whole days exceeds daysToKeep.
// Feeds at or under entryCount are left alone, so a feed may still hold
// more than entryCount records afterwards. Returns the number removed.
func (h History) Prune(now time.Time, entryCount, daysToKeep int) int {
	removed := 0
	for _, feed := range h {
		if len(feed) <= entryCount {
			continue
		}
		for id, published := range feed {
			if ageInDays(now, published) > daysToKeep {
				delete(feed, id)
				removed++
			}
		}
	}
	return removed
}

func ageInDays(now, published time.Time) int {
	return int(now.Sub(published) / (24 * time.Hour))
}

// Validate checks the shape of a loaded history.
func (h History) Validate() error {
	for feedID, feed := range h {
		if strings.TrimSpace(feedID) == "" {
			return fmt.Errorf("blank feed id")
		}
		for entryID, published := range feed {
			if strings.TrimSpace(entryID) == "" {
				return fmt.Errorf("blank entry id in feed %q", feedID)
			}
			if published.IsZero() {
				return fmt.Errorf("zero publish time for entry %q in feed %q", entryID, feedID)
			}
			if !InStorableRange(published) {
				return fmt.Errorf("publish time out of range for entry %q in feed %q", entryID, feedID)
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (h History) Clone() History {
	out := make(History, len(h))
	for feedID, feed := range h {
		copied := make(FeedHistory, len(feed))
		for id, published := range feed {
			copied[id] = published
		}
		out[feedID] = copied
	}
	return out
}
