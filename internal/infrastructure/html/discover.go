package html

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// ErrNoFeedLink is returned when a page advertises no feed.
var ErrNoFeedLink = errors.New("no feed link found")

var feedTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/feed+json",
	"application/json",
	"application/rdf+xml",
	"text/xml",
	"application/xml",
}

// DiscoverFeedURL returns the first feed advertised by an HTML page through
// <link rel="alternate">, resolved against base.
func DiscoverFeedURL(body io.Reader, base *url.URL) (string, error) {
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}

	var found string
	doc.Find("link[rel][href]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		rel, _ := s.Attr("rel")
		if !hasToken(rel, "alternate") {
			return true
		}
		typ, _ := s.Attr("type")
		if !isFeedType(typ) {
			return true
		}
		href, _ := s.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" {
			return true
		}
		found = href
		return false
	})

	if found == "" {
		return "", ErrNoFeedLink
	}

	ref, err := url.Parse(found)
	if err != nil {
		return "", fmt.Errorf("invalid feed link %q: %w", found, err)
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	return ref.String(), nil
}

func hasToken(list, token string) bool {
	for _, f := range strings.Fields(strings.ToLower(list)) {
		if f == token {
			return true
		}
	}
	return false
}

func isFeedType(typ string) bool {
	typ = strings.ToLower(strings.TrimSpace(typ))
	if i := strings.IndexByte(typ, ';'); i >= 0 {
		typ = strings.TrimSpace(typ[:i])
	}
	for _, t := range feedTypes {
		if typ == t {
			return true
		}
	}
	return false
}
