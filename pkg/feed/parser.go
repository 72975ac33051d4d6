package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/umputun/feedloop/pkg/domain"
)

// Parser fetches and parses RSS/Atom/JSON feeds with conditional GET support
type Parser struct {
	client    *http.Client
	userAgent string
}

// FetchError covers network failures, non-success statuses and unparseable bodies.
// Callers don't distinguish beyond the message, it drives the feed's backoff state.
type FetchError struct {
	URL string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// NewParser creates a new feed parser
func NewParser(timeout time.Duration, userAgent string) *Parser {
	return &Parser{
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		userAgent: userAgent,
	}
}

// Fetch performs a conditional GET against the feed URL and parses the response
// into a normalized document. Cached validators, when present, are forwarded as
// If-None-Match / If-Modified-Since; a 304 answer comes back as NotModified with
// no items. No retries here, backoff is the refresh pipeline's business.
func (p *Parser) Fetch(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("create request: %w", err)}
	}

	req.Header.Set("User-Agent", p.userAgent)
	addBrowserHeaders(req)

	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}
	if lastModified != "" {
		req.Header.Set("If-Modified-Since", lastModified)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &domain.ParsedFeed{ETag: etag, LastModified: lastModified, NotModified: true}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{URL: url, Err: fmt.Errorf("unexpected status code: %d", resp.StatusCode)}
	}

	parsed, err := p.parse(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: url, Err: err}
	}

	parsed.ETag = resp.Header.Get("ETag")
	parsed.LastModified = resp.Header.Get("Last-Modified")
	return parsed, nil
}

// parse converts a feed document body into the normalized representation
func (p *Parser) parse(body io.Reader) (*domain.ParsedFeed, error) {
	parser := gofeed.NewParser()
	feed, err := parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse feed: %w", err)
	}

	result := &domain.ParsedFeed{
		Title: feed.Title,
		Link:  feed.Link,
		Items: make([]domain.ParsedItem, 0, len(feed.Items)),
	}

	for _, item := range feed.Items {
		parsedItem := domain.ParsedItem{
			Title:   item.Title,
			Link:    item.Link,
			Summary: item.Description,
			Content: item.Content,
		}

		if item.Author != nil {
			parsedItem.Author = item.Author.Name
		}

		if item.PublishedParsed != nil {
			parsedItem.Published = *item.PublishedParsed
		} else if item.UpdatedParsed != nil {
			parsedItem.Published = *item.UpdatedParsed
		}

		// gofeed exposes multiple enclosures, feeds effectively carry one per item
		if len(item.Enclosures) > 0 && item.Enclosures[0].URL != "" {
			enc := item.Enclosures[0]
			parsedItem.Enclosure = &domain.ParsedEnclosure{
				URL:      enc.URL,
				MimeType: enc.Type,
			}
			if enc.Length != "" {
				if size, convErr := strconv.ParseInt(enc.Length, 10, 64); convErr == nil {
					parsedItem.Enclosure.Size = size
				}
			}
		}

		result.Items = append(result.Items, parsedItem)
	}

	return result, nil
}
