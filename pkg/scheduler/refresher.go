package scheduler

import (
	"context"
	"math"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedloop/pkg/db"
	"github.com/umputun/feedloop/pkg/domain"
)

//go:generate moq -out mocks/parser.go -pkg mocks -skip-ensure -fmt goimports . Parser
//go:generate moq -out mocks/icon_finder.go -pkg mocks -skip-ensure -fmt goimports . IconFinder

// FeedStore is the feed persistence surface the refresh pipeline needs
type FeedStore interface {
	GetFeed(ctx context.Context, id int64) (*domain.Feed, error)
	GetDueFeeds(ctx context.Context, limit int) ([]*domain.Feed, error)
	CreateFeed(ctx context.Context, feed *domain.Feed) error
	FeedURLExists(ctx context.Context, userID int64, url string) (bool, error)
	UpdateFeedSchedule(ctx context.Context, feedID int64, upd db.ScheduleUpdate) error
	UpdateFeedMeta(ctx context.Context, feedID int64, title, siteURL string) error
	UpdateFeedFavicon(ctx context.Context, feedID int64, faviconURL string) error
}

// EntryStore is the entry persistence surface the refresh pipeline needs
type EntryStore interface {
	CreateEntryIfAbsent(ctx context.Context, entry *domain.Entry) (bool, error)
	AddEnclosure(ctx context.Context, enclosure *domain.Enclosure) error
}

// CategoryStore resolves subscription target categories
type CategoryStore interface {
	GetCategory(ctx context.Context, id int64) (*domain.Category, error)
	GetDefaultCategory(ctx context.Context, userID int64) (*domain.Category, error)
}

// Parser fetches and parses a feed document with cached validators
type Parser interface {
	Fetch(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error)
}

// IconFinder discovers a site's favicon URL
type IconFinder interface {
	Find(ctx context.Context, siteURL string) (string, error)
}

// initialBackfillLimit caps how many historical items are stored when a feed
// is first subscribed; steady-state refresh is unbounded
const initialBackfillLimit = 50

// maxBackoff caps the failure backoff at 24 hours
const maxBackoff = 24 * time.Hour

// Refresher runs the per-feed refresh pipeline: fetch, dedupe, persist new
// entries, record the feed's next schedule state. The same store path backfills
// entries at subscription time.
type Refresher struct {
	feeds           FeedStore
	entries         EntryStore
	categories      CategoryStore
	parser          Parser
	icons           IconFinder
	refreshInterval time.Duration
}

// NewRefresher creates a refresh pipeline
func NewRefresher(feeds FeedStore, entries EntryStore, categories CategoryStore, parser Parser, icons IconFinder, refreshInterval time.Duration) *Refresher {
	if refreshInterval == 0 {
		refreshInterval = time.Hour
	}
	return &Refresher{
		feeds:           feeds,
		entries:         entries,
		categories:      categories,
		parser:          parser,
		icons:           icons,
		refreshInterval: refreshInterval,
	}
}

// Refresh runs the pipeline for one feed and reports the outcome. Fetch failure
// puts the feed on exponential backoff; per-item failures are logged and skipped.
func (r *Refresher) Refresh(ctx context.Context, feed *domain.Feed) domain.RefreshResult {
	lgr.Printf("[DEBUG] refreshing feed %d: %s", feed.ID, feed.URL)

	parsed, err := r.parser.Fetch(ctx, feed.URL, feed.ETag, feed.LastModified)
	if err != nil {
		return r.recordFailure(ctx, feed, err.Error())
	}

	newCount := r.storeItems(ctx, feed, parsed.Items, 0)

	if !parsed.NotModified {
		r.updateMeta(ctx, feed, parsed)
	}
	r.maybeDiscoverFavicon(ctx, feed, parsed.Link)

	upd := db.ScheduleUpdate{
		Success:      true,
		ETag:         parsed.ETag,
		LastModified: parsed.LastModified,
		NextFetch:    time.Now().Add(r.refreshInterval),
	}
	if err := r.feeds.UpdateFeedSchedule(ctx, feed.ID, upd); err != nil {
		lgr.Printf("[ERROR] failed to record successful fetch for feed %d: %v", feed.ID, err)
		return domain.RefreshResult{FeedID: feed.ID, Success: false, NewEntries: newCount, ErrorMessage: err.Error()}
	}

	if newCount > 0 {
		lgr.Printf("[INFO] feed %d (%s): %d new entries", feed.ID, feed.Title, newCount)
	}
	return domain.RefreshResult{FeedID: feed.ID, Success: true, NewEntries: newCount}
}

// recordFailure puts the feed on backoff and reports the failed result
func (r *Refresher) recordFailure(ctx context.Context, feed *domain.Feed, errMsg string) domain.RefreshResult {
	backoff := Backoff(r.refreshInterval, feed.ErrorCount+1)
	lgr.Printf("[WARN] feed %d (%s) failed (attempt %d, retry in %v): %s",
		feed.ID, feed.URL, feed.ErrorCount+1, backoff, errMsg)

	upd := db.ScheduleUpdate{
		Success:      false,
		ErrorMessage: errMsg,
		NextFetch:    time.Now().Add(backoff),
	}
	if err := r.feeds.UpdateFeedSchedule(ctx, feed.ID, upd); err != nil {
		lgr.Printf("[ERROR] failed to record fetch failure for feed %d: %v", feed.ID, err)
	}
	return domain.RefreshResult{FeedID: feed.ID, Success: false, ErrorMessage: errMsg}
}

// Backoff computes the retry delay after errorCount consecutive failures:
// interval doubled per failure, capped at 24 hours.
func Backoff(interval time.Duration, errorCount int) time.Duration {
	if errorCount < 1 {
		errorCount = 1
	}

	// past 2^20 the cap always wins, avoid overflow
	exp := errorCount - 1
	if exp > 20 {
		return maxBackoff
	}

	backoff := time.Duration(float64(interval) * math.Pow(2, float64(exp)))
	if backoff > maxBackoff {
		return maxBackoff
	}
	return backoff
}

// storeItems persists new entries for the feed's parsed items, deduplicated by
// fingerprint. limit bounds processed items, 0 means all. Returns the number of
// entries actually inserted.
func (r *Refresher) storeItems(ctx context.Context, feed *domain.Feed, items []domain.ParsedItem, limit int) int {
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}

	newCount := 0
	for _, item := range items {
		if item.Link == "" {
			lgr.Printf("[WARN] feed %d: skip item %q without link", feed.ID, item.Title)
			continue
		}

		content := item.Content
		if content == "" {
			content = item.Summary
		}

		entry := &domain.Entry{
			FeedID:      feed.ID,
			UserID:      feed.UserID,
			Fingerprint: Fingerprint(feed.ID, item.Link, item.Title),
			Title:       item.Title,
			URL:         item.Link,
			Author:      item.Author,
			Summary:     item.Summary,
			ReadingTime: EstimateReadingTime(content),
			Published:   item.Published,
			Status:      domain.StatusUnread,
		}

		inserted, err := r.entries.CreateEntryIfAbsent(ctx, entry)
		if err != nil {
			lgr.Printf("[WARN] feed %d: failed to store entry %s: %v", feed.ID, item.Link, err)
			continue
		}
		if !inserted {
			continue
		}
		newCount++

		if item.Enclosure != nil {
			enclosure := &domain.Enclosure{
				EntryID:  entry.ID,
				URL:      item.Enclosure.URL,
				MimeType: item.Enclosure.MimeType,
				Size:     item.Enclosure.Size,
			}
			if err := r.entries.AddEnclosure(ctx, enclosure); err != nil {
				lgr.Printf("[WARN] feed %d: failed to store enclosure for %s: %v", feed.ID, item.Link, err)
			}
		}
	}
	return newCount
}

// updateMeta refreshes the feed's display title and site link when the document changed them
func (r *Refresher) updateMeta(ctx context.Context, feed *domain.Feed, parsed *domain.ParsedFeed) {
	title := parsed.Title
	if title == "" {
		title = feed.Title
	}
	siteURL := parsed.Link
	if siteURL == "" {
		siteURL = feed.SiteURL
	}
	if title == feed.Title && siteURL == feed.SiteURL {
		return
	}

	if err := r.feeds.UpdateFeedMeta(ctx, feed.ID, title, siteURL); err != nil {
		lgr.Printf("[WARN] failed to update metadata for feed %d: %v", feed.ID, err)
	}
}

// maybeDiscoverFavicon attempts favicon discovery for feeds that have none.
// Strictly best effort, failure never affects the fetch result.
func (r *Refresher) maybeDiscoverFavicon(ctx context.Context, feed *domain.Feed, siteLink string) {
	if feed.FaviconURL != "" || siteLink == "" || r.icons == nil {
		return
	}

	iconURL, err := r.icons.Find(ctx, siteLink)
	if err != nil {
		lgr.Printf("[DEBUG] no favicon for feed %d (%s): %v", feed.ID, siteLink, err)
		return
	}

	if err := r.feeds.UpdateFeedFavicon(ctx, feed.ID, iconURL); err != nil {
		lgr.Printf("[WARN] failed to store favicon for feed %d: %v", feed.ID, err)
		return
	}
	feed.FaviconURL = iconURL
}
