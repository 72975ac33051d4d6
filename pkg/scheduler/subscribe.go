package scheduler

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/go-pkgz/lgr"

	"github.com/umputun/feedloop/pkg/db"
	"github.com/umputun/feedloop/pkg/domain"
)

// Subscribe bootstraps a new feed for a user: validates the URL, resolves the
// target category (user's default when categoryID is 0), fetches the document,
// creates the feed row, backfills up to 50 historical entries through the same
// dedupe path as steady-state refresh, and records the initial schedule state.
// A failed fetch aborts with a user-visible error and leaves no feed row behind.
func (r *Refresher) Subscribe(ctx context.Context, userID int64, feedURL string, categoryID int64) (*domain.Feed, error) {
	parsedURL, err := url.Parse(feedURL)
	if err != nil || (parsedURL.Scheme != "http" && parsedURL.Scheme != "https") || parsedURL.Host == "" {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("invalid feed URL %q", feedURL)}
	}

	exists, err := r.feeds.FeedURLExists(ctx, userID, feedURL)
	if err != nil {
		return nil, fmt.Errorf("check existing subscription: %w", err)
	}
	if exists {
		return nil, &domain.ConflictError{Msg: fmt.Sprintf("already subscribed to %s", feedURL)}
	}

	category, err := r.resolveCategory(ctx, userID, categoryID)
	if err != nil {
		return nil, err
	}

	// initial fetch, no validators; failure is a user-visible rejection, not a backoff
	parsed, err := r.parser.Fetch(ctx, feedURL, "", "")
	if err != nil {
		return nil, &domain.ValidationError{Msg: fmt.Sprintf("unable to fetch feed: %s", err.Error())}
	}

	title := parsed.Title
	if title == "" {
		title = feedURL
	}

	var faviconURL string
	if parsed.Link != "" && r.icons != nil {
		if icon, iconErr := r.icons.Find(ctx, parsed.Link); iconErr == nil {
			faviconURL = icon
		}
	}

	now := time.Now()
	feed := &domain.Feed{
		UserID:     userID,
		CategoryID: category.ID,
		URL:        feedURL,
		Title:      title,
		SiteURL:    parsed.Link,
		FaviconURL: faviconURL,
		NextFetch:  &now,
	}
	if err := r.feeds.CreateFeed(ctx, feed); err != nil {
		return nil, err
	}

	newCount := r.storeItems(ctx, feed, parsed.Items, initialBackfillLimit)
	lgr.Printf("[INFO] subscribed user %d to %s, backfilled %d entries", userID, feedURL, newCount)

	upd := db.ScheduleUpdate{
		Success:      true,
		ETag:         parsed.ETag,
		LastModified: parsed.LastModified,
		NextFetch:    now.Add(r.refreshInterval),
	}
	if err := r.feeds.UpdateFeedSchedule(ctx, feed.ID, upd); err != nil {
		lgr.Printf("[WARN] failed to record initial fetch for feed %d: %v", feed.ID, err)
	}

	return r.feeds.GetFeed(ctx, feed.ID)
}

// resolveCategory returns the explicit category after an ownership check, or
// the user's oldest category when none given
func (r *Refresher) resolveCategory(ctx context.Context, userID, categoryID int64) (*domain.Category, error) {
	if categoryID == 0 {
		category, err := r.categories.GetDefaultCategory(ctx, userID)
		if err != nil {
			return nil, err
		}
		return category, nil
	}

	category, err := r.categories.GetCategory(ctx, categoryID)
	if err != nil {
		return nil, err
	}
	if category.UserID != userID {
		// foreign categories are invisible, same answer as a missing one
		return nil, &domain.NotFoundError{Msg: "category not found"}
	}
	return category, nil
}
