package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// feedSQL represents a feed row
type feedSQL struct {
	ID           int64      `db:"id"`
	UserID       int64      `db:"user_id"`
	CategoryID   int64      `db:"category_id"`
	URL          string     `db:"url"`
	Title        string     `db:"title"`
	SiteURL      string     `db:"site_url"`
	FaviconURL   string     `db:"favicon_url"`
	ETag         string     `db:"etag"`
	LastModified string     `db:"last_modified"`
	LastFetched  *time.Time `db:"last_fetched"`
	NextFetch    *time.Time `db:"next_fetch"`
	ErrorCount   int        `db:"error_count"`
	ErrorMessage string     `db:"error_message"`
	Disabled     bool       `db:"disabled"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

func (f *feedSQL) toDomain() *domain.Feed {
	return &domain.Feed{
		ID:           f.ID,
		UserID:       f.UserID,
		CategoryID:   f.CategoryID,
		URL:          f.URL,
		Title:        f.Title,
		SiteURL:      f.SiteURL,
		FaviconURL:   f.FaviconURL,
		ETag:         f.ETag,
		LastModified: f.LastModified,
		LastFetched:  f.LastFetched,
		NextFetch:    f.NextFetch,
		ErrorCount:   f.ErrorCount,
		ErrorMessage: f.ErrorMessage,
		Disabled:     f.Disabled,
		CreatedAt:    f.CreatedAt,
		UpdatedAt:    f.UpdatedAt,
	}
}

// ScheduleUpdate captures the outcome of one fetch attempt for a feed.
// Validators are stored only on success; ErrorMessage only on failure.
type ScheduleUpdate struct {
	Success      bool
	ETag         string
	LastModified string
	ErrorMessage string
	NextFetch    time.Time
}

// CreateFeed inserts a new feed, fails with ConflictError if the user already has the URL
func (db *DB) CreateFeed(ctx context.Context, feed *domain.Feed) error {
	query := `
		INSERT INTO feeds (user_id, category_id, url, title, site_url, favicon_url, next_fetch)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query,
			feed.UserID, feed.CategoryID, feed.URL, feed.Title, feed.SiteURL, feed.FaviconURL, feed.NextFetch)
		return execErr
	})
	if err != nil {
		if isUniqueViolation(err) {
			return &domain.ConflictError{Msg: fmt.Sprintf("feed %s already subscribed", feed.URL)}
		}
		return fmt.Errorf("insert feed: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	feed.ID = id
	return nil
}

// GetFeed retrieves a feed by ID
func (db *DB) GetFeed(ctx context.Context, id int64) (*domain.Feed, error) {
	var feed feedSQL
	err := db.conn.GetContext(ctx, &feed, `SELECT * FROM feeds WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "feed not found"}
		}
		return nil, fmt.Errorf("get feed: %w", err)
	}
	return feed.toDomain(), nil
}

// GetFeeds retrieves all feeds belonging to a user
func (db *DB) GetFeeds(ctx context.Context, userID int64) ([]*domain.Feed, error) {
	var feeds []feedSQL
	query := `SELECT * FROM feeds WHERE user_id = ? ORDER BY title, id`
	err := db.conn.SelectContext(ctx, &feeds, query, userID)
	if err != nil {
		return nil, fmt.Errorf("get feeds: %w", err)
	}

	result := make([]*domain.Feed, len(feeds))
	for i, f := range feeds {
		result[i] = f.toDomain()
	}
	return result, nil
}

// FeedURLExists reports whether the user already has a feed with this exact URL
func (db *DB) FeedURLExists(ctx context.Context, userID int64, url string) (bool, error) {
	var count int
	err := db.conn.GetContext(ctx, &count, `SELECT COUNT(1) FROM feeds WHERE user_id = ? AND url = ?`, userID, url)
	if err != nil {
		return false, fmt.Errorf("check feed url: %w", err)
	}
	return count > 0, nil
}

// GetDueFeeds retrieves enabled feeds whose next fetch time has elapsed or is unset,
// oldest-due first, bounded by limit
func (db *DB) GetDueFeeds(ctx context.Context, limit int) ([]*domain.Feed, error) {
	query := `
		SELECT * FROM feeds
		WHERE disabled = 0
		  AND (next_fetch IS NULL OR next_fetch <= ?)
		ORDER BY next_fetch ASC
		LIMIT ?
	`
	var feeds []feedSQL
	err := db.conn.SelectContext(ctx, &feeds, query, time.Now().UTC(), limit)
	if err != nil {
		return nil, fmt.Errorf("get due feeds: %w", err)
	}

	result := make([]*domain.Feed, len(feeds))
	for i, f := range feeds {
		result[i] = f.toDomain()
	}
	return result, nil
}

// UpdateFeedSchedule records the outcome of a fetch attempt.
// Success stores fresh validators and clears error state, failure increments
// error_count and stores the failure message. Either way last_fetched is set,
// an attempt was made.
func (db *DB) UpdateFeedSchedule(ctx context.Context, feedID int64, upd ScheduleUpdate) error {
	now := time.Now().UTC()

	var query string
	var args []interface{}
	if upd.Success {
		query = `
			UPDATE feeds
			SET etag = ?, last_modified = ?,
			    error_count = 0, error_message = '',
			    last_fetched = ?, next_fetch = ?, updated_at = ?
			WHERE id = ?
		`
		args = []interface{}{upd.ETag, upd.LastModified, now, upd.NextFetch.UTC(), now, feedID}
	} else {
		query = `
			UPDATE feeds
			SET error_count = error_count + 1, error_message = ?,
			    last_fetched = ?, next_fetch = ?, updated_at = ?
			WHERE id = ?
		`
		args = []interface{}{upd.ErrorMessage, now, upd.NextFetch.UTC(), now, feedID}
	}

	err := db.withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update feed schedule: %w", err)
	}
	return nil
}

// UpdateFeedMeta updates the feed's display title and site link from a parsed document
func (db *DB) UpdateFeedMeta(ctx context.Context, feedID int64, title, siteURL string) error {
	query := `UPDATE feeds SET title = ?, site_url = ?, updated_at = ? WHERE id = ?`
	err := db.withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, query, title, siteURL, time.Now().UTC(), feedID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update feed meta: %w", err)
	}
	return nil
}

// UpdateFeedFavicon stores a discovered favicon URL
func (db *DB) UpdateFeedFavicon(ctx context.Context, feedID int64, faviconURL string) error {
	query := `UPDATE feeds SET favicon_url = ?, updated_at = ? WHERE id = ?`
	err := db.withRetry(ctx, func() error {
		_, execErr := db.conn.ExecContext(ctx, query, faviconURL, time.Now().UTC(), feedID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update feed favicon: %w", err)
	}
	return nil
}

// UpdateFeed updates user-editable feed fields: title, category and disabled flag
func (db *DB) UpdateFeed(ctx context.Context, feed *domain.Feed) error {
	query := `UPDATE feeds SET title = ?, category_id = ?, disabled = ?, updated_at = ? WHERE id = ?`

	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query, feed.Title, feed.CategoryID, feed.Disabled, time.Now().UTC(), feed.ID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "feed not found"}
	}
	return nil
}

// DeleteFeed removes a feed, cascading to its entries and their enclosures
func (db *DB) DeleteFeed(ctx context.Context, id int64) error {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, `DELETE FROM feeds WHERE id = ?`, id)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("delete feed: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "feed not found"}
	}
	return nil
}
