package domain

import "time"

// Feed represents a subscribed RSS/Atom/JSON source belonging to one user
type Feed struct {
	ID           int64      `json:"id"`
	UserID       int64      `json:"-"`
	CategoryID   int64      `json:"category_id"`
	URL          string     `json:"url"`
	Title        string     `json:"title"`
	SiteURL      string     `json:"site_url,omitempty"`
	FaviconURL   string     `json:"favicon_url,omitempty"`
	ETag         string     `json:"-"`
	LastModified string     `json:"-"`
	LastFetched  *time.Time `json:"last_fetched,omitempty"`
	NextFetch    *time.Time `json:"next_fetch,omitempty"` // nil means due immediately
	ErrorCount   int        `json:"error_count"`
	ErrorMessage string     `json:"error_message,omitempty"`
	Disabled     bool       `json:"disabled"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// RefreshResult reports the outcome of one refresh pipeline run for a feed
type RefreshResult struct {
	FeedID       int64  `json:"feed_id"`
	Success      bool   `json:"success"`
	NewEntries   int    `json:"new_entries"`
	ErrorMessage string `json:"error_message,omitempty"`
}

// SweepStats aggregates refresh results across one scheduler sweep
type SweepStats struct {
	Refreshed int
	Errors    int
}
