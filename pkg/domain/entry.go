package domain

import "time"

// EntryStatus is the read lifecycle state of an entry
type EntryStatus string

// entry statuses
const (
	StatusUnread  EntryStatus = "unread"
	StatusRead    EntryStatus = "read"
	StatusRemoved EntryStatus = "removed"
)

// Valid reports whether the status is one of the known values
func (s EntryStatus) Valid() bool {
	return s == StatusUnread || s == StatusRead || s == StatusRemoved
}

// Entry represents one article discovered from a feed.
// Fingerprint is the sole dedup key within a feed, see scheduler.Fingerprint.
type Entry struct {
	ID          int64       `json:"id"`
	FeedID      int64       `json:"feed_id"`
	UserID      int64       `json:"-"`
	Fingerprint string      `json:"-"`
	Title       string      `json:"title"`
	URL         string      `json:"url"`
	Author      string      `json:"author,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	Content     string      `json:"content,omitempty"` // populated on demand, not guaranteed persisted
	ReadingTime int         `json:"reading_time"`      // minutes, >= 1
	Published   time.Time   `json:"published"`
	Starred     bool        `json:"starred"`
	Status      EntryStatus `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// Enclosure represents a media attachment carried by an entry
type Enclosure struct {
	ID       int64  `json:"id"`
	EntryID  int64  `json:"entry_id"`
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
}
