package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/umputun/feedloop/pkg/domain"
)

// entrySQL represents an entry row
type entrySQL struct {
	ID          int64      `db:"id"`
	FeedID      int64      `db:"feed_id"`
	UserID      int64      `db:"user_id"`
	Fingerprint string     `db:"fingerprint"`
	Title       string     `db:"title"`
	URL         string     `db:"url"`
	Author      string     `db:"author"`
	Summary     string     `db:"summary"`
	Content     string     `db:"content"`
	ReadingTime int        `db:"reading_time"`
	Published   *time.Time `db:"published"`
	Starred     bool       `db:"starred"`
	Status      string     `db:"status"`
	CreatedAt   time.Time  `db:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at"`
}

func (e *entrySQL) toDomain() *domain.Entry {
	entry := &domain.Entry{
		ID:          e.ID,
		FeedID:      e.FeedID,
		UserID:      e.UserID,
		Fingerprint: e.Fingerprint,
		Title:       e.Title,
		URL:         e.URL,
		Author:      e.Author,
		Summary:     e.Summary,
		Content:     e.Content,
		ReadingTime: e.ReadingTime,
		Starred:     e.Starred,
		Status:      domain.EntryStatus(e.Status),
		CreatedAt:   e.CreatedAt,
		UpdatedAt:   e.UpdatedAt,
	}
	if e.Published != nil {
		entry.Published = *e.Published
	}
	return entry
}

// EntryFilter narrows entry listings
type EntryFilter struct {
	Status  domain.EntryStatus // empty means any
	Starred *bool
	FeedID  int64 // 0 means any feed
	Limit   int
	Offset  int
}

// CreateEntryIfAbsent inserts an entry unless one with the same (feed, fingerprint)
// already exists. Returns true if the entry was inserted; a racing duplicate is
// reported as false with no error, the unique index is the final backstop.
func (db *DB) CreateEntryIfAbsent(ctx context.Context, entry *domain.Entry) (inserted bool, err error) {
	query := `
		INSERT INTO entries (feed_id, user_id, fingerprint, title, url, author, summary, reading_time, published, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(feed_id, fingerprint) DO NOTHING
	`
	var published *time.Time
	if !entry.Published.IsZero() {
		p := entry.Published.UTC()
		published = &p
	}
	status := entry.Status
	if status == "" {
		status = domain.StatusUnread
	}

	var result sql.Result
	err = db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query,
			entry.FeedID, entry.UserID, entry.Fingerprint, entry.Title, entry.URL,
			entry.Author, entry.Summary, entry.ReadingTime, published, string(status))
		return execErr
	})
	if err != nil {
		// a racing insert may still surface the constraint, treat as "already exists"
		if isUniqueViolation(err) {
			return false, nil
		}
		return false, fmt.Errorf("insert entry: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	id, err := result.LastInsertId()
	if err != nil {
		return false, fmt.Errorf("get last insert id: %w", err)
	}
	entry.ID = id
	return true, nil
}

// EntryExists reports whether an entry with this fingerprint is stored for the feed
func (db *DB) EntryExists(ctx context.Context, feedID int64, fingerprint string) (bool, error) {
	var count int
	query := `SELECT COUNT(1) FROM entries WHERE feed_id = ? AND fingerprint = ?`
	err := db.conn.GetContext(ctx, &count, query, feedID, fingerprint)
	if err != nil {
		return false, fmt.Errorf("check entry existence: %w", err)
	}
	return count > 0, nil
}

// GetEntry retrieves an entry by ID
func (db *DB) GetEntry(ctx context.Context, id int64) (*domain.Entry, error) {
	var entry entrySQL
	err := db.conn.GetContext(ctx, &entry, `SELECT * FROM entries WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &domain.NotFoundError{Msg: "entry not found"}
		}
		return nil, fmt.Errorf("get entry: %w", err)
	}
	return entry.toDomain(), nil
}

// GetEntries retrieves a user's entries, newest published first
func (db *DB) GetEntries(ctx context.Context, userID int64, filter EntryFilter) ([]*domain.Entry, error) {
	query := `SELECT * FROM entries WHERE user_id = ?`
	args := []interface{}{userID}

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Starred != nil {
		query += ` AND starred = ?`
		args = append(args, *filter.Starred)
	}
	if filter.FeedID != 0 {
		query += ` AND feed_id = ?`
		args = append(args, filter.FeedID)
	}

	query += ` ORDER BY published DESC, id DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	var entries []entrySQL
	err := db.conn.SelectContext(ctx, &entries, query, args...)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}

	result := make([]*domain.Entry, len(entries))
	for i, e := range entries {
		result[i] = e.toDomain()
	}
	return result, nil
}

// UpdateEntryStatus sets the read lifecycle state of an entry
func (db *DB) UpdateEntryStatus(ctx context.Context, entryID int64, status domain.EntryStatus) error {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx,
			`UPDATE entries SET status = ?, updated_at = ? WHERE id = ?`, string(status), time.Now().UTC(), entryID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update entry status: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "entry not found"}
	}
	return nil
}

// ToggleEntryStar flips the starred flag, returns the new value
func (db *DB) ToggleEntryStar(ctx context.Context, entryID int64) (bool, error) {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx,
			`UPDATE entries SET starred = NOT starred, updated_at = ? WHERE id = ?`, time.Now().UTC(), entryID)
		return execErr
	})
	if err != nil {
		return false, fmt.Errorf("toggle entry star: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return false, &domain.NotFoundError{Msg: "entry not found"}
	}

	var starred bool
	if err := db.conn.GetContext(ctx, &starred, `SELECT starred FROM entries WHERE id = ?`, entryID); err != nil {
		return false, fmt.Errorf("get starred flag: %w", err)
	}
	return starred, nil
}

// UpdateEntryContent stores extracted full content and the refreshed reading time
func (db *DB) UpdateEntryContent(ctx context.Context, entryID int64, content string, readingTime int) error {
	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx,
			`UPDATE entries SET content = ?, reading_time = ?, updated_at = ? WHERE id = ?`,
			content, readingTime, time.Now().UTC(), entryID)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("update entry content: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if affected == 0 {
		return &domain.NotFoundError{Msg: "entry not found"}
	}
	return nil
}

// AddEnclosure stores a media attachment for an entry
func (db *DB) AddEnclosure(ctx context.Context, enclosure *domain.Enclosure) error {
	query := `INSERT INTO enclosures (entry_id, url, mime_type, size) VALUES (?, ?, ?, ?)`

	var result sql.Result
	err := db.withRetry(ctx, func() error {
		var execErr error
		result, execErr = db.conn.ExecContext(ctx, query, enclosure.EntryID, enclosure.URL, enclosure.MimeType, enclosure.Size)
		return execErr
	})
	if err != nil {
		return fmt.Errorf("insert enclosure: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	enclosure.ID = id
	return nil
}

// GetEnclosures retrieves all enclosures attached to an entry
func (db *DB) GetEnclosures(ctx context.Context, entryID int64) ([]*domain.Enclosure, error) {
	type enclosureSQL struct {
		ID       int64  `db:"id"`
		EntryID  int64  `db:"entry_id"`
		URL      string `db:"url"`
		MimeType string `db:"mime_type"`
		Size     int64  `db:"size"`
	}

	var enclosures []enclosureSQL
	query := `SELECT * FROM enclosures WHERE entry_id = ? ORDER BY id`
	err := db.conn.SelectContext(ctx, &enclosures, query, entryID)
	if err != nil {
		return nil, fmt.Errorf("get enclosures: %w", err)
	}

	result := make([]*domain.Enclosure, len(enclosures))
	for i, e := range enclosures {
		result[i] = &domain.Enclosure{ID: e.ID, EntryID: e.EntryID, URL: e.URL, MimeType: e.MimeType, Size: e.Size}
	}
	return result, nil
}
