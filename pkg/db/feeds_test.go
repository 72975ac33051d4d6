package db

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedloop/pkg/domain"
)

func TestDB_Feeds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "feeds@example.com")
	category := createTestCategory(t, db, user.ID, "News")

	t.Run("create and get", func(t *testing.T) {
		feed := &domain.Feed{
			UserID:     user.ID,
			CategoryID: category.ID,
			URL:        "https://example.com/feed.xml",
			Title:      "Example",
			SiteURL:    "https://example.com",
		}
		require.NoError(t, db.CreateFeed(ctx, feed))
		assert.NotZero(t, feed.ID)

		got, err := db.GetFeed(ctx, feed.ID)
		require.NoError(t, err)
		assert.Equal(t, "Example", got.Title)
		assert.Equal(t, "https://example.com/feed.xml", got.URL)
		assert.Equal(t, 0, got.ErrorCount)
		assert.Nil(t, got.LastFetched)
	})

	t.Run("duplicate url conflicts per user", func(t *testing.T) {
		err := db.CreateFeed(ctx, &domain.Feed{UserID: user.ID, CategoryID: category.ID, URL: "https://example.com/feed.xml", Title: "Dup"})
		require.Error(t, err)
		assert.True(t, domain.IsConflict(err))

		exists, err := db.FeedURLExists(ctx, user.ID, "https://example.com/feed.xml")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("update feed settings", func(t *testing.T) {
		feed := createTestFeed(t, db, user.ID, category.ID, "https://settings.example.com/feed")
		other := createTestCategory(t, db, user.ID, "Tech")

		feed.Title = "Custom Title"
		feed.CategoryID = other.ID
		feed.Disabled = true
		require.NoError(t, db.UpdateFeed(ctx, feed))

		got, err := db.GetFeed(ctx, feed.ID)
		require.NoError(t, err)
		assert.Equal(t, "Custom Title", got.Title)
		assert.Equal(t, other.ID, got.CategoryID)
		assert.True(t, got.Disabled)
	})

	t.Run("update metadata and favicon", func(t *testing.T) {
		feed := createTestFeed(t, db, user.ID, category.ID, "https://meta.example.com/feed")

		require.NoError(t, db.UpdateFeedMeta(ctx, feed.ID, "New Title", "https://meta.example.com"))
		require.NoError(t, db.UpdateFeedFavicon(ctx, feed.ID, "https://meta.example.com/favicon.ico"))

		got, err := db.GetFeed(ctx, feed.ID)
		require.NoError(t, err)
		assert.Equal(t, "New Title", got.Title)
		assert.Equal(t, "https://meta.example.com", got.SiteURL)
		assert.Equal(t, "https://meta.example.com/favicon.ico", got.FaviconURL)
	})

	t.Run("delete cascades to entries and enclosures", func(t *testing.T) {
		feed := createTestFeed(t, db, user.ID, category.ID, "https://doomed.example.com/feed")
		entry := createTestEntry(t, db, feed, "https://doomed.example.com/p1", "Post")
		require.NoError(t, db.AddEnclosure(ctx, &domain.Enclosure{EntryID: entry.ID, URL: "https://doomed.example.com/p1.mp3", MimeType: "audio/mpeg"}))

		require.NoError(t, db.DeleteFeed(ctx, feed.ID))

		_, err := db.GetEntry(ctx, entry.ID)
		assert.True(t, domain.IsNotFound(err))

		enclosures, err := db.GetEnclosures(ctx, entry.ID)
		require.NoError(t, err)
		assert.Empty(t, enclosures)
	})

	t.Run("delete missing", func(t *testing.T) {
		err := db.DeleteFeed(ctx, 99999)
		assert.True(t, domain.IsNotFound(err))
	})
}

func TestDB_GetDueFeeds(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "due@example.com")
	category := createTestCategory(t, db, user.ID, "News")

	past := time.Now().Add(-2 * time.Hour).UTC()
	recent := time.Now().Add(-time.Minute).UTC()
	future := time.Now().Add(time.Hour).UTC()

	mkfeed := func(url string, nextFetch *time.Time, disabled bool) *domain.Feed {
		feed := &domain.Feed{UserID: user.ID, CategoryID: category.ID, URL: url, Title: url, NextFetch: nextFetch, Disabled: disabled}
		require.NoError(t, db.CreateFeed(ctx, feed))
		return feed
	}

	neverFetched := mkfeed("https://a.example.com/feed", nil, false)
	overdue := mkfeed("https://b.example.com/feed", &past, false)
	barelyDue := mkfeed("https://c.example.com/feed", &recent, false)
	mkfeed("https://d.example.com/feed", &future, false)
	mkfeed("https://e.example.com/feed", &past, true) // disabled, never due

	t.Run("orders oldest due first, never fetched ahead", func(t *testing.T) {
		due, err := db.GetDueFeeds(ctx, 10)
		require.NoError(t, err)
		require.Len(t, due, 3)
		assert.Equal(t, neverFetched.ID, due[0].ID)
		assert.Equal(t, overdue.ID, due[1].ID)
		assert.Equal(t, barelyDue.ID, due[2].ID)
	})

	t.Run("limit bounds the batch", func(t *testing.T) {
		due, err := db.GetDueFeeds(ctx, 2)
		require.NoError(t, err)
		require.Len(t, due, 2)
		assert.Equal(t, neverFetched.ID, due[0].ID)
	})
}

func TestDB_UpdateFeedSchedule(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()
	user := createTestUser(t, db, "sched@example.com")
	category := createTestCategory(t, db, user.ID, "News")

	t.Run("success stores validators and clears errors", func(t *testing.T) {
		feed := createTestFeed(t, db, user.ID, category.ID, "https://ok.example.com/feed")

		// put the feed into a failed state first
		require.NoError(t, db.UpdateFeedSchedule(ctx, feed.ID, ScheduleUpdate{
			Success:      false,
			ErrorMessage: "boom",
			NextFetch:    time.Now().Add(time.Hour),
		}))
		broken, err := db.GetFeed(ctx, feed.ID)
		require.NoError(t, err)
		require.Equal(t, 1, broken.ErrorCount)
		require.Equal(t, "boom", broken.ErrorMessage)

		next := time.Now().Add(30 * time.Minute)
		require.NoError(t, db.UpdateFeedSchedule(ctx, feed.ID, ScheduleUpdate{
			Success:      true,
			ETag:         `"v2"`,
			LastModified: "Mon, 02 Mar 2026 10:00:00 GMT",
			NextFetch:    next,
		}))

		got, err := db.GetFeed(ctx, feed.ID)
		require.NoError(t, err)
		assert.Equal(t, `"v2"`, got.ETag)
		assert.Equal(t, "Mon, 02 Mar 2026 10:00:00 GMT", got.LastModified)
		assert.Equal(t, 0, got.ErrorCount)
		assert.Empty(t, got.ErrorMessage)
		require.NotNil(t, got.NextFetch)
		assert.WithinDuration(t, next, *got.NextFetch, time.Second)
		require.NotNil(t, got.LastFetched)
	})

	t.Run("failures accumulate error count", func(t *testing.T) {
		feed := createTestFeed(t, db, user.ID, category.ID, "https://bad.example.com/feed")

		for i := 1; i <= 3; i++ {
			require.NoError(t, db.UpdateFeedSchedule(ctx, feed.ID, ScheduleUpdate{
				Success:      false,
				ErrorMessage: "connection refused",
				NextFetch:    time.Now().Add(time.Hour),
			}))
			got, err := db.GetFeed(ctx, feed.ID)
			require.NoError(t, err)
			assert.Equal(t, i, got.ErrorCount)
		}
	})

	t.Run("missing feed is a no-op", func(t *testing.T) {
		err := db.UpdateFeedSchedule(ctx, 99999, ScheduleUpdate{Success: true, NextFetch: time.Now()})
		assert.NoError(t, err)
	})
}
