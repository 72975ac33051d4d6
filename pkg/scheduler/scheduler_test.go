package scheduler_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/umputun/feedloop/pkg/domain"
	"github.com/umputun/feedloop/pkg/scheduler"
	"github.com/umputun/feedloop/pkg/scheduler/mocks"
)

func TestScheduler_Sweep(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes all due feeds", func(t *testing.T) {
		env := setupEnv(t)
		env.createFeed(t, "https://a.example.com/feed.xml")
		env.createFeed(t, "https://b.example.com/feed.xml")
		env.createFeed(t, "https://c.example.com/feed.xml")

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				return parsedDoc("Feed", item(url+"/p1", "Post")), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		stats := s.Sweep(ctx)
		assert.Equal(t, 3, stats.Refreshed)
		assert.Equal(t, 0, stats.Errors)
		assert.Len(t, parser.FetchCalls(), 3)

		// all rescheduled into the future, nothing due anymore
		stats = s.Sweep(ctx)
		assert.Equal(t, 0, stats.Refreshed)
		assert.Equal(t, 0, stats.Errors)
		assert.Len(t, parser.FetchCalls(), 3)
	})

	t.Run("one failing feed does not stop the others", func(t *testing.T) {
		env := setupEnv(t)
		env.createFeed(t, "https://a.example.com/feed.xml")
		broken := env.createFeed(t, "https://broken.example.com/feed.xml")
		env.createFeed(t, "https://c.example.com/feed.xml")

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				if url == broken.URL {
					return nil, errors.New("boom")
				}
				return parsedDoc("Feed", item(url+"/p1", "Post")), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		stats := s.Sweep(ctx)
		assert.Equal(t, 2, stats.Refreshed)
		assert.Equal(t, 1, stats.Errors)
		assert.Len(t, parser.FetchCalls(), 3) // every due feed was attempted

		updated, err := env.db.GetFeed(ctx, broken.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, updated.ErrorCount)
	})

	t.Run("respects batch size", func(t *testing.T) {
		env := setupEnv(t)
		for _, u := range []string{"https://a.example.com/f", "https://b.example.com/f", "https://c.example.com/f"} {
			env.createFeed(t, u)
		}

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				return parsedDoc("Feed"), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{BatchSize: 2})

		stats := s.Sweep(ctx)
		assert.Equal(t, 2, stats.Refreshed)

		stats = s.Sweep(ctx)
		assert.Equal(t, 1, stats.Refreshed)
	})

	t.Run("skips disabled feeds", func(t *testing.T) {
		env := setupEnv(t)
		feed := env.createFeed(t, "https://a.example.com/feed.xml")
		feed.Disabled = true
		require.NoError(t, env.db.UpdateFeed(ctx, feed))

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				return parsedDoc("Feed"), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		stats := s.Sweep(ctx)
		assert.Equal(t, 0, stats.Refreshed)
		assert.Empty(t, parser.FetchCalls())
	})

	t.Run("overlapping sweep is skipped", func(t *testing.T) {
		env := setupEnv(t)
		env.createFeed(t, "https://a.example.com/feed.xml")

		started := make(chan struct{})
		release := make(chan struct{})
		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				close(started)
				<-release
				return parsedDoc("Feed"), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		done := make(chan domain.SweepStats)
		go func() { done <- s.Sweep(ctx) }()

		<-started // first sweep is mid-fetch
		skipped := s.Sweep(ctx)
		assert.Equal(t, domain.SweepStats{}, skipped)

		close(release)
		first := <-done
		assert.Equal(t, 1, first.Refreshed)
		assert.Len(t, parser.FetchCalls(), 1)
	})
}

func TestScheduler_RefreshFeedNow(t *testing.T) {
	ctx := context.Background()

	t.Run("refreshes the named feed", func(t *testing.T) {
		env := setupEnv(t)
		feed := env.createFeed(t, "https://a.example.com/feed.xml")

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				return parsedDoc("Feed", item("https://a.example.com/p1", "Post")), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		result, err := s.RefreshFeedNow(ctx, feed.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.Equal(t, 1, result.NewEntries)
	})

	t.Run("unknown feed", func(t *testing.T) {
		env := setupEnv(t)
		r := scheduler.NewRefresher(env.db, env.db, env.db, &mocks.ParserMock{}, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		_, err := s.RefreshFeedNow(ctx, 12345)
		require.Error(t, err)
		assert.True(t, domain.IsNotFound(err))
	})

	t.Run("works for disabled feeds", func(t *testing.T) {
		env := setupEnv(t)
		feed := env.createFeed(t, "https://a.example.com/feed.xml")
		feed.Disabled = true
		require.NoError(t, env.db.UpdateFeed(ctx, feed))

		parser := &mocks.ParserMock{
			FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
				return parsedDoc("Feed"), nil
			},
		}
		r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
		s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{})

		result, err := s.RefreshFeedNow(ctx, feed.ID)
		require.NoError(t, err)
		assert.True(t, result.Success)
	})
}

func TestScheduler_StartStop(t *testing.T) {
	env := setupEnv(t)
	env.createFeed(t, "https://a.example.com/feed.xml")

	// expired session, the cleanup worker should purge it
	require.NoError(t, env.db.CreateSession(context.Background(), &domain.Session{
		Token:     "stale-token",
		UserID:    env.user.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))

	parser := &mocks.ParserMock{
		FetchFunc: func(ctx context.Context, url, etag, lastModified string) (*domain.ParsedFeed, error) {
			return parsedDoc("Feed", item("https://a.example.com/p1", "Post")), nil
		},
	}
	r := scheduler.NewRefresher(env.db, env.db, env.db, parser, nil, time.Hour)
	s := scheduler.NewScheduler(env.db, env.db, r, scheduler.Config{
		SweepInterval:   time.Hour,
		CleanupInterval: 10 * time.Millisecond,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	s.Start(ctx)

	// initial sweep fires immediately on start
	require.Eventually(t, func() bool { return len(parser.FetchCalls()) > 0 }, time.Second, 10*time.Millisecond)

	// give the cleanup worker a few ticks, then the stale session must be gone
	time.Sleep(100 * time.Millisecond)
	removed, err := env.db.DeleteExpiredSessions(context.Background())
	require.NoError(t, err)
	assert.Zero(t, removed, "cleanup worker should have purged the expired session")

	s.Stop()
}
