// Package scheduler drives periodic feed refreshes: a sweep ticker selects due
// feeds and runs the refresh pipeline for each, a companion ticker purges
// expired sessions. Both tickers are owned by the Scheduler handle, started
// with Start and awaited by Stop.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-pkgz/lgr"
	"golang.org/x/sync/errgroup"

	"github.com/umputun/feedloop/pkg/domain"
)

// SessionStore purges expired authentication sessions
type SessionStore interface {
	DeleteExpiredSessions(ctx context.Context) (int64, error)
}

// Scheduler owns the periodic sweep and session-cleanup tasks
type Scheduler struct {
	feeds     FeedStore
	sessions  SessionStore
	refresher *Refresher

	sweepInterval   time.Duration
	cleanupInterval time.Duration
	batchSize       int
	concurrency     int

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	sweeping atomic.Bool // single-slot sweep-in-progress flag
}

// Config holds scheduler settings
type Config struct {
	SweepInterval   time.Duration
	CleanupInterval time.Duration
	BatchSize       int
	Concurrency     int
}

// NewScheduler creates a scheduler driving the given refresher
func NewScheduler(feeds FeedStore, sessions SessionStore, refresher *Refresher, cfg Config) *Scheduler {
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = time.Hour
	}
	if cfg.CleanupInterval == 0 {
		cfg.CleanupInterval = time.Hour
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 10
	}
	if cfg.Concurrency == 0 {
		cfg.Concurrency = 1
	}

	return &Scheduler{
		feeds:           feeds,
		sessions:        sessions,
		refresher:       refresher,
		sweepInterval:   cfg.SweepInterval,
		cleanupInterval: cfg.CleanupInterval,
		batchSize:       cfg.BatchSize,
		concurrency:     cfg.Concurrency,
	}
}

// Start begins the periodic workers
func (s *Scheduler) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.sweepWorker(ctx)

	s.wg.Add(1)
	go s.cleanupWorker(ctx)

	lgr.Printf("[INFO] scheduler started, sweep interval %v, batch %d, cleanup interval %v",
		s.sweepInterval, s.batchSize, s.cleanupInterval)
}

// Stop cancels the workers and waits for them to finish
func (s *Scheduler) Stop() {
	lgr.Printf("[INFO] stopping scheduler...")
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	lgr.Printf("[INFO] scheduler stopped")
}

// sweepWorker refreshes due feeds on every tick, starting immediately
func (s *Scheduler) sweepWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.sweepInterval)
	defer ticker.Stop()

	s.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep selects due feeds and refreshes them, tolerating individual failures.
// A tick firing while a sweep is still running is skipped, sweeps never overlap.
func (s *Scheduler) Sweep(ctx context.Context) domain.SweepStats {
	if !s.sweeping.CompareAndSwap(false, true) {
		lgr.Printf("[WARN] sweep still in progress, skipping tick")
		return domain.SweepStats{}
	}
	defer s.sweeping.Store(false)

	dueFeeds, err := s.feeds.GetDueFeeds(ctx, s.batchSize)
	if err != nil {
		lgr.Printf("[ERROR] failed to get due feeds: %v", err)
		return domain.SweepStats{}
	}
	if len(dueFeeds) == 0 {
		return domain.SweepStats{}
	}

	lgr.Printf("[INFO] sweep started, %d due feeds", len(dueFeeds))

	var mu sync.Mutex
	var stats domain.SweepStats

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)

	for _, feed := range dueFeeds {
		g.Go(func() error {
			result := s.refreshSafe(ctx, feed)

			mu.Lock()
			if result.Success {
				stats.Refreshed++
			} else {
				stats.Errors++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait() // per-feed errors are counted, never propagated

	lgr.Printf("[INFO] sweep completed: %d refreshed, %d errors", stats.Refreshed, stats.Errors)
	return stats
}

// refreshSafe runs the pipeline for one feed, converting a panic into a failed result
func (s *Scheduler) refreshSafe(ctx context.Context, feed *domain.Feed) (result domain.RefreshResult) {
	defer func() {
		if p := recover(); p != nil {
			lgr.Printf("[ERROR] panic refreshing feed %d: %v", feed.ID, p)
			result = domain.RefreshResult{FeedID: feed.ID, Success: false, ErrorMessage: fmt.Sprintf("panic: %v", p)}
		}
	}()
	return s.refresher.Refresh(ctx, feed)
}

// Subscribe adds a new feed for a user through the refresh pipeline
func (s *Scheduler) Subscribe(ctx context.Context, userID int64, feedURL string, categoryID int64) (*domain.Feed, error) {
	return s.refresher.Subscribe(ctx, userID, feedURL, categoryID)
}

// RefreshFeedNow triggers an immediate refresh of a specific feed, outside the
// periodic sweep. The result is surfaced to the caller.
func (s *Scheduler) RefreshFeedNow(ctx context.Context, feedID int64) (*domain.RefreshResult, error) {
	feed, err := s.feeds.GetFeed(ctx, feedID)
	if err != nil {
		return nil, err
	}

	result := s.refresher.Refresh(ctx, feed)
	return &result, nil
}

// cleanupWorker periodically purges expired sessions, independent of sweeps
func (s *Scheduler) cleanupWorker(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.sessions.DeleteExpiredSessions(ctx)
			if err != nil {
				lgr.Printf("[ERROR] session cleanup failed: %v", err)
				continue
			}
			if removed > 0 {
				lgr.Printf("[INFO] purged %d expired sessions", removed)
			}
		}
	}
}
