package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/jonboulle/clockwork"
)

const initialBackoff = 200 * time.Millisecond

// Refresher is the part of Cache the scheduler drives.
type Refresher interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Refresh(ctx context.Context) (*domain.Snapshot, error)
	RefreshOrStale(ctx context.Context) (snap *domain.Snapshot, fresh bool, err error)
}

// Publisher forwards a freshly built snapshot downstream.
type Publisher interface {
	Publish(ctx context.Context, snap *domain.Snapshot) error
}

// SchedulerConfig controls the refresh cadence and retry policy.
type SchedulerConfig struct {
	Interval    time.Duration
	MaxAttempts int
	MaxBackoff  time.Duration
}

// Scheduler refreshes the cache on a fixed interval until cancelled.
type Scheduler struct {
	cache     Refresher
	publisher Publisher // nil when publishing is disabled
	clock     clockwork.Clock
	cfg       SchedulerConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewScheduler creates a Scheduler. publisher may be nil.
func NewScheduler(cache Refresher, publisher Publisher, clock clockwork.Clock, cfg SchedulerConfig, logger *slog.Logger, metrics *observability.Metrics) *Scheduler {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.MaxBackoff < initialBackoff {
		cfg.MaxBackoff = initialBackoff
	}
	return &Scheduler{
		cache:     cache,
		publisher: publisher,
		clock:     clock,
		cfg:       cfg,
		logger:    logger,
		metrics:   metrics,
	}
}

// Run loads the initial snapshot and then refreshes on every tick until
// the context is cancelled.
func (s *Scheduler) Run(ctx context.Context) error {
	s.logger.Info("scheduler started",
		"interval", s.cfg.Interval,
		"max_attempts", s.cfg.MaxAttempts,
	)
	s.metrics.SchedulerActive.Set(1)
	defer s.metrics.SchedulerActive.Set(0)

	if _, err := s.cache.Load(ctx); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		s.logger.Error("initial load failed", "error", err)
		s.refreshWithRetry(ctx)
	}

	ticker := s.clock.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
			s.refreshWithRetry(ctx)
		}
	}
}

// RefreshNow performs one refresh without retry and publishes the result.
func (s *Scheduler) RefreshNow(ctx context.Context) (*domain.Snapshot, error) {
	snap, err := s.cache.Refresh(ctx)
	if err != nil {
		return nil, err
	}
	s.publish(ctx, snap)
	return snap, nil
}

// refreshWithRetry attempts a refresh up to MaxAttempts times with
// exponential backoff. The last attempt falls back to the previous
// snapshot. Returns false if no fresh snapshot was installed.
func (s *Scheduler) refreshWithRetry(ctx context.Context) bool {
	backoff := initialBackoff
	for attempt := 1; attempt < s.cfg.MaxAttempts; attempt++ {
		snap, err := s.cache.Refresh(ctx)
		if err == nil {
			s.publish(ctx, snap)
			return true
		}
		if ctx.Err() != nil {
			return false
		}
		s.logger.Warn("refresh attempt failed",
			"attempt", attempt,
			"max_attempts", s.cfg.MaxAttempts,
			"error", err,
		)
		if !sleepWithContext(ctx, s.clock, backoff) {
			return false
		}
		backoff = nextBackoff(backoff, s.cfg.MaxBackoff)
	}

	snap, fresh, err := s.cache.RefreshOrStale(ctx)
	switch {
	case err != nil:
		if ctx.Err() == nil {
			s.logger.Error("refresh gave up, no snapshot available",
				"attempts", s.cfg.MaxAttempts,
				"error", err,
			)
		}
		return false
	case !fresh:
		if ctx.Err() != nil {
			return false
		}
		s.logger.Error("refresh gave up, keeping previous snapshot",
			"attempts", s.cfg.MaxAttempts,
			"generation", snap.Generation,
		)
		return false
	}
	s.publish(ctx, snap)
	return true
}

func (s *Scheduler) publish(ctx context.Context, snap *domain.Snapshot) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, snap); err != nil {
		s.metrics.PublishErrors.Inc()
		s.logger.Error("publish snapshot failed", "error", err, "generation", snap.Generation)
	}
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, clock clockwork.Clock, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := clock.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.Chan():
		return true
	}
}
