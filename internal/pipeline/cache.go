package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/couchcryptid/covid-history-service/internal/store"
	"github.com/jonboulle/clockwork"
)

// ErrEmptyTable is returned by Refresh when the sources yield no records.
// The previous snapshot is kept.
var ErrEmptyTable = errors.New("refresh produced an empty table")

// TableBuilder produces a fresh unified table.
type TableBuilder interface {
	Build(ctx context.Context) (domain.Table, error)
}

// SnapshotStore persists snapshots between process restarts.
type SnapshotStore interface {
	Read() (domain.Snapshot, error)
	Write(snap domain.Snapshot) error
}

// Cache owns the active snapshot. Refreshes are serialized; readers get
// immutable snapshots swapped in atomically and never block on the network.
type Cache struct {
	builder TableBuilder
	store   SnapshotStore
	clock   clockwork.Clock
	logger  *slog.Logger
	metrics *observability.Metrics

	mu         sync.Mutex // serializes Refresh and the initial Load
	current    atomic.Pointer[domain.Snapshot]
	generation atomic.Uint64
}

// NewCache creates a Cache. Nothing is loaded until Load or Refresh.
func NewCache(builder TableBuilder, st SnapshotStore, clock clockwork.Clock, logger *slog.Logger, metrics *observability.Metrics) *Cache {
	return &Cache{
		builder: builder,
		store:   st,
		clock:   clock,
		logger:  logger,
		metrics: metrics,
	}
}

// Snapshot returns the active snapshot, or nil before the first Load.
func (c *Cache) Snapshot() *domain.Snapshot {
	return c.current.Load()
}

// CheckReadiness returns nil once a snapshot is available.
func (c *Cache) CheckReadiness(_ context.Context) error {
	if c.current.Load() == nil {
		return errors.New("no snapshot loaded yet")
	}
	return nil
}

// Load returns the active snapshot, reading the persisted one on first
// use. When nothing usable is persisted it performs a Refresh.
func (c *Cache) Load(ctx context.Context) (*domain.Snapshot, error) {
	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if snap := c.current.Load(); snap != nil {
		return snap, nil
	}

	snap, err := c.store.Read()
	switch {
	case err == nil:
		installed := c.install(snap)
		c.logger.Info("snapshot loaded from disk",
			"records", len(installed.Table),
			"fetched_at", installed.FetchedAt,
		)
		return installed, nil
	case errors.Is(err, store.ErrNoSnapshot):
		c.logger.Info("no snapshot on disk, refreshing")
	default:
		c.logger.Warn("snapshot unreadable, refreshing", "error", err)
	}
	return c.refreshLocked(ctx)
}

// Refresh rebuilds the unified table, persists it, and makes it the
// active snapshot. On failure the previous snapshot stays active and on disk.
func (c *Cache) Refresh(ctx context.Context) (*domain.Snapshot, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshLocked(ctx)
}

// RefreshOrStale refreshes, falling back to the active snapshot when the
// refresh fails. fresh reports whether the returned snapshot is the
// result of this refresh. It errors only when no snapshot exists at all.
func (c *Cache) RefreshOrStale(ctx context.Context) (snap *domain.Snapshot, fresh bool, err error) {
	snap, err = c.Refresh(ctx)
	if err == nil {
		return snap, true, nil
	}
	if stale := c.current.Load(); stale != nil {
		c.metrics.Refreshes.WithLabelValues("stale").Inc()
		c.logger.Warn("refresh failed, serving stale snapshot",
			"error", err,
			"fetched_at", stale.FetchedAt,
			"generation", stale.Generation,
		)
		return stale, false, nil
	}
	return nil, false, err
}

func (c *Cache) refreshLocked(ctx context.Context) (*domain.Snapshot, error) {
	start := time.Now()

	table, err := c.builder.Build(ctx)
	if err == nil && len(table) == 0 {
		err = ErrEmptyTable
	}
	if err != nil {
		c.metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("refresh: %w", err)
	}

	snap := domain.Snapshot{Table: table, FetchedAt: c.clock.Now().UTC()}
	if err := c.store.Write(snap); err != nil {
		c.metrics.Refreshes.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("persist snapshot: %w", err)
	}

	installed := c.install(snap)
	c.metrics.Refreshes.WithLabelValues("success").Inc()
	c.metrics.RefreshDuration.Observe(time.Since(start).Seconds())
	c.logger.Info("snapshot refreshed",
		"records", len(installed.Table),
		"generation", installed.Generation,
		"duration", time.Since(start),
	)
	return installed, nil
}

func (c *Cache) install(snap domain.Snapshot) *domain.Snapshot {
	snap.Generation = c.generation.Add(1)
	c.current.Store(&snap)
	c.metrics.SnapshotRecords.Set(float64(len(snap.Table)))
	c.metrics.SnapshotTimestamp.Set(float64(snap.FetchedAt.Unix()))
	return &snap
}
