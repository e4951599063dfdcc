package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"golang.org/x/sync/errgroup"
)

// maxLoggedParseErrors caps the per-cell debug lines logged for one resource.
const maxLoggedParseErrors = 10

// Source retrieves one raw upstream table.
type Source interface {
	Fetch(ctx context.Context, r domain.Resource) (domain.RawTable, error)
}

// Builder turns the four upstream tables into the unified table:
// fetch, normalize, aggregate, merge, union.
type Builder struct {
	source  Source
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewBuilder creates a Builder reading from source.
func NewBuilder(source Source, logger *slog.Logger, metrics *observability.Metrics) *Builder {
	return &Builder{
		source:  source,
		logger:  logger,
		metrics: metrics,
	}
}

// Build fetches and normalizes all resources concurrently, then assembles
// the unified table. Any fetch or schema failure fails the whole build.
func (b *Builder) Build(ctx context.Context) (domain.Table, error) {
	var mu sync.Mutex
	normalized := make(map[domain.Resource]domain.Normalized, len(domain.Resources))

	g, gctx := errgroup.WithContext(ctx)
	for _, r := range domain.Resources {
		g.Go(func() error {
			n, err := b.load(gctx, r)
			if err != nil {
				return err
			}
			mu.Lock()
			normalized[r] = n
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	global := domain.MergeMetrics(
		domain.AggregateGlobal(normalized[domain.ConfirmedGlobal].Rows, domain.Confirmed),
		domain.AggregateGlobal(normalized[domain.DeathsGlobal].Rows, domain.Deaths),
	)
	us := domain.MergeMetrics(
		domain.AggregateUS(normalized[domain.ConfirmedUS].Rows, domain.Confirmed),
		domain.AggregateUS(normalized[domain.DeathsUS].Rows, domain.Deaths),
	)
	return domain.Union(global, us), nil
}

// load fetches and normalizes one resource, recording fetch and parse metrics.
func (b *Builder) load(ctx context.Context, r domain.Resource) (domain.Normalized, error) {
	start := time.Now()
	table, err := b.source.Fetch(ctx, r)
	b.metrics.FetchDuration.WithLabelValues(string(r)).Observe(time.Since(start).Seconds())
	if err != nil {
		b.metrics.FetchErrors.WithLabelValues(string(r)).Inc()
		var ferr *domain.FetchError
		if !errors.As(err, &ferr) {
			err = &domain.FetchError{Resource: r, Err: err}
		}
		return domain.Normalized{}, err
	}

	n, err := domain.NormalizeResource(r, table)
	if err != nil {
		b.metrics.FetchErrors.WithLabelValues(string(r)).Inc()
		return domain.Normalized{}, &domain.FetchError{Resource: r, Err: err}
	}

	if len(n.ParseErrors) > 0 {
		b.metrics.ParseErrors.WithLabelValues(string(r)).Add(float64(len(n.ParseErrors)))
		for i, perr := range n.ParseErrors {
			perr.Resource = r
			if i < maxLoggedParseErrors {
				b.logger.Debug("cell treated as missing", "error", perr)
			}
		}
		b.logger.Warn("source has malformed cells",
			"resource", r,
			"parse_errors", len(n.ParseErrors),
		)
	}

	b.logger.Info("source normalized",
		"resource", r,
		"records", len(table.Records),
		"rows", len(n.Rows),
	)
	return n, nil
}
