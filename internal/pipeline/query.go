package pipeline

import (
	"errors"
	"slices"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
)

// ErrNotReady is returned by Querier before any snapshot is loaded.
var ErrNotReady = errors.New("no snapshot loaded yet")

type memoKind uint8

const (
	countriesMemo memoKind = iota
	regionsMemo
	seriesMemo
)

// memoKey identifies one memoized answer within one snapshot generation.
type memoKey struct {
	generation uint64
	kind       memoKind
	country    string
	region     string
}

// SnapshotSource exposes the active snapshot without I/O.
type SnapshotSource interface {
	Snapshot() *domain.Snapshot
}

// Querier answers list and series queries against the active snapshot,
// memoizing results per snapshot generation. Returned slices are shared
// with the memo and must not be modified.
type Querier struct {
	snapshots SnapshotSource
	series    *lruCache[memoKey, domain.FilteredSeries]
	lists     *lruCache[memoKey, []string]
	metrics   *observability.Metrics
}

// NewQuerier creates a Querier holding at most maxEntries memoized series.
func NewQuerier(snapshots SnapshotSource, maxEntries int, metrics *observability.Metrics) *Querier {
	return &Querier{
		snapshots: snapshots,
		series:    newLRUCache[memoKey, domain.FilteredSeries](maxEntries),
		lists:     newLRUCache[memoKey, []string](maxEntries),
		metrics:   metrics,
	}
}

// Countries lists the countries of the active snapshot.
func (q *Querier) Countries() ([]string, error) {
	snap := q.snapshots.Snapshot()
	if snap == nil {
		return nil, ErrNotReady
	}
	key := memoKey{generation: snap.Generation, kind: countriesMemo}
	if v, ok := q.lists.get(key); ok {
		return v, nil
	}
	v := domain.ListCountries(snap.Table)
	q.lists.put(key, v)
	return v, nil
}

// Regions lists AllProvinces and the provinces of country.
func (q *Querier) Regions(country string) ([]string, error) {
	snap := q.snapshots.Snapshot()
	if snap == nil {
		return nil, ErrNotReady
	}
	key := memoKey{generation: snap.Generation, kind: regionsMemo, country: country}
	if v, ok := q.lists.get(key); ok {
		return v, nil
	}
	v := domain.ListRegions(snap.Table, country)
	if q.knownCountry(snap, country) {
		q.lists.put(key, v)
	}
	return v, nil
}

// Series returns the daily series for (country, region). An unknown
// combination yields an empty series and a *domain.QueryError.
func (q *Querier) Series(country, region string) (domain.FilteredSeries, error) {
	snap := q.snapshots.Snapshot()
	if snap == nil {
		return domain.FilteredSeries{}, ErrNotReady
	}

	key := memoKey{generation: snap.Generation, kind: seriesMemo, country: country, region: region}
	if v, ok := q.series.get(key); ok {
		q.metrics.QueryCache.WithLabelValues("hit").Inc()
		q.metrics.Queries.WithLabelValues("ok").Inc()
		return v, nil
	}
	q.metrics.QueryCache.WithLabelValues("miss").Inc()

	series, err := domain.Query(snap.Table, country, region)
	if err != nil {
		q.metrics.Queries.WithLabelValues("empty").Inc()
		return series, err
	}
	// Only non-empty results are memoized so junk selections cannot evict real ones.
	q.series.put(key, series)
	q.metrics.Queries.WithLabelValues("ok").Inc()
	return series, nil
}

// knownCountry reports whether country appears in snap, using the memoized
// country list.
func (q *Querier) knownCountry(snap *domain.Snapshot, country string) bool {
	key := memoKey{generation: snap.Generation, kind: countriesMemo}
	countries, ok := q.lists.get(key)
	if !ok {
		countries = domain.ListCountries(snap.Table)
		q.lists.put(key, countries)
	}
	_, found := slices.BinarySearch(countries, country)
	return found
}
