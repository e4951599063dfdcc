package pipeline_test

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/couchcryptid/covid-history-service/internal/pipeline"
	"github.com/couchcryptid/covid-history-service/internal/store"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

var epoch = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

// --- mocks ---

type fakeSource struct {
	tables map[domain.Resource]domain.RawTable
	calls  atomic.Int64

	mu      sync.Mutex
	failing map[domain.Resource]error
}

func newFakeSource() *fakeSource {
	return &fakeSource{tables: fixtureTables(), failing: map[domain.Resource]error{}}
}

func (f *fakeSource) Fetch(_ context.Context, r domain.Resource) (domain.RawTable, error) {
	f.calls.Add(1)
	f.mu.Lock()
	err := f.failing[r]
	f.mu.Unlock()
	if err != nil {
		return domain.RawTable{}, &domain.FetchError{Resource: r, Err: err}
	}
	return f.tables[r], nil
}

func (f *fakeSource) fail(r domain.Resource, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing[r] = err
}

func (f *fakeSource) heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failing = map[domain.Resource]error{}
}

func newTestMetrics() *observability.Metrics {
	return observability.NewMetricsForTesting()
}

func newTestStore(t *testing.T) *store.FileStore {
	t.Helper()
	st, err := store.NewFileStore(filepath.Join(t.TempDir(), "snapshot.json.zst"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func newTestCache(t *testing.T, src pipeline.Source, st *store.FileStore, clock clockwork.Clock) *pipeline.Cache {
	t.Helper()
	metrics := newTestMetrics()
	builder := pipeline.NewBuilder(src, slog.Default(), metrics)
	return pipeline.NewCache(builder, st, clock, slog.Default(), metrics)
}

// --- fixtures ---

// fixtureTables has Testland and China (Hubei) in the global files and two
// Alabama counties in the US files, over three and two dates respectively.
func fixtureTables() map[domain.Resource]domain.RawTable {
	globalHeader := []string{"Province/State", "Country/Region", "Lat", "Long", "1/22/20", "1/23/20", "1/24/20"}
	usHeader := []string{"UID", "iso2", "iso3", "code3", "FIPS", "Admin2", "Province_State", "Country_Region", "Lat", "Long_", "Combined_Key"}

	county := func(admin, lat, long string, extra ...string) []string {
		row := []string{"84001001", "US", "USA", "840", "1001.0", admin, "Alabama", "US", lat, long, admin + ", Alabama, US"}
		return append(row, extra...)
	}

	return map[domain.Resource]domain.RawTable{
		domain.ConfirmedGlobal: {
			Header: globalHeader,
			Records: [][]string{
				{"", "Testland", "10.0", "20.0", "10", "15", "15"},
				{"Hubei", "China", "30.9756", "112.2707", "444", "444", "549"},
			},
		},
		domain.DeathsGlobal: {
			Header: globalHeader,
			Records: [][]string{
				{"", "Testland", "10.0", "20.0", "0", "1", "1"},
				{"Hubei", "China", "30.9756", "112.2707", "17", "17", "24"},
			},
		},
		domain.ConfirmedUS: {
			Header: append(append([]string{}, usHeader...), "1/22/20", "1/23/20"),
			Records: [][]string{
				county("Autauga", "32.5", "-86.6", "1", "2"),
				county("Baldwin", "30.7", "-87.7", "3", "5"),
			},
		},
		domain.DeathsUS: {
			Header: append(append([]string{}, usHeader...), "Population", "1/22/20", "1/23/20"),
			Records: [][]string{
				county("Autauga", "32.5", "-86.6", "55869", "0", "0"),
				county("Baldwin", "30.7", "-87.7", "223234", "0", "1"),
			},
		},
	}
}

func jan(d int) time.Time {
	return time.Date(2020, time.January, d, 0, 0, 0, 0, time.UTC)
}

func findRecord(t *testing.T, table domain.Table, country, province string, date time.Time) domain.UnifiedRecord {
	t.Helper()
	for _, r := range table {
		if r.Country == country && r.Province == province && r.Date.Equal(date) {
			return r
		}
	}
	require.Failf(t, "record not found", "%s/%s on %s", country, province, date.Format(time.DateOnly))
	return domain.UnifiedRecord{}
}
