package pipeline_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Build(t *testing.T) {
	src := newFakeSource()
	b := pipeline.NewBuilder(src, slog.Default(), newTestMetrics())

	table, err := b.Build(context.Background())
	require.NoError(t, err)

	// 3 Testland + 3 China aggregate + 3 Hubei + 2 Alabama
	assert.Len(t, table, 11)
	assert.Equal(t, int64(4), src.calls.Load(), "one fetch per resource")

	testland := findRecord(t, table, "Testland", domain.AllProvinces, jan(24))
	assert.Equal(t, int64(15), *testland.CumConfirmed)
	assert.Equal(t, int64(1), *testland.CumDeaths)

	hubei := findRecord(t, table, "China", "Hubei", jan(24))
	china := findRecord(t, table, "China", domain.AllProvinces, jan(24))
	assert.Equal(t, *hubei.CumConfirmed, *china.CumConfirmed)

	alabama := findRecord(t, table, "US", "Alabama", jan(23))
	assert.Equal(t, int64(7), *alabama.CumConfirmed)
	assert.Equal(t, int64(1), *alabama.CumDeaths)
	require.NotNil(t, alabama.Lat)
	assert.InDelta(t, 31.6, *alabama.Lat, 1e-9)
}

func TestBuilder_Build_FetchFailureFailsBuild(t *testing.T) {
	src := newFakeSource()
	src.fail(domain.DeathsUS, errors.New("connection reset"))
	metrics := newTestMetrics()
	b := pipeline.NewBuilder(src, slog.Default(), metrics)

	table, err := b.Build(context.Background())
	require.Error(t, err)
	assert.Nil(t, table)

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.DeathsUS, ferr.Resource)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.FetchErrors.WithLabelValues(string(domain.DeathsUS))), 0)
}

func TestBuilder_Build_SchemaErrorIsFetchError(t *testing.T) {
	src := newFakeSource()
	src.tables[domain.ConfirmedGlobal] = domain.RawTable{
		Header:  []string{"Province/State", "Lat", "Long", "1/22/20"},
		Records: [][]string{{"", "1", "2", "3"}},
	}
	b := pipeline.NewBuilder(src, slog.Default(), newTestMetrics())

	_, err := b.Build(context.Background())

	var ferr *domain.FetchError
	require.ErrorAs(t, err, &ferr)
	assert.Equal(t, domain.ConfirmedGlobal, ferr.Resource)
	assert.ErrorIs(t, err, domain.ErrSchema)
}

func TestBuilder_Build_MalformedCellBecomesMissing(t *testing.T) {
	src := newFakeSource()
	tbl := src.tables[domain.ConfirmedGlobal]
	tbl.Records = [][]string{
		{"", "Testland", "10.0", "20.0", "10", "n/a", "15"},
		{"Hubei", "China", "30.9756", "112.2707", "444", "444", "549"},
	}
	src.tables[domain.ConfirmedGlobal] = tbl
	metrics := newTestMetrics()
	b := pipeline.NewBuilder(src, slog.Default(), metrics)

	table, err := b.Build(context.Background())
	require.NoError(t, err)

	assert.InDelta(t, 1, testutil.ToFloat64(metrics.ParseErrors.WithLabelValues(string(domain.ConfirmedGlobal))), 0)

	// Aggregation sums missing as zero.
	rec := findRecord(t, table, "Testland", domain.AllProvinces, jan(23))
	assert.Equal(t, int64(0), *rec.CumConfirmed)
}

func TestBuilder_Build_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	b := pipeline.NewBuilder(cancellingSource{}, slog.Default(), newTestMetrics())
	_, err := b.Build(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

type cancellingSource struct{}

func (cancellingSource) Fetch(ctx context.Context, _ domain.Resource) (domain.RawTable, error) {
	return domain.RawTable{}, ctx.Err()
}
