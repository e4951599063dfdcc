package kafka

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/prometheus/client_golang/prometheus/testutil"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeWriter struct {
	msgs []kafkago.Message
	err  error
}

func (f *fakeWriter) WriteMessages(_ context.Context, msgs ...kafkago.Message) error {
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, msgs...)
	return nil
}

func (f *fakeWriter) Close() error { return nil }

func day(d int) time.Time {
	return time.Date(2020, time.March, d, 0, 0, 0, 0, time.UTC)
}

func TestSerializeToMessage(t *testing.T) {
	fetchedAt := time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC)
	rec := domain.UnifiedRecord{
		Country:      "China",
		Province:     "Hubei",
		Lat:          domain.Float64(30.9756),
		Long:         domain.Float64(112.2707),
		Date:         day(5),
		CumConfirmed: domain.Int64(67466),
	}

	msg, err := serializeToMessage(rec, fetchedAt)
	require.NoError(t, err)

	assert.Equal(t, []byte("China|Hubei"), msg.Key)
	assert.Contains(t, string(msg.Value), `"cum_confirmed":67466`)
	assert.Contains(t, string(msg.Value), `"cum_deaths":null`)
	require.Len(t, msg.Headers, 2)
	assert.Equal(t, "date", msg.Headers[0].Key)
	assert.Equal(t, []byte("2020-03-05"), msg.Headers[0].Value)
	assert.Equal(t, "fetched_at", msg.Headers[1].Key)
	assert.Equal(t, []byte(fetchedAt.Format(time.RFC3339)), msg.Headers[1].Value)
}

func TestPublisher_PublishesLatestPerEntity(t *testing.T) {
	w := &fakeWriter{}
	metrics := observability.NewMetricsForTesting()
	p := &Publisher{writer: w, logger: slog.Default(), metrics: metrics}

	snap := &domain.Snapshot{
		Table: domain.Table{
			{Country: "Testland", Province: domain.AllProvinces, Date: day(1), CumConfirmed: domain.Int64(1)},
			{Country: "Testland", Province: domain.AllProvinces, Date: day(2), CumConfirmed: domain.Int64(3)},
			{Country: "US", Province: "Alabama", Date: day(2), CumConfirmed: domain.Int64(7)},
		},
		FetchedAt:  time.Date(2024, 3, 10, 9, 30, 0, 0, time.UTC),
		Generation: 4,
	}

	require.NoError(t, p.Publish(context.Background(), snap))

	require.Len(t, w.msgs, 2)
	assert.Equal(t, []byte("Testland|<all>"), w.msgs[0].Key)
	assert.Contains(t, string(w.msgs[0].Value), `"cum_confirmed":3`)
	assert.Equal(t, []byte("US|Alabama"), w.msgs[1].Key)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.RecordsPublished), 0)
}

func TestPublisher_WriteError(t *testing.T) {
	w := &fakeWriter{err: errors.New("leader not available")}
	metrics := observability.NewMetricsForTesting()
	p := &Publisher{writer: w, logger: slog.Default(), metrics: metrics}

	snap := &domain.Snapshot{Table: domain.Table{{Country: "Testland", Province: domain.AllProvinces, Date: day(1)}}}

	err := p.Publish(context.Background(), snap)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "leader not available")
	assert.Zero(t, testutil.ToFloat64(metrics.RecordsPublished))
}

func TestPublisher_EmptySnapshot(t *testing.T) {
	w := &fakeWriter{err: errors.New("must not be called")}
	p := &Publisher{writer: w, logger: slog.Default(), metrics: observability.NewMetricsForTesting()}

	require.NoError(t, p.Publish(context.Background(), &domain.Snapshot{}))
}
