package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/config"
	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	kafkago "github.com/segmentio/kafka-go"
)

// messageWriter is the subset of *kafkago.Writer used by Publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Close() error
}

// Publisher writes the latest record of every entity to a Kafka topic.
// It implements pipeline.Publisher.
type Publisher struct {
	writer  messageWriter
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewPublisher creates a Kafka producer for the configured feed topic.
func NewPublisher(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) *Publisher {
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.KafkaBrokers...),
		Topic:        cfg.KafkaTopic,
		Balancer:     &kafkago.Hash{},
		RequiredAcks: kafkago.RequireAll,
	}
	return &Publisher{writer: w, logger: logger, metrics: metrics}
}

// Publish sends one message per (country, province) carrying its most
// recent record, in a single WriteMessages call.
func (p *Publisher) Publish(ctx context.Context, snap *domain.Snapshot) error {
	latest := domain.Latest(snap.Table)
	if len(latest) == 0 {
		return nil
	}
	msgs := make([]kafkago.Message, len(latest))
	for i := range latest {
		msg, err := serializeToMessage(latest[i], snap.FetchedAt)
		if err != nil {
			return err
		}
		msgs[i] = msg
	}
	if err := p.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %d records: %w", len(msgs), err)
	}
	p.metrics.RecordsPublished.Add(float64(len(msgs)))
	p.logger.Info("latest records published", "records", len(msgs), "generation", snap.Generation)
	return nil
}

func (p *Publisher) Close() error {
	return p.writer.Close()
}

// messageKey identifies an entity; the same entity always lands on the same partition.
func messageKey(rec domain.UnifiedRecord) []byte {
	return []byte(rec.Country + "|" + rec.Province)
}

// serializeToMessage marshals a UnifiedRecord into a Kafka message.
func serializeToMessage(rec domain.UnifiedRecord, fetchedAt time.Time) (kafkago.Message, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return kafkago.Message{}, fmt.Errorf("serialize record: %w", err)
	}
	return kafkago.Message{
		Key:   messageKey(rec),
		Value: data,
		Headers: []kafkago.Header{
			{Key: "date", Value: []byte(rec.Date.Format(time.DateOnly))},
			{Key: "fetched_at", Value: []byte(fetchedAt.Format(time.RFC3339))},
		},
	}, nil
}
