package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	httpadapter "github.com/couchcryptid/covid-history-service/internal/adapter/http"
	kafkaadapter "github.com/couchcryptid/covid-history-service/internal/adapter/kafka"
	"github.com/couchcryptid/covid-history-service/internal/adapter/source"
	"github.com/couchcryptid/covid-history-service/internal/config"
	"github.com/couchcryptid/covid-history-service/internal/observability"
	"github.com/couchcryptid/covid-history-service/internal/pipeline"
	"github.com/couchcryptid/covid-history-service/internal/store"
	"github.com/jonboulle/clockwork"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	var src pipeline.Source
	if cfg.SourceDir != "" {
		src = source.NewDirSource(cfg.SourceDir)
		logger.Info("reading sources from directory", "dir", cfg.SourceDir)
	} else {
		src = source.NewHTTPSource(cfg.SourceBaseURL, cfg.SourceTimeout, logger)
		logger.Info("reading sources over http", "base_url", cfg.SourceBaseURL, "timeout", cfg.SourceTimeout)
	}

	st, err := store.NewFileStore(cfg.CachePath)
	if err != nil {
		logger.Error("failed to open snapshot store", "error", err)
		os.Exit(1)
	}

	clock := clockwork.NewRealClock()
	builder := pipeline.NewBuilder(src, logger, metrics)
	cache := pipeline.NewCache(builder, st, clock, logger, metrics)
	querier := pipeline.NewQuerier(cache, cfg.QueryCacheSize, metrics)

	// Optional Kafka feed (feature-flagged via KAFKA_ENABLED / KAFKA_BROKERS).
	var publisher pipeline.Publisher
	var kafkaPublisher *kafkaadapter.Publisher
	if cfg.KafkaEnabled {
		kafkaPublisher = kafkaadapter.NewPublisher(cfg, logger, metrics)
		publisher = kafkaPublisher
		logger.Info("kafka feed enabled", "brokers", cfg.KafkaBrokers, "topic", cfg.KafkaTopic)
	} else {
		logger.Info("kafka feed disabled")
	}

	scheduler := pipeline.NewScheduler(cache, publisher, clock, pipeline.SchedulerConfig{
		Interval:    cfg.RefreshInterval,
		MaxAttempts: cfg.RefreshMaxAttempts,
		MaxBackoff:  cfg.RefreshMaxBackoff,
	}, logger, metrics)

	srv := httpadapter.NewServer(cfg.HTTPAddr, cache, querier, scheduler, logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Start HTTP server.
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", "error", err)
		}
	}()

	// Start refresh scheduler.
	schedulerDone := make(chan struct{})
	go func() {
		defer close(schedulerDone)
		if err := scheduler.Run(ctx); err != nil {
			logger.Error("scheduler error", "error", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "error", err)
	}
	select {
	case <-schedulerDone:
	case <-shutdownCtx.Done():
		logger.Warn("scheduler did not stop before shutdown timeout")
	}
	if kafkaPublisher != nil {
		if err := kafkaPublisher.Close(); err != nil {
			logger.Error("kafka publisher close error", "error", err)
		}
	}
	if err := st.Close(); err != nil {
		logger.Error("snapshot store close error", "error", err)
	}

	logger.Info("shutdown complete")
}
