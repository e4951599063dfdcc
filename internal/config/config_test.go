package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.HTTPAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, 10*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, DefaultSourceBaseURL, cfg.SourceBaseURL)
	assert.Empty(t, cfg.SourceDir)
	assert.Equal(t, 30*time.Second, cfg.SourceTimeout)
	assert.Equal(t, "data/snapshot.json.zst", cfg.CachePath)
	assert.Equal(t, time.Hour, cfg.RefreshInterval)
	assert.Equal(t, 3, cfg.RefreshMaxAttempts)
	assert.Equal(t, 5*time.Second, cfg.RefreshMaxBackoff)
	assert.Equal(t, 256, cfg.QueryCacheSize)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "covid-latest-records", cfg.KafkaTopic)
	assert.False(t, cfg.KafkaEnabled)
}

func TestLoad_CustomEnv(t *testing.T) {
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("LOG_FORMAT", "text")
	t.Setenv("SHUTDOWN_TIMEOUT", "30s")
	t.Setenv("SOURCE_BASE_URL", "http://mirror.local/series/")
	t.Setenv("SOURCE_DIR", "/srv/jhu")
	t.Setenv("SOURCE_TIMEOUT", "1m")
	t.Setenv("CACHE_PATH", "/var/cache/covid.zst")
	t.Setenv("REFRESH_INTERVAL", "15m")
	t.Setenv("REFRESH_MAX_ATTEMPTS", "5")
	t.Setenv("REFRESH_MAX_BACKOFF", "30s")
	t.Setenv("QUERY_CACHE_SIZE", "16")
	t.Setenv("KAFKA_BROKERS", "broker1:9092, broker2:9092")
	t.Setenv("KAFKA_TOPIC", "latest")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.HTTPAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "text", cfg.LogFormat)
	assert.Equal(t, 30*time.Second, cfg.ShutdownTimeout)
	assert.Equal(t, "http://mirror.local/series", cfg.SourceBaseURL)
	assert.Equal(t, "/srv/jhu", cfg.SourceDir)
	assert.Equal(t, time.Minute, cfg.SourceTimeout)
	assert.Equal(t, "/var/cache/covid.zst", cfg.CachePath)
	assert.Equal(t, 15*time.Minute, cfg.RefreshInterval)
	assert.Equal(t, 5, cfg.RefreshMaxAttempts)
	assert.Equal(t, 30*time.Second, cfg.RefreshMaxBackoff)
	assert.Equal(t, 16, cfg.QueryCacheSize)
	assert.Equal(t, []string{"broker1:9092", "broker2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, "latest", cfg.KafkaTopic)
	assert.True(t, cfg.KafkaEnabled)
}

func TestLoad_InvalidDurations(t *testing.T) {
	for _, key := range []string{"SHUTDOWN_TIMEOUT", "SOURCE_TIMEOUT", "REFRESH_INTERVAL", "REFRESH_MAX_BACKOFF"} {
		t.Run(key, func(t *testing.T) {
			t.Setenv(key, "not-a-duration")
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), key)
		})
	}
}

func TestLoad_NegativeRefreshInterval(t *testing.T) {
	t.Setenv("REFRESH_INTERVAL", "-1h")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_INTERVAL")
}

func TestLoad_InvalidMaxAttempts(t *testing.T) {
	t.Setenv("REFRESH_MAX_ATTEMPTS", "0")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "REFRESH_MAX_ATTEMPTS")
}

func TestLoad_QueryCacheTooLarge(t *testing.T) {
	t.Setenv("QUERY_CACHE_SIZE", "999999")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "QUERY_CACHE_SIZE")
}

func TestLoad_KafkaEnabledWithoutBrokers(t *testing.T) {
	t.Setenv("KAFKA_ENABLED", "true")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "KAFKA_BROKERS")
}

func TestLoad_KafkaExplicitlyDisabled(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", "localhost:9092")
	t.Setenv("KAFKA_ENABLED", "false")
	cfg, err := Load()
	require.NoError(t, err)
	assert.False(t, cfg.KafkaEnabled)
	assert.Equal(t, []string{"localhost:9092"}, cfg.KafkaBrokers)
}

func TestLoad_EmptyCachePath(t *testing.T) {
	t.Setenv("CACHE_PATH", "")
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "CACHE_PATH")
}
