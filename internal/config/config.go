package config

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DefaultSourceBaseURL is the JHU CSSE time-series directory on GitHub.
const DefaultSourceBaseURL = "https://raw.githubusercontent.com/CSSEGISandData/COVID-19/master/csse_covid_19_data/csse_covid_19_time_series"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Source configuration. SourceDir, when set, replaces the remote source.
	SourceBaseURL string
	SourceDir     string
	SourceTimeout time.Duration

	CachePath string

	RefreshInterval    time.Duration
	RefreshMaxAttempts int
	RefreshMaxBackoff  time.Duration

	QueryCacheSize int

	// Kafka feed of latest records.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	v := viper.New()
	v.AllowEmptyEnv(true)
	v.AutomaticEnv()

	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("SOURCE_BASE_URL", DefaultSourceBaseURL)
	v.SetDefault("SOURCE_TIMEOUT", "30s")
	v.SetDefault("CACHE_PATH", "data/snapshot.json.zst")
	v.SetDefault("REFRESH_INTERVAL", "1h")
	v.SetDefault("REFRESH_MAX_ATTEMPTS", "3")
	v.SetDefault("REFRESH_MAX_BACKOFF", "5s")
	v.SetDefault("QUERY_CACHE_SIZE", "256")
	v.SetDefault("KAFKA_TOPIC", "covid-latest-records")

	shutdownTimeout, err := positiveDuration(v, "SHUTDOWN_TIMEOUT")
	if err != nil {
		return nil, err
	}
	sourceTimeout, err := positiveDuration(v, "SOURCE_TIMEOUT")
	if err != nil {
		return nil, err
	}
	refreshInterval, err := positiveDuration(v, "REFRESH_INTERVAL")
	if err != nil {
		return nil, err
	}
	maxBackoff, err := positiveDuration(v, "REFRESH_MAX_BACKOFF")
	if err != nil {
		return nil, err
	}
	maxAttempts, err := intInRange(v, "REFRESH_MAX_ATTEMPTS", 1, 20)
	if err != nil {
		return nil, err
	}
	queryCacheSize, err := intInRange(v, "QUERY_CACHE_SIZE", 1, 100000)
	if err != nil {
		return nil, err
	}

	brokers := parseBrokers(v.GetString("KAFKA_BROKERS"))
	kafkaEnabled := len(brokers) > 0
	if s := v.GetString("KAFKA_ENABLED"); s != "" {
		kafkaEnabled = s == "true"
	}

	cfg := &Config{
		HTTPAddr:        v.GetString("HTTP_ADDR"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		ShutdownTimeout: shutdownTimeout,

		SourceBaseURL: strings.TrimRight(v.GetString("SOURCE_BASE_URL"), "/"),
		SourceDir:     v.GetString("SOURCE_DIR"),
		SourceTimeout: sourceTimeout,

		CachePath: v.GetString("CACHE_PATH"),

		RefreshInterval:    refreshInterval,
		RefreshMaxAttempts: maxAttempts,
		RefreshMaxBackoff:  maxBackoff,

		QueryCacheSize: queryCacheSize,

		KafkaBrokers: brokers,
		KafkaTopic:   v.GetString("KAFKA_TOPIC"),
		KafkaEnabled: kafkaEnabled,
	}

	if cfg.SourceBaseURL == "" && cfg.SourceDir == "" {
		return nil, errors.New("SOURCE_BASE_URL or SOURCE_DIR is required")
	}
	if cfg.CachePath == "" {
		return nil, errors.New("CACHE_PATH is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when the Kafka feed is enabled")
	}

	return cfg, nil
}

func positiveDuration(v *viper.Viper, key string) (time.Duration, error) {
	d, err := time.ParseDuration(v.GetString(key))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func intInRange(v *viper.Viper, key string, lo, hi int) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(v.GetString(key)))
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be between %d and %d", key, lo, hi)
	}
	return n, nil
}

func parseBrokers(s string) []string {
	var out []string
	for _, b := range strings.Split(s, ",") {
		if b = strings.TrimSpace(b); b != "" {
			out = append(out, b)
		}
	}
	return out
}
