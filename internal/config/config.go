package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata" // EXPORT_TIMEZONE must resolve on minimal images

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Upstream monitoring API.
	APIBaseURL string
	APITimeout time.Duration

	PollInterval time.Duration
	PollRetries  int

	// Kafka snapshot publishing.
	KafkaBrokers []string
	KafkaTopic   string
	KafkaEnabled bool

	ExportBasename string
	ExportLocation *time.Location
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	apiTimeout, err := parsePositiveDuration("ISPU_API_TIMEOUT", "10s")
	if err != nil {
		return nil, err
	}

	pollInterval, err := parsePositiveDuration("POLL_INTERVAL", "5m")
	if err != nil {
		return nil, err
	}

	pollRetries, err := parsePollRetries()
	if err != nil {
		return nil, err
	}

	tz := sharedcfg.EnvOrDefault("EXPORT_TIMEZONE", "Asia/Jakarta")
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("invalid EXPORT_TIMEZONE %q: %w", tz, err)
	}

	var brokers []string
	if raw := os.Getenv("KAFKA_BROKERS"); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}
	kafkaEnabled := len(brokers) > 0
	if v := os.Getenv("KAFKA_ENABLED"); v != "" {
		kafkaEnabled = v == "true"
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8090"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		APIBaseURL: strings.TrimRight(sharedcfg.EnvOrDefault("ISPU_API_URL", "http://localhost:8080/api/v1"), "/"),
		APITimeout: apiTimeout,

		PollInterval: pollInterval,
		PollRetries:  pollRetries,

		KafkaBrokers: brokers,
		KafkaTopic:   sharedcfg.EnvOrDefault("KAFKA_TOPIC", "ispu-station-snapshots"),
		KafkaEnabled: kafkaEnabled,

		ExportBasename: sharedcfg.EnvOrDefault("EXPORT_BASENAME", "stasiun-pemantauan-ispu"),
		ExportLocation: loc,
	}

	if cfg.APIBaseURL == "" {
		return nil, errors.New("ISPU_API_URL is required")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_ENABLED is true but KAFKA_BROKERS is not set")
	}
	if cfg.KafkaEnabled && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when Kafka is enabled")
	}
	if cfg.ExportBasename == "" {
		return nil, errors.New("EXPORT_BASENAME is required")
	}

	return cfg, nil
}

func parsePositiveDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q", key, s)
	}
	return d, nil
}

func parsePollRetries() (int, error) {
	s := sharedcfg.EnvOrDefault("POLL_RETRIES", "2")
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 10 {
		return 0, fmt.Errorf("invalid POLL_RETRIES %q (allowed: 0-10)", s)
	}
	return n, nil
}
