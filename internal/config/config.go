package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	DataRoot        string
	InventoryPath   string
	SnapshotDir     string
	Timezone        string
	ReadConcurrency int
	InventoryLimit  int

	MaterializeEnabled  bool
	MaterializeInterval time.Duration

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// RealEarth tile timestamp and image configuration.
	RealEarthURL      string
	RealEarthImageURL string
	RealEarthAPIKey   string
	RealEarthCacheTTL time.Duration
	RealEarthTimeout  time.Duration
	RealEarthRate     float64

	// Snapshot publishing is disabled when KafkaBrokers is empty.
	KafkaBrokers       []string
	KafkaSnapshotTopic string
}

// Load reads configuration from environment variables, applying defaults
// where unset. A .env file in the working directory is loaded first when
// present; variables already set in the environment win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	materializeInterval, err := parseDuration("MATERIALIZE_INTERVAL", "10m")
	if err != nil {
		return nil, err
	}
	cacheTTL, err := parseDuration("REALEARTH_CACHE_TTL", "60s")
	if err != nil {
		return nil, err
	}
	realEarthTimeout, err := parseDuration("REALEARTH_TIMEOUT", "5s")
	if err != nil {
		return nil, err
	}

	concurrency, err := parsePositiveInt("READ_CONCURRENCY", "16")
	if err != nil {
		return nil, err
	}

	limit, err := strconv.Atoi(sharedcfg.EnvOrDefault("INVENTORY_LIMIT", "0"))
	if err != nil || limit < 0 {
		return nil, errors.New("invalid INVENTORY_LIMIT")
	}

	rate, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("REALEARTH_RATE", "1"), 64)
	if err != nil || rate <= 0 {
		return nil, errors.New("invalid REALEARTH_RATE")
	}

	materializeEnabled, err := strconv.ParseBool(sharedcfg.EnvOrDefault("MATERIALIZE_ENABLED", "true"))
	if err != nil {
		return nil, errors.New("invalid MATERIALIZE_ENABLED")
	}

	dataRoot := sharedcfg.EnvOrDefault("DATA_ROOT", filepath.Join("public", "data"))

	var brokers []string
	if raw := strings.TrimSpace(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "")); raw != "" {
		brokers = sharedcfg.ParseBrokers(raw)
	}

	cfg := &Config{
		DataRoot:        dataRoot,
		InventoryPath:   sharedcfg.EnvOrDefault("INVENTORY_PATH", filepath.Join(dataRoot, "inventario_estacoes.json")),
		SnapshotDir:     sharedcfg.EnvOrDefault("SNAPSHOT_DIR", filepath.Join(dataRoot, "merged")),
		Timezone:        sharedcfg.EnvOrDefault("TIMEZONE", "America/Sao_Paulo"),
		ReadConcurrency: concurrency,
		InventoryLimit:  limit,

		MaterializeEnabled:  materializeEnabled,
		MaterializeInterval: materializeInterval,

		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":3000"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RealEarthURL:      sharedcfg.EnvOrDefault("REALEARTH_URL", "https://realearth.ssec.wisc.edu/api/times"),
		RealEarthImageURL: sharedcfg.EnvOrDefault("REALEARTH_IMAGE_URL", "https://realearth.ssec.wisc.edu/api/image"),
		RealEarthAPIKey:   sharedcfg.EnvOrDefault("REALEARTH_API_KEY", ""),
		RealEarthCacheTTL: cacheTTL,
		RealEarthTimeout:  realEarthTimeout,
		RealEarthRate:     rate,

		KafkaBrokers:       brokers,
		KafkaSnapshotTopic: sharedcfg.EnvOrDefault("KAFKA_SNAPSHOT_TOPIC", "station-snapshots"),
	}

	if cfg.DataRoot == "" {
		return nil, errors.New("DATA_ROOT is required")
	}
	if cfg.PublishEnabled() && cfg.KafkaSnapshotTopic == "" {
		return nil, errors.New("KAFKA_SNAPSHOT_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// PublishEnabled reports whether snapshots are also sent to Kafka.
func (c *Config) PublishEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parsePositiveInt(key, def string) (int, error) {
	n, err := strconv.Atoi(sharedcfg.EnvOrDefault(key, def))
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return n, nil
}
