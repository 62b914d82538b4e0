// Package app wires the configured adapters into the station pipeline. Both
// the long-running service and the operator CLI build their engine here.
package app

import (
	"log/slog"
	"time"

	"github.com/spf13/afero"

	"github.com/couchcryptid/hydro-telemetry-service/internal/adapter/filestore"
	kafkaadapter "github.com/couchcryptid/hydro-telemetry-service/internal/adapter/kafka"
	"github.com/couchcryptid/hydro-telemetry-service/internal/adapter/realearth"
	"github.com/couchcryptid/hydro-telemetry-service/internal/config"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
	"github.com/couchcryptid/hydro-telemetry-service/internal/pipeline"
)

// Engine holds every wired component.
type Engine struct {
	Store        *filestore.Store
	Merger       *pipeline.Merger
	History      *pipeline.History
	Materializer *pipeline.Materializer
	Timestamps   *realearth.CachedTimestamps
	Tiles        *realearth.Client

	// Location is the configured operational timezone.
	Location *time.Location

	// Publisher is nil when no Kafka brokers are configured.
	Publisher *kafkaadapter.Writer
}

// New builds an engine over the host filesystem.
func New(cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	return NewWithFs(afero.NewOsFs(), cfg, logger, metrics)
}

// NewWithFs builds an engine over fsys.
func NewWithFs(fsys afero.Fs, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics) (*Engine, error) {
	loc, err := domain.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, err
	}
	store := filestore.New(fsys, filestore.Options{
		Root:          cfg.DataRoot,
		InventoryPath: cfg.InventoryPath,
		SnapshotDir:   cfg.SnapshotDir,
		Concurrency:   cfg.ReadConcurrency,
	}, logger, metrics)

	merger := pipeline.NewMerger(store, store, pipeline.MergerConfig{
		Location:    loc,
		Concurrency: cfg.ReadConcurrency,
		Limit:       cfg.InventoryLimit,
	}, logger, metrics)
	history := pipeline.NewHistory(store, logger, metrics)

	e := &Engine{Store: store, Merger: merger, History: history, Location: loc}

	var publisher pipeline.SnapshotPublisher
	if cfg.PublishEnabled() {
		e.Publisher = kafkaadapter.NewWriter(cfg, logger)
		publisher = e.Publisher
		logger.Info("snapshot publishing enabled", "topic", cfg.KafkaSnapshotTopic, "brokers", cfg.KafkaBrokers)
	}
	e.Materializer = pipeline.NewMaterializer(merger, history, store, publisher, logger, metrics)

	client := realearth.NewClient(cfg.RealEarthURL, cfg.RealEarthTimeout, cfg.RealEarthRate, metrics, logger).
		WithImageAPI(cfg.RealEarthImageURL, cfg.RealEarthAPIKey)
	e.Timestamps = realearth.NewCachedTimestamps(client, cfg.RealEarthCacheTTL, metrics)
	e.Tiles = client
	if cfg.RealEarthAPIKey == "" {
		logger.Warn("REALEARTH_API_KEY is empty, tile proxy requests will be unauthenticated")
	}

	return e, nil
}

// Close releases the publisher, if any.
func (e *Engine) Close() error {
	if e.Publisher == nil {
		return nil
	}
	return e.Publisher.Close()
}
