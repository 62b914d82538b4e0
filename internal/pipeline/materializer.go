package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// snapshotWindowHours is the history embedded in every snapshot station.
const snapshotWindowHours = 24

// Materializer builds the daily snapshot: merged stations plus a 24h
// historical window per station.
type Materializer struct {
	merger    StationMerger
	history   HistoricalSource
	writer    SnapshotWriter
	publisher SnapshotPublisher
	clock     clockwork.Clock
	logger    *slog.Logger
	metrics   *observability.Metrics
	ready     atomic.Bool
}

// NewMaterializer creates a Materializer. publisher may be nil.
func NewMaterializer(merger StationMerger, history HistoricalSource, writer SnapshotWriter, publisher SnapshotPublisher, logger *slog.Logger, metrics *observability.Metrics) *Materializer {
	return &Materializer{
		merger:    merger,
		history:   history,
		writer:    writer,
		publisher: publisher,
		clock:     clockwork.NewRealClock(),
		logger:    logger,
		metrics:   metrics,
	}
}

// WithClock replaces the scheduler's time source. The snapshot date comes
// from the merger, see MergerConfig.Clock.
func (m *Materializer) WithClock(c clockwork.Clock) *Materializer {
	m.clock = c
	return m
}

// CheckReadiness returns nil once a snapshot has been written.
func (m *Materializer) CheckReadiness(_ context.Context) error {
	if !m.ready.Load() {
		return errors.New("no snapshot has been materialized yet")
	}
	return nil
}

// Materialize runs one merge, fetches the 24h history anchored at today, and
// writes the combined snapshot. It returns the snapshot path. A failed
// publish is logged and does not fail the run.
func (m *Materializer) Materialize(ctx context.Context) (string, error) {
	start := m.clock.Now()

	p, n, err := m.materialize(ctx)
	if err != nil {
		m.metrics.MaterializeRuns.WithLabelValues("error").Inc()
		return "", err
	}

	m.metrics.MaterializeRuns.WithLabelValues("success").Inc()
	m.metrics.MaterializeDuration.Observe(m.clock.Since(start).Seconds())
	m.metrics.SnapshotStations.Set(float64(n))
	m.ready.Store(true)
	m.logger.Info("snapshot materialized", "path", p, "stations", n)
	return p, nil
}

func (m *Materializer) materialize(ctx context.Context) (string, int, error) {
	merged, err := m.merger.MergeStationData(ctx)
	if err != nil {
		return "", 0, fmt.Errorf("materialize: %w", err)
	}

	history, err := m.history.GetHistoricalStationData(ctx, snapshotWindowHours, merged.Today)
	if err != nil {
		return "", 0, fmt.Errorf("materialize: history for %s: %w", merged.Today, err)
	}

	snapshot := domain.BuildSnapshot(merged.Stations, history)
	p, err := m.writer.WriteSnapshot(ctx, merged.Today, snapshot)
	if err != nil {
		return "", 0, fmt.Errorf("materialize: %w", err)
	}

	if m.publisher != nil {
		if err := m.publisher.PublishSnapshot(ctx, merged.Today, snapshot); err != nil {
			m.logger.Error("snapshot publish failed", "day", merged.Today, "error", err)
		}
	}
	return p, len(snapshot), nil
}

// Run materializes immediately and then every interval until ctx is
// cancelled. Failed runs are logged and retried on the next tick.
func (m *Materializer) Run(ctx context.Context, interval time.Duration) error {
	m.logger.Info("materializer started", "interval", interval)
	m.metrics.MaterializerRunning.Set(1)
	defer m.metrics.MaterializerRunning.Set(0)

	ticker := m.clock.NewTicker(interval)
	defer ticker.Stop()

	for {
		if _, err := m.Materialize(ctx); err != nil {
			if ctx.Err() != nil {
				m.logger.Info("materializer stopping", "reason", ctx.Err())
				return nil
			}
			m.logger.Error("materialize failed", "error", err)
		}

		select {
		case <-ctx.Done():
			m.logger.Info("materializer stopping", "reason", ctx.Err())
			return nil
		case <-ticker.Chan():
		}
	}
}
