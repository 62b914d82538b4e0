package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// MergerConfig tunes an inventory merge.
type MergerConfig struct {
	// Location fixes "today"; nil uses the domain's operational timezone.
	Location *time.Location
	// Clock is the source of "now"; nil uses the domain clock.
	Clock clockwork.Clock
	// Concurrency bounds simultaneous station-day reads.
	Concurrency int
	// Limit keeps only the first Limit inventory stations; 0 keeps all.
	Limit int
}

// MergeResult is the output of one merge. Counts are per call.
type MergeResult struct {
	Stations  []domain.MergedStation
	Today     string
	Yesterday string

	// MissingTelemetry counts station-day documents that could not be loaded.
	MissingTelemetry int
	// StationsWithoutData counts stations with no readings for either day.
	StationsWithoutData int
}

// Merger joins the inventory with today's and yesterday's telemetry.
type Merger struct {
	inventory InventorySource
	loader    StationDayLoader
	cfg       MergerConfig
	logger    *slog.Logger
	metrics   *observability.Metrics
}

// NewMerger creates a Merger.
func NewMerger(inventory InventorySource, loader StationDayLoader, cfg MergerConfig, logger *slog.Logger, metrics *observability.Metrics) *Merger {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 16
	}
	return &Merger{inventory: inventory, loader: loader, cfg: cfg, logger: logger, metrics: metrics}
}

func (m *Merger) now() time.Time {
	if m.cfg.Clock != nil {
		return m.cfg.Clock.Now()
	}
	return domain.Now()
}

// MergeStationData returns one merged station per inventory entry, in
// inventory order. Only an unavailable inventory fails the merge; stations
// without telemetry are kept with empty readings.
func (m *Merger) MergeStationData(ctx context.Context) (MergeResult, error) {
	inv, err := m.inventory.LoadInventory(ctx)
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge stations: %w", err)
	}
	if m.cfg.Limit > 0 && len(inv) > m.cfg.Limit {
		inv = inv[:m.cfg.Limit]
	}

	today, yesterday := domain.OperationalDays(m.now(), m.cfg.Location)

	// Slot 2i holds station i's today document, 2i+1 its yesterday document.
	docs := make([]*domain.StationDocument, 2*len(inv))
	var missing atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(m.cfg.Concurrency)
	for i, st := range inv {
		code := st.Code()
		for j, day := range []string{today, yesterday} {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				doc, err := m.loader.LoadStationDay(gctx, code, day)
				if err != nil {
					if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
						return err
					}
					missing.Add(1)
					if errors.Is(err, fs.ErrNotExist) {
						m.logger.Debug("no telemetry for station day", "station", code, "day", day)
					} else {
						m.logger.Warn("telemetry unavailable", "station", code, "day", day, "error", err)
					}
					return nil
				}
				docs[2*i+j] = doc
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return MergeResult{}, fmt.Errorf("merge stations: %w", err)
	}

	res := MergeResult{
		Stations:         make([]domain.MergedStation, 0, len(inv)),
		Today:            today,
		Yesterday:        yesterday,
		MissingTelemetry: int(missing.Load()),
	}
	for i, st := range inv {
		merged := domain.MergeTelemetry(st, today, docs[2*i], docs[2*i+1])
		if len(merged.Dados) == 0 {
			res.StationsWithoutData++
		}
		res.Stations = append(res.Stations, merged)
	}

	m.metrics.StationsMerged.Set(float64(len(res.Stations)))
	m.metrics.StationsMissingTelemetry.Set(float64(res.MissingTelemetry))
	m.logger.Info("stations merged",
		"stations", len(res.Stations),
		"today", today,
		"missing_telemetry", res.MissingTelemetry,
		"without_data", res.StationsWithoutData,
	)
	return res, nil
}

// CheckReadiness reports whether the inventory can be loaded.
func (m *Merger) CheckReadiness(ctx context.Context) error {
	if _, err := m.inventory.LoadInventory(ctx); err != nil {
		return err
	}
	return nil
}
