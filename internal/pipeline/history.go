package pipeline

import (
	"context"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// History serves trailing-window requests from the record store.
type History struct {
	reader  PartitionReader
	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewHistory creates a History backed by reader.
func NewHistory(reader PartitionReader, logger *slog.Logger, metrics *observability.Metrics) *History {
	return &History{reader: reader, logger: logger, metrics: metrics}
}

// GetHistoricalStationData returns one group per station with readings in the
// window of intervalHours ending on referenceDate. The request is validated
// before any partition is read. Partitions are read independently; if any of
// them cannot be listed the whole request fails and no partial map is
// returned. No data anywhere yields an empty map.
func (h *History) GetHistoricalStationData(ctx context.Context, intervalHours int, referenceDate string) (map[string]domain.HistoricalGroup, error) {
	w, err := domain.ResolveWindow(intervalHours, referenceDate)
	if err != nil {
		h.record(intervalHours, "invalid")
		return nil, err
	}

	// A plain Group: one partition failing must not cancel its siblings.
	var g errgroup.Group
	parts := make([][]domain.RawReading, len(w.Partitions))
	for i, p := range w.Partitions {
		g.Go(func() error {
			readings, err := h.reader.ReadPartition(ctx, p)
			if err != nil {
				h.logger.Error("partition read failed", "partition", p.Dir(), "error", err)
				return err
			}
			parts[i] = readings
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.record(intervalHours, "error")
		return nil, err
	}

	var pool []domain.RawReading
	for _, p := range parts {
		pool = append(pool, p...)
	}

	groups := domain.AggregateByStation(pool, w)
	h.logger.Debug("historical window resolved",
		"interval_hours", intervalHours,
		"reference", referenceDate,
		"partitions", len(w.Partitions),
		"readings", len(pool),
		"stations", len(groups),
	)
	h.record(intervalHours, "success")
	return groups, nil
}

func (h *History) record(intervalHours int, outcome string) {
	h.metrics.HistoricalRequests.WithLabelValues(strconv.Itoa(intervalHours)+"h", outcome).Inc()
}
