// Package pipeline orchestrates the record store, inventory merge, historical
// windows and snapshot materialization.
package pipeline

import (
	"context"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

// PartitionReader loads the readings of one (year, month) partition.
type PartitionReader interface {
	ReadPartition(ctx context.Context, p domain.Partition) ([]domain.RawReading, error)
}

// StationDayLoader loads one (station, day) telemetry document.
type StationDayLoader interface {
	LoadStationDay(ctx context.Context, code, day string) (*domain.StationDocument, error)
}

// InventorySource loads the static station inventory.
type InventorySource interface {
	LoadInventory(ctx context.Context) ([]domain.StationInventory, error)
}

// SnapshotWriter persists a dated snapshot and returns where it was written.
type SnapshotWriter interface {
	WriteSnapshot(ctx context.Context, day string, stations []domain.SnapshotStation) (string, error)
}

// SnapshotPublisher forwards a snapshot to downstream consumers.
type SnapshotPublisher interface {
	PublishSnapshot(ctx context.Context, day string, stations []domain.SnapshotStation) error
}

// StationMerger produces the inventory joined with current telemetry.
type StationMerger interface {
	MergeStationData(ctx context.Context) (MergeResult, error)
}

// HistoricalSource produces per-station trailing windows.
type HistoricalSource interface {
	GetHistoricalStationData(ctx context.Context, intervalHours int, referenceDate string) (map[string]domain.HistoricalGroup, error)
}
