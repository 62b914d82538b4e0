package pipeline_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-telemetry-service/internal/adapter/filestore"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

// --- mocks ---

type mockPartitionReader struct {
	mu       sync.Mutex
	byDir    map[string][]domain.RawReading
	failDirs map[string]bool
	calls    []string
}

func (m *mockPartitionReader) ReadPartition(_ context.Context, p domain.Partition) ([]domain.RawReading, error) {
	m.mu.Lock()
	m.calls = append(m.calls, p.Dir())
	m.mu.Unlock()
	if m.failDirs[p.Dir()] {
		return nil, fmt.Errorf("%w: %s", domain.ErrDirectoryUnavailable, p.Dir())
	}
	return m.byDir[p.Dir()], nil
}

type mockInventory struct {
	stations []domain.StationInventory
	err      error
}

func (m *mockInventory) LoadInventory(context.Context) ([]domain.StationInventory, error) {
	return m.stations, m.err
}

type mockDayLoader struct {
	docs map[string]*domain.StationDocument // key: code|day
	errs map[string]error
}

func (m *mockDayLoader) LoadStationDay(_ context.Context, code, day string) (*domain.StationDocument, error) {
	key := code + "|" + day
	if err, ok := m.errs[key]; ok {
		return nil, err
	}
	if doc, ok := m.docs[key]; ok {
		return doc, nil
	}
	return nil, fmt.Errorf("%w: %w", domain.ErrStationFileUnreadable, fs.ErrNotExist)
}

type mockWriter struct {
	mu      sync.Mutex
	day     string
	written []domain.SnapshotStation
	calls   int
	err     error
}

func (m *mockWriter) WriteSnapshot(_ context.Context, day string, stations []domain.SnapshotStation) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	if m.err != nil {
		return "", m.err
	}
	m.day = day
	m.written = stations
	return "/snap/estacoes_completas_" + day + ".json", nil
}

func (m *mockWriter) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockPublisher struct {
	published int
	err       error
}

func (m *mockPublisher) PublishSnapshot(_ context.Context, _ string, stations []domain.SnapshotStation) error {
	m.published += len(stations)
	return m.err
}

// --- helpers ---

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func record(measured string, rain float64) domain.TelemetricRecord {
	return domain.TelemetricRecord{
		ChuvaAdotada:    domain.NumberValue(rain),
		DataHoraMedicao: domain.StringValue(measured),
		DataAtualizacao: domain.StringValue(measured),
	}
}

func inventory(codes ...string) []domain.StationInventory {
	out := make([]domain.StationInventory, 0, len(codes))
	for _, c := range codes {
		out = append(out, domain.StationInventory{
			CodigoEstacao: domain.StringValue(c),
			EstacaoNome:   domain.StringValue("Estacao " + c),
		})
	}
	return out
}

// newFileStore builds a filestore over an in-memory tree rooted at /data.
func newFileStore(t *testing.T) (*filestore.Store, afero.Fs) {
	t.Helper()
	fsys := afero.NewMemMapFs()
	store := filestore.New(fsys, filestore.Options{
		Root:          "/data",
		InventoryPath: "/data/inventario_estacoes.json",
		SnapshotDir:   "/data/merged",
		Concurrency:   4,
	}, discardLogger(), observability.NewMetricsForTesting())
	return store, fsys
}

func writeJSON(t *testing.T, fsys afero.Fs, p string, v any) {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	require.NoError(t, fsys.MkdirAll(filepath.Dir(p), 0o755))
	require.NoError(t, afero.WriteFile(fsys, p, data, 0o644))
}

func stationDay(code string, records ...domain.TelemetricRecord) domain.StationDocument {
	return domain.StationDocument{CodigoEstacao: domain.StringValue(code), Dados: records}
}

var errBoom = errors.New("boom")
