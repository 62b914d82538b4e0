package app_test

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-telemetry-service/internal/app"
	"github.com/couchcryptid/hydro-telemetry-service/internal/config"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
)

func testConfig() *config.Config {
	return &config.Config{
		DataRoot:          "/data",
		InventoryPath:     "/data/inventario_estacoes.json",
		SnapshotDir:       "/data/merged",
		Timezone:          "America/Sao_Paulo",
		ReadConcurrency:   4,
		RealEarthURL:      "http://127.0.0.1:0/api/times",
		RealEarthCacheTTL: time.Minute,
		RealEarthTimeout:  time.Second,
		RealEarthRate:     1,
	}
}

func newEngine(t *testing.T, fsys afero.Fs, cfg *config.Config) *app.Engine {
	t.Helper()
	e, err := app.NewWithFs(fsys, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func TestNewWithFs_MaterializesSnapshot(t *testing.T) {
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	fsys := afero.NewMemMapFs()
	inv, err := json.Marshal([]domain.StationInventory{{CodigoEstacao: domain.StringValue("S1")}})
	require.NoError(t, err)
	require.NoError(t, afero.WriteFile(fsys, "/data/inventario_estacoes.json", inv, 0o644))
	require.NoError(t, fsys.MkdirAll("/data/2025/02/2025-02-10", 0o755))

	e := newEngine(t, fsys, testConfig())
	assert.Nil(t, e.Publisher)

	p, err := e.Materializer.Materialize(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/data/merged/estacoes_completas_2025-02-10.json", p)

	exists, err := afero.Exists(fsys, p)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNewWithFs_PublisherWhenBrokersConfigured(t *testing.T) {
	cfg := testConfig()
	cfg.KafkaBrokers = []string{"localhost:9092"}
	cfg.KafkaSnapshotTopic = "station-snapshots"

	e := newEngine(t, afero.NewMemMapFs(), cfg)
	assert.NotNil(t, e.Publisher)
}

func TestNewWithFs_InvalidTimezone(t *testing.T) {
	cfg := testConfig()
	cfg.Timezone = "Mars/Olympus_Mons"

	_, err := app.NewWithFs(afero.NewMemMapFs(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)), observability.NewMetricsForTesting())
	require.Error(t, err)
}

func TestNewWithFs_TimezoneStaysInEngine(t *testing.T) {
	// 01:00 UTC on the 11th: already the 11th in UTC, still the 10th in Sao Paulo.
	domain.SetClock(clockwork.NewFakeClockAt(time.Date(2025, 2, 11, 1, 0, 0, 0, time.UTC)))
	t.Cleanup(func() { domain.SetClock(nil) })

	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "/data/inventario_estacoes.json", []byte(`[]`), 0o644))

	cfg := testConfig()
	cfg.Timezone = "UTC"
	e := newEngine(t, fsys, cfg)

	assert.Equal(t, "UTC", e.Location.String())
	assert.Equal(t, domain.OperationalTimezone, domain.Location().String())

	res, err := e.Merger.MergeStationData(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "2025-02-11", res.Today)
}
