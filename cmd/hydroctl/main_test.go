package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
)

// useMemFs points every command at a fresh in-memory tree rooted at /data
// and freezes the domain clock.
func useMemFs(t *testing.T, now time.Time) afero.Fs {
	t.Helper()
	fsys := afero.NewMemMapFs()
	prev := appFs
	appFs = fsys
	t.Cleanup(func() { appFs = prev })

	t.Setenv("DATA_ROOT", "/data")
	t.Setenv("LOG_LEVEL", "error")
	t.Setenv("KAFKA_BROKERS", "")

	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })
	return fsys
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, logs bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&logs)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

var cliNow = time.Date(2025, 2, 10, 15, 0, 0, 0, time.UTC)

func TestSeedMaterializeValidate(t *testing.T) {
	fsys := useMemFs(t, cliNow)

	out, err := execute(t, "seed", "--stations", "8", "--days", "2", "--end", "2025-02-10", "--step", "1h", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "seeded 8 stations, 14 station-day files")

	exists, err := afero.Exists(fsys, "/data/2025/02/2025-02-09/codigoestacao_10000.json")
	require.NoError(t, err)
	assert.True(t, exists)

	out, err = execute(t, "materialize")
	require.NoError(t, err)
	assert.Equal(t, "/data/merged/estacoes_completas_2025-02-10.json", strings.TrimSpace(out))

	out, err = execute(t, "validate", "/data/merged/estacoes_completas_2025-02-10.json")
	require.NoError(t, err, out)
	assert.Contains(t, out, "All validations passed.")
}

func TestHistoryCommand(t *testing.T) {
	useMemFs(t, cliNow)
	_, err := execute(t, "seed", "--stations", "2", "--days", "1", "--end", "2025-02-10", "--step", "1h", "--seed", "1")
	require.NoError(t, err)

	out, err := execute(t, "history", "--date", "2025-02-10", "--interval", "6h", "--station", "10000")
	require.NoError(t, err)

	var group domain.HistoricalGroup
	require.NoError(t, json.Unmarshal([]byte(out), &group))
	assert.Equal(t, "2025-02-10", group.Data)
	// Hourly readings 17:00 through 23:00 lie within six hours of the 23:00 anchor.
	assert.Len(t, group.Registros, 7)

	_, err = execute(t, "history", "--date", "2025-02-10", "--interval", "5h", "--station", "")
	require.ErrorIs(t, err, domain.ErrInvalidInterval)
}

func TestCategorizeCommand(t *testing.T) {
	useMemFs(t, cliNow)
	_, err := execute(t, "seed", "--stations", "3", "--days", "1", "--end", "2025-02-10", "--step", "1h", "--seed", "1")
	require.NoError(t, err)

	out, err := execute(t, "categorize", "--by-city=false")
	require.NoError(t, err)
	var summaries []map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &summaries))
	require.Len(t, summaries, 3)
	assert.Equal(t, "10000", summaries[0]["codigoestacao"])
	assert.Contains(t, summaries[0], "classificacaoChuva")

	out, err = execute(t, "categorize", "--by-city")
	require.NoError(t, err)
	var cities []domain.CityRainfall
	require.NoError(t, json.Unmarshal([]byte(out), &cities))
	assert.Len(t, cities, 3)
}

func TestGenerateTree_Deterministic(t *testing.T) {
	opts := seedOptions{Stations: 7, Days: 2, End: time.Date(2025, 2, 10, 0, 0, 0, 0, domain.Location()), Step: 30 * time.Minute, Seed: 42}

	inv1, days1 := generateTree(opts)
	inv2, days2 := generateTree(opts)

	assert.Equal(t, inv1, inv2)
	assert.Equal(t, days1, days2)
	require.Len(t, inv1, 7)
	// The seventh station has no telemetry.
	assert.Len(t, days1, 12)
	assert.Len(t, days1[0].Doc.Dados, 48)
	assert.Equal(t, "2025-02-09", days1[0].Day)
	assert.Equal(t, "2025-02-09 00:00:00.0", days1[0].Doc.Dados[0].DataHoraMedicao.Text())
}

func TestSeedRejectsBadFlags(t *testing.T) {
	useMemFs(t, cliNow)
	_, err := execute(t, "seed", "--stations", "0", "--days", "1", "--end", "2025-02-10", "--step", "1h", "--seed", "1")
	require.Error(t, err)

	_, err = execute(t, "seed", "--stations", "1", "--days", "1", "--end", "10/02/2025", "--step", "1h", "--seed", "1")
	require.Error(t, err)
}
