package http_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpadapter "github.com/couchcryptid/hydro-telemetry-service/internal/adapter/http"
	"github.com/couchcryptid/hydro-telemetry-service/internal/adapter/realearth"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/observability"
	"github.com/couchcryptid/hydro-telemetry-service/internal/pipeline"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockMerger struct {
	res pipeline.MergeResult
	err error
}

func (m *mockMerger) MergeStationData(context.Context) (pipeline.MergeResult, error) {
	return m.res, m.err
}

type mockHistory struct {
	groups map[string]domain.HistoricalGroup
	err    error
}

func (m *mockHistory) GetHistoricalStationData(_ context.Context, interval int, ref string) (map[string]domain.HistoricalGroup, error) {
	if _, err := domain.ResolveWindow(interval, ref); err != nil {
		return nil, err
	}
	return m.groups, m.err
}

type mockTimestamps struct {
	recent    []string
	refreshed []string
	err       error
}

func (m *mockTimestamps) Recent(context.Context, string) ([]string, error) {
	return m.recent, m.err
}

func (m *mockTimestamps) Refresh(context.Context, string) ([]string, error) {
	return m.refreshed, m.err
}

type deps struct {
	ready      error
	merger     *mockMerger
	history    *mockHistory
	timestamps *mockTimestamps
	tiles      httpadapter.TileSource
}

func newTestServer(t *testing.T, d deps) *httpadapter.Server {
	t.Helper()
	if d.merger == nil {
		d.merger = &mockMerger{}
	}
	if d.history == nil {
		d.history = &mockHistory{}
	}
	var ts httpadapter.TimestampSource
	if d.timestamps != nil {
		ts = d.timestamps
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: d.ready}, d.merger, d.history, ts, d.tiles, logger)
}

func do(srv http.Handler, method, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body["error"]
}

func freezeClock(t *testing.T, at time.Time) {
	t.Helper()
	domain.SetClock(clockwork.NewFakeClockAt(at))
	t.Cleanup(func() { domain.SetClock(nil) })
}

func station(code, name, river, city string, records ...domain.TelemetricRecord) domain.MergedStation {
	inv := domain.StationInventory{
		CodigoEstacao: domain.StringValue(code),
		EstacaoNome:   domain.StringValue(name),
		RioNome:       domain.StringValue(river),
		MunicipioNome: domain.StringValue(city),
	}
	return domain.MergeTelemetry(inv, "2025-02-10", &domain.StationDocument{Dados: records}, nil)
}

func reading(measured string, rain, level, discharge float64) domain.TelemetricRecord {
	return domain.TelemetricRecord{
		ChuvaAdotada:    domain.NumberValue(rain),
		CotaAdotada:     domain.NumberValue(level),
		VazaoAdotada:    domain.NumberValue(discharge),
		DataHoraMedicao: domain.StringValue(measured),
		DataAtualizacao: domain.StringValue(measured),
	}
}

func fixture() pipeline.MergeResult {
	return pipeline.MergeResult{
		Today: "2025-02-10",
		Stations: []domain.MergedStation{
			station("S1", "Ponte", "RIO ITAJAI", "Blumenau", reading("2025-02-10 12:00:00.0", 12, 420, 30)),
			station("S2", "Centro", "RIO ITAJAI", "blumenau", reading("2025-02-10 11:00:00.0", 4, 500, 60)),
			station("S3", "Seca", "", "Gaspar"),
		},
	}
}

func TestHealthzReturns200(t *testing.T) {
	rec := do(newTestServer(t, deps{}), http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"ready", nil, http.StatusOK},
		{"not ready", fmt.Errorf("no snapshot has been materialized yet"), http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(newTestServer(t, deps{ready: tt.err}), http.MethodGet, "/readyz")
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestMetricsEndpoint(t *testing.T) {
	rec := do(newTestServer(t, deps{}), http.MethodGet, "/metrics")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, deps{})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("Origin", "https://dashboard.example")

	srv.ServeHTTP(rec, req)

	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCategorized(t *testing.T) {
	freezeClock(t, time.Date(2025, 2, 10, 16, 0, 0, 0, time.UTC))
	rec := do(newTestServer(t, deps{merger: &mockMerger{res: fixture()}}), http.MethodGet,
		"/api/stationData/estacoes/categorizadas")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		PorRio         map[string][]map[string]string `json:"porRio"`
		Atualizadas    []map[string]string            `json:"atualizadas"`
		Desatualizadas []map[string]string            `json:"desatualizadas"`
		PorChuva       map[string][]map[string]string `json:"porChuva"`
		PorNivel       map[string][]map[string]string `json:"porNivel"`
		PorVazao       map[string][]map[string]string `json:"porVazao"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Len(t, body.PorRio["RIO ITAJAI"], 2)
	assert.Len(t, body.PorRio[domain.UnknownRiver], 1)
	assert.Equal(t, map[string]string{"codigoestacao": "S1", "Estacao_Nome": "Ponte"}, body.PorRio["RIO ITAJAI"][0])
	assert.Len(t, body.Atualizadas, 2)
	assert.Len(t, body.Desatualizadas, 1)
	assert.Len(t, body.PorChuva[string(domain.RainfallModerate)], 1)
	assert.Len(t, body.PorChuva[string(domain.RainfallWeak)], 1)
	assert.Len(t, body.PorNivel[string(domain.LevelHigh)], 1)
	assert.Len(t, body.PorVazao[string(domain.DischargeHigh)], 1)
}

func TestMergeFailuresReturn500(t *testing.T) {
	merger := &mockMerger{err: fmt.Errorf("%w: missing file", domain.ErrInventoryUnavailable)}
	srv := newTestServer(t, deps{merger: merger})

	tests := []struct {
		path string
		msg  string
	}{
		{"/api/stationData/estacoes/categorizadas", "Falha ao obter as estações categorizadas."},
		{"/api/stationData/estacoes/todas", "Falha ao obter dados resumidos das estações."},
		{"/api/stationData/estacoes/chuvaPorCidade", "Falha ao calcular a média e a mediana de chuva por cidade."},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := do(srv, http.MethodGet, tt.path)
			assert.Equal(t, http.StatusInternalServerError, rec.Code)
			assert.Equal(t, tt.msg, decodeError(t, rec))
			assert.NotContains(t, rec.Body.String(), "missing file")
		})
	}
}

func TestSummary(t *testing.T) {
	freezeClock(t, time.Date(2025, 2, 10, 16, 0, 0, 0, time.UTC))
	rec := do(newTestServer(t, deps{merger: &mockMerger{res: fixture()}}), http.MethodGet,
		"/api/stationData/estacoes/todas")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 3)
	assert.Equal(t, "S1", body[0]["codigoestacao"])
	assert.Equal(t, 12.0, body[0]["chuvaAcumulada"])
	assert.Equal(t, string(domain.RainfallModerate), body[0]["classificacaoChuva"])
	assert.Equal(t, string(domain.Complete), body[0]["completude"])
	assert.Nil(t, body[2]["chuvaAcumulada"])
	assert.Equal(t, string(domain.FreshnessOutdated), body[2]["statusAtualizacao"])
}

func TestHistory(t *testing.T) {
	rec := domain.TelemetricRecord{
		ChuvaAdotada:    domain.NumberValue(1),
		DataHoraMedicao: domain.StringValue("2025-02-10 10:00:00.0"),
	}
	groups := map[string]domain.HistoricalGroup{
		"S1": {Data: "2025-02-10", Registros: []domain.HistoricalRecord{rec.Historical()}},
	}

	tests := []struct {
		name    string
		path    string
		histErr error
		want    int
		msg     string
	}{
		{"all stations", "/api/stationData/estacoes/historico/2025-02-10/24h", nil, http.StatusOK, ""},
		{"single station", "/api/stationData/estacoes/historico/2025-02-10/6h/S1", nil, http.StatusOK, ""},
		{"bare hours", "/api/stationData/estacoes/historico/2025-02-10/12", nil, http.StatusOK, ""},
		{"unknown station", "/api/stationData/estacoes/historico/2025-02-10/24h/S9", nil, http.StatusNotFound,
			"Dados não encontrados para a estação informada."},
		{"invalid interval", "/api/stationData/estacoes/historico/2025-02-10/5h", nil, http.StatusBadRequest,
			"Intervalo inválido. Os valores permitidos são 2h, 6h, 12h, 24h e 48h."},
		{"invalid date", "/api/stationData/estacoes/historico/10-02-2025/24h", nil, http.StatusBadRequest,
			"Data inválida. Use o formato AAAA-MM-DD."},
		{"storage failure", "/api/stationData/estacoes/historico/2025-02-10/24h",
			fmt.Errorf("%w: 2025/02", domain.ErrDirectoryUnavailable), http.StatusInternalServerError,
			"Falha ao obter o histórico das estações."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, deps{history: &mockHistory{groups: groups, err: tt.histErr}})
			rec := do(srv, http.MethodGet, tt.path)
			require.Equal(t, tt.want, rec.Code)
			if tt.msg != "" {
				assert.Equal(t, tt.msg, decodeError(t, rec))
			}
		})
	}
}

func TestHistory_SingleStationBody(t *testing.T) {
	rec := domain.TelemetricRecord{
		ChuvaAdotada:    domain.NumberValue(1),
		DataHoraMedicao: domain.StringValue("2025-02-10 10:00:00.0"),
	}
	groups := map[string]domain.HistoricalGroup{
		"S1": {Data: "2025-02-10", Registros: []domain.HistoricalRecord{rec.Historical()}},
	}
	srv := newTestServer(t, deps{history: &mockHistory{groups: groups}})

	res := do(srv, http.MethodGet, "/api/stationData/estacoes/historico/2025-02-10/24h/S1")
	require.Equal(t, http.StatusOK, res.Code)

	var got domain.HistoricalGroup
	require.NoError(t, json.Unmarshal(res.Body.Bytes(), &got))
	assert.Equal(t, "2025-02-10", got.Data)
	require.Len(t, got.Registros, 1)
	assert.Equal(t, "2025-02-10 10:00:00.0", got.Registros[0].DataHoraMedicao.Text())
}

func TestRainfallByCity(t *testing.T) {
	freezeClock(t, time.Date(2025, 2, 10, 16, 0, 0, 0, time.UTC))
	rec := do(newTestServer(t, deps{merger: &mockMerger{res: fixture()}}), http.MethodGet,
		"/api/stationData/estacoes/chuvaPorCidade")
	require.Equal(t, http.StatusOK, rec.Code)

	var body []domain.CityRainfall
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body, 1)
	assert.Equal(t, "BLUMENAU", body[0].Cidade)
	assert.Equal(t, 8.0, body[0].ChuvaMedia)
	assert.Equal(t, 8.0, body[0].ChuvaMediana)
	assert.Len(t, body[0].Estacoes, 2)
}

func TestTimestamps(t *testing.T) {
	source := &mockTimestamps{recent: []string{"20250210_120000"}, refreshed: []string{"20250210_121000"}}
	srv := newTestServer(t, deps{timestamps: source})

	rec := do(srv, http.MethodGet, "/api/rainfall/timestamps?products=globalir")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"globalir":["20250210_120000"]}`, rec.Body.String())

	rec = do(srv, http.MethodGet, "/api/rainfall/timestamps?products=globalir&refresh=true")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"globalir":["20250210_121000"]}`, rec.Body.String())

	rec = do(srv, http.MethodGet, "/api/rainfall/timestamps")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTimestamps_UpstreamFailure(t *testing.T) {
	srv := newTestServer(t, deps{timestamps: &mockTimestamps{err: errors.New("upstream down")}})

	rec := do(srv, http.MethodGet, "/api/rainfall/timestamps?products=globalir")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Falha ao obter os timestamps do produto.", decodeError(t, rec))
}

func TestTimestamps_NotMountedWithoutSource(t *testing.T) {
	rec := do(newTestServer(t, deps{}), http.MethodGet, "/api/rainfall/timestamps?products=globalir")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// tileClient points a real RealEarth client at upstream.
func tileClient(upstream string) *realearth.Client {
	return realearth.NewClient("http://unused.invalid", time.Second, 100, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil))).WithImageAPI(upstream, "secret-key")
}

func TestTileProxy_StreamsImage(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret-key", r.Header.Get("RE-Access-Key"))
		assert.Equal(t, realearth.Referer, r.Header.Get("Referer"))
		q := r.URL.Query()
		assert.Equal(t, "globalir", q.Get("products"))
		assert.Equal(t, "20250210_100000", q.Get("time"))
		assert.Equal(t, []string{"3", "4", "5"}, []string{q.Get("x"), q.Get("y"), q.Get("z")})
		w.Header().Set("Content-Type", "image/jpeg")
		_, _ = w.Write([]byte("tile-bytes"))
	}))
	defer upstream.Close()

	srv := newTestServer(t, deps{tiles: tileClient(upstream.URL)})
	rec := do(srv, http.MethodGet, "/proxy/image?products=globalir&time=20250210_100000&x=3&y=4&z=5")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "tile-bytes", rec.Body.String())
}

func TestTileProxy_DefaultContentType(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header()["Content-Type"] = nil
		_, _ = w.Write([]byte{0x89, 'P', 'N', 'G'})
	}))
	defer upstream.Close()

	srv := newTestServer(t, deps{tiles: tileClient(upstream.URL)})
	rec := do(srv, http.MethodGet, "/proxy/image?products=globalir&time=t&x=0&y=0&z=0")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
}

func TestTileProxy_Errors(t *testing.T) {
	tests := []struct {
		name       string
		upstream   int
		target     string
		wantStatus int
		wantMsg    string
	}{
		{"upstream forbidden", http.StatusForbidden, "/proxy/image?products=globalir", http.StatusForbidden, "Erro ao acessar a API"},
		{"upstream not found", http.StatusNotFound, "/proxy/image?products=globalir", http.StatusNotFound, "Erro ao acessar a API"},
		{"missing product", http.StatusOK, "/proxy/image?time=t", http.StatusBadRequest, "Parâmetro products é obrigatório."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.upstream)
			}))
			defer upstream.Close()

			srv := newTestServer(t, deps{tiles: tileClient(upstream.URL)})
			rec := do(srv, http.MethodGet, tt.target)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantMsg, decodeError(t, rec))
		})
	}
}

func TestTileProxy_TransportFailureReturns500(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := upstream.URL
	upstream.Close()

	srv := newTestServer(t, deps{tiles: tileClient(addr)})
	rec := do(srv, http.MethodGet, "/proxy/image?products=globalir&time=t&x=0&y=0&z=0")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Erro interno no servidor", decodeError(t, rec))
}

func TestTileProxy_NotMountedWithoutSource(t *testing.T) {
	srv := newTestServer(t, deps{})
	rec := do(srv, http.MethodGet, "/proxy/image?products=globalir")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
