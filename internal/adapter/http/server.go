package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/hydro-telemetry-service/internal/adapter/realearth"
	"github.com/couchcryptid/hydro-telemetry-service/internal/domain"
	"github.com/couchcryptid/hydro-telemetry-service/internal/pipeline"
)

// Client facing error messages. Details are logged, never returned.
const (
	msgCategorized     = "Falha ao obter as estações categorizadas."
	msgSummary         = "Falha ao obter dados resumidos das estações."
	msgInvalidInterval = "Intervalo inválido. Os valores permitidos são 2h, 6h, 12h, 24h e 48h."
	msgInvalidDate     = "Data inválida. Use o formato AAAA-MM-DD."
	msgStationNotFound = "Dados não encontrados para a estação informada."
	msgHistory         = "Falha ao obter o histórico das estações."
	msgRainfallByCity  = "Falha ao calcular a média e a mediana de chuva por cidade."
	msgMissingProduct  = "Parâmetro products é obrigatório."
	msgTimestamps      = "Falha ao obter os timestamps do produto."
	msgTileUpstream    = "Erro ao acessar a API"
	msgTileInternal    = "Erro interno no servidor"
)

// TimestampSource lists recent tile timestamps for a satellite product.
type TimestampSource interface {
	Recent(ctx context.Context, product string) ([]string, error)
	Refresh(ctx context.Context, product string) ([]string, error)
}

// TileSource fetches satellite tile images with the server-held access key.
type TileSource interface {
	FetchTile(ctx context.Context, tr realearth.TileRequest) (*http.Response, error)
}

// Server exposes the station API plus health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	stations   pipeline.StationMerger
	history    pipeline.HistoricalSource
	timestamps TimestampSource
	tiles      TileSource
	logger     *slog.Logger
}

// NewServer creates an HTTP server. timestamps and tiles may be nil, in which
// case the rainfall timestamp and tile proxy routes are not mounted.
func NewServer(addr string, ready sharedobs.ReadinessChecker, stations pipeline.StationMerger, history pipeline.HistoricalSource, timestamps TimestampSource, tiles TileSource, logger *slog.Logger) *Server {
	r := mux.NewRouter()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		stations:   stations,
		history:    history,
		timestamps: timestamps,
		tiles:      tiles,
		logger:     logger,
	}

	r.HandleFunc("/healthz", sharedobs.LivenessHandler()).Methods(http.MethodGet)
	r.HandleFunc("/readyz", sharedobs.ReadinessHandler(ready)).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api/stationData/estacoes").Subrouter()
	api.HandleFunc("/categorizadas", s.handleCategorized).Methods(http.MethodGet)
	api.HandleFunc("/todas", s.handleSummary).Methods(http.MethodGet)
	api.HandleFunc("/historico/{date}/{interval}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/historico/{date}/{interval}/{station}", s.handleHistory).Methods(http.MethodGet)
	api.HandleFunc("/chuvaPorCidade", s.handleRainfallByCity).Methods(http.MethodGet)

	if timestamps != nil {
		r.HandleFunc("/api/rainfall/timestamps", s.handleTimestamps).Methods(http.MethodGet)
	}
	if tiles != nil {
		r.HandleFunc("/proxy/image", s.handleTile).Methods(http.MethodGet)
	}

	s.httpServer.Handler = handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodPost}),
		handlers.AllowedHeaders([]string{"Content-Type", "RE-Access-Key"}),
	)(r)

	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// stationRef is the identity pair listed under each category.
type stationRef struct {
	CodigoEstacao domain.Value `json:"codigoestacao"`
	EstacaoNome   domain.Value `json:"Estacao_Nome"`
}

type categorizedResponse struct {
	PorRio         map[string][]stationRef `json:"porRio"`
	Atualizadas    []stationRef            `json:"atualizadas"`
	Desatualizadas []stationRef            `json:"desatualizadas"`
	PorChuva       map[string][]stationRef `json:"porChuva"`
	PorNivel       map[string][]stationRef `json:"porNivel"`
	PorVazao       map[string][]stationRef `json:"porVazao"`
}

func (s *Server) handleCategorized(w http.ResponseWriter, r *http.Request) {
	merged, err := s.stations.MergeStationData(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, msgCategorized, err)
		return
	}

	cats := domain.CategorizeStations(merged.Stations)
	writeJSON(w, http.StatusOK, categorizedResponse{
		PorRio:         refGroups(cats.ByRiver),
		Atualizadas:    refs(cats.Updated),
		Desatualizadas: refs(cats.NotUpdated),
		PorChuva:       refGroups(cats.ByRainfall),
		PorNivel:       refGroups(cats.ByLevel),
		PorVazao:       refGroups(cats.ByDischarge),
	})
}

func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	merged, err := s.stations.MergeStationData(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, msgSummary, err)
		return
	}

	out := make([]domain.StationSummary, 0, len(merged.Stations))
	for _, st := range merged.Stations {
		out = append(out, domain.Summarize(st, domain.CategorizeStation(st)))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	interval, err := domain.ParseInterval(vars["interval"])
	if err != nil {
		writeError(w, http.StatusBadRequest, msgInvalidInterval)
		return
	}

	groups, err := s.history.GetHistoricalStationData(r.Context(), interval, vars["date"])
	switch {
	case errors.Is(err, domain.ErrInvalidInterval):
		writeError(w, http.StatusBadRequest, msgInvalidInterval)
		return
	case errors.Is(err, domain.ErrMissingReferenceDate), errors.Is(err, domain.ErrInvalidReferenceDate):
		writeError(w, http.StatusBadRequest, msgInvalidDate)
		return
	case err != nil:
		s.fail(w, http.StatusInternalServerError, msgHistory, err)
		return
	}

	station, ok := vars["station"]
	if !ok {
		writeJSON(w, http.StatusOK, groups)
		return
	}
	group, found := groups[station]
	if !found {
		writeError(w, http.StatusNotFound, msgStationNotFound)
		return
	}
	writeJSON(w, http.StatusOK, group)
}

func (s *Server) handleRainfallByCity(w http.ResponseWriter, r *http.Request) {
	merged, err := s.stations.MergeStationData(r.Context())
	if err != nil {
		s.fail(w, http.StatusInternalServerError, msgRainfallByCity, err)
		return
	}

	cats := make([]domain.StationCategory, 0, len(merged.Stations))
	for _, st := range merged.Stations {
		cats = append(cats, domain.CategorizeStation(st))
	}
	writeJSON(w, http.StatusOK, domain.RainfallByCity(cats))
}

func (s *Server) handleTimestamps(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	product := q.Get("products")
	if product == "" {
		writeError(w, http.StatusBadRequest, msgMissingProduct)
		return
	}

	fetch := s.timestamps.Recent
	if refresh, _ := strconv.ParseBool(q.Get("refresh")); refresh {
		fetch = s.timestamps.Refresh
	}

	times, err := fetch(r.Context(), product)
	if err != nil {
		s.fail(w, http.StatusBadGateway, msgTimestamps, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string][]string{product: times})
}

// handleTile streams a tile from the image API. Upstream error statuses are
// passed through with a generic body.
func (s *Server) handleTile(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if q.Get("products") == "" {
		writeError(w, http.StatusBadRequest, msgMissingProduct)
		return
	}

	resp, err := s.tiles.FetchTile(r.Context(), realearth.TileRequest{
		Product: q.Get("products"),
		Time:    q.Get("time"),
		X:       q.Get("x"),
		Y:       q.Get("y"),
		Z:       q.Get("z"),
	})
	if err != nil {
		s.fail(w, http.StatusInternalServerError, msgTileInternal, err)
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		s.logger.Warn("tile upstream error", "status", resp.StatusCode, "product", q.Get("products"))
		writeError(w, resp.StatusCode, msgTileUpstream)
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "image/png"
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, resp.Body); err != nil {
		s.logger.Error("tile stream interrupted", "error", err)
	}
}

func (s *Server) fail(w http.ResponseWriter, status int, msg string, err error) {
	s.logger.Error(msg, "error", err)
	writeError(w, status, msg)
}

func refs(cats []domain.StationCategory) []stationRef {
	out := make([]stationRef, 0, len(cats))
	for _, c := range cats {
		out = append(out, stationRef{CodigoEstacao: c.CodigoEstacao, EstacaoNome: c.EstacaoNome})
	}
	return out
}

func refGroups[K ~string](groups map[K][]domain.StationCategory) map[string][]stationRef {
	out := make(map[string][]stationRef, len(groups))
	for k, cats := range groups {
		out[string(k)] = refs(cats)
	}
	return out
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // response already committed
}
