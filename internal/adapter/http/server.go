package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/couchcryptid/covid-history-service/internal/domain"
	"github.com/couchcryptid/covid-history-service/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// ReadinessChecker reports whether the service is ready to serve traffic.
type ReadinessChecker interface {
	CheckReadiness(ctx context.Context) error
}

// Querier answers the read-only API queries.
type Querier interface {
	Countries() ([]string, error)
	Regions(country string) ([]string, error)
	Series(country, region string) (domain.FilteredSeries, error)
}

// Refresher runs an on-demand refresh.
type Refresher interface {
	RefreshNow(ctx context.Context) (*domain.Snapshot, error)
}

// Server exposes the query API alongside health, readiness, and metrics endpoints.
type Server struct {
	httpServer *http.Server
	queries    Querier
	refresher  Refresher
	logger     *slog.Logger
}

// NewServer creates an HTTP server with the /api routes plus /healthz,
// /readyz, and /metrics.
func NewServer(addr string, ready ReadinessChecker, queries Querier, refresher Refresher, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:        addr,
			Handler:     mux,
			ReadTimeout: 10 * time.Second,
			// POST /api/refresh downloads every source before responding.
			WriteTimeout: 2 * time.Minute,
			IdleTimeout:  60 * time.Second,
		},
		queries:   queries,
		refresher: refresher,
		logger:    logger,
	}

	mux.HandleFunc("GET /healthz", s.handleHealth)
	mux.HandleFunc("GET /readyz", handleReady(ready))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("GET /api/countries", s.handleCountries)
	mux.HandleFunc("GET /api/regions", s.handleRegions)
	mux.HandleFunc("GET /api/series", s.handleSeries)
	mux.HandleFunc("POST /api/refresh", s.handleRefresh)

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

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func handleReady(checker ReadinessChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := checker.CheckReadiness(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"status": "not ready",
				"error":  err.Error(),
			})
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

type countriesResponse struct {
	Countries []string `json:"countries"`
}

type regionsResponse struct {
	Country string   `json:"country"`
	Regions []string `json:"regions"`
}

type seriesResponse struct {
	domain.FilteredSeries
	Warning string `json:"warning,omitempty"`
}

type refreshResponse struct {
	Generation uint64    `json:"generation"`
	FetchedAt  time.Time `json:"fetched_at"`
	Records    int       `json:"records"`
}

func (s *Server) handleCountries(w http.ResponseWriter, _ *http.Request) {
	countries, err := s.queries.Countries()
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countriesResponse{Countries: countries})
}

func (s *Server) handleRegions(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "country is required")
		return
	}
	regions, err := s.queries.Regions(country)
	if err != nil {
		s.writeQueryError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, regionsResponse{Country: country, Regions: regions})
}

func (s *Server) handleSeries(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	country := q.Get("country")
	if country == "" {
		writeError(w, http.StatusBadRequest, "country is required")
		return
	}
	region := q.Get("region")
	if region == "" {
		region = domain.AllProvinces
	}

	series, err := s.queries.Series(country, region)
	var qerr *domain.QueryError
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, seriesResponse{FilteredSeries: series})
	case errors.As(err, &qerr):
		// Unknown selections render as an empty chart, not an error.
		writeJSON(w, http.StatusOK, seriesResponse{FilteredSeries: series, Warning: qerr.Error()})
	default:
		s.writeQueryError(w, err)
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	snap, err := s.refresher.RefreshNow(r.Context())
	if err != nil {
		s.logger.Error("manual refresh failed", "error", err)
		status := http.StatusInternalServerError
		var ferr *domain.FetchError
		if errors.As(err, &ferr) {
			status = http.StatusBadGateway
		}
		writeError(w, status, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, refreshResponse{
		Generation: snap.Generation,
		FetchedAt:  snap.FetchedAt,
		Records:    len(snap.Table),
	})
}

func (s *Server) writeQueryError(w http.ResponseWriter, err error) {
	if errors.Is(err, pipeline.ErrNotReady) {
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	s.logger.Error("query failed", "error", err)
	writeError(w, http.StatusInternalServerError, err.Error())
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort response
}
