package httpadapter

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/eri"
	"github.com/couchcryptid/marine-ops/internal/fusion"
	"github.com/couchcryptid/marine-ops/internal/observability"
	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	requestIDHeader     = "X-Request-ID"
	defaultForecastHrs  = 48
	maxForecastHrs      = 384
	maxDecisionBodySize = 64 << 10
)

// ForecastSource returns the forecast chosen by the provider chain.
type ForecastSource interface {
	Fetch(ctx context.Context, req domain.ForecastRequest) (domain.FetchResult, error)
}

// API configures the /v1 routes. A nil Forecasts disables /v1/forecast.
type API struct {
	Forecasts ForecastSource
	Rules     *eri.RuleSet
	Params    fusion.Params
}

// Server exposes the decision and forecast API alongside health, readiness,
// and metrics endpoints.
type Server struct {
	httpServer *http.Server
	api        API
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewServer creates an HTTP server with /healthz, /readyz, /metrics and the
// /v1 API routes.
func NewServer(addr string, ready sharedobs.ReadinessChecker, api API, metrics *observability.Metrics, logger *slog.Logger) *Server {
	if api.Rules == nil {
		api.Rules = eri.DefaultRuleSet()
	}
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      mux,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 60 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		api:     api,
		metrics: metrics,
		logger:  logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(ready))
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("POST /v1/decisions", s.handleDecision)
	if api.Forecasts != nil {
		mux.HandleFunc("GET /v1/forecast", s.handleForecast)
	}

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

type decisionResponse struct {
	RequestID string        `json:"request_id"`
	Output    fusion.Output `json:"output"`
}

type errorResponse struct {
	RequestID string `json:"request_id,omitempty"`
	Error     string `json:"error"`
}

func (s *Server) handleDecision(w http.ResponseWriter, r *http.Request) {
	id := requestID(w, r)

	var in fusion.Inputs
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxDecisionBodySize))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&in); err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{RequestID: id, Error: fmt.Sprintf("decode inputs: %v", err)})
		return
	}

	out, err := fusion.DecideAndETA(in, s.api.Params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, fusion.ErrValidation) {
			status = http.StatusUnprocessableEntity
		}
		sharedobs.WriteJSON(w, status, errorResponse{RequestID: id, Error: err.Error()})
		return
	}

	s.metrics.Decisions.WithLabelValues(string(out.Decision)).Inc()
	s.logger.Info("decision served",
		"request_id", id,
		"decision", out.Decision,
		"hs_fused_m", out.HsFusedM,
		"wind_fused_kt", out.WindFusedKt,
		"eta_hours", out.ETAHours,
	)
	sharedobs.WriteJSON(w, http.StatusOK, decisionResponse{RequestID: id, Output: out})
}

type forecastResponse struct {
	Provider  string             `json:"provider"`
	FromCache bool               `json:"from_cache"`
	FetchedAt time.Time          `json:"fetched_at"`
	Points    []domain.DataPoint `json:"points"`
	ERI       []domain.ERIPoint  `json:"eri"`
}

func (s *Server) handleForecast(w http.ResponseWriter, r *http.Request) {
	id := requestID(w, r)

	req, err := parseForecastRequest(r)
	if err != nil {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{RequestID: id, Error: err.Error()})
		return
	}
	format := r.URL.Query().Get("format")
	if format != "" && format != "json" && format != "csv" {
		sharedobs.WriteJSON(w, http.StatusBadRequest, errorResponse{RequestID: id, Error: fmt.Sprintf("unsupported format %q", format)})
		return
	}

	res, err := s.api.Forecasts.Fetch(r.Context(), req)
	if err != nil {
		status := http.StatusBadGateway
		switch {
		case errors.Is(err, domain.ErrInvalidArgument):
			status = http.StatusBadRequest
		case errors.Is(err, domain.ErrNoDataAvailable):
			status = http.StatusServiceUnavailable
		case errors.Is(err, context.DeadlineExceeded):
			status = http.StatusGatewayTimeout
		}
		s.logger.Warn("forecast request failed", "request_id", id, "position", req.Position.String(), "error", err)
		sharedobs.WriteJSON(w, status, errorResponse{RequestID: id, Error: err.Error()})
		return
	}

	ts, clipped := domain.QualityControlAll(res.Series)
	for v, n := range clipped {
		s.metrics.QCClipped.WithLabelValues(string(v)).Add(float64(n))
	}

	if format == "csv" {
		writeCSV(w, ts)
		return
	}
	sharedobs.WriteJSON(w, http.StatusOK, forecastResponse{
		Provider:  res.Provider,
		FromCache: res.FromCache,
		FetchedAt: res.FetchedAt,
		Points:    ts.Points,
		ERI:       eri.ComputeTimeseries(ts, s.api.Rules),
	})
}

func parseForecastRequest(r *http.Request) (domain.ForecastRequest, error) {
	q := r.URL.Query()
	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil {
		return domain.ForecastRequest{}, fmt.Errorf("invalid lat %q", q.Get("lat"))
	}
	lon, err := strconv.ParseFloat(q.Get("lon"), 64)
	if err != nil {
		return domain.ForecastRequest{}, fmt.Errorf("invalid lon %q", q.Get("lon"))
	}
	pos, err := domain.NewPosition(lat, lon)
	if err != nil {
		return domain.ForecastRequest{}, err
	}

	hours := defaultForecastHrs
	if raw := q.Get("hours"); raw != "" {
		hours, err = strconv.Atoi(raw)
		if err != nil || hours <= 0 || hours > maxForecastHrs {
			return domain.ForecastRequest{}, fmt.Errorf("hours must be an integer in [1, %d], got %q", maxForecastHrs, raw)
		}
	}
	return domain.ForecastRequest{Position: pos, Hours: hours}, nil
}

// requestID echoes the caller's X-Request-ID or assigns a new one.
func requestID(w http.ResponseWriter, r *http.Request) string {
	id := r.Header.Get(requestIDHeader)
	if id == "" {
		id = uuid.NewString()
	}
	w.Header().Set(requestIDHeader, id)
	return id
}

func writeCSV(w http.ResponseWriter, ts domain.Timeseries) {
	w.Header().Set("Content-Type", "text/csv")
	w.WriteHeader(http.StatusOK)
	cw := csv.NewWriter(w)
	cw.Write(domain.CSVHeader) //nolint:errcheck // flushed below
	for row := range ts.Rows() {
		cw.Write(row.Fields()) //nolint:errcheck // flushed below
	}
	cw.Flush()
}
