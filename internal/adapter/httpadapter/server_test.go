package httpadapter_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/couchcryptid/marine-ops/internal/adapter/httpadapter"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/fusion"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockReadiness struct {
	err error
}

func (m *mockReadiness) CheckReadiness(_ context.Context) error { return m.err }

type mockForecasts struct {
	result domain.FetchResult
	err    error
	got    domain.ForecastRequest
}

func (m *mockForecasts) Fetch(_ context.Context, req domain.ForecastRequest) (domain.FetchResult, error) {
	m.got = req
	return m.result, m.err
}

func newTestServer(readyErr error, forecasts httpadapter.ForecastSource) *httpadapter.Server {
	api := httpadapter.API{Forecasts: forecasts, Params: fusion.DefaultParams()}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return httpadapter.NewServer(":0", &mockReadiness{err: readyErr}, api, observability.NewMetricsForTesting(), logger)
}

func sampleResult() domain.FetchResult {
	at := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	pos := domain.Position{Latitude: 24.52, Longitude: 54.37}
	p := domain.NewDataPoint(at, pos, []domain.Measurement{
		domain.NewMeasurement(domain.VarWaveHeight, 0.8, domain.UnitMeters),
		domain.NewMeasurement(domain.VarWindSpeed, 6.5, domain.UnitMetersPerSecond),
	}, domain.Metadata{Source: "open-meteo"})
	return domain.FetchResult{Provider: "open-meteo", Series: domain.Timeseries{Points: []domain.DataPoint{p}}, FetchedAt: at}
}

func serve(srv *httpadapter.Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}

func TestHealthzReturns200(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestReadyz(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = serve(newTestServer(fmt.Errorf("not ready yet"), nil), httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDecision(t *testing.T) {
	body := `{"combined_ft":2,"wind_adnoc":15,"hs_onshore_ft":1.5,"hs_offshore_ft":2,"wind_albahar":18,
		"alert":null,"offshore_weight":0.35,"distance_nm":120,"planned_speed":12}`
	req := httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(body))
	req.Header.Set("X-Request-ID", "req-42")

	rec := serve(newTestServer(nil, nil), req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))

	var resp struct {
		RequestID string        `json:"request_id"`
		Output    fusion.Output `json:"output"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "req-42", resp.RequestID)
	assert.Equal(t, fusion.Go, resp.Output.Decision)
	assert.Equal(t, 10.7, resp.Output.ETAHours)
}

func TestDecision_AssignsRequestID(t *testing.T) {
	body := `{"combined_ft":2,"wind_adnoc":15,"hs_onshore_ft":1.5,"hs_offshore_ft":2,"wind_albahar":18,
		"offshore_weight":0.35,"distance_nm":120,"planned_speed":12}`
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(body)))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, rec.Header().Get("X-Request-ID"), 36)
}

func TestDecision_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
	}{
		{"malformed json", `{"combined_ft":`, http.StatusBadRequest},
		{"unknown field", `{"combined_ft":2,"swell":1}`, http.StatusBadRequest},
		{"zero distance", `{"combined_ft":2,"offshore_weight":0.3,"distance_nm":0,"planned_speed":12}`, http.StatusUnprocessableEntity},
		{"weight above one", `{"combined_ft":2,"offshore_weight":1.5,"distance_nm":10,"planned_speed":12}`, http.StatusUnprocessableEntity},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodPost, "/v1/decisions", strings.NewReader(tc.body)))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestForecast_JSON(t *testing.T) {
	src := &mockForecasts{result: sampleResult()}
	rec := serve(newTestServer(nil, src), httptest.NewRequest(http.MethodGet, "/v1/forecast?lat=24.52&lon=54.37&hours=12", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.Equal(t, domain.ForecastRequest{Position: domain.Position{Latitude: 24.52, Longitude: 54.37}, Hours: 12}, src.got)

	var resp struct {
		Provider string            `json:"provider"`
		ERI      []domain.ERIPoint `json:"eri"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "open-meteo", resp.Provider)
	require.Len(t, resp.ERI, 1)
	assert.Equal(t, 90.0, resp.ERI[0].Score)
}

func TestForecast_CSV(t *testing.T) {
	src := &mockForecasts{result: sampleResult()}
	rec := serve(newTestServer(nil, src), httptest.NewRequest(http.MethodGet, "/v1/forecast?lat=24.52&lon=54.37&format=csv", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/csv", rec.Header().Get("Content-Type"))
	assert.Equal(t, 48, src.got.Hours)

	lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(domain.CSVHeader, ","), lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "2025-03-03T06:00:00Z,24.52,54.37,wave_height,0.80,m,open-meteo,"))
}

func TestForecast_Errors(t *testing.T) {
	tests := []struct {
		name  string
		query string
		err   error
		want  int
	}{
		{"missing lat", "lon=54.37", nil, http.StatusBadRequest},
		{"latitude out of range", "lat=95&lon=54.37", nil, http.StatusBadRequest},
		{"bad hours", "lat=24.5&lon=54.37&hours=-1", nil, http.StatusBadRequest},
		{"bad format", "lat=24.5&lon=54.37&format=xml", nil, http.StatusBadRequest},
		{"no data", "lat=24.5&lon=54.37", domain.ErrNoDataAvailable, http.StatusServiceUnavailable},
		{"provider failure", "lat=24.5&lon=54.37", errors.New("boom"), http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			src := &mockForecasts{result: sampleResult(), err: tc.err}
			rec := serve(newTestServer(nil, src), httptest.NewRequest(http.MethodGet, "/v1/forecast?"+tc.query, nil))
			assert.Equal(t, tc.want, rec.Code)
		})
	}
}

func TestForecast_DisabledWithoutSource(t *testing.T) {
	rec := serve(newTestServer(nil, nil), httptest.NewRequest(http.MethodGet, "/v1/forecast?lat=1&lon=1", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}
