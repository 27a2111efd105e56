package worldtides

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(baseURL string) *Client {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	api := apiclient.New(Name, apiclient.Options{Timeout: 5 * time.Second}, observability.NewMetricsForTesting(), logger)
	return NewClient(api, "tide-key", baseURL, logger)
}

func TestClient_Fetch_Success(t *testing.T) {
	now := time.Date(2025, 3, 3, 6, 0, 0, 0, time.UTC)
	domain.SetClock(clockwork.NewFakeClockAt(now))
	t.Cleanup(func() { domain.SetClock(nil) })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/heights", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "tide-key", q.Get("key"))
		assert.Equal(t, "1740981600", q.Get("start"))
		assert.Equal(t, "1741024800", q.Get("end"))
		_, _ = w.Write([]byte(`{"status": 200, "heights": [
			{"dt": 1740981600, "height": 0.456},
			{"dt": 1740985200},
			{"dt": 1740988800, "height": -0.2}
		]}`))
	}))
	defer srv.Close()

	ts, err := testClient(srv.URL).Fetch(context.Background(), domain.ForecastRequest{
		Position: domain.Position{Latitude: 24.52, Longitude: 54.37},
		Hours:    12,
	})
	require.NoError(t, err)
	require.Equal(t, 2, ts.Len())
	assert.Equal(t, now, ts.Points[0].Timestamp)
	assert.Equal(t, []float64{0.46, -0.2}, ts.Values(domain.VarTide))
}

func TestClient_Fetch_BodyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": 400, "error": "Invalid key"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), domain.ForecastRequest{Hours: 12})

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindStatus, pe.Kind)
	assert.Equal(t, 400, pe.StatusCode)
	assert.Contains(t, pe.Error(), "Invalid key")
}

func TestClient_Fetch_Empty(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status": 200, "heights": []}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL).Fetch(context.Background(), domain.ForecastRequest{Hours: 12})
	assert.ErrorIs(t, err, domain.ErrNoRecords)
}
