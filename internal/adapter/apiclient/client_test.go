package apiclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(timeout time.Duration) *Client {
	return New("test", Options{Timeout: timeout}, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

type payload struct {
	Value float64 `json:"value"`
}

func TestGetJSON_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1.5", r.URL.Query().Get("lat"))
		assert.Equal(t, "secret", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"value": 2.25}`))
	}))
	defer srv.Close()

	var out payload
	err := testClient(time.Second).GetJSON(context.Background(), srv.URL,
		url.Values{"lat": {"1.5"}}, map[string]string{"Authorization": "secret"}, &out)
	require.NoError(t, err)
	assert.Equal(t, 2.25, out.Value)
}

func TestGetJSON_Classification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   domain.ProviderErrorKind
	}{
		{"rate limited", http.StatusTooManyRequests, "slow down", domain.KindRateLimit},
		{"server error", http.StatusBadGateway, "bad gateway", domain.KindStatus},
		{"unauthorized", http.StatusUnauthorized, "no key", domain.KindStatus},
		{"bad json", http.StatusOK, "{broken", domain.KindPayload},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			var out payload
			err := testClient(time.Second).GetJSON(context.Background(), srv.URL, nil, nil, &out)

			var pe *domain.ProviderError
			require.ErrorAs(t, err, &pe)
			assert.Equal(t, tt.kind, pe.Kind)
			assert.Equal(t, "test", pe.Provider)
			if tt.kind != domain.KindPayload {
				assert.Equal(t, tt.status, pe.StatusCode)
			}
		})
	}
}

func TestGetJSON_Timeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	var out payload
	err := testClient(50*time.Millisecond).GetJSON(context.Background(), srv.URL, nil, nil, &out)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindTimeout, pe.Kind)
}

func TestGetJSON_Transport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := srv.URL
	srv.Close()

	var out payload
	err := testClient(time.Second).GetJSON(context.Background(), addr, nil, nil, &out)

	var pe *domain.ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindTransport, pe.Kind)
}

func TestGetJSON_CallerCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var out payload
	err := testClient(time.Second).GetJSON(ctx, srv.URL, nil, nil, &out)
	require.ErrorIs(t, err, context.Canceled)

	var pe *domain.ProviderError
	assert.False(t, errors.As(err, &pe))
}
