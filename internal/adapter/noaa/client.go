// Package noaa fetches NOAA WaveWatch III point forecasts.
package noaa

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/domain"
)

// Name is the provider name used in config and metadata.
const Name = "noaa-ww3"

// Client implements domain.Provider against the WW3 point API.
type Client struct {
	api      *apiclient.Client
	endpoint string
	logger   *slog.Logger
}

func NewClient(api *apiclient.Client, endpoint string, logger *slog.Logger) *Client {
	return &Client{api: api, endpoint: endpoint, logger: logger}
}

func (c *Client) Name() string { return Name }

func (c *Client) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.Timeseries, error) {
	params := url.Values{
		"lat":   {fmt.Sprintf("%.4f", req.Position.Latitude)},
		"lon":   {fmt.Sprintf("%.4f", req.Position.Longitude)},
		"hours": {strconv.Itoa(req.Hours)},
	}
	var resp response
	if err := c.api.GetJSON(ctx, c.endpoint, params, nil, &resp); err != nil {
		return domain.Timeseries{}, err
	}

	meta := domain.Metadata{Source: Name, SourceURL: c.endpoint}
	var points []domain.DataPoint
	for _, r := range resp.Data {
		if r.Time == "" {
			continue
		}
		ts, err := domain.ParseTimestamp(r.Time)
		if err != nil {
			c.logger.Debug("skipping record", "provider", Name, "error", err)
			continue
		}
		ms := r.measurements()
		if len(ms) == 0 {
			continue
		}
		points = append(points, domain.NewDataPoint(ts, req.Position, ms, meta))
	}
	if len(points) == 0 {
		return domain.Timeseries{}, c.api.PayloadError(fmt.Errorf("noaa-ww3: %w", domain.ErrNoRecords))
	}
	return domain.Timeseries{Points: points}, nil
}

// WW3 API response types.

type response struct {
	Data []record `json:"data"`
}

type record struct {
	Time     string    `json:"time"`
	Hs       flexFloat `json:"hs"`
	Wind     flexFloat `json:"wind"`
	WindDir  flexFloat `json:"wind_dir"`
	SwellHs  flexFloat `json:"swell_hs"`
	SwellTp  flexFloat `json:"swell_tp"`
	SwellDir flexFloat `json:"swell_dir"`
}

func (r record) measurements() []domain.Measurement {
	fields := []struct {
		v domain.Variable
		f flexFloat
	}{
		{domain.VarWaveHeight, r.Hs},
		{domain.VarWindSpeed, r.Wind},
		{domain.VarWindDirection, r.WindDir},
		{domain.VarSwellHeight, r.SwellHs},
		{domain.VarSwellPeriod, r.SwellTp},
		{domain.VarSwellDirection, r.SwellDir},
	}
	var ms []domain.Measurement
	for _, fld := range fields {
		if fld.f.valid {
			ms = append(ms, domain.NewMeasurement(fld.v, fld.f.value, domain.CanonicalUnit(fld.v)))
		}
	}
	return ms
}

// flexFloat accepts a JSON number or a numeric string. Anything else,
// including null and non-finite strings such as "NaN", decodes as absent.
type flexFloat struct {
	value float64
	valid bool
}

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return nil
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil
		}
		f.value, f.valid = v, true
		return nil
	}
	var v float64
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}
	f.value, f.valid = v, true
	return nil
}
