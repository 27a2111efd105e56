// Package openmeteo fetches hourly marine forecasts from the Open-Meteo
// marine API. It needs no API key and is the usual fallback provider.
package openmeteo

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/domain"
)

// Name is the provider name used in config and metadata.
const Name = "open-meteo"

// ParseMode selects how missing values are handled.
type ParseMode string

const (
	// ParseStrict skips null or missing values.
	ParseStrict ParseMode = "strict"
	// ParseForecast fills missing numerics with 0 and falls back to the
	// wave arrays when swell arrays are absent.
	ParseForecast ParseMode = "forecast"
)

var hourlyParams = []string{
	"wave_height", "wave_direction", "wave_period",
	"wind_speed_10m", "wind_direction_10m", "visibility",
	"swell_wave_height", "swell_wave_direction", "swell_wave_period",
}

// Client implements domain.Provider against Open-Meteo.
type Client struct {
	api      *apiclient.Client
	endpoint string
	mode     ParseMode
	logger   *slog.Logger
}

// NewClient creates an Open-Meteo client. An unknown mode is treated as strict.
func NewClient(api *apiclient.Client, endpoint string, mode ParseMode, logger *slog.Logger) *Client {
	if mode != ParseForecast {
		mode = ParseStrict
	}
	return &Client{api: api, endpoint: endpoint, mode: mode, logger: logger}
}

func (c *Client) Name() string { return Name }

func (c *Client) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.Timeseries, error) {
	params := url.Values{
		"latitude":        {strconv.FormatFloat(req.Position.Latitude, 'f', -1, 64)},
		"longitude":       {strconv.FormatFloat(req.Position.Longitude, 'f', -1, 64)},
		"hourly":          {strings.Join(hourlyParams, ",")},
		"forecast_hours":  {strconv.Itoa(req.Hours)},
		"wind_speed_unit": {"ms"},
		"timezone":        {"GMT"},
	}

	var resp response
	if err := c.api.GetJSON(ctx, c.endpoint, params, nil, &resp); err != nil {
		return domain.Timeseries{}, err
	}
	if resp.Hourly == nil {
		return domain.Timeseries{}, c.api.PayloadError(fmt.Errorf("open-meteo: missing hourly data: %w", domain.ErrNoRecords))
	}
	return c.parse(*resp.Hourly, req.Position)
}

type column struct {
	variable domain.Variable
	values   []*float64
	scale    float64
}

func (c *Client) columns(h hourly) []column {
	swellHeight, swellDir, swellPeriod := h.SwellWaveHeight, h.SwellWaveDirection, h.SwellWavePeriod
	if c.mode == ParseForecast {
		if swellHeight == nil {
			swellHeight = h.WaveHeight
		}
		if swellDir == nil {
			swellDir = h.WaveDirection
		}
		if swellPeriod == nil {
			swellPeriod = h.WavePeriod
		}
	}
	return []column{
		{domain.VarWaveHeight, h.WaveHeight, 1},
		{domain.VarWindSpeed, h.WindSpeed, 1},
		{domain.VarWindDirection, h.WindDirection, 1},
		{domain.VarVisibility, h.Visibility, 0.001}, // metres to km
		{domain.VarSwellHeight, swellHeight, 1},
		{domain.VarSwellPeriod, swellPeriod, 1},
		{domain.VarSwellDirection, swellDir, 1},
	}
}

func (c *Client) parse(h hourly, pos domain.Position) (domain.Timeseries, error) {
	cols := c.columns(h)
	meta := domain.Metadata{
		Source:    Name,
		SourceURL: c.endpoint,
		Units:     units,
	}

	var points []domain.DataPoint
	for i, raw := range h.Time {
		ts, err := domain.ParseTimestamp(raw)
		if err != nil {
			c.logger.Debug("skipping record", "provider", Name, "error", err)
			continue
		}
		var ms []domain.Measurement
		for _, col := range cols {
			v, ok := valueAt(col.values, i)
			if !ok {
				if c.mode != ParseForecast {
					continue
				}
				v = 0
			}
			ms = append(ms, domain.NewMeasurement(col.variable, v*col.scale, domain.CanonicalUnit(col.variable)))
		}
		if len(ms) == 0 {
			continue
		}
		points = append(points, domain.NewDataPoint(ts, pos, ms, meta))
	}
	if len(points) == 0 {
		return domain.Timeseries{}, c.api.PayloadError(fmt.Errorf("open-meteo: %w", domain.ErrNoRecords))
	}
	return domain.Timeseries{Points: points}, nil
}

func valueAt(values []*float64, i int) (float64, bool) {
	if i >= len(values) || values[i] == nil {
		return 0, false
	}
	return *values[i], true
}

var units = map[domain.Variable]domain.Unit{
	domain.VarWaveHeight:     domain.UnitMeters,
	domain.VarWindSpeed:      domain.UnitMetersPerSecond,
	domain.VarWindDirection:  domain.UnitDegrees,
	domain.VarVisibility:     domain.UnitKilometers,
	domain.VarSwellHeight:    domain.UnitMeters,
	domain.VarSwellPeriod:    domain.UnitSeconds,
	domain.VarSwellDirection: domain.UnitDegrees,
}

// Open-Meteo API response types.

type response struct {
	Hourly *hourly `json:"hourly"`
}

type hourly struct {
	Time               []string   `json:"time"`
	WaveHeight         []*float64 `json:"wave_height"`
	WaveDirection      []*float64 `json:"wave_direction"`
	WavePeriod         []*float64 `json:"wave_period"`
	WindSpeed          []*float64 `json:"wind_speed_10m"`
	WindDirection      []*float64 `json:"wind_direction_10m"`
	Visibility         []*float64 `json:"visibility"`
	SwellWaveHeight    []*float64 `json:"swell_wave_height"`
	SwellWaveDirection []*float64 `json:"swell_wave_direction"`
	SwellWavePeriod    []*float64 `json:"swell_wave_period"`
}
