// Package stormglass fetches point forecasts from the Stormglass weather API.
package stormglass

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/domain"
)

// Name is the provider name used in config and metadata.
const Name = "stormglass"

const requestedParams = "waveHeight,windSpeed,windDirection,visibility,swellHeight,swellPeriod,swellDirection"

// sourcePreference orders the upstream model sources read from each field.
var sourcePreference = []string{"sg", "noaa"}

// Client implements domain.Provider against Stormglass.
type Client struct {
	api     *apiclient.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a Stormglass client. baseURL is the API root, e.g.
// https://api.stormglass.io/v2.
func NewClient(api *apiclient.Client, apiKey, baseURL string, logger *slog.Logger) *Client {
	return &Client{api: api, apiKey: apiKey, baseURL: baseURL, logger: logger}
}

func (c *Client) Name() string { return Name }

// Fetch requests the window [now, now+hours].
func (c *Client) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.Timeseries, error) {
	start := domain.Now().UTC()
	end := start.Add(time.Duration(req.Hours) * time.Hour)
	params := url.Values{
		"lat":    {strconv.FormatFloat(req.Position.Latitude, 'f', -1, 64)},
		"lng":    {strconv.FormatFloat(req.Position.Longitude, 'f', -1, 64)},
		"start":  {start.Format(time.RFC3339)},
		"end":    {end.Format(time.RFC3339)},
		"params": {requestedParams},
	}

	var resp response
	endpoint := c.baseURL + "/weather/point"
	if err := c.api.GetJSON(ctx, endpoint, params, map[string]string{"Authorization": c.apiKey}, &resp); err != nil {
		return domain.Timeseries{}, err
	}
	return c.parse(resp, req.Position, endpoint)
}

func (c *Client) parse(resp response, pos domain.Position, sourceURL string) (domain.Timeseries, error) {
	meta := domain.Metadata{
		Source:    Name,
		SourceURL: sourceURL,
		Units:     units,
	}
	var points []domain.DataPoint
	for _, h := range resp.Hours {
		ts, err := domain.ParseTimestamp(h.Time)
		if err != nil {
			c.logger.Debug("skipping record", "provider", Name, "error", err)
			continue
		}
		var ms []domain.Measurement
		for _, f := range h.fields() {
			if v, ok := f.values.pick(); ok {
				ms = append(ms, domain.NewMeasurement(f.variable, v, domain.CanonicalUnit(f.variable)))
			}
		}
		if len(ms) == 0 {
			continue
		}
		points = append(points, domain.NewDataPoint(ts, pos, ms, meta))
	}
	if len(points) == 0 {
		return domain.Timeseries{}, c.api.PayloadError(fmt.Errorf("stormglass: %w", domain.ErrNoRecords))
	}
	return domain.Timeseries{Points: points}, nil
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

// Stormglass API response types.

type response struct {
	Hours []hour `json:"hours"`
}

type hour struct {
	Time           string  `json:"time"`
	WaveHeight     sources `json:"waveHeight"`
	WindSpeed      sources `json:"windSpeed"`
	WindDirection  sources `json:"windDirection"`
	Visibility     sources `json:"visibility"`
	SwellHeight    sources `json:"swellHeight"`
	SwellPeriod    sources `json:"swellPeriod"`
	SwellDirection sources `json:"swellDirection"`
}

type field struct {
	variable domain.Variable
	values   sources
}

func (h hour) fields() []field {
	return []field{
		{domain.VarWaveHeight, h.WaveHeight},
		{domain.VarWindSpeed, h.WindSpeed},
		{domain.VarWindDirection, h.WindDirection},
		{domain.VarVisibility, h.Visibility},
		{domain.VarSwellHeight, h.SwellHeight},
		{domain.VarSwellPeriod, h.SwellPeriod},
		{domain.VarSwellDirection, h.SwellDirection},
	}
}

// sources maps an upstream model name to its value; null values decode to nil.
type sources map[string]*float64

func (s sources) pick() (float64, bool) {
	for _, src := range sourcePreference {
		if v := s[src]; v != nil {
			return *v, true
		}
	}
	return 0, false
}
