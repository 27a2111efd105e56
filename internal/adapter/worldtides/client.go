// Package worldtides fetches tide height predictions from WorldTides.
package worldtides

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/marine-ops/internal/adapter/apiclient"
	"github.com/couchcryptid/marine-ops/internal/domain"
)

// Name is the provider name used in config and metadata.
const Name = "worldtides"

// Client implements domain.Provider for tide heights only.
type Client struct {
	api     *apiclient.Client
	apiKey  string
	baseURL string
	logger  *slog.Logger
}

// NewClient creates a WorldTides client. baseURL is the API root, e.g.
// https://www.worldtides.info/api/v3.
func NewClient(api *apiclient.Client, apiKey, baseURL string, logger *slog.Logger) *Client {
	return &Client{api: api, apiKey: apiKey, baseURL: baseURL, logger: logger}
}

func (c *Client) Name() string { return Name }

func (c *Client) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.Timeseries, error) {
	start := domain.Now().UTC()
	end := start.Add(time.Duration(req.Hours) * time.Hour)
	params := url.Values{
		"lat":   {strconv.FormatFloat(req.Position.Latitude, 'f', -1, 64)},
		"lon":   {strconv.FormatFloat(req.Position.Longitude, 'f', -1, 64)},
		"start": {strconv.FormatInt(start.Unix(), 10)},
		"end":   {strconv.FormatInt(end.Unix(), 10)},
		"key":   {c.apiKey},
	}

	var resp response
	endpoint := c.baseURL + "/heights"
	if err := c.api.GetJSON(ctx, endpoint, params, nil, &resp); err != nil {
		return domain.Timeseries{}, err
	}
	// WorldTides reports some failures with a 200 and an error field.
	if resp.Error != "" {
		return domain.Timeseries{}, &domain.ProviderError{
			Provider:   Name,
			Kind:       domain.KindStatus,
			StatusCode: resp.Status,
			Err:        errors.New(resp.Error),
		}
	}

	meta := domain.Metadata{
		Source:    Name,
		SourceURL: endpoint,
		Units:     map[domain.Variable]domain.Unit{domain.VarTide: domain.UnitMeters},
	}
	var points []domain.DataPoint
	for _, h := range resp.Heights {
		if h.Dt == nil || h.Height == nil {
			c.logger.Debug("skipping record", "provider", Name)
			continue
		}
		ts := time.Unix(*h.Dt, 0)
		points = append(points, domain.NewDataPoint(ts, req.Position, []domain.Measurement{
			domain.NewMeasurement(domain.VarTide, *h.Height, domain.UnitMeters),
		}, meta))
	}
	if len(points) == 0 {
		return domain.Timeseries{}, c.api.PayloadError(fmt.Errorf("worldtides: %w", domain.ErrNoRecords))
	}
	return domain.Timeseries{Points: points}, nil
}

// WorldTides API response types.

type response struct {
	Status  int      `json:"status"`
	Error   string   `json:"error"`
	Heights []height `json:"heights"`
}

type height struct {
	Dt     *int64   `json:"dt"`
	Height *float64 `json:"height"`
}
