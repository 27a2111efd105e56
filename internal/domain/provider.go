package domain

import (
	"context"
	"fmt"
	"time"
)

// ForecastRequest asks a provider for a forecast at one position covering
// the next Hours hours.
type ForecastRequest struct {
	Position Position
	Hours    int
}

// Validate rejects requests no provider can serve.
func (r ForecastRequest) Validate() error {
	if err := r.Position.Validate(); err != nil {
		return err
	}
	if r.Hours <= 0 {
		return fmt.Errorf("%w: hours must be positive, got %d", ErrInvalidArgument, r.Hours)
	}
	return nil
}

// Provider fetches a marine forecast from one upstream source.
type Provider interface {
	Name() string
	Fetch(ctx context.Context, req ForecastRequest) (Timeseries, error)
}

// FetchResult is the series a provider chain settled on.
type FetchResult struct {
	Provider  string     `json:"provider"`
	Series    Timeseries `json:"series"`
	FromCache bool       `json:"from_cache"`
	FetchedAt time.Time  `json:"fetched_at"`
}
