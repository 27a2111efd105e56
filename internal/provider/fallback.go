// Package provider selects which upstream forecast to use: a two-provider
// fallback helper, an ordered Manager backed by the forecast cache, and the
// deterministic sample provider used when nothing else is configured.
package provider

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/couchcryptid/marine-ops/internal/domain"
)

// DefaultRetryStatusCodes are the HTTP statuses that move the fetch on to
// the fallback provider.
var DefaultRetryStatusCodes = []int{408, 425, 429, 500, 502, 503, 504}

// ShouldFallback reports whether err from one provider justifies trying the
// next. Timeouts, transport failures and the listed statuses do; payload
// errors, other statuses and caller cancellation do not.
func ShouldFallback(err error, retryStatuses []int) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var pe *domain.ProviderError
	if !errors.As(err, &pe) {
		return false
	}
	switch pe.Kind {
	case domain.KindTimeout, domain.KindTransport:
		return true
	case domain.KindRateLimit, domain.KindStatus:
		return slices.Contains(retryStatuses, pe.StatusCode)
	default:
		return false
	}
}

// FetchWithFallback tries primary and, when ShouldFallback allows it,
// returns the fallback's result instead. A nil retryStatuses uses
// DefaultRetryStatusCodes.
func FetchWithFallback(ctx context.Context, req domain.ForecastRequest, primary, fallback domain.Provider, retryStatuses []int, logger *slog.Logger) (domain.Timeseries, error) {
	if retryStatuses == nil {
		retryStatuses = DefaultRetryStatusCodes
	}
	ts, err := primary.Fetch(ctx, req)
	if err == nil {
		return ts, nil
	}
	if !ShouldFallback(err, retryStatuses) || ctx.Err() != nil {
		return domain.Timeseries{}, err
	}
	logger.Warn("primary provider failed, using fallback",
		"provider", primary.Name(),
		"fallback", fallback.Name(),
		"error", err,
	)
	return fallback.Fetch(ctx, req)
}
