package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument marks caller input that can never succeed.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrUnsupportedConversion is returned by Convert for pairs without a rule.
	ErrUnsupportedConversion = errors.New("unsupported unit conversion")
	// ErrMisalignedSeries is returned when ensemble members disagree on
	// length or timestamps.
	ErrMisalignedSeries = errors.New("misaligned series")
	// ErrNoDataAvailable is returned when every provider failed and no
	// unexpired cache entry exists.
	ErrNoDataAvailable = errors.New("no marine forecast data available")
)

// ProviderErrorKind classifies a provider failure.
type ProviderErrorKind string

const (
	KindTimeout   ProviderErrorKind = "timeout"
	KindRateLimit ProviderErrorKind = "rate_limit"
	KindStatus    ProviderErrorKind = "status"
	KindTransport ProviderErrorKind = "transport"
	KindPayload   ProviderErrorKind = "payload"
)

// ProviderError is returned by connectors for any failed fetch.
type ProviderError struct {
	Provider   string
	Kind       ProviderErrorKind
	StatusCode int
	Err        error
}

func (e *ProviderError) Error() string {
	msg := fmt.Sprintf("provider %s: %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewPayloadError reports a response with no usable records.
func NewPayloadError(provider string, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: KindPayload, Err: err}
}

// ErrNoRecords is wrapped by payload errors when parsing skipped every record.
var ErrNoRecords = errors.New("no usable records in response")
