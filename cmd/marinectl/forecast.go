package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/provider"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var forecastCmd = &cobra.Command{
	Use:   "forecast",
	Short: "Fetch a quality-controlled forecast for a position",
	Long: `Fetch a marine forecast for one position through the configured provider
chain, apply quality control, and print it.

With --primary the chain is bypassed: the named provider is called directly,
falling over to --fallback on timeouts, network errors and retryable HTTP
statuses. With --cache-only no provider is called.

Examples:
  forecast --lat 24.52 --lon 54.37 --hours 24
  forecast --lat 24.52 --lon 54.37 --primary stormglass --fallback open-meteo
  forecast --lat 24.52 --lon 54.37 --cache-only --format csv`,
	RunE: runForecast,
}

func init() {
	f := forecastCmd.Flags()
	f.Float64("lat", 0, "latitude in decimal degrees")
	f.Float64("lon", 0, "longitude in decimal degrees")
	f.Int("hours", 0, "forecast horizon in hours (0 uses FORECAST_HOURS)")
	f.String("primary", "", "call this provider directly instead of the chain")
	f.String("fallback", "", "provider to fall over to when --primary fails")
	f.IntSlice("retry-status", provider.DefaultRetryStatusCodes, "HTTP statuses that trigger the fallback")
	f.Bool("cache-only", false, "serve from the forecast cache without calling providers")
	f.String("format", "json", "output format: json or csv")
	_ = forecastCmd.MarkFlagRequired("lat")
	_ = forecastCmd.MarkFlagRequired("lon")

	rootCmd.AddCommand(forecastCmd)
}

func runForecast(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	format, _ := f.GetString("format")
	if format != "json" && format != "csv" {
		return fmt.Errorf("unsupported format %q", format)
	}

	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	pos, err := domain.NewPosition(lat, lon)
	if err != nil {
		return err
	}
	hours, _ := f.GetInt("hours")
	if hours == 0 {
		hours = cfg.ForecastHours
	}
	req := domain.ForecastRequest{Position: pos, Hours: hours}
	if err := req.Validate(); err != nil {
		return err
	}

	res, err := fetchForecast(cmd, req)
	if err != nil {
		return err
	}
	ts, clipped := domain.QualityControlAll(res.Series)
	for v, n := range clipped {
		metrics().QCClipped.WithLabelValues(string(v)).Add(float64(n))
	}
	res.Series = ts
	logger.Info("forecast ready", "provider", res.Provider, "points", ts.Len(), "from_cache", res.FromCache)

	if format == "csv" {
		return writeCSV(cmd.OutOrStdout(), ts)
	}
	return writeJSON(cmd.OutOrStdout(), res)
}

func fetchForecast(cmd *cobra.Command, req domain.ForecastRequest) (domain.FetchResult, error) {
	f := cmd.Flags()
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	primaryName, _ := f.GetString("primary")
	if primaryName == "" {
		mgr, err := provider.Build(cfg, clockwork.NewRealClock(), logger, metrics())
		if err != nil {
			return domain.FetchResult{}, err
		}
		if cacheOnly, _ := f.GetBool("cache-only"); cacheOnly {
			return mgr.FetchCached(req)
		}
		return mgr.Fetch(ctx, req)
	}

	primary, err := provider.Connector(cfg, primaryName, logger, metrics())
	if err != nil {
		return domain.FetchResult{}, err
	}
	fallbackName, _ := f.GetString("fallback")
	var ts domain.Timeseries
	if fallbackName == "" {
		ts, err = primary.Fetch(ctx, req)
	} else {
		var fallback domain.Provider
		fallback, err = provider.Connector(cfg, fallbackName, logger, metrics())
		if err != nil {
			return domain.FetchResult{}, err
		}
		statuses, _ := f.GetIntSlice("retry-status")
		ts, err = provider.FetchWithFallback(ctx, req, primary, fallback, statuses, logger)
	}
	if err != nil {
		return domain.FetchResult{}, err
	}
	name := primaryName
	if ts.Len() > 0 && ts.Points[0].Metadata.Source != "" {
		name = ts.Points[0].Metadata.Source
	}
	return domain.FetchResult{Provider: name, Series: ts, FetchedAt: domain.Now()}, nil
}

func writeCSV(w io.Writer, ts domain.Timeseries) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(domain.CSVHeader); err != nil {
		return err
	}
	for row := range ts.Rows() {
		if err := cw.Write(row.Fields()); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
