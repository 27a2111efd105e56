package main

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/eri"
	"github.com/couchcryptid/marine-ops/internal/provider"
	"github.com/jonboulle/clockwork"
	"github.com/spf13/cobra"
)

var eriCmd = &cobra.Command{
	Use:   "eri",
	Short: "Score conditions with the Environmental Risk Index rules",
	Long: `Score marine conditions against an ERI rule set.

Pass --value once per variable to score a single set of readings, or
--lat/--lon to fetch a forecast through the provider chain and score every
point.

Examples:
  eri --value wave_height=1.8 --value wind_speed=9
  eri --lat 24.52 --lon 54.37 --hours 12 --rules rules/eri.yaml`,
	RunE: runERI,
}

func init() {
	f := eriCmd.Flags()
	f.String("rules", "", "YAML rule set (default: ERI_RULES_PATH or the built-in rules)")
	f.StringArray("value", nil, "reading as name=value; repeatable")
	f.Float64("lat", 0, "latitude for a forecast lookup")
	f.Float64("lon", 0, "longitude for a forecast lookup")
	f.Int("hours", 0, "forecast horizon in hours (0 uses FORECAST_HOURS)")
	f.String("format", "table", "output format: table or json")
	eriCmd.MarkFlagsRequiredTogether("lat", "lon")
	eriCmd.MarkFlagsMutuallyExclusive("value", "lat")

	rootCmd.AddCommand(eriCmd)
}

func runERI(cmd *cobra.Command, _ []string) error {
	f := cmd.Flags()
	format, _ := f.GetString("format")
	if format != "table" && format != "json" {
		return fmt.Errorf("unsupported format %q", format)
	}

	path, _ := f.GetString("rules")
	if path == "" {
		path = cfg.ERIRulesPath
	}
	rules, err := eri.Load(path)
	if err != nil {
		return err
	}

	var points []domain.ERIPoint
	if values, _ := f.GetStringArray("value"); len(values) > 0 {
		data, err := parseReadings(values)
		if err != nil {
			return err
		}
		points = []domain.ERIPoint{{Score: domain.Round(rules.EvaluatePoint(data), 2), Values: data}}
	} else {
		if !f.Changed("lat") {
			return fmt.Errorf("either --value or --lat/--lon is required")
		}
		points, err = scoreForecast(cmd, rules)
		if err != nil {
			return err
		}
	}

	if format == "json" {
		return writeJSON(cmd.OutOrStdout(), points)
	}
	return writeERITable(cmd, rules, points)
}

func parseReadings(values []string) (map[string]float64, error) {
	data := make(map[string]float64, len(values))
	for _, kv := range values {
		name, raw, ok := strings.Cut(kv, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("reading %q: want name=value", kv)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", kv, err)
		}
		data[name] = v
	}
	return data, nil
}

func scoreForecast(cmd *cobra.Command, rules *eri.RuleSet) ([]domain.ERIPoint, error) {
	f := cmd.Flags()
	lat, _ := f.GetFloat64("lat")
	lon, _ := f.GetFloat64("lon")
	pos, err := domain.NewPosition(lat, lon)
	if err != nil {
		return nil, err
	}
	hours, _ := f.GetInt("hours")
	if hours == 0 {
		hours = cfg.ForecastHours
	}

	mgr, err := provider.Build(cfg, clockwork.NewRealClock(), logger, metrics())
	if err != nil {
		return nil, err
	}
	res, err := mgr.Fetch(cmd.Context(), domain.ForecastRequest{Position: pos, Hours: hours})
	if err != nil {
		return nil, err
	}
	ts, _ := domain.QualityControlAll(res.Series)
	logger.Info("scoring forecast", "provider", res.Provider, "points", ts.Len(), "rules", rules.Name)
	return eri.ComputeTimeseries(ts, rules), nil
}

func writeERITable(cmd *cobra.Command, rules *eri.RuleSet, points []domain.ERIPoint) error {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "# %s %s\n", rules.Name, rules.Version)
	fmt.Fprintln(w, "TIME\tSCORE\tREADINGS")
	for _, p := range points {
		at := "-"
		if !p.Timestamp.IsZero() {
			at = p.Timestamp.UTC().Format(time.RFC3339)
		}
		readings := make([]string, 0, len(p.Values))
		for _, k := range slices.Sorted(maps.Keys(p.Values)) {
			readings = append(readings, k+"="+strconv.FormatFloat(p.Values[k], 'f', -1, 64))
		}
		fmt.Fprintf(w, "%s\t%.2f\t%s\n", at, p.Score, strings.Join(readings, " "))
	}
	return w.Flush()
}
