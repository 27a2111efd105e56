// Command genmock generates reproducible forecast fixtures from the built-in
// sample provider: a CSV of quality-controlled measurements and a JSON file
// of the matching route assessments. It runs the same domain and ERI code as
// the service so fixtures track real pipeline behavior.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -routes "mw4-agi=24.52:54.37,ruwais=24.11:52.73" \
//	  -csv-out data/mock/sample_forecast.csv \
//	  -json-out data/mock/sample_assessments.json
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/couchcryptid/marine-ops/internal/config"
	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/eri"
	"github.com/couchcryptid/marine-ops/internal/provider"
	"github.com/jonboulle/clockwork"
)

// fixtureTime anchors the sample series so fixtures are byte-stable.
var fixtureTime = time.Date(2025, time.March, 3, 6, 0, 0, 0, time.UTC)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	routesFlag := flag.String("routes", "mw4-agi=24.52:54.37,ruwais=24.11:52.73", "routes as name=lat:lon[,name=lat:lon]")
	hours := flag.Int("hours", 48, "forecast horizon in hours")
	csvOut := flag.String("csv-out", "", "output path for the CSV forecast fixture")
	jsonOut := flag.String("json-out", "", "output path for the JSON assessment fixture")
	flag.Parse()

	if *csvOut == "" || *jsonOut == "" {
		flag.Usage()
		return fmt.Errorf("missing required flags: -csv-out, -json-out")
	}

	routes, err := config.ParseRoutes(*routesFlag)
	if err != nil {
		return err
	}

	domain.SetClock(clockwork.NewFakeClockAt(fixtureTime))
	defer domain.SetClock(nil)

	rules := eri.DefaultRuleSet()
	risk := domain.DefaultRiskThresholds()

	var (
		series      []domain.Timeseries
		assessments []domain.RouteAssessment
	)
	for _, r := range routes {
		ts, err := provider.Sample{}.Fetch(context.Background(), domain.ForecastRequest{Position: r.Position, Hours: *hours})
		if err != nil {
			return fmt.Errorf("sample forecast for %s: %w", r.Name, err)
		}
		ts, _ = domain.QualityControlAll(ts)
		series = append(series, ts)

		a := domain.NewRouteAssessment(r, provider.SampleName, false, ts,
			eri.ComputeTimeseries(ts, rules), domain.AssessRisk(ts.Points[0], risk))
		assessments = append(assessments, a)
		log.Printf("%s: %d points, risk %s", r.Name, ts.Len(), a.Risk.Level)
	}

	rows, err := writeCSV(*csvOut, series)
	if err != nil {
		return fmt.Errorf("writing CSV fixture: %w", err)
	}
	log.Printf("wrote CSV fixture: %s (%d rows)", *csvOut, rows)

	if err := writeJSON(*jsonOut, assessments); err != nil {
		return fmt.Errorf("writing JSON fixture: %w", err)
	}
	log.Printf("wrote JSON fixture: %s", *jsonOut)

	printStats(series, assessments)
	return nil
}

func writeCSV(path string, series []domain.Timeseries) (int, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(domain.CSVHeader); err != nil {
		return 0, err
	}
	n := 0
	for _, ts := range series {
		for row := range ts.Rows() {
			if err := w.Write(row.Fields()); err != nil {
				return n, err
			}
			n++
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return n, err
	}
	return n, f.Close()
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o600)
}

func printStats(series []domain.Timeseries, assessments []domain.RouteAssessment) {
	fmt.Println("\n=== Stats for updating test assertions ===")
	for i, ts := range series {
		a := assessments[i]
		fmt.Printf("%s (%s): %d points, mean ERI %.2f, risk %s\n",
			a.Route, a.Position, ts.Len(), deref(a.MeanERI), a.Risk.Level)
		for _, v := range ts.Variables() {
			values := ts.Values(v)
			fmt.Printf("  %-8s min=%.2f max=%.2f\n", v, slices.Min(values), slices.Max(values))
		}
	}
}

func deref(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
