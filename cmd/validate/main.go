// Command validate checks the integrity of the forecast fixtures produced by
// genmock: the CSV schema and value ranges, per-series timestamp ordering,
// and that every assessment in the JSON fixture can be recomputed from the
// CSV rows.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -csv data/mock/sample_forecast.csv \
//	  -json data/mock/sample_assessments.json
package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"github.com/couchcryptid/marine-ops/internal/eri"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

// parsedRow is one CSV line decoded into domain types.
type parsedRow struct {
	line     int
	at       time.Time
	pos      domain.Position
	m        domain.Measurement
	source   string
	biasCorr bool
}

func main() {
	csvPath := flag.String("csv", "", "path to the CSV forecast fixture")
	jsonPath := flag.String("json", "", "path to the JSON assessment fixture")
	flag.Parse()

	if *csvPath == "" || *jsonPath == "" {
		flag.Usage()
		os.Exit(1)
	}

	if code := run(*csvPath, *jsonPath); code != 0 {
		os.Exit(code)
	}
}

func run(csvPath, jsonPath string) int {
	fmt.Println("=== Marine Forecast Fixture Validation ===")
	fmt.Println()

	header, records, err := loadCSV(csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load CSV: %v\n", err)
		return 1
	}
	assessments, err := loadJSON[domain.RouteAssessment](jsonPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: load JSON: %v\n", err)
		return 1
	}

	schema, rows := validateSchema(header, records)
	phases := []*phase{
		schema,
		validateOrdering(rows),
		validateAssessments(assessments, rows),
	}

	fmt.Println()
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Printf("  %-42s %s\n", p.name, status)
	}

	fmt.Println()
	fmt.Printf("Records: %d CSV rows, %d assessments\n", len(records), len(assessments))

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Printf("\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			if i >= 20 {
				fmt.Printf("  ... and %d more\n", len(p.errors)-20)
				break
			}
			fmt.Printf("  %s\n", e)
		}
	}

	if !allPassed {
		return 1
	}
	fmt.Println("\nAll checks passed.")
	return 0
}

func loadCSV(path string) ([]string, [][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil, errors.New("empty file")
		}
		return nil, nil, err
	}
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	return header, records, nil
}

func loadJSON[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var out []T
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// validateSchema checks every row against the export format and returns the
// rows that decoded cleanly.
func validateSchema(header []string, records [][]string) (*phase, []parsedRow) {
	p := &phase{name: "CSV schema and physical ranges"}
	if !slices.Equal(header, domain.CSVHeader) {
		p.errorf("header %v, want %v", header, domain.CSVHeader)
		return p, nil
	}

	rows := make([]parsedRow, 0, len(records))
	for i, rec := range records {
		line := i + 2
		row, err := parseRow(rec)
		if err != nil {
			p.errorf("line %d: %v", line, err)
			continue
		}
		row.line = line

		if want := domain.CanonicalUnit(row.m.Variable); row.m.Unit != want {
			p.errorf("line %d: %s unit %q, want %q", line, row.m.Variable, row.m.Unit, want)
		}
		lo, hi := domain.PhysicalLimits(row.m.Variable)
		if row.m.Value < lo || row.m.Value > hi {
			p.errorf("line %d: %s value %.2f outside [%g, %g]", line, row.m.Variable, row.m.Value, lo, hi)
		}
		rows = append(rows, row)
	}
	return p, rows
}

func parseRow(rec []string) (parsedRow, error) {
	if len(rec) != len(domain.CSVHeader) {
		return parsedRow{}, fmt.Errorf("%d fields, want %d", len(rec), len(domain.CSVHeader))
	}
	at, err := time.Parse(domain.TimestampFormat, rec[0])
	if err != nil {
		return parsedRow{}, fmt.Errorf("timestamp %q: %w", rec[0], err)
	}
	lat, err := strconv.ParseFloat(rec[1], 64)
	if err != nil {
		return parsedRow{}, fmt.Errorf("latitude %q", rec[1])
	}
	lon, err := strconv.ParseFloat(rec[2], 64)
	if err != nil {
		return parsedRow{}, fmt.Errorf("longitude %q", rec[2])
	}
	pos, err := domain.NewPosition(lat, lon)
	if err != nil {
		return parsedRow{}, err
	}
	v, err := domain.ParseVariable(rec[3])
	if err != nil {
		return parsedRow{}, err
	}
	value, err := strconv.ParseFloat(rec[4], 64)
	if err != nil || math.IsNaN(value) || math.IsInf(value, 0) {
		return parsedRow{}, fmt.Errorf("value %q", rec[4])
	}
	qf := domain.QualityFlag(rec[7])
	switch qf {
	case domain.FlagRaw, domain.FlagClipped, domain.FlagImputed:
	default:
		return parsedRow{}, fmt.Errorf("quality flag %q", rec[7])
	}
	bias, err := strconv.ParseBool(rec[8])
	if err != nil {
		return parsedRow{}, fmt.Errorf("bias_corrected %q", rec[8])
	}
	if rec[9] != "" {
		if _, err := strconv.ParseFloat(rec[9], 64); err != nil {
			return parsedRow{}, fmt.Errorf("ensemble_weight %q", rec[9])
		}
	}
	if rec[6] == "" {
		return parsedRow{}, errors.New("empty source")
	}

	m := domain.Measurement{Variable: v, Value: value, Unit: domain.Unit(rec[5]), QualityFlag: qf}
	return parsedRow{at: at, pos: pos, m: m, source: rec[6], biasCorr: bias}, nil
}

type seriesKey struct {
	pos      domain.Position
	variable domain.Variable
}

// validateOrdering requires strictly increasing timestamps per position and
// variable.
func validateOrdering(rows []parsedRow) *phase {
	p := &phase{name: "Timestamp ordering"}
	last := map[seriesKey]parsedRow{}
	for _, r := range rows {
		k := seriesKey{pos: r.pos, variable: r.m.Variable}
		if prev, ok := last[k]; ok && !r.at.After(prev.at) {
			p.errorf("line %d: %s at %s not after line %d (%s)", r.line, r.m.Variable,
				r.at.Format(domain.TimestampFormat), prev.line, prev.at.Format(domain.TimestampFormat))
		}
		last[k] = r
	}
	return p
}

// validateAssessments rebuilds each route's series from the CSV rows and
// recomputes the assessment summary.
func validateAssessments(assessments []domain.RouteAssessment, rows []parsedRow) *phase {
	p := &phase{name: "Assessments recomputed from CSV"}
	rules := eri.DefaultRuleSet()
	risk := domain.DefaultRiskThresholds()

	for _, a := range assessments {
		ts := seriesAt(rows, a.Position)
		if ts.Len() == 0 {
			p.errorf("%s: no CSV rows at %s", a.Route, a.Position)
			continue
		}

		route := domain.Route{Name: a.Route, Position: a.Position}
		want := domain.NewRouteAssessment(route, a.Provider, a.FromCache, ts,
			eri.ComputeTimeseries(ts, rules), domain.AssessRisk(ts.Points[0], risk))

		if a.ID != want.ID {
			p.errorf("%s: id %s, want %s", a.Route, a.ID, want.ID)
		}
		if a.Points != want.Points {
			p.errorf("%s: points %d, want %d", a.Route, a.Points, want.Points)
		}
		if !ptrFloatEq(a.PeakHs, want.PeakHs) {
			p.errorf("%s: peak Hs %s, want %s", a.Route, ptrStr(a.PeakHs), ptrStr(want.PeakHs))
		}
		if !ptrFloatEq(a.MeanERI, want.MeanERI) {
			p.errorf("%s: mean ERI %s, want %s", a.Route, ptrStr(a.MeanERI), ptrStr(want.MeanERI))
		}
		if a.Risk.Level != want.Risk.Level {
			p.errorf("%s: risk %s, want %s", a.Route, a.Risk.Level, want.Risk.Level)
		}
		if len(a.ERI) != len(want.ERI) {
			p.errorf("%s: %d ERI points, want %d", a.Route, len(a.ERI), len(want.ERI))
			continue
		}
		for i := range a.ERI {
			if !floatEq(a.ERI[i].Score, want.ERI[i].Score) {
				p.errorf("%s: ERI[%d] %.2f, want %.2f", a.Route, i, a.ERI[i].Score, want.ERI[i].Score)
			}
		}
	}
	return p
}

// seriesAt groups the rows at pos into points, preserving CSV order.
// Coordinates are compared at the CSV's two-decimal precision.
func seriesAt(rows []parsedRow, pos domain.Position) domain.Timeseries {
	want := domain.Position{Latitude: domain.Round(pos.Latitude, 2), Longitude: domain.Round(pos.Longitude, 2)}
	var points []domain.DataPoint
	index := map[time.Time]int{}
	for _, r := range rows {
		if r.pos != want {
			continue
		}
		i, ok := index[r.at]
		if !ok {
			i = len(points)
			index[r.at] = i
			points = append(points, domain.DataPoint{
				Timestamp: r.at,
				Position:  r.pos,
				Metadata:  domain.Metadata{Source: r.source, BiasCorrected: r.biasCorr},
			})
		}
		points[i].Measurements = append(points[i].Measurements, r.m)
	}
	return domain.Timeseries{Points: points}
}

func floatEq(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func ptrFloatEq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return floatEq(*a, *b)
}

func ptrStr(p *float64) string {
	if p == nil {
		return "<nil>"
	}
	return strconv.FormatFloat(*p, 'f', 2, 64)
}
