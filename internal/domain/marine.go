package domain

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Variable identifies a marine quantity carried by a Measurement.
type Variable string

const (
	VarWaveHeight     Variable = "Hs"       // significant wave height
	VarWindSpeed      Variable = "U10"      // wind speed at 10 m
	VarWindDirection  Variable = "U10_DIR"  // wind direction, degrees from north
	VarVisibility     Variable = "Vis"      // horizontal visibility
	VarSwellHeight    Variable = "SwellHs"  // primary swell height
	VarSwellPeriod    Variable = "SwellTp"  // primary swell period
	VarSwellDirection Variable = "SwellDir" // primary swell direction
	VarTide           Variable = "Tide"     // tide height relative to datum
)

// Variables lists every supported variable in canonical order.
var Variables = []Variable{
	VarWaveHeight, VarWindSpeed, VarWindDirection, VarVisibility,
	VarSwellHeight, VarSwellPeriod, VarSwellDirection, VarTide,
}

// ParseVariable validates a variable name.
func ParseVariable(s string) (Variable, error) {
	v := Variable(s)
	if !slices.Contains(Variables, v) {
		return "", fmt.Errorf("%w: unknown variable %q", ErrInvalidArgument, s)
	}
	return v, nil
}

// Unit is the unit of measure attached to a Measurement.
type Unit string

const (
	UnitMeters          Unit = "m"
	UnitMetersPerSecond Unit = "m/s"
	UnitDegrees         Unit = "deg"
	UnitKilometers      Unit = "km"
	UnitSeconds         Unit = "s"
	UnitFeet            Unit = "ft"
	UnitKnots           Unit = "kt"
)

// CanonicalUnit returns the unit connectors normalize each variable to.
func CanonicalUnit(v Variable) Unit {
	switch v {
	case VarWindSpeed:
		return UnitMetersPerSecond
	case VarWindDirection, VarSwellDirection:
		return UnitDegrees
	case VarVisibility:
		return UnitKilometers
	case VarSwellPeriod:
		return UnitSeconds
	default:
		return UnitMeters
	}
}

// QualityFlag records what quality control did to a value.
type QualityFlag string

const (
	FlagRaw     QualityFlag = "raw"
	FlagClipped QualityFlag = "clipped"
	FlagImputed QualityFlag = "imputed"
)

// Round rounds v to the given number of decimal places using the exact binary
// value of v, breaking true ties to even.
func Round(v float64, places int) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	r, err := strconv.ParseFloat(strconv.FormatFloat(v, 'f', places, 64), 64)
	if err != nil {
		return v
	}
	return r
}

// Position is a single forecast location in decimal degrees.
type Position struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// NewPosition validates latitude in [-90, 90] and longitude in [-180, 180].
func NewPosition(lat, lon float64) (Position, error) {
	p := Position{Latitude: lat, Longitude: lon}
	if err := p.Validate(); err != nil {
		return Position{}, err
	}
	return p, nil
}

// Validate reports whether the position is within geographic bounds.
func (p Position) Validate() error {
	if math.IsNaN(p.Latitude) || p.Latitude < -90 || p.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidArgument, p.Latitude)
	}
	if math.IsNaN(p.Longitude) || p.Longitude < -180 || p.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidArgument, p.Longitude)
	}
	return nil
}

func (p Position) String() string {
	return fmt.Sprintf("%.4f,%.4f", p.Latitude, p.Longitude)
}

// Measurement is one variable's value at a point in time.
type Measurement struct {
	Variable    Variable    `json:"variable"`
	Value       float64     `json:"value"`
	Unit        Unit        `json:"unit"`
	QualityFlag QualityFlag `json:"quality_flag"`
}

// NewMeasurement builds a raw measurement with the value rounded to 2 decimals.
func NewMeasurement(v Variable, value float64, unit Unit) Measurement {
	return Measurement{Variable: v, Value: Round(value, 2), Unit: unit, QualityFlag: FlagRaw}
}

// withValue returns a copy carrying a new (rounded) value and flag.
func (m Measurement) withValue(value float64, flag QualityFlag) Measurement {
	m.Value = Round(value, 2)
	m.QualityFlag = flag
	return m
}

// Metadata describes the provenance of a DataPoint. Treat values as
// read-only; the With* helpers return modified copies.
type Metadata struct {
	Source         string            `json:"source"`
	SourceURL      string            `json:"source_url,omitempty"`
	Units          map[Variable]Unit `json:"units,omitempty"`
	BiasCorrected  bool              `json:"bias_corrected"`
	EnsembleWeight *float64          `json:"ensemble_weight,omitempty"`
}

func (m Metadata) clone() Metadata {
	m.Units = maps.Clone(m.Units)
	if m.EnsembleWeight != nil {
		w := *m.EnsembleWeight
		m.EnsembleWeight = &w
	}
	return m
}

// WithBiasCorrected returns a copy marked as bias corrected.
func (m Metadata) WithBiasCorrected() Metadata {
	c := m.clone()
	c.BiasCorrected = true
	return c
}

// WithEnsembleWeight returns a copy carrying the combined ensemble weight,
// rounded to 2 decimals.
func (m Metadata) WithEnsembleWeight(w float64) Metadata {
	c := m.clone()
	rw := Round(w, 2)
	c.EnsembleWeight = &rw
	return c
}

// DataPoint is the set of measurements one source reports for a timestamp
// and position.
type DataPoint struct {
	Timestamp    time.Time     `json:"timestamp"`
	Position     Position      `json:"position"`
	Measurements []Measurement `json:"measurements"`
	Metadata     Metadata      `json:"metadata"`
}

// NewDataPoint normalizes the timestamp to UTC and copies the measurements.
func NewDataPoint(ts time.Time, pos Position, measurements []Measurement, meta Metadata) DataPoint {
	return DataPoint{
		Timestamp:    ts.UTC(),
		Position:     pos,
		Measurements: slices.Clone(measurements),
		Metadata:     meta,
	}
}

// Value returns the value of variable v. The boolean is false when the
// point carries no such measurement.
func (p DataPoint) Value(v Variable) (float64, bool) {
	for _, m := range p.Measurements {
		if m.Variable == v {
			return m.Value, true
		}
	}
	return 0, false
}

// Measurement returns the measurement for variable v, if present.
func (p DataPoint) Measurement(v Variable) (Measurement, bool) {
	for _, m := range p.Measurements {
		if m.Variable == v {
			return m, true
		}
	}
	return Measurement{}, false
}

// Timeseries is an ordered sequence of data points from one source.
type Timeseries struct {
	Points []DataPoint `json:"points"`
}

// Len returns the number of points.
func (ts Timeseries) Len() int { return len(ts.Points) }

// Values collects every value of v in point order, skipping points that
// do not carry it.
func (ts Timeseries) Values(v Variable) []float64 {
	return collectValues(ts.Points, v)
}

// Variables returns the variables present, in order of first appearance.
func (ts Timeseries) Variables() []Variable {
	var out []Variable
	for _, p := range ts.Points {
		for _, m := range p.Measurements {
			if !slices.Contains(out, m.Variable) {
				out = append(out, m.Variable)
			}
		}
	}
	return out
}

// collectValues returns the finite values of v in point order.
func collectValues(points []DataPoint, v Variable) []float64 {
	var out []float64
	for _, p := range points {
		if val, ok := p.Value(v); ok && !math.IsNaN(val) && !math.IsInf(val, 0) {
			out = append(out, val)
		}
	}
	return out
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseTimestamp parses provider timestamps. Strings without a zone are
// taken as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable timestamp %q", s)
}
