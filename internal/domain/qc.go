package domain

import (
	"math"
	"slices"
)

// DefaultIQRMultiplier is the Tukey fence multiplier used when QCOptions
// leaves IQRMultiplier at zero.
const DefaultIQRMultiplier = 1.5

// minStatisticalSamples is the smallest sample for which quartile fences are
// meaningful; smaller samples are only checked against physical bounds.
const minStatisticalSamples = 4

// QCOptions overrides the physical bounds and IQR multiplier for one run of
// ApplyQualityControl. Nil bounds fall back to the physical limits table.
type QCOptions struct {
	Min           *float64
	Max           *float64
	IQRMultiplier float64
}

type physicalRange struct{ min, max float64 }

var physicalLimits = map[Variable]physicalRange{
	VarWaveHeight:     {0, 20},
	VarWindSpeed:      {0, 100},
	VarWindDirection:  {0, 360},
	VarVisibility:     {0, 50},
	VarSwellHeight:    {0, 15},
	VarSwellPeriod:    {0, 30},
	VarSwellDirection: {0, 360},
	VarTide:           {-10, 10},
}

// PhysicalLimits returns the plausible range for v.
func PhysicalLimits(v Variable) (lower, upper float64) {
	if r, ok := physicalLimits[v]; ok {
		return r.min, r.max
	}
	return 0, 1000
}

// ApplyQualityControl clips every measurement of variable to the intersection
// of its physical limits and the IQR fences computed over the series.
// Clipped values are flagged FlagClipped; other variables pass through.
// The input slice is not modified.
func ApplyQualityControl(points []DataPoint, variable Variable, opts QCOptions) []DataPoint {
	lower, upper, ok := QCBounds(points, variable, opts)
	if !ok {
		return points
	}
	return ClipToBounds(points, variable, lower, upper)
}

// QCBounds computes the clipping interval ApplyQualityControl would use.
// The boolean is false when no point carries variable. Non-finite values do
// not enter the fences; with fewer than four finite values the IQR fences
// are skipped and only physical limits apply.
func QCBounds(points []DataPoint, variable Variable, opts QCOptions) (lower, upper float64, ok bool) {
	if !slices.ContainsFunc(points, func(p DataPoint) bool {
		_, found := p.Measurement(variable)
		return found
	}) {
		return 0, 0, false
	}
	values := collectValues(points, variable)

	lower, upper = PhysicalLimits(variable)
	if opts.Min != nil {
		lower = *opts.Min
	}
	if opts.Max != nil {
		upper = *opts.Max
	}

	if len(values) >= minStatisticalSamples {
		k := opts.IQRMultiplier
		if k == 0 {
			k = DefaultIQRMultiplier
		}
		q1, q3 := quartiles(values)
		iqr := q3 - q1
		lower = math.Max(lower, q1-k*iqr)
		upper = math.Min(upper, q3+k*iqr)
	}
	return lower, upper, true
}

// ClipToBounds clamps every measurement of variable into [lower, upper].
// When lower > upper the result is lower. NaN measurements of variable are
// dropped; infinities clip to the nearer bound. Clipping twice with the
// same bounds is a no-op the second time.
func ClipToBounds(points []DataPoint, variable Variable, lower, upper float64) []DataPoint {
	out := make([]DataPoint, len(points))
	for i, p := range points {
		ms := make([]Measurement, 0, len(p.Measurements))
		for _, m := range p.Measurements {
			if m.Variable != variable {
				ms = append(ms, m)
				continue
			}
			if math.IsNaN(m.Value) {
				continue
			}
			clipped := Round(math.Max(lower, math.Min(upper, m.Value)), 2)
			if clipped != m.Value {
				ms = append(ms, m.withValue(clipped, FlagClipped))
			} else {
				ms = append(ms, m)
			}
		}
		p.Measurements = ms
		out[i] = p
	}
	return out
}

// QualityControlAll runs ApplyQualityControl with default options over every
// variable present in the series and returns the number of clipped
// measurements per variable.
func QualityControlAll(ts Timeseries) (Timeseries, map[Variable]int) {
	clipped := make(map[Variable]int)
	points := ts.Points
	for _, v := range ts.Variables() {
		before := countFlag(points, v, FlagClipped)
		points = ApplyQualityControl(points, v, QCOptions{})
		if n := countFlag(points, v, FlagClipped) - before; n > 0 {
			clipped[v] = n
		}
	}
	return Timeseries{Points: points}, clipped
}

func countFlag(points []DataPoint, v Variable, flag QualityFlag) int {
	n := 0
	for _, p := range points {
		if m, ok := p.Measurement(v); ok && m.QualityFlag == flag {
			n++
		}
	}
	return n
}

// quartiles returns Q1 and Q3 using the exclusive method (positions at
// i*(n+1)/4, linearly interpolated). Requires len(values) >= 2.
func quartiles(values []float64) (q1, q3 float64) {
	d := slices.Sorted(slices.Values(values))
	m := len(d) + 1
	q := func(i int) float64 {
		j := i * m / 4
		delta := i*m - j*4
		return (d[j-1]*float64(4-delta) + d[j]*float64(delta)) / 4
	}
	return q(1), q(3)
}
