package domain

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func swellComplete(ms ...Measurement) DataPoint {
	ms = append(ms,
		NewMeasurement(VarSwellPeriod, 8, UnitSeconds),
		NewMeasurement(VarSwellDirection, 110, UnitDegrees),
	)
	return testPoint(0, ms...)
}

func TestAssessRisk(t *testing.T) {
	th := DefaultRiskThresholds()

	tests := []struct {
		name    string
		point   DataPoint
		level   RiskLevel
		reasons []string
	}{
		{
			name:    "calm",
			point:   swellComplete(NewMeasurement(VarWaveHeight, 0.8, UnitMeters), NewMeasurement(VarWindSpeed, 5, UnitMetersPerSecond)),
			level:   RiskLow,
			reasons: []string{withinThresholds},
		},
		{
			name:    "high waves",
			point:   swellComplete(NewMeasurement(VarWaveHeight, 3.5, UnitMeters), NewMeasurement(VarWindSpeed, 12, UnitMetersPerSecond)),
			level:   RiskHigh,
			reasons: []string{"Significant wave height 3.50 m exceeds high threshold 3.00 m"},
		},
		{
			name:    "medium wind in knots",
			point:   swellComplete(NewMeasurement(VarWaveHeight, 1, UnitMeters), NewMeasurement(VarWindSpeed, 12, UnitMetersPerSecond)),
			level:   RiskMedium,
			reasons: []string{"Wind speed 23.33 kt exceeds medium threshold 22.00 kt"},
		},
		{
			name:    "high wind overrides medium waves",
			point:   swellComplete(NewMeasurement(VarWaveHeight, 2.5, UnitMeters), NewMeasurement(VarWindSpeed, 15, UnitMetersPerSecond)),
			level:   RiskHigh,
			reasons: []string{
				"Significant wave height 2.50 m exceeds medium threshold 2.00 m",
				"Wind speed 29.16 kt exceeds high threshold 28.00 kt",
			},
		},
		{
			name:    "swell height stands in for Hs",
			point:   swellComplete(NewMeasurement(VarSwellHeight, 2.2, UnitMeters)),
			level:   RiskMedium,
			reasons: []string{"Significant wave height 2.20 m exceeds medium threshold 2.00 m"},
		},
		{
			name:    "missing swell inputs",
			point:   testPoint(0, NewMeasurement(VarWaveHeight, 0.5, UnitMeters)),
			level:   RiskMedium,
			reasons: []string{"Missing swell inputs; conservative risk applied"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := AssessRisk(tc.point, th)
			assert.Equal(t, tc.level, got.Level)
			assert.Equal(t, tc.reasons, got.Reasons)
		})
	}
}

func TestAssessRisk_Metrics(t *testing.T) {
	p := swellComplete(NewMeasurement(VarWaveHeight, 1.2, UnitMeters), NewMeasurement(VarWindSpeed, 10, UnitMetersPerSecond))
	got := AssessRisk(p, DefaultRiskThresholds())

	assert.Equal(t, "1.20 m", got.Metrics["Hs"])
	assert.Equal(t, "19.44 kt", got.Metrics["Wind"])
	assert.Equal(t, "N/A", got.Metrics["Wind Dir"])
	assert.Equal(t, "8.00 s", got.Metrics["Swell Tp"])
	assert.Equal(t, "110.00 deg", got.Metrics["Swell Dir"])
}

func TestFormatMetricValue(t *testing.T) {
	for in, want := range map[float64]string{
		2.675:  "2.68",
		1:      "1.00",
		9.995:  "10.00",
		-0.125: "-0.13",
		0.001:  "0.00",
		-0.001: "0.00",
		12.5:   "12.50",
		1.005:  "1.01",
		99.995: "100.00",
	} {
		assert.Equal(t, want+" m", formatMetricValue(in, true, "m"), "%v", in)
	}
	assert.Equal(t, "N/A", formatMetricValue(0, false, "m"))
}

func TestNewRouteAssessment(t *testing.T) {
	SetClock(clockwork.NewFakeClockAt(time.Date(2025, 3, 3, 5, 0, 0, 0, time.UTC)))
	defer SetClock(nil)

	route := Route{Name: "mw4-agi", Position: testPos}
	ts := Timeseries{Points: []DataPoint{
		testPoint(0, NewMeasurement(VarWaveHeight, 1.1, UnitMeters), NewMeasurement(VarWindSpeed, 6, UnitMetersPerSecond)),
		testPoint(3, NewMeasurement(VarWaveHeight, 1.6, UnitMeters)),
	}}
	eri := []ERIPoint{{Score: 80}, {Score: 55}}

	a := NewRouteAssessment(route, testSource, false, ts, eri, RiskAssessment{Level: RiskLow})
	again := NewRouteAssessment(route, testSource, false, ts, eri, RiskAssessment{Level: RiskLow})

	assert.Equal(t, a.ID, again.ID)
	assert.Regexp(t, `^mw4-agi-[0-9a-f]{16}$`, a.ID)
	require.NotNil(t, a.PeakHs)
	assert.Equal(t, 1.6, *a.PeakHs)
	require.NotNil(t, a.PeakWind)
	assert.Equal(t, 6.0, *a.PeakWind)
	require.NotNil(t, a.MeanERI)
	assert.Equal(t, 67.5, *a.MeanERI)
	assert.Equal(t, 2, a.Points)
	assert.Equal(t, time.Date(2025, 3, 3, 5, 0, 0, 0, time.UTC), a.IssuedAt)

	other := NewRouteAssessment(route, "noaa-ww3", false, ts, eri, RiskAssessment{})
	assert.NotEqual(t, a.ID, other.ID)
}
