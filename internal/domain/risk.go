package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// RiskLevel is the coarse operational risk of a forecast point.
type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskThresholds bound the MEDIUM and HIGH bands. Wave heights are metres,
// wind speeds knots.
type RiskThresholds struct {
	MediumHs   float64
	HighHs     float64
	MediumWind float64
	HighWind   float64
}

// DefaultRiskThresholds returns the stock operating limits.
func DefaultRiskThresholds() RiskThresholds {
	return RiskThresholds{MediumHs: 2.0, HighHs: 3.0, MediumWind: 22.0, HighWind: 28.0}
}

// RiskAssessment explains the level assigned to a point.
type RiskAssessment struct {
	Level   RiskLevel         `json:"level"`
	Reasons []string          `json:"reasons"`
	Metrics map[string]string `json:"metrics"`
}

const withinThresholds = "Conditions within defined safety thresholds"

// AssessRisk classifies a single forecast point. Wave height falls back to
// swell height when Hs is absent or zero. Wind is compared in knots. A point
// missing swell period or direction is never rated below MEDIUM.
func AssessRisk(p DataPoint, t RiskThresholds) RiskAssessment {
	level := RiskLow
	var reasons []string

	hs, ok := p.Value(VarWaveHeight)
	if !ok || hs == 0 {
		hs, ok = p.Value(VarSwellHeight)
	}
	if ok {
		switch {
		case hs > t.HighHs:
			level = RiskHigh
			reasons = append(reasons, fmt.Sprintf("Significant wave height %.2f m exceeds high threshold %.2f m", hs, t.HighHs))
		case hs > t.MediumHs:
			level = RiskMedium
			reasons = append(reasons, fmt.Sprintf("Significant wave height %.2f m exceeds medium threshold %.2f m", hs, t.MediumHs))
		}
	}

	wind, windOK := windKnots(p)
	if windOK {
		switch {
		case wind > t.HighWind:
			level = RiskHigh
			reasons = append(reasons, fmt.Sprintf("Wind speed %.2f kt exceeds high threshold %.2f kt", wind, t.HighWind))
		case wind > t.MediumWind && level != RiskHigh:
			level = RiskMedium
			reasons = append(reasons, fmt.Sprintf("Wind speed %.2f kt exceeds medium threshold %.2f kt", wind, t.MediumWind))
		}
	}

	_, hasTp := p.Value(VarSwellPeriod)
	_, hasDir := p.Value(VarSwellDirection)
	if !hasTp || !hasDir {
		if level == RiskLow {
			level = RiskMedium
		}
		reasons = append(reasons, "Missing swell inputs; conservative risk applied")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, withinThresholds)
	}

	return RiskAssessment{
		Level:   level,
		Reasons: reasons,
		Metrics: map[string]string{
			"Hs":        formatMetric(p, VarWaveHeight, "m"),
			"Wind":      formatMetricValue(wind, windOK, "kt"),
			"Wind Dir":  formatMetric(p, VarWindDirection, "deg"),
			"Swell Hs":  formatMetric(p, VarSwellHeight, "m"),
			"Swell Tp":  formatMetric(p, VarSwellPeriod, "s"),
			"Swell Dir": formatMetric(p, VarSwellDirection, "deg"),
		},
	}
}

func windKnots(p DataPoint) (float64, bool) {
	m, ok := p.Measurement(VarWindSpeed)
	if !ok {
		return 0, false
	}
	if m.Unit == UnitMetersPerSecond {
		return MetersPerSecondToKnots(m.Value), true
	}
	return m.Value, true
}

func formatMetric(p DataPoint, v Variable, unit string) string {
	val, ok := p.Value(v)
	return formatMetricValue(val, ok, unit)
}

func formatMetricValue(v float64, ok bool, unit string) string {
	if !ok {
		return "N/A"
	}
	// Half away from zero on the shortest decimal form: 2.675 -> "2.68".
	return decimal.NewFromFloat(v).StringFixed(2) + " " + unit
}
