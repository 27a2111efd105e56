package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"time"
)

// Route is a named site or passage checked on every assessment cycle.
type Route struct {
	Name     string   `json:"name"`
	Position Position `json:"position"`
}

// ERIPoint is the environmental risk index computed for one forecast point.
type ERIPoint struct {
	Timestamp time.Time          `json:"timestamp"`
	Latitude  float64            `json:"latitude"`
	Longitude float64            `json:"longitude"`
	Score     float64            `json:"eri_score"`
	Values    map[string]float64 `json:"values"`
}

// RouteAssessment is the per-route result published on every cycle.
type RouteAssessment struct {
	ID        string         `json:"id"`
	Route     string         `json:"route"`
	Position  Position       `json:"position"`
	Provider  string         `json:"provider"`
	FromCache bool           `json:"from_cache"`
	Ensemble  []string       `json:"ensemble,omitempty"`
	Risk      RiskAssessment `json:"risk"`
	PeakHs    *float64       `json:"peak_hs_m,omitempty"`
	PeakWind  *float64       `json:"peak_wind_mps,omitempty"`
	MeanERI   *float64       `json:"mean_eri,omitempty"`
	ERI       []ERIPoint     `json:"eri"`
	Points    int            `json:"points"`
	IssuedAt  time.Time      `json:"issued_at"`
}

// NewRouteAssessment summarizes a processed series for a route. The ID is
// deterministic in route, provider and the first forecast timestamp so
// downstream consumers can deduplicate replays.
func NewRouteAssessment(route Route, provider string, fromCache bool, ts Timeseries, eri []ERIPoint, risk RiskAssessment) RouteAssessment {
	first := ""
	if len(ts.Points) > 0 {
		first = ts.Points[0].Timestamp.Format(TimestampFormat)
	}
	a := RouteAssessment{
		ID:        generateID(route.Name, provider, first),
		Route:     route.Name,
		Position:  route.Position,
		Provider:  provider,
		FromCache: fromCache,
		Risk:      risk,
		PeakHs:    peak(ts.Values(VarWaveHeight)),
		PeakWind:  peak(ts.Values(VarWindSpeed)),
		ERI:       eri,
		Points:    ts.Len(),
		IssuedAt:  clock.Now().UTC(),
	}
	if len(eri) > 0 {
		var sum float64
		for _, e := range eri {
			sum += e.Score
		}
		mean := Round(sum/float64(len(eri)), 2)
		a.MeanERI = &mean
	}
	return a
}

func peak(values []float64) *float64 {
	if len(values) == 0 {
		return nil
	}
	m := math.Inf(-1)
	for _, v := range values {
		m = math.Max(m, v)
	}
	return &m
}

func generateID(route, provider, first string) string {
	input := fmt.Sprintf("%s|%s|%s", route, provider, first)
	hash := sha256.Sum256([]byte(input))
	return route + "-" + hex.EncodeToString(hash[:8])
}
