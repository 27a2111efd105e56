// Package fusion blends coastal and offshore marine bulletins into a single
// sailing decision with an ETA estimate.
package fusion

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/couchcryptid/marine-ops/internal/domain"
)

// ErrValidation is wrapped by every input validation failure.
var ErrValidation = errors.New("invalid decision inputs")

// Decision is the sailing recommendation.
type Decision string

const (
	Go                   Decision = "Go"
	ConditionalGo        Decision = "Conditional Go"
	NoGo                 Decision = "No-Go"
	ConditionalGoCoastal Decision = "Conditional Go (coastal window)"
)

// Inputs are the bulletin readings for one passage. Wave heights are feet,
// winds knots, distance nautical miles and speed knots.
type Inputs struct {
	CombinedFt     float64 `json:"combined_ft"`
	WindADNOC      float64 `json:"wind_adnoc"`
	HsOnshoreFt    float64 `json:"hs_onshore_ft"`
	HsOffshoreFt   float64 `json:"hs_offshore_ft"`
	WindAlBahar    float64 `json:"wind_albahar"`
	Alert          *string `json:"alert"`
	OffshoreWeight float64 `json:"offshore_weight"`
	DistanceNM     float64 `json:"distance_nm"`
	PlannedSpeed   float64 `json:"planned_speed"`
}

// Output is the fused result, rounded for presentation.
type Output struct {
	HsFusedM       float64  `json:"hs_fused_m"`
	WindFusedKt    float64  `json:"wind_fused_kt"`
	Decision       Decision `json:"decision"`
	ETAHours       float64  `json:"eta_hours"`
	BufferMinutes  int      `json:"buffer_minutes"`
	EffectiveSpeed float64  `json:"effective_speed"`
}

// Params are the model coefficients.
type Params struct {
	Alpha float64 `json:"alpha"`  // weight on the combined primary bulletin
	Beta  float64 `json:"beta"`   // floor factor applied to the primary estimate
	KWind float64 `json:"k_wind"` // knots lost per knot of wind above 10
	KWave float64 `json:"k_wave"` // knots lost per metre of fused Hs
}

// DefaultParams returns the calibrated coefficients.
func DefaultParams() Params {
	return Params{Alpha: 0.85, Beta: 0.80, KWind: 0.06, KWave: 0.60}
}

const (
	feetToMeters    = 0.3048
	goMaxHs         = 1.00
	goMaxWind       = 20.0
	conditionalHs   = 1.20
	conditionalWind = 22.0
	coastalMaxWOff  = 0.40
	coastalMaxHs    = 1.00
	coastalMaxGamma = 0.15
	windLossFloor   = 10.0
	minSpeed        = 0.1
)

// AlertWeight returns the wave inflation factor for a bulletin alert.
// Unknown alerts weigh nothing.
func AlertWeight(alert *string) float64 {
	if alert == nil {
		return 0
	}
	switch strings.TrimSpace(*alert) {
	case "rough at times westward":
		return 0.15
	case "High seas", "High Seas":
		return 0.30
	default:
		return 0
	}
}

// Validate rejects inputs that cannot produce a meaningful decision.
func (in Inputs) Validate() error {
	if !finite(in.DistanceNM) || in.DistanceNM <= 0 {
		return fmt.Errorf("%w: distance_nm must be positive, got %v", ErrValidation, in.DistanceNM)
	}
	if !finite(in.PlannedSpeed) || in.PlannedSpeed <= 0 {
		return fmt.Errorf("%w: planned_speed must be positive, got %v", ErrValidation, in.PlannedSpeed)
	}
	if !finite(in.OffshoreWeight) || in.OffshoreWeight < 0 || in.OffshoreWeight > 1 {
		return fmt.Errorf("%w: offshore_weight must be in [0, 1], got %v", ErrValidation, in.OffshoreWeight)
	}
	for name, v := range map[string]float64{
		"combined_ft":    in.CombinedFt,
		"hs_onshore_ft":  in.HsOnshoreFt,
		"hs_offshore_ft": in.HsOffshoreFt,
		"wind_adnoc":     in.WindADNOC,
		"wind_albahar":   in.WindAlBahar,
	} {
		if !finite(v) || v < 0 {
			return fmt.Errorf("%w: %s must be a non-negative number, got %v", ErrValidation, name, v)
		}
	}
	return nil
}

// DecideAndETA fuses the bulletins, applies the decision gate and estimates
// the passage time.
func DecideAndETA(in Inputs, p Params) (Output, error) {
	if err := in.Validate(); err != nil {
		return Output{}, err
	}

	hsOnshore := in.HsOnshoreFt * feetToMeters
	hsOffshore := in.HsOffshoreFt * feetToMeters
	hsPrimary := p.Alpha * in.CombinedFt * feetToMeters

	hsBlend := (1-in.OffshoreWeight)*hsOnshore + in.OffshoreWeight*hsOffshore
	gamma := AlertWeight(in.Alert)
	hsFused := math.Max(hsBlend, p.Beta*hsPrimary) * (1 + gamma)
	windFused := math.Max(in.WindADNOC, in.WindAlBahar)

	decision := gate(in.Alert, hsFused, windFused, gamma)
	if decision == NoGo && !alertForbids(in.Alert) &&
		in.OffshoreWeight <= coastalMaxWOff && hsOnshore <= coastalMaxHs && gamma <= coastalMaxGamma {
		decision = ConditionalGoCoastal
	}

	fWind := p.KWind * math.Max(windFused-windLossFloor, 0)
	fWave := p.KWave * hsFused
	speed := math.Max(in.PlannedSpeed-fWind-fWave, minSpeed)
	eta := in.DistanceNM / speed

	buffer := 60
	if in.OffshoreWeight <= coastalMaxWOff {
		buffer = 45
	}

	return Output{
		HsFusedM:       domain.Round(hsFused, 2),
		WindFusedKt:    domain.Round(windFused, 1),
		Decision:       decision,
		ETAHours:       domain.Round(eta, 1),
		BufferMinutes:  buffer,
		EffectiveSpeed: domain.Round(speed, 1),
	}, nil
}

func gate(alert *string, hs, wind, gamma float64) Decision {
	switch {
	case alertForbids(alert):
		return NoGo
	case hs <= goMaxHs && wind <= goMaxWind && gamma == 0:
		return Go
	case hs <= conditionalHs || wind <= conditionalWind || gamma > 0:
		return ConditionalGo
	default:
		return NoGo
	}
}

// alertForbids reports whether the alert closes the passage outright. The
// coastal relaxation never reopens it.
func alertForbids(alert *string) bool {
	if alert == nil {
		return false
	}
	a := strings.ToLower(strings.TrimSpace(*alert))
	return strings.HasPrefix(a, "high seas") || a == "fog"
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
