package domain

import "fmt"

const (
	feetToMeters  = 0.3048
	metersToFeet  = 3.28084
	knotsToMPS    = 0.514444
	mpsToKnots    = 1.943844
	kmToMeters    = 1000.0
	metersToKm    = 0.001
	unitPrecision = 2
)

// FeetToMeters converts feet to metres, rounded to 2 decimals.
func FeetToMeters(ft float64) float64 { return Round(ft*feetToMeters, unitPrecision) }

// MetersToFeet converts metres to feet, rounded to 2 decimals.
func MetersToFeet(m float64) float64 { return Round(m*metersToFeet, unitPrecision) }

// KnotsToMetersPerSecond converts knots to m/s, rounded to 2 decimals.
func KnotsToMetersPerSecond(kt float64) float64 { return Round(kt*knotsToMPS, unitPrecision) }

// MetersPerSecondToKnots converts m/s to knots, rounded to 2 decimals.
func MetersPerSecondToKnots(mps float64) float64 { return Round(mps*mpsToKnots, unitPrecision) }

// Convert converts value between units. Converting a unit to itself only
// rounds. Pairs without a rule return ErrUnsupportedConversion.
func Convert(value float64, from, to Unit) (float64, error) {
	if from == to {
		return Round(value, unitPrecision), nil
	}
	switch {
	case from == UnitFeet && to == UnitMeters:
		return FeetToMeters(value), nil
	case from == UnitMeters && to == UnitFeet:
		return MetersToFeet(value), nil
	case from == UnitKnots && to == UnitMetersPerSecond:
		return KnotsToMetersPerSecond(value), nil
	case from == UnitMetersPerSecond && to == UnitKnots:
		return MetersPerSecondToKnots(value), nil
	case from == UnitKilometers && to == UnitMeters:
		return Round(value*kmToMeters, unitPrecision), nil
	case from == UnitMeters && to == UnitKilometers:
		return Round(value*metersToKm, unitPrecision), nil
	}
	return 0, fmt.Errorf("%w: %s to %s", ErrUnsupportedConversion, from, to)
}
