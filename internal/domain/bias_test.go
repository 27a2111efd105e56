package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCorrectBias_MatchesReferenceMoments(t *testing.T) {
	reference := hsPoints(2.0, 2.5, 3.0)
	data := hsPoints(1.0, 1.25, 1.5)

	out := CorrectBias(data, reference, VarWaveHeight)
	require.Len(t, out, 3)

	// scale = 0.5/0.25 = 2, offset = 2.5 - 1.25*2 = 0
	assert.Equal(t, []float64{2.0, 2.5, 3.0}, Timeseries{Points: out}.Values(VarWaveHeight))
	for _, p := range out {
		assert.True(t, p.Metadata.BiasCorrected)
	}
	for _, p := range data {
		assert.False(t, p.Metadata.BiasCorrected)
	}
}

func TestCorrectBias_ConstantDataShiftsOnly(t *testing.T) {
	out := CorrectBias(hsPoints(1, 1, 1), hsPoints(2, 3), VarWaveHeight)

	// data stdev 0 => scale 1, offset 2.5 - 1
	assert.Equal(t, []float64{2.5, 2.5, 2.5}, Timeseries{Points: out}.Values(VarWaveHeight))
}

func TestCorrectBias_SingleReferenceValue(t *testing.T) {
	out := CorrectBias(hsPoints(1, 2, 3), hsPoints(4), VarWaveHeight)

	// reference stdev 0 => scale 0, every value collapses to the reference mean
	assert.Equal(t, []float64{4, 4, 4}, Timeseries{Points: out}.Values(VarWaveHeight))
}

func TestCorrectBias_NoOpCases(t *testing.T) {
	data := hsPoints(1, 2)
	tide := []DataPoint{testPoint(0, NewMeasurement(VarTide, 0.3, UnitMeters))}

	assert.Equal(t, data, CorrectBias(data, nil, VarWaveHeight))
	assert.Empty(t, CorrectBias(nil, data, VarWaveHeight))
	assert.Equal(t, data, CorrectBias(data, tide, VarWaveHeight))
	assert.Equal(t, tide, CorrectBias(tide, data, VarWaveHeight))
}

func TestCorrectBias_LeavesOtherVariables(t *testing.T) {
	data := []DataPoint{
		testPoint(0, NewMeasurement(VarWaveHeight, 1, UnitMeters), NewMeasurement(VarWindSpeed, 7, UnitMetersPerSecond)),
		testPoint(1, NewMeasurement(VarWaveHeight, 2, UnitMeters)),
	}
	out := CorrectBias(data, hsPoints(2, 4), VarWaveHeight)

	wind, ok := out[0].Value(VarWindSpeed)
	require.True(t, ok)
	assert.Equal(t, 7.0, wind)
	assert.Equal(t, []float64{2, 4}, Timeseries{Points: out}.Values(VarWaveHeight))
}
