package domain

import (
	"fmt"
	"slices"
	"time"
)

// ComputeWeightedEnsemble blends aligned series into one by taking, per
// index and per variable, the weighted mean over the series that carry the
// variable. Nil weights mean equal weighting. Weights are normalized to sum
// to 1. A single series is returned unchanged once its weights validate.
//
// All series must have the same length and identical timestamps at every
// index; use AlignSeries first when sources disagree.
func ComputeWeightedEnsemble(series []Timeseries, weights []float64) (Timeseries, error) {
	if len(series) == 0 {
		return Timeseries{}, fmt.Errorf("%w: at least one timeseries is required", ErrInvalidArgument)
	}
	normalized, err := normalizeWeights(weights, len(series))
	if err != nil {
		return Timeseries{}, err
	}
	if len(series) == 1 {
		return series[0], nil
	}
	if err := checkAligned(series); err != nil {
		return Timeseries{}, err
	}

	base := series[0]
	points := make([]DataPoint, len(base.Points))
	for i := range base.Points {
		members := make([]DataPoint, len(series))
		for j, ts := range series {
			members[j] = ts.Points[i]
		}
		points[i] = ensemblePoint(members, normalized)
	}
	return Timeseries{Points: points}, nil
}

func normalizeWeights(weights []float64, n int) ([]float64, error) {
	if weights == nil {
		out := make([]float64, n)
		for i := range out {
			out[i] = 1 / float64(n)
		}
		return out, nil
	}
	if len(weights) != n {
		return nil, fmt.Errorf("%w: %d weights for %d series", ErrInvalidArgument, len(weights), n)
	}
	var total float64
	for _, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: negative weight %v", ErrInvalidArgument, w)
		}
		total += w
	}
	if total <= 0 {
		return nil, fmt.Errorf("%w: weights sum to zero", ErrInvalidArgument)
	}
	out := make([]float64, n)
	for i, w := range weights {
		out[i] = w / total
	}
	return out, nil
}

func checkAligned(series []Timeseries) error {
	base := series[0].Points
	for j, ts := range series[1:] {
		if len(ts.Points) != len(base) {
			return fmt.Errorf("%w: series %d has %d points, want %d", ErrMisalignedSeries, j+1, len(ts.Points), len(base))
		}
		for i := range base {
			if !ts.Points[i].Timestamp.Equal(base[i].Timestamp) {
				return fmt.Errorf("%w: series %d index %d at %s, want %s", ErrMisalignedSeries,
					j+1, i, ts.Points[i].Timestamp.Format(TimestampFormat), base[i].Timestamp.Format(TimestampFormat))
			}
		}
	}
	return nil
}

func ensemblePoint(members []DataPoint, weights []float64) DataPoint {
	var (
		order  []Variable
		sumW   = make(map[Variable]float64)
		sumWV  = make(map[Variable]float64)
		units  = make(map[Variable]Unit)
		totalW float64
	)
	for i, p := range members {
		totalW += weights[i]
		for _, m := range p.Measurements {
			if _, seen := sumW[m.Variable]; !seen {
				order = append(order, m.Variable)
				units[m.Variable] = m.Unit
			}
			sumW[m.Variable] += weights[i]
			sumWV[m.Variable] += m.Value * weights[i]
		}
	}

	ms := make([]Measurement, 0, len(order))
	for _, v := range order {
		if sumW[v] > 0 {
			ms = append(ms, NewMeasurement(v, sumWV[v]/sumW[v], units[v]))
		}
	}

	base := members[0]
	return DataPoint{
		Timestamp:    base.Timestamp,
		Position:     base.Position,
		Measurements: ms,
		Metadata:     base.Metadata.WithEnsembleWeight(totalW),
	}
}

// AlignSeries restricts every series to the timestamps present in all of
// them, keeping the order of the first series.
func AlignSeries(series ...Timeseries) []Timeseries {
	if len(series) < 2 {
		return series
	}
	common := make(map[time.Time]int)
	for _, ts := range series {
		seen := make(map[time.Time]bool, len(ts.Points))
		for _, p := range ts.Points {
			key := p.Timestamp.UTC()
			if !seen[key] {
				seen[key] = true
				common[key]++
			}
		}
	}

	out := make([]Timeseries, len(series))
	for i, ts := range series {
		kept := make(map[time.Time]bool)
		var points []DataPoint
		for _, p := range ts.Points {
			key := p.Timestamp.UTC()
			if common[key] == len(series) && !kept[key] {
				kept[key] = true
				points = append(points, p)
			}
		}
		out[i] = Timeseries{Points: points}
	}
	// Members may list timestamps in a different order than the first series.
	order := make(map[time.Time]int, len(out[0].Points))
	for i, p := range out[0].Points {
		order[p.Timestamp.UTC()] = i
	}
	for i := 1; i < len(out); i++ {
		slices.SortStableFunc(out[i].Points, func(a, b DataPoint) int {
			return order[a.Timestamp.UTC()] - order[b.Timestamp.UTC()]
		})
	}
	return out
}
