package provider

import (
	"slices"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
)

// MergeTides copies the tide measurement from tides onto the points of ts
// with the same timestamp. Points that already carry a tide value keep it.
func MergeTides(ts, tides domain.Timeseries) domain.Timeseries {
	byTime := make(map[time.Time]domain.Measurement, tides.Len())
	for _, p := range tides.Points {
		if m, ok := p.Measurement(domain.VarTide); ok {
			byTime[p.Timestamp.UTC()] = m
		}
	}
	if len(byTime) == 0 {
		return ts
	}

	out := make([]domain.DataPoint, len(ts.Points))
	for i, p := range ts.Points {
		m, ok := byTime[p.Timestamp.UTC()]
		if _, has := p.Value(domain.VarTide); !ok || has {
			out[i] = p
			continue
		}
		out[i] = domain.NewDataPoint(p.Timestamp, p.Position, slices.Concat(p.Measurements, []domain.Measurement{m}), p.Metadata)
	}
	return domain.Timeseries{Points: out}
}
