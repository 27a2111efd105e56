package provider

import (
	"context"
	"math"
	"time"

	"github.com/couchcryptid/marine-ops/internal/domain"
)

// SampleName is the name of the synthetic provider.
const SampleName = "sample"

const sampleStep = 3 * time.Hour

// Sample generates a smooth, deterministic forecast anchored at the current
// hour of the domain clock. It never fails and keeps the service usable
// without network access.
type Sample struct{}

func (Sample) Name() string { return SampleName }

func (Sample) Fetch(ctx context.Context, req domain.ForecastRequest) (domain.Timeseries, error) {
	if err := ctx.Err(); err != nil {
		return domain.Timeseries{}, err
	}
	base := domain.Now().UTC().Truncate(time.Hour)
	steps := max(1, req.Hours/int(sampleStep/time.Hour))
	meta := domain.Metadata{Source: SampleName}

	points := make([]domain.DataPoint, 0, steps)
	for i := range steps {
		x := float64(i)
		wave := math.Max(1.2+0.5*math.Sin(x/3), 0.5)
		windKt := math.Max(15+4*math.Cos(x/4), 5)
		period := 8 + 0.3*math.Sin(x/2)

		points = append(points, domain.NewDataPoint(base.Add(time.Duration(i)*sampleStep), req.Position, []domain.Measurement{
			domain.NewMeasurement(domain.VarWaveHeight, wave, domain.UnitMeters),
			domain.NewMeasurement(domain.VarWindSpeed, domain.KnotsToMetersPerSecond(windKt), domain.UnitMetersPerSecond),
			domain.NewMeasurement(domain.VarWindDirection, 90, domain.UnitDegrees),
			domain.NewMeasurement(domain.VarSwellHeight, math.Max(wave-0.3, 0.3), domain.UnitMeters),
			domain.NewMeasurement(domain.VarSwellPeriod, period, domain.UnitSeconds),
			domain.NewMeasurement(domain.VarSwellDirection, 110, domain.UnitDegrees),
		}, meta))
	}
	return domain.Timeseries{Points: points}, nil
}
