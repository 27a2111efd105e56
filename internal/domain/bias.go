package domain

import "math"

// CorrectBias rescales variable in points so its mean and sample standard
// deviation match reference: corrected = value*scale + offset with
// scale = refStd/dataStd (1 when dataStd is 0) and
// offset = refMean - dataMean*scale. Every returned point is marked bias
// corrected. Points are returned unchanged when either side has no values
// for variable.
func CorrectBias(points, reference []DataPoint, variable Variable) []DataPoint {
	if len(points) == 0 || len(reference) == 0 {
		return points
	}
	refValues := collectValues(reference, variable)
	if len(refValues) == 0 {
		return points
	}
	dataValues := collectValues(points, variable)
	if len(dataValues) == 0 {
		return points
	}

	refMean, refStd := meanStdev(refValues)
	dataMean, dataStd := meanStdev(dataValues)

	scale := 1.0
	if dataStd > 0 {
		scale = refStd / dataStd
	}
	offset := refMean - dataMean*scale

	out := make([]DataPoint, len(points))
	for i, p := range points {
		ms := make([]Measurement, len(p.Measurements))
		for j, m := range p.Measurements {
			if m.Variable == variable {
				ms[j] = m.withValue(m.Value*scale+offset, m.QualityFlag)
			} else {
				ms[j] = m
			}
		}
		p.Measurements = ms
		p.Metadata = p.Metadata.WithBiasCorrected()
		out[i] = p
	}
	return out
}

// meanStdev returns the arithmetic mean and the sample (n-1) standard
// deviation, which is 0 for fewer than two values.
func meanStdev(values []float64) (mean, stdev float64) {
	for _, v := range values {
		mean += v
	}
	mean /= float64(len(values))
	if len(values) < 2 {
		return mean, 0
	}
	var ss float64
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(values)-1))
}
