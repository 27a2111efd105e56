package domain

import (
	"iter"
	"strconv"
)

// TimestampFormat is the UTC layout used in CSV exports.
const TimestampFormat = "2006-01-02T15:04:05Z"

// CSVHeader names the columns produced by CSVRow.Fields.
var CSVHeader = []string{
	"timestamp", "latitude", "longitude", "variable", "value", "unit",
	"source", "quality_flag", "bias_corrected", "ensemble_weight",
}

// CSVRow is one measurement flattened together with its point's context.
type CSVRow struct {
	Timestamp      string
	Latitude       string
	Longitude      string
	Variable       string
	Value          string
	Unit           string
	Source         string
	QualityFlag    string
	BiasCorrected  string
	EnsembleWeight string
}

// Fields returns the row in CSVHeader order.
func (r CSVRow) Fields() []string {
	return []string{
		r.Timestamp, r.Latitude, r.Longitude, r.Variable, r.Value, r.Unit,
		r.Source, r.QualityFlag, r.BiasCorrected, r.EnsembleWeight,
	}
}

// Rows yields one CSVRow per (point, measurement). The sequence is lazy and
// may be ranged over more than once.
func (ts Timeseries) Rows() iter.Seq[CSVRow] {
	return func(yield func(CSVRow) bool) {
		for _, p := range ts.Points {
			for _, m := range p.Measurements {
				if !yield(newCSVRow(p, m)) {
					return
				}
			}
		}
	}
}

func newCSVRow(p DataPoint, m Measurement) CSVRow {
	weight := ""
	if p.Metadata.EnsembleWeight != nil {
		weight = formatFixed(*p.Metadata.EnsembleWeight)
	}
	return CSVRow{
		Timestamp:      p.Timestamp.UTC().Format(TimestampFormat),
		Latitude:       formatFixed(p.Position.Latitude),
		Longitude:      formatFixed(p.Position.Longitude),
		Variable:       string(m.Variable),
		Value:          formatFixed(m.Value),
		Unit:           string(m.Unit),
		Source:         p.Metadata.Source,
		QualityFlag:    string(m.QualityFlag),
		BiasCorrected:  strconv.FormatBool(p.Metadata.BiasCorrected),
		EnsembleWeight: weight,
	}
}

func formatFixed(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}
