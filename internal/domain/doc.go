// Package domain models marine forecast data and the pure transformations
// applied to it before a route decision is made.
//
// # Data Model
//
// A [Timeseries] is an ordered list of [DataPoint] values from one source.
// Each point carries a UTC timestamp, a [Position] and a list of
// [Measurement] values, one per [Variable]:
//
//	Hs        significant wave height    m
//	U10       wind speed at 10 m         m/s
//	U10_DIR   wind direction             deg
//	Vis       visibility                 km
//	SwellHs   primary swell height       m
//	SwellTp   primary swell period       s
//	SwellDir  primary swell direction    deg
//	Tide      tide height                m
//
// Connectors normalize every value to the canonical unit above. Feet and
// knots only appear at the edges (bulletins, risk reasons) and are handled
// by [Convert].
//
// A variable a point does not carry is absent, never zero. Use
// [DataPoint.Value] and check the boolean.
//
// # Rounding
//
// Measurement values, converted units and ensemble weights are rounded to
// two decimals with [Round], which rounds the exact binary value and breaks
// true ties to even. Values such as 2.675 are stored as 2.67499... and
// round down.
//
// # Processing Stages
//
//	ApplyQualityControl  clip to physical limits ∩ Tukey IQR fences
//	CorrectBias          match mean and sample stdev to a reference series
//	AlignSeries          keep only timestamps every source reports
//	ComputeWeightedEnsemble  per-variable weighted mean across sources
//	AssessRisk           LOW / MEDIUM / HIGH classification of one point
//
// Every stage returns new slices and leaves its inputs untouched. Metadata
// is copied on write through [Metadata.WithBiasCorrected] and
// [Metadata.WithEnsembleWeight].
//
// # CSV Export
//
// [Timeseries.Rows] flattens a series into one [CSVRow] per measurement with
// the columns listed in [CSVHeader]. Timestamps use [TimestampFormat];
// coordinates, values and weights are fixed to two decimals.
//
// # ID Generation
//
// Route assessment IDs are SHA-256 hashes of route|provider|first
// timestamp, prefixed by the route name, so replays of the same forecast
// produce the same Kafka key.
package domain
