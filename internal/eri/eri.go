// Package eri scores forecast points against a configurable set of
// threshold rules to produce an environmental readiness index (ERI) in
// [0, 100].
package eri

import (
	_ "embed"
	"fmt"
	"math"
	"os"

	"github.com/couchcryptid/marine-ops/internal/domain"
	"gopkg.in/yaml.v3"
)

//go:embed default_rules.yaml
var defaultRules []byte

// Operator compares a value against a rule threshold.
type Operator string

const (
	OpLT Operator = "lt"
	OpLE Operator = "le"
	OpEQ Operator = "eq"
	OpGE Operator = "ge"
	OpGT Operator = "gt"
)

// eqTolerance is the absolute tolerance for OpEQ.
const eqTolerance = 1e-6

// ThresholdRule awards Score when `value <Operator> Threshold` holds.
type ThresholdRule struct {
	Variable    string   `yaml:"variable" json:"variable"`
	Operator    Operator `yaml:"operator" json:"operator"`
	Threshold   float64  `yaml:"threshold" json:"threshold"`
	Score       float64  `yaml:"score" json:"score"`
	Description string   `yaml:"description" json:"description"`
}

func (r ThresholdRule) matches(v float64) bool {
	switch r.Operator {
	case OpLT:
		return v < r.Threshold
	case OpLE:
		return v <= r.Threshold
	case OpEQ:
		return math.Abs(v-r.Threshold) < eqTolerance
	case OpGE:
		return v >= r.Threshold
	case OpGT:
		return v > r.Threshold
	default:
		return false
	}
}

// RuleSet is an ordered list of independent threshold rules. Matching rules
// are averaged; order does not affect the score.
type RuleSet struct {
	Name         string          `yaml:"name" json:"name"`
	Version      string          `yaml:"version" json:"version"`
	Rules        []ThresholdRule `yaml:"rules" json:"rules"`
	DefaultScore float64         `yaml:"default_score" json:"default_score"`
}

// EvaluatePoint returns the mean score of the matching rules clamped to
// [0, 100], or DefaultScore when nothing matches.
func (rs *RuleSet) EvaluatePoint(data map[string]float64) float64 {
	var total float64
	matched := 0
	for _, r := range rs.Rules {
		v, ok := data[r.Variable]
		if !ok || !r.matches(v) {
			continue
		}
		total += r.Score
		matched++
	}
	if matched == 0 {
		return rs.DefaultScore
	}
	return math.Min(100, math.Max(0, total/float64(matched)))
}

// ParseRuleSet decodes a YAML rule set. A missing default_score means 50.
// Unknown operators are rejected.
func ParseRuleSet(data []byte) (*RuleSet, error) {
	rs := RuleSet{DefaultScore: 50}
	if err := yaml.Unmarshal(data, &rs); err != nil {
		return nil, fmt.Errorf("decode rule set: %w", err)
	}
	if rs.Name == "" {
		return nil, fmt.Errorf("rule set has no name")
	}
	for i, r := range rs.Rules {
		switch r.Operator {
		case OpLT, OpLE, OpEQ, OpGE, OpGT:
		default:
			return nil, fmt.Errorf("rule %d (%s): unknown operator %q", i, r.Variable, r.Operator)
		}
		if r.Variable == "" {
			return nil, fmt.Errorf("rule %d: variable is required", i)
		}
	}
	return &rs, nil
}

// LoadRuleSet reads a YAML rule set from disk.
func LoadRuleSet(path string) (*RuleSet, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule set: %w", err)
	}
	return ParseRuleSet(data)
}

// DefaultRuleSet returns the embedded rule set.
func DefaultRuleSet() *RuleSet {
	rs, err := ParseRuleSet(defaultRules)
	if err != nil {
		panic(fmt.Sprintf("embedded ERI rules: %v", err))
	}
	return rs
}

// Load returns the rule set at path, or the embedded defaults when path is
// empty.
func Load(path string) (*RuleSet, error) {
	if path == "" {
		return DefaultRuleSet(), nil
	}
	return LoadRuleSet(path)
}

var ruleVariables = map[domain.Variable]string{
	domain.VarWaveHeight:  "wave_height",
	domain.VarWindSpeed:   "wind_speed",
	domain.VarVisibility:  "visibility",
	domain.VarSwellHeight: "swell_height",
	domain.VarTide:        "tide_height",
}

// ComputeTimeseries scores every point of ts.
func ComputeTimeseries(ts domain.Timeseries, rs *RuleSet) []domain.ERIPoint {
	out := make([]domain.ERIPoint, 0, len(ts.Points))
	for _, p := range ts.Points {
		data := make(map[string]float64)
		for _, m := range p.Measurements {
			if name, ok := ruleVariables[m.Variable]; ok {
				data[name] = m.Value
			}
		}
		out = append(out, domain.ERIPoint{
			Timestamp: p.Timestamp,
			Latitude:  p.Position.Latitude,
			Longitude: p.Position.Longitude,
			Score:     domain.Round(rs.EvaluatePoint(data), 2),
			Values:    data,
		})
	}
	return out
}
