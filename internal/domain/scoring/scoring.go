// Package scoring converts raw metric scores into weighted composite scores.
//
// The calculator is direction-agnostic: lateness and break_exceeds are
// weighted like every other metric. Callers that want "lower is better"
// semantics must invert those raw values before they get here.
package scoring

import (
	"github.com/shopspring/decimal"

	"github.com/okian/scorecard/internal/domain/model"
)

// Option applies a configuration option to the Calculator.
type Option func(*Calculator)

// WithDefaultWeights sets the fallback weights from a metric-name map.
// Unknown names and negative values are ignored.
func WithDefaultWeights(weights map[string]float64) Option {
	return func(c *Calculator) {
		w := model.DefaultWeights()
		for name, v := range weights {
			if m, ok := model.ParseMetric(name); ok && v >= 0 {
				w.Set(m, v)
			}
		}
		c.defaults = w
	}
}

// Result is a weighted score.
type Result struct {
	TotalScore float64 `json:"totalScore"`
	Percentage float64 `json:"percentage"`
}

// Rounded rounds both values to two decimals, as they are persisted.
func (r Result) Rounded() Result {
	return Result{TotalScore: Round2(r.TotalScore), Percentage: Round2(r.Percentage)}
}

// Calculator scores metric sets and picks the weight set that applies.
type Calculator struct {
	defaults model.WeightSet
}

// NewCalculator creates a calculator with equal default weights.
func NewCalculator(opts ...Option) *Calculator {
	c := &Calculator{defaults: model.DefaultWeights()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// DefaultWeights returns the fallback weight set.
func (c *Calculator) DefaultWeights() model.WeightSet { return c.defaults }

// ResolveWeights prefers an explicit override, then the agent's own weights, then defaults.
func (c *Calculator) ResolveWeights(override, agent *model.WeightSet) model.WeightSet {
	switch {
	case override != nil:
		return *override
	case agent != nil:
		return *agent
	default:
		return c.defaults
	}
}

// Score computes the weighted result rounded for persistence.
func (c *Calculator) Score(m model.MetricSet, w model.WeightSet) Result {
	return Calculate(m, w).Rounded()
}

// Calculate computes totalScore = Σ metric·weight and the percentage of
// 5·Σweight at full precision. All-zero weights yield a percentage of 0.
func Calculate(m model.MetricSet, w model.WeightSet) Result {
	var total, weightSum float64
	for _, metric := range model.Metrics {
		weight := w.Get(metric)
		total += float64(m.Get(metric)) * weight
		weightSum += weight
	}
	maxAttainable := model.MaxMetric * weightSum
	if maxAttainable <= 0 {
		return Result{TotalScore: total}
	}
	return Result{TotalScore: total, Percentage: total / maxAttainable * 100}
}

// Round2 rounds half away from zero to two decimal places.
func Round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
