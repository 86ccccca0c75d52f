package scoring

import (
	"math"

	"github.com/okian/scorecard/internal/domain/model"
)

// MetricToPercentage maps a raw 1..5 score onto 0..100. Out-of-range input is clamped.
func MetricToPercentage(raw float64) float64 {
	if math.IsNaN(raw) {
		return 0
	}
	return clamp(raw/model.MaxMetric*100, 0, 100)
}

// PercentageToMetric maps 0..100 back onto the 1..5 scale, rounding to the nearest step.
func PercentageToMetric(pct float64) int {
	if math.IsNaN(pct) {
		return model.MinMetric
	}
	return int(clamp(math.Round(pct/100*model.MaxMetric), model.MinMetric, model.MaxMetric))
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
