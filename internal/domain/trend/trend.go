// Package trend derives month-over-month movement from a scorecard series.
package trend

import (
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
)

// Compute summarises a most-recent-first series. An empty series yields the
// zero result and a single entry has no improvement.
func Compute(series []model.ScorecardRecord) model.TrendResult {
	n := len(series)
	if n == 0 {
		return model.TrendResult{}
	}

	res := model.TrendResult{
		CurrentPercentage: series[0].Percentage,
		SessionCount:      n,
	}
	if n >= 2 {
		res.PreviousPercentage = series[1].Percentage
		res.ImprovementDelta = scoring.Round2(series[0].Percentage - series[n-1].Percentage)
	}

	var sum float64
	for _, r := range series {
		sum += r.Percentage
	}
	res.AveragePercentage = scoring.Round2(sum / float64(n))
	return res
}
