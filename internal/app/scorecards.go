package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/okian/scorecard/internal/adapters/cache"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/trend"
	"github.com/okian/scorecard/pkg/logger"
	"github.com/okian/scorecard/pkg/metrics"
)

// SubmitRequest is a single scorecard submission. Missing metrics default to
// the scale midpoint; missing weights fall back to the agent's, then the
// configured defaults.
type SubmitRequest struct {
	AgentID string
	Period  model.Period
	Metrics model.PartialMetricSet
	Weights *model.WeightSet
	Notes   string
	Actor   string
}

// SubmitScorecard upserts one record and invalidates every cache entry the
// write can affect before returning.
func (s *Service) SubmitScorecard(ctx context.Context, req SubmitRequest) (model.ScorecardRecord, error) {
	if err := req.Period.Validate(); err != nil {
		return model.ScorecardRecord{}, err
	}
	agent, err := s.store.GetAgent(ctx, req.AgentID)
	if err != nil {
		return model.ScorecardRecord{}, errors.Wrapf(err, "agent %s", req.AgentID)
	}
	return s.write(ctx, model.ScorecardWrite{
		AgentID: agent.ID,
		Period:  req.Period,
		Metrics: req.Metrics.Merge(),
		Weights: s.calc.ResolveWeights(req.Weights, agent.Weights),
		Notes:   strings.TrimSpace(req.Notes),
		Actor:   req.Actor,
	})
}

// write is the only path to the store's Upsert; single submissions and
// import rows both go through it.
func (s *Service) write(ctx context.Context, w model.ScorecardWrite) (model.ScorecardRecord, error) {
	start := time.Now()
	rec, err := s.store.Upsert(ctx, w)
	if err != nil {
		metrics.RecordScorecardUpsertError()
		if !model.IsValidation(err) {
			metrics.RecordErrorByComponent("repository", "upsert")
		}
		return model.ScorecardRecord{}, err
	}
	s.cache.InvalidateAgent(ctx, rec.AgentID)
	metrics.RecordScorecardUpsert(float64(time.Since(start).Milliseconds()))
	s.logger.Debug(ctx, "scorecard upserted",
		logger.String("agent_id", rec.AgentID),
		logger.String("period", rec.Period().String()),
		logger.Float64("percentage", rec.Percentage),
	)
	return rec, nil
}

// SeriesLimit applies the default and maximum to a requested series length.
func (s *Service) SeriesLimit(limit int) int {
	switch {
	case limit <= 0:
		return s.seriesLimit
	case limit > s.maxSeriesLimit:
		return s.maxSeriesLimit
	}
	return limit
}

// AgentMetrics returns the agent's recent series and its trend.
func (s *Service) AgentMetrics(ctx context.Context, agentID string, limit int) (model.AgentMetrics, error) {
	limit = s.SeriesLimit(limit)
	return cache.Fetch(ctx, s.cache, cache.AgentSeriesKey(agentID, limit), 0,
		func(ctx context.Context) (model.AgentMetrics, error) {
			if _, err := s.store.GetAgent(ctx, agentID); err != nil {
				return model.AgentMetrics{}, errors.Wrapf(err, "agent %s", agentID)
			}
			series, err := s.store.RecentSeries(ctx, agentID, limit)
			if err != nil {
				return model.AgentMetrics{}, err
			}
			return model.AgentMetrics{AgentID: agentID, Series: series, Trend: trend.Compute(series)}, nil
		})
}

// SaveAgent creates or updates an agent. Hierarchy changes move agents
// between teams, so every aggregate is dropped too.
func (s *Service) SaveAgent(ctx context.Context, a model.Agent) (model.Agent, error) {
	if a.Weights != nil {
		if err := a.Weights.Validate(); err != nil {
			return model.Agent{}, err
		}
	}
	saved, err := s.store.SaveAgent(ctx, a)
	if err != nil {
		return model.Agent{}, err
	}
	s.cache.InvalidateAgent(ctx, saved.ID)
	return saved, nil
}

// Agents lists every agent with their latest scorecard.
func (s *Service) Agents(ctx context.Context) ([]model.AgentSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.AgentListKey(), 0,
		func(ctx context.Context) ([]model.AgentSummary, error) {
			agents, err := s.store.ListAgents(ctx)
			if err != nil {
				return nil, err
			}
			return s.summaries(ctx, agents)
		})
}

// Agent returns one agent with their latest scorecard.
func (s *Service) Agent(ctx context.Context, agentID string) (model.AgentSummary, error) {
	return cache.Fetch(ctx, s.cache, cache.AgentKey(agentID), 0,
		func(ctx context.Context) (model.AgentSummary, error) {
			a, err := s.store.GetAgent(ctx, agentID)
			if err != nil {
				return model.AgentSummary{}, errors.Wrapf(err, "agent %s", agentID)
			}
			out, err := s.summaries(ctx, []model.Agent{a})
			if err != nil {
				return model.AgentSummary{}, err
			}
			return out[0], nil
		})
}

func (s *Service) summaries(ctx context.Context, agents []model.Agent) ([]model.AgentSummary, error) {
	ids := make([]string, len(agents))
	for i, a := range agents {
		ids[i] = a.ID
	}
	latest, err := s.store.LatestFor(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]model.AgentSummary, len(agents))
	for i, a := range agents {
		out[i] = model.AgentSummary{Agent: a}
		if rec, ok := latest[a.ID]; ok {
			p, pct := rec.Period(), rec.Percentage
			out[i].LatestPeriod = &p
			out[i].LatestPercentage = &pct
		}
	}
	return out, nil
}

// LeaderboardLimit applies the default and maximum to a requested page size.
func (s *Service) LeaderboardLimit(limit int) int {
	switch {
	case limit <= 0:
		return min(defaultLeaderboardLimit, s.maxLeaderboardLimit)
	case limit > s.maxLeaderboardLimit:
		return s.maxLeaderboardLimit
	}
	return limit
}

// Leaderboard ranks the period's agents by percentage. Equal percentages
// share a rank and the next rank skips accordingly (1, 1, 3).
func (s *Service) Leaderboard(ctx context.Context, p model.Period, limit int) ([]model.RankedAgent, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	limit = s.LeaderboardLimit(limit)
	return cache.Fetch(ctx, s.cache, cache.LeaderboardKey(p, limit), 0,
		func(ctx context.Context) ([]model.RankedAgent, error) {
			top, err := s.store.TopN(ctx, p, limit)
			if err != nil {
				return nil, err
			}
			names, err := s.agentNames(ctx, top)
			if err != nil {
				return nil, err
			}
			return rank(top, names), nil
		})
}

func (s *Service) agentNames(ctx context.Context, recs []model.ScorecardRecord) (map[string]string, error) {
	want := set.New[string](len(recs))
	for _, r := range recs {
		want.Insert(r.AgentID)
	}
	names := make(map[string]string, want.Size())
	if want.Empty() {
		return names, nil
	}
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	for _, a := range agents {
		if want.Contains(a.ID) {
			names[a.ID] = a.Name
		}
	}
	return names, nil
}

func rank(recs []model.ScorecardRecord, names map[string]string) []model.RankedAgent {
	sorted := make([]model.ScorecardRecord, len(recs))
	copy(sorted, recs)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Percentage != sorted[j].Percentage {
			return sorted[i].Percentage > sorted[j].Percentage
		}
		return sorted[i].AgentID < sorted[j].AgentID
	})

	out := make([]model.RankedAgent, len(sorted))
	for i, r := range sorted {
		rk := i + 1
		if i > 0 && r.Percentage == sorted[i-1].Percentage {
			rk = out[i-1].Rank
		}
		out[i] = model.RankedAgent{
			Rank:       rk,
			AgentID:    r.AgentID,
			Name:       names[r.AgentID],
			TotalScore: r.TotalScore,
			Percentage: r.Percentage,
		}
	}
	return out
}
