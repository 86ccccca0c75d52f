// Package rollup aggregates agent percentages into team and manager summaries.
//
// Each roll-up costs exactly two store reads: one for the agent set and one
// batched read of their percentages for the period.
package rollup

import (
	"context"
	"sort"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-set/v2"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
)

// Source is the slice of the store roll-ups read from.
type Source interface {
	AgentsUnderTeamLeader(ctx context.Context, leaderID string) ([]model.Agent, error)
	AgentsUnderManager(ctx context.Context, managerID string) ([]model.Agent, error)
	PercentagesFor(ctx context.Context, agentIDs []string, p model.Period) (map[string]float64, error)
}

// Team averages the period's percentage over the leader's agents that have a
// record. Agents without one are counted but not averaged.
func Team(ctx context.Context, src Source, leaderID string, p model.Period) (model.TeamRollup, error) {
	if err := p.Validate(); err != nil {
		return model.TeamRollup{}, err
	}
	agents, err := src.AgentsUnderTeamLeader(ctx, leaderID)
	if err != nil {
		return model.TeamRollup{}, errors.Wrapf(err, "agents under team leader %s", leaderID)
	}
	pcts, err := src.PercentagesFor(ctx, ids(agents), p)
	if err != nil {
		return model.TeamRollup{}, errors.Wrap(err, "team percentages")
	}
	tr, _ := summarize(leaderID, p, agents, pcts)
	return tr, nil
}

// Manager averages team averages, so every scored team weighs the same
// regardless of its size. Teams with no scored agent are listed but excluded
// from the mean; with no scored team the average is 0.
func Manager(ctx context.Context, src Source, managerID string, p model.Period) (model.ManagerRollup, error) {
	if err := p.Validate(); err != nil {
		return model.ManagerRollup{}, err
	}
	agents, err := src.AgentsUnderManager(ctx, managerID)
	if err != nil {
		return model.ManagerRollup{}, errors.Wrapf(err, "agents under manager %s", managerID)
	}
	pcts, err := src.PercentagesFor(ctx, ids(agents), p)
	if err != nil {
		return model.ManagerRollup{}, errors.Wrap(err, "manager percentages")
	}
	return managerFrom(managerID, p, agents, pcts), nil
}

func managerFrom(managerID string, p model.Period, agents []model.Agent, pcts map[string]float64) model.ManagerRollup {
	byLeader := make(map[string][]model.Agent)
	for _, a := range agents {
		byLeader[a.TeamLeaderID] = append(byLeader[a.TeamLeaderID], a)
	}
	leaders := make([]string, 0, len(byLeader))
	for id := range byLeader {
		leaders = append(leaders, id)
	}
	sort.Strings(leaders)

	mr := model.ManagerRollup{
		ManagerID: managerID,
		Period:    p,
		TeamCount: len(leaders),
		Teams:     make([]model.TeamRollup, 0, len(leaders)),
	}
	var sum float64
	for _, leaderID := range leaders {
		tr, mean := summarize(leaderID, p, byLeader[leaderID], pcts)
		mr.Teams = append(mr.Teams, tr)
		mr.AgentCount += tr.AgentCount
		mr.ScoredAgentCount += tr.ScoredAgentCount
		if tr.ScoredAgentCount > 0 {
			mr.ScoredTeamCount++
			sum += mean
		}
	}
	if mr.ScoredTeamCount > 0 {
		mr.AveragePercentage = scoring.Round2(sum / float64(mr.ScoredTeamCount))
	}
	return mr
}

// summarize returns the rounded roll-up and the unrounded mean.
func summarize(leaderID string, p model.Period, agents []model.Agent, pcts map[string]float64) (model.TeamRollup, float64) {
	tr := model.TeamRollup{
		TeamLeaderID: leaderID,
		Period:       p,
		AgentCount:   len(agents),
		Agents:       make([]model.AgentScore, 0, len(agents)),
	}
	var sum float64
	for _, a := range agents {
		pct, ok := pcts[a.ID]
		if !ok {
			continue
		}
		tr.ScoredAgentCount++
		sum += pct
		tr.Agents = append(tr.Agents, model.AgentScore{AgentID: a.ID, Name: a.Name, Percentage: pct})
	}
	sort.Slice(tr.Agents, func(i, j int) bool {
		if tr.Agents[i].Percentage != tr.Agents[j].Percentage {
			return tr.Agents[i].Percentage > tr.Agents[j].Percentage
		}
		return tr.Agents[i].AgentID < tr.Agents[j].AgentID
	})
	if tr.ScoredAgentCount == 0 {
		return tr, 0
	}
	mean := sum / float64(tr.ScoredAgentCount)
	tr.AveragePercentage = scoring.Round2(mean)
	return tr, mean
}

func ids(agents []model.Agent) []string {
	s := set.New[string](len(agents))
	for _, a := range agents {
		s.Insert(a.ID)
	}
	out := s.Slice()
	sort.Strings(out)
	return out
}
