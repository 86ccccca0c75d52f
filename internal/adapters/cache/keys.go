package cache

import (
	"fmt"
	"strings"

	"github.com/okian/scorecard/internal/domain/model"
)

// Key families.
const (
	FamilyAgentMetrics = "agent-metrics"
	FamilyAgentList    = "agent-list"
	FamilyAgent        = "agent"
	FamilyRollup       = "rollup"
)

// RollupPrefix covers every cached aggregate.
const RollupPrefix = FamilyRollup + ":"

// AgentMetricsKey is the exact metrics key of one agent.
func AgentMetricsKey(agentID string) string { return FamilyAgentMetrics + ":" + agentID }

// AgentMetricsPrefix covers the derived metrics keys of one agent.
func AgentMetricsPrefix(agentID string) string { return AgentMetricsKey(agentID) + ":" }

// AgentSeriesKey caches a series of a given length.
func AgentSeriesKey(agentID string, limit int) string {
	return fmt.Sprintf("%s%d", AgentMetricsPrefix(agentID), limit)
}

// AgentListKey caches the agent directory.
func AgentListKey() string { return FamilyAgentList }

// AgentKey caches one agent summary.
func AgentKey(agentID string) string { return FamilyAgent + ":" + agentID }

// TeamRollupKey caches a team roll-up.
func TeamRollupKey(leaderID string, p model.Period) string {
	return RollupPrefix + "team:" + leaderID + ":" + p.String()
}

// ManagerRollupKey caches a manager roll-up.
func ManagerRollupKey(managerID string, p model.Period) string {
	return RollupPrefix + "manager:" + managerID + ":" + p.String()
}

// LeaderboardKey caches a ranked period.
func LeaderboardKey(p model.Period, limit int) string {
	return fmt.Sprintf("%sleaderboard:%s:%d", RollupPrefix, p, limit)
}

// family returns the metric label for a key.
func family(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		return key[:i]
	}
	return key
}
