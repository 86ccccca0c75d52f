package model

import (
	"fmt"
	"time"

	"github.com/cockroachdb/errors"
)

// Plausible scorecard years.
const (
	MinYear = 2000
	MaxYear = 2100
)

// Period is a (month, year) pair identifying one scorecard.
type Period struct {
	Month int `json:"month"`
	Year  int `json:"year"`
}

// Validate checks month is in [1,12] and year is plausible.
func (p Period) Validate() error {
	if p.Month < 1 || p.Month > 12 {
		return errors.Mark(errors.Newf("month must be between 1 and 12, got %d", p.Month), ErrValidation)
	}
	if p.Year < MinYear || p.Year > MaxYear {
		return errors.Mark(errors.Newf("year must be between %d and %d, got %d", MinYear, MaxYear, p.Year), ErrValidation)
	}
	return nil
}

// Index orders periods chronologically.
func (p Period) Index() int { return p.Year*12 + p.Month - 1 }

// Before reports whether p is earlier than o.
func (p Period) Before(o Period) bool { return p.Index() < o.Index() }

// Prev returns the preceding month.
func (p Period) Prev() Period {
	if p.Month == 1 {
		return Period{Month: 12, Year: p.Year - 1}
	}
	return Period{Month: p.Month - 1, Year: p.Year}
}

func (p Period) String() string { return fmt.Sprintf("%04d-%02d", p.Year, p.Month) }

// ParsePeriod parses "YYYY-MM".
func ParsePeriod(s string) (Period, error) {
	var p Period
	if _, err := fmt.Sscanf(s, "%d-%d", &p.Year, &p.Month); err != nil {
		return Period{}, errors.Mark(errors.Newf("period %q must look like YYYY-MM", s), ErrValidation)
	}
	return p, p.Validate()
}

// PeriodOf returns the period containing t.
func PeriodOf(t time.Time) Period { return Period{Month: int(t.Month()), Year: t.Year()} }

// ScorecardRecord is the single scorecard of an agent for one period.
type ScorecardRecord struct {
	ID      string `json:"id"`
	AgentID string `json:"agentId"`
	Month   int    `json:"month"`
	Year    int    `json:"year"`
	MetricSet
	Weights    WeightSet `json:"weights"`
	TotalScore float64   `json:"totalScore"`
	Percentage float64   `json:"percentage"`
	Notes      string    `json:"notes"`
	CreatedBy  string    `json:"createdBy,omitempty"`
	UpdatedBy  string    `json:"updatedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

// Period returns the record's (month, year).
func (r ScorecardRecord) Period() Period { return Period{Month: r.Month, Year: r.Year} }

// ScorecardWrite is everything a caller supplies for one upsert.
type ScorecardWrite struct {
	AgentID string
	Period  Period
	Metrics MetricSet
	Weights WeightSet
	Notes   string
	Actor   string
}

// Role is an organisational role supplied by the upstream auth layer.
type Role string

const (
	RoleAgent      Role = "agent"
	RoleTeamLeader Role = "team_leader"
	RoleManager    Role = "manager"
	RoleAdmin      Role = "admin"
)

// Agent is a scored person and their place in the hierarchy.
type Agent struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	EmployeeID   string     `json:"employeeId"`
	Name         string     `json:"name"`
	Role         Role       `json:"role"`
	TeamLeaderID string     `json:"teamLeaderId,omitempty"`
	ManagerID    string     `json:"managerId,omitempty"`
	Weights      *WeightSet `json:"weights,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// AgentSummary is an agent together with their latest scorecard.
type AgentSummary struct {
	Agent
	LatestPeriod     *Period  `json:"latestPeriod,omitempty"`
	LatestPercentage *float64 `json:"latestPercentage,omitempty"`
}

// TrendResult is derived from a most-recent-first series.
type TrendResult struct {
	CurrentPercentage  float64 `json:"currentPercentage"`
	PreviousPercentage float64 `json:"previousPercentage"`
	ImprovementDelta   float64 `json:"improvementDelta"`
	SessionCount       int     `json:"sessionCount"`
	AveragePercentage  float64 `json:"averagePercentage"`
}

// AgentMetrics is the cached read model for one agent.
type AgentMetrics struct {
	AgentID string            `json:"agentId"`
	Series  []ScorecardRecord `json:"series"`
	Trend   TrendResult       `json:"trend"`
}

// AgentScore is one agent's percentage within a roll-up.
type AgentScore struct {
	AgentID    string  `json:"agentId"`
	Name       string  `json:"name,omitempty"`
	Percentage float64 `json:"percentage"`
}

// TeamRollup summarises the agents under one team leader for a period.
type TeamRollup struct {
	TeamLeaderID      string       `json:"teamLeaderId"`
	Period            Period       `json:"period"`
	AgentCount        int          `json:"agentCount"`
	ScoredAgentCount  int          `json:"scoredAgentCount"`
	AveragePercentage float64      `json:"averagePercentage"`
	Agents            []AgentScore `json:"agents"`
}

// ManagerRollup is the mean of team means under one manager.
type ManagerRollup struct {
	ManagerID         string       `json:"managerId"`
	Period            Period       `json:"period"`
	TeamCount         int          `json:"teamCount"`
	ScoredTeamCount   int          `json:"scoredTeamCount"`
	AgentCount        int          `json:"agentCount"`
	ScoredAgentCount  int          `json:"scoredAgentCount"`
	AveragePercentage float64      `json:"averagePercentage"`
	Teams             []TeamRollup `json:"teams"`
}

// RankedAgent is a leaderboard entry.
type RankedAgent struct {
	Rank       int     `json:"rank"`
	AgentID    string  `json:"agentId"`
	Name       string  `json:"name,omitempty"`
	TotalScore float64 `json:"totalScore"`
	Percentage float64 `json:"percentage"`
}
