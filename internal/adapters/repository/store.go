// Package repository defines the scorecard and agent store contracts and an
// in-memory implementation.
package repository

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/scoring"
)

// ExportQuery bounds a bulk read. Zero values mean "no filter".
type ExportQuery struct {
	AgentIDs []string
	From     *model.Period
	To       *model.Period
	Limit    int
}

// Matches reports whether period p falls inside the query range.
func (q ExportQuery) Matches(p model.Period) bool {
	if q.From != nil && p.Before(*q.From) {
		return false
	}
	if q.To != nil && q.To.Before(p) {
		return false
	}
	return true
}

// AgentStore resolves and lists agents and their hierarchy.
type AgentStore interface {
	// SaveAgent inserts or replaces an agent. An empty ID is assigned.
	SaveAgent(ctx context.Context, a model.Agent) (model.Agent, error)
	// GetAgent returns ErrNotFound for an unknown id.
	GetAgent(ctx context.Context, id string) (model.Agent, error)
	ListAgents(ctx context.Context) ([]model.Agent, error)
	// ResolveAgent looks an agent up by email (contains "@") or employee id.
	ResolveAgent(ctx context.Context, identifier string) (model.Agent, error)
	AgentsUnderTeamLeader(ctx context.Context, leaderID string) ([]model.Agent, error)
	// AgentsUnderManager returns every agent whose team leader reports to managerID.
	AgentsUnderManager(ctx context.Context, managerID string) ([]model.Agent, error)
}

// ScorecardStore persists one record per (agent, month, year).
type ScorecardStore interface {
	// Upsert derives the scores and writes the record, overwriting any
	// existing record for the same agent and period.
	Upsert(ctx context.Context, w model.ScorecardWrite) (model.ScorecardRecord, error)
	// RecentSeries returns up to limit records, most recent period first.
	RecentSeries(ctx context.Context, agentID string, limit int) ([]model.ScorecardRecord, error)
	// PercentagesFor fetches the period's percentage of every listed agent
	// that has a record, in a single batched read.
	PercentagesFor(ctx context.Context, agentIDs []string, p model.Period) (map[string]float64, error)
	// LatestFor returns each listed agent's most recent record.
	LatestFor(ctx context.Context, agentIDs []string) (map[string]model.ScorecardRecord, error)
	// TopN ranks records of one period by percentage desc, agent id asc.
	TopN(ctx context.Context, p model.Period, n int) ([]model.ScorecardRecord, error)
	// List returns records ordered by period then agent id.
	List(ctx context.Context, q ExportQuery) ([]model.ScorecardRecord, error)
	Count(ctx context.Context) (int, error)
}

// Store is the full persistence boundary.
type Store interface {
	AgentStore
	ScorecardStore
	Ping(ctx context.Context) error
	Close() error
}

// Derive validates a write and computes the rounded scores it persists with.
func Derive(w model.ScorecardWrite) (scoring.Result, error) {
	if strings.TrimSpace(w.AgentID) == "" {
		return scoring.Result{}, errors.Mark(errors.New("agent id is required"), model.ErrValidation)
	}
	if err := w.Period.Validate(); err != nil {
		return scoring.Result{}, err
	}
	if err := w.Metrics.Validate(); err != nil {
		return scoring.Result{}, err
	}
	if err := w.Weights.Validate(); err != nil {
		return scoring.Result{}, err
	}
	return scoring.Calculate(w.Metrics, w.Weights).Rounded(), nil
}

// IsEmail reports whether an agent identifier is an email address.
func IsEmail(identifier string) bool {
	return strings.Contains(identifier, "@")
}
