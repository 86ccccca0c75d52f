package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/hashicorp/go-set/v2"

	"github.com/okian/scorecard/internal/domain/model"
)

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *MemoryStore) {
		if now != nil {
			s.now = now
		}
	}
}

type scorecardKey struct {
	agentID string
	period  int
}

// MemoryStore keeps agents and scorecards in maps guarded by one RWMutex.
// Upserts hold the write lock, so a (agent, period) key never has two records.
type MemoryStore struct {
	mu           sync.RWMutex
	agents       map[string]model.Agent
	byEmail      map[string]string
	byEmployeeID map[string]string
	records      map[scorecardKey]model.ScorecardRecord
	now          func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		agents:       make(map[string]model.Agent),
		byEmail:      make(map[string]string),
		byEmployeeID: make(map[string]string),
		records:      make(map[scorecardKey]model.ScorecardRecord),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ Store = (*MemoryStore)(nil)

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) SaveAgent(_ context.Context, a model.Agent) (model.Agent, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	email := strings.ToLower(strings.TrimSpace(a.Email))
	if email == "" && a.EmployeeID == "" {
		return model.Agent{}, errors.Mark(errors.New("agent needs an email or an employee id"), model.ErrValidation)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if owner, ok := s.byEmail[email]; ok && email != "" && owner != a.ID {
		return model.Agent{}, errors.Mark(errors.Newf("email %q already belongs to another agent", a.Email), model.ErrValidation)
	}
	if owner, ok := s.byEmployeeID[a.EmployeeID]; ok && a.EmployeeID != "" && owner != a.ID {
		return model.Agent{}, errors.Mark(errors.Newf("employee id %q already belongs to another agent", a.EmployeeID), model.ErrValidation)
	}

	if prev, ok := s.agents[a.ID]; ok {
		delete(s.byEmail, strings.ToLower(strings.TrimSpace(prev.Email)))
		delete(s.byEmployeeID, prev.EmployeeID)
		a.CreatedAt = prev.CreatedAt
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = s.now().UTC()
	}
	s.agents[a.ID] = a
	if email != "" {
		s.byEmail[email] = a.ID
	}
	if a.EmployeeID != "" {
		s.byEmployeeID[a.EmployeeID] = a.ID
	}
	return a, nil
}

func (s *MemoryStore) GetAgent(_ context.Context, id string) (model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return model.Agent{}, errors.Wrapf(ErrNotFound, "agent %s", id)
	}
	return a, nil
}

func (s *MemoryStore) ListAgents(context.Context) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentsWhere(func(model.Agent) bool { return true }), nil
}

func (s *MemoryStore) ResolveAgent(_ context.Context, identifier string) (model.Agent, error) {
	identifier = strings.TrimSpace(identifier)
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		id string
		ok bool
	)
	if IsEmail(identifier) {
		id, ok = s.byEmail[strings.ToLower(identifier)]
	} else {
		id, ok = s.byEmployeeID[identifier]
	}
	if !ok {
		return model.Agent{}, errors.Wrapf(ErrNotFound, "agent %q", identifier)
	}
	return s.agents[id], nil
}

func (s *MemoryStore) AgentsUnderTeamLeader(_ context.Context, leaderID string) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentsWhere(func(a model.Agent) bool { return a.TeamLeaderID == leaderID }), nil
}

func (s *MemoryStore) AgentsUnderManager(_ context.Context, managerID string) ([]model.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.agentsWhere(func(a model.Agent) bool {
		tl, ok := s.agents[a.TeamLeaderID]
		return ok && tl.ManagerID == managerID
	}), nil
}

// agentsWhere must be called with s.mu held.
func (s *MemoryStore) agentsWhere(keep func(model.Agent) bool) []model.Agent {
	out := make([]model.Agent, 0)
	for _, a := range s.agents {
		if keep(a) {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) Upsert(_ context.Context, w model.ScorecardWrite) (model.ScorecardRecord, error) {
	res, err := Derive(w)
	if err != nil {
		return model.ScorecardRecord{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.agents[w.AgentID]; !ok {
		return model.ScorecardRecord{}, errors.Wrapf(ErrNotFound, "agent %s", w.AgentID)
	}

	key := scorecardKey{agentID: w.AgentID, period: w.Period.Index()}
	now := s.now().UTC()
	rec, exists := s.records[key]
	if !exists {
		rec = model.ScorecardRecord{
			ID:        uuid.NewString(),
			AgentID:   w.AgentID,
			Month:     w.Period.Month,
			Year:      w.Period.Year,
			CreatedBy: w.Actor,
			CreatedAt: now,
		}
	}
	rec.MetricSet = w.Metrics
	rec.Weights = w.Weights
	rec.TotalScore = res.TotalScore
	rec.Percentage = res.Percentage
	rec.Notes = w.Notes
	rec.UpdatedBy = w.Actor
	rec.UpdatedAt = now
	s.records[key] = rec
	return rec, nil
}

func (s *MemoryStore) RecentSeries(_ context.Context, agentID string, limit int) ([]model.ScorecardRecord, error) {
	if limit <= 0 {
		return nil, errors.Wrapf(ErrInvalidLimit, "limit %d", limit)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScorecardRecord, 0)
	for k, r := range s.records {
		if k.agentID == agentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[j].Period().Before(out[i].Period()) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) PercentagesFor(_ context.Context, agentIDs []string, p model.Period) (map[string]float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]float64, len(agentIDs))
	for _, id := range agentIDs {
		if r, ok := s.records[scorecardKey{agentID: id, period: p.Index()}]; ok {
			out[id] = r.Percentage
		}
	}
	return out, nil
}

func (s *MemoryStore) LatestFor(_ context.Context, agentIDs []string) (map[string]model.ScorecardRecord, error) {
	wanted := set.From(agentIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]model.ScorecardRecord, wanted.Size())
	for k, r := range s.records {
		if !wanted.Contains(k.agentID) {
			continue
		}
		if cur, ok := out[k.agentID]; !ok || cur.Period().Before(r.Period()) {
			out[k.agentID] = r
		}
	}
	return out, nil
}

func (s *MemoryStore) TopN(_ context.Context, p model.Period, n int) ([]model.ScorecardRecord, error) {
	if n <= 0 {
		return nil, errors.Wrapf(ErrInvalidLimit, "limit %d", n)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScorecardRecord, 0)
	for k, r := range s.records {
		if k.period == p.Index() {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Percentage != out[j].Percentage {
			return out[i].Percentage > out[j].Percentage
		}
		return out[i].AgentID < out[j].AgentID
	})
	if len(out) > n {
		out = out[:n]
	}
	return out, nil
}

func (s *MemoryStore) List(_ context.Context, q ExportQuery) ([]model.ScorecardRecord, error) {
	agents := set.From(q.AgentIDs)
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]model.ScorecardRecord, 0)
	for k, r := range s.records {
		if agents.Size() > 0 && !agents.Contains(k.agentID) {
			continue
		}
		if q.Matches(r.Period()) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := out[i].Period().Index(), out[j].Period().Index()
		if pi != pj {
			return pi < pj
		}
		return out[i].AgentID < out[j].AgentID
	})
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (s *MemoryStore) Count(context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records), nil
}
