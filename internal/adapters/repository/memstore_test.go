package repository

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"

	"github.com/okian/scorecard/internal/domain/model"
)

func seedAgents(t *testing.T, s *MemoryStore, agents ...model.Agent) {
	t.Helper()
	for _, a := range agents {
		if _, err := s.SaveAgent(context.Background(), a); err != nil {
			t.Fatalf("save agent %s: %v", a.ID, err)
		}
	}
}

func write(agentID string, month, year, metric int) model.ScorecardWrite {
	return model.ScorecardWrite{
		AgentID: agentID,
		Period:  model.Period{Month: month, Year: year},
		Metrics: model.UniformMetrics(metric),
		Weights: model.DefaultWeights(),
		Actor:   "tl-1",
	}
}

func TestMemoryStore_UpsertIsIdempotent(t *testing.T) {
	ctx := context.Background()
	clock := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	s := NewMemoryStore(WithClock(func() time.Time { return clock }))
	seedAgents(t, s, model.Agent{ID: "a1", Email: "a1@example.com"})

	first, err := s.Upsert(ctx, write("a1", 3, 2024, 2))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	clock = clock.Add(time.Hour)
	second, err := s.Upsert(ctx, write("a1", 3, 2024, 4))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected exactly one record, got %d", n)
	}
	if second.ID != first.ID {
		t.Errorf("expected the record id to survive an overwrite")
	}
	if second.Percentage != 80 || second.TotalScore != 32 {
		t.Errorf("expected second write values, got %v / %v", second.TotalScore, second.Percentage)
	}
	if !second.CreatedAt.Equal(first.CreatedAt) || !second.UpdatedAt.After(first.UpdatedAt) {
		t.Errorf("unexpected timestamps: created %v updated %v", second.CreatedAt, second.UpdatedAt)
	}

	series, _ := s.RecentSeries(ctx, "a1", 10)
	if len(series) != 1 || series[0].Service != 4 {
		t.Errorf("expected the stored record to reflect the second call, got %+v", series)
	}
}

func TestMemoryStore_UpsertRejectsInvalidWrites(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedAgents(t, s, model.Agent{ID: "a1", EmployeeID: "E1"})

	bad := write("a1", 13, 2024, 3)
	if _, err := s.Upsert(ctx, bad); !model.IsValidation(err) {
		t.Errorf("expected validation error for month 13, got %v", err)
	}
	bad = write("a1", 1, 2024, 6)
	if _, err := s.Upsert(ctx, bad); !model.IsValidation(err) {
		t.Errorf("expected validation error for metric 6, got %v", err)
	}
	if _, err := s.Upsert(ctx, write("ghost", 1, 2024, 3)); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for unknown agent, got %v", err)
	}
}

func TestMemoryStore_ConcurrentUpsertsKeepOneRecord(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedAgents(t, s, model.Agent{ID: "a1", Email: "a1@example.com"})

	var wg sync.WaitGroup
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := s.Upsert(ctx, write("a1", 6, 2024, 1+i%5)); err != nil {
				t.Errorf("upsert %d: %v", i, err)
			}
		}(i)
	}
	wg.Wait()

	if n, _ := s.Count(ctx); n != 1 {
		t.Fatalf("expected one record after concurrent upserts, got %d", n)
	}
}

func TestMemoryStore_RecentSeriesOrdering(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedAgents(t, s, model.Agent{ID: "a1", Email: "a1@example.com"})

	for _, p := range []model.Period{{Month: 11, Year: 2023}, {Month: 2, Year: 2024}, {Month: 12, Year: 2023}, {Month: 1, Year: 2024}} {
		if _, err := s.Upsert(ctx, write("a1", p.Month, p.Year, 3)); err != nil {
			t.Fatal(err)
		}
	}

	series, err := s.RecentSeries(ctx, "a1", 3)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"2024-02", "2024-01", "2023-12"}
	if len(series) != len(want) {
		t.Fatalf("expected %d records, got %d", len(want), len(series))
	}
	for i, w := range want {
		if got := series[i].Period().String(); got != w {
			t.Errorf("position %d: expected %s, got %s", i, w, got)
		}
	}

	if _, err := s.RecentSeries(ctx, "a1", 0); !errors.Is(err, ErrInvalidLimit) {
		t.Errorf("expected ErrInvalidLimit, got %v", err)
	}
}

func TestMemoryStore_Agents(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	seedAgents(t, s,
		model.Agent{ID: "m1", Email: "m1@example.com", Role: model.RoleManager},
		model.Agent{ID: "tl1", Email: "tl1@example.com", Role: model.RoleTeamLeader, ManagerID: "m1"},
		model.Agent{ID: "tl2", Email: "tl2@example.com", Role: model.RoleTeamLeader, ManagerID: "m2"},
		model.Agent{ID: "a1", Email: "A1@Example.com", EmployeeID: "E-1", TeamLeaderID: "tl1"},
		model.Agent{ID: "a2", EmployeeID: "E-2", TeamLeaderID: "tl1"},
		model.Agent{ID: "a3", EmployeeID: "E-3", TeamLeaderID: "tl2"},
	)

	byEmail, err := s.ResolveAgent(ctx, "a1@example.COM")
	if err != nil || byEmail.ID != "a1" {
		t.Errorf("resolve by email: %+v %v", byEmail, err)
	}
	byEmployee, err := s.ResolveAgent(ctx, " E-2 ")
	if err != nil || byEmployee.ID != "a2" {
		t.Errorf("resolve by employee id: %+v %v", byEmployee, err)
	}
	if _, err := s.ResolveAgent(ctx, "nobody@example.com"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	team, _ := s.AgentsUnderTeamLeader(ctx, "tl1")
	if len(team) != 2 || team[0].ID != "a1" || team[1].ID != "a2" {
		t.Errorf("unexpected team: %+v", team)
	}
	managed, _ := s.AgentsUnderManager(ctx, "m1")
	if len(managed) != 2 {
		t.Errorf("expected 2 agents under m1, got %d", len(managed))
	}

	if _, err := s.SaveAgent(ctx, model.Agent{ID: "dup", Email: "a1@example.com"}); !model.IsValidation(err) {
		t.Errorf("expected duplicate email to be rejected, got %v", err)
	}
	if _, err := s.SaveAgent(ctx, model.Agent{ID: "anon"}); !model.IsValidation(err) {
		t.Errorf("expected identifier-less agent to be rejected, got %v", err)
	}
}

func TestMemoryStore_BatchReads(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for i := 1; i <= 4; i++ {
		seedAgents(t, s, model.Agent{ID: fmt.Sprintf("a%d", i), EmployeeID: fmt.Sprintf("E%d", i)})
	}
	mustUpsert := func(w model.ScorecardWrite) {
		if _, err := s.Upsert(ctx, w); err != nil {
			t.Fatal(err)
		}
	}
	mustUpsert(write("a1", 5, 2024, 5))
	mustUpsert(write("a2", 5, 2024, 3))
	mustUpsert(write("a3", 5, 2024, 5))
	mustUpsert(write("a3", 6, 2024, 2))
	mustUpsert(write("a4", 4, 2024, 4))

	p := model.Period{Month: 5, Year: 2024}
	pcts, _ := s.PercentagesFor(ctx, []string{"a1", "a2", "a4", "ghost"}, p)
	if len(pcts) != 2 || pcts["a1"] != 100 || pcts["a2"] != 60 {
		t.Errorf("unexpected percentages: %v", pcts)
	}

	latest, _ := s.LatestFor(ctx, []string{"a3", "a4"})
	if latest["a3"].Month != 6 || latest["a4"].Month != 4 {
		t.Errorf("unexpected latest: %+v", latest)
	}

	top, _ := s.TopN(ctx, p, 2)
	if len(top) != 2 || top[0].AgentID != "a1" || top[1].AgentID != "a3" {
		t.Errorf("expected a1, a3 tie broken by id, got %+v", top)
	}

	from := model.Period{Month: 5, Year: 2024}
	all, _ := s.List(ctx, ExportQuery{From: &from})
	if len(all) != 4 || all[len(all)-1].AgentID != "a3" || all[len(all)-1].Month != 6 {
		t.Errorf("unexpected export ordering: %+v", all)
	}
	only, _ := s.List(ctx, ExportQuery{AgentIDs: []string{"a4"}})
	if len(only) != 1 {
		t.Errorf("expected agent filter to apply, got %d", len(only))
	}
	limited, _ := s.List(ctx, ExportQuery{Limit: 2})
	if len(limited) != 2 {
		t.Errorf("expected limit to apply, got %d", len(limited))
	}
}
