// Package seed generates sample scorecard data and talks to a running
// scorecard server on behalf of the operator CLI.
package seed

import (
	"fmt"
	"math/rand/v2"
	"strconv"

	"github.com/google/uuid"

	"github.com/okian/scorecard/internal/domain/bulk"
	"github.com/okian/scorecard/internal/domain/model"
)

// Generation defaults.
const (
	DefaultAgents = 20
	DefaultTeams  = 4
	DefaultMonths = 6
)

// profile is a performer band; base is the typical positive score and
// incidents the typical count of late arrivals and overrun breaks.
type profile struct {
	name      string
	base      int
	incidents int
}

var profiles = []profile{ //nolint:gochecknoglobals // static distribution
	{name: "average", base: 3, incidents: 2},
	{name: "average", base: 3, incidents: 1},
	{name: "high", base: 4, incidents: 1},
	{name: "elite", base: 5, incidents: 0},
	{name: "low", base: 2, incidents: 3},
	{name: "mid-high", base: 4, incidents: 2},
	{name: "mid-low", base: 2, incidents: 2},
	{name: "wide", base: 3, incidents: 3},
}

// Config controls Generate.
type Config struct {
	Agents int
	Teams  int
	Months int
	// End is the last generated period; earlier months count back from it.
	End model.Period
	// Seed makes the output reproducible.
	Seed uint64
}

// Dataset is a generated organisation and its scorecards.
type Dataset struct {
	Manager model.Agent
	Leaders []model.Agent
	Agents  []model.Agent
	Rows    []bulk.ImportRow
}

// Generate builds one manager, cfg.Teams team leaders, cfg.Agents agents
// spread round-robin over the teams, and one scorecard per agent per month.
func Generate(cfg Config) (Dataset, error) {
	if cfg.Agents <= 0 {
		cfg.Agents = DefaultAgents
	}
	if cfg.Teams <= 0 {
		cfg.Teams = DefaultTeams
	}
	if cfg.Months <= 0 {
		cfg.Months = DefaultMonths
	}
	if err := cfg.End.Validate(); err != nil {
		return Dataset{}, err
	}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0x9e3779b97f4a7c15)) //nolint:gosec // sample data

	ds := Dataset{
		Manager: model.Agent{
			ID: uuid.NewString(), Email: "manager@example.com", EmployeeID: "M-1",
			Name: "Sample Manager", Role: model.RoleManager,
		},
	}
	for i := range cfg.Teams {
		ds.Leaders = append(ds.Leaders, model.Agent{
			ID:         uuid.NewString(),
			Email:      fmt.Sprintf("lead%d@example.com", i+1),
			EmployeeID: "L-" + strconv.Itoa(i+1),
			Name:       fmt.Sprintf("Team Lead %d", i+1),
			Role:       model.RoleTeamLeader,
			ManagerID:  ds.Manager.ID,
		})
	}

	periods := make([]model.Period, cfg.Months)
	p := cfg.End
	for i := cfg.Months - 1; i >= 0; i-- {
		periods[i] = p
		p = p.Prev()
	}

	for i := range cfg.Agents {
		a := model.Agent{
			ID:           uuid.NewString(),
			Email:        fmt.Sprintf("agent%03d@example.com", i+1),
			EmployeeID:   fmt.Sprintf("E-%03d", i+1),
			Name:         fmt.Sprintf("Agent %03d", i+1),
			Role:         model.RoleAgent,
			TeamLeaderID: ds.Leaders[i%cfg.Teams].ID,
		}
		ds.Agents = append(ds.Agents, a)

		prof := profiles[rng.IntN(len(profiles))]
		for _, p := range periods {
			ds.Rows = append(ds.Rows, sampleRow(rng, a.Email, p, prof))
		}
	}
	return ds, nil
}

// sampleRow draws one month. Lateness and break overruns are drawn as
// incident counts and inverted into the 1-5 scale here, so a higher stored
// value is better for every metric the calculator sees.
func sampleRow(rng *rand.Rand, identifier string, p model.Period, prof profile) bulk.ImportRow {
	var m model.MetricSet
	for _, metric := range model.Metrics {
		switch metric {
		case model.MetricLateness, model.MetricBreakExceeds:
			m.Set(metric, invertIncidents(jitter(rng, prof.incidents)))
		default:
			m.Set(metric, clampMetric(jitter(rng, prof.base)))
		}
	}
	return bulk.ImportRow{
		Identifier: identifier, Month: p.Month, Year: p.Year,
		Service: m.Service, Productivity: m.Productivity, Quality: m.Quality, Assiduity: m.Assiduity,
		Performance: m.Performance, Adherence: m.Adherence, Lateness: m.Lateness, BreakExceeds: m.BreakExceeds,
	}
}

// invertIncidents maps 0 incidents to 5 and 4 or more to 1.
func invertIncidents(n int) int {
	return clampMetric(model.MaxMetric - n)
}

func jitter(rng *rand.Rand, v int) int {
	return v + rng.IntN(3) - 1
}

func clampMetric(v int) int {
	return max(model.MinMetric, min(model.MaxMetric, v))
}

// Table renders the dataset's rows in the import layout.
func (ds Dataset) Table() bulk.Table {
	t := bulk.Table{Header: bulk.ImportHeader(), Rows: make([][]string, 0, len(ds.Rows))}
	for _, r := range ds.Rows {
		cells := []string{r.Identifier, strconv.Itoa(r.Month), strconv.Itoa(r.Year)}
		m := r.Metrics()
		for _, metric := range model.Metrics {
			cells = append(cells, strconv.Itoa(m.Get(metric)))
		}
		t.Rows = append(t.Rows, append(cells, r.Notes))
	}
	return t
}

// People returns every generated person, leaders before their agents.
func (ds Dataset) People() []model.Agent {
	out := make([]model.Agent, 0, 1+len(ds.Leaders)+len(ds.Agents))
	out = append(out, ds.Manager)
	out = append(out, ds.Leaders...)
	return append(out, ds.Agents...)
}
