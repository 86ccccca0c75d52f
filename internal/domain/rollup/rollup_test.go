package rollup_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/cockroachdb/errors"
	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/domain/rollup"
)

// countingSource answers from fixed data and counts store round trips.
type countingSource struct {
	agents  []model.Agent
	leaders map[string]string // team leader -> manager
	pcts    map[string]float64
	calls   int
	fail    error
}

func (s *countingSource) AgentsUnderTeamLeader(_ context.Context, leaderID string) ([]model.Agent, error) {
	s.calls++
	var out []model.Agent
	for _, a := range s.agents {
		if a.TeamLeaderID == leaderID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *countingSource) AgentsUnderManager(_ context.Context, managerID string) ([]model.Agent, error) {
	s.calls++
	var out []model.Agent
	for _, a := range s.agents {
		if s.leaders[a.TeamLeaderID] == managerID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *countingSource) PercentagesFor(_ context.Context, ids []string, _ model.Period) (map[string]float64, error) {
	s.calls++
	if s.fail != nil {
		return nil, s.fail
	}
	out := make(map[string]float64)
	for _, id := range ids {
		if p, ok := s.pcts[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

var period = model.Period{Month: 4, Year: 2024}

func managerFixture() *countingSource {
	src := &countingSource{
		leaders: map[string]string{"tl1": "m1", "tl2": "m1", "tl3": "m1"},
		pcts:    map[string]float64{"t1-a0": 90},
	}
	src.agents = append(src.agents, model.Agent{ID: "t1-a0", TeamLeaderID: "tl1"})
	for i := 0; i < 9; i++ {
		id := fmt.Sprintf("t2-a%d", i)
		src.agents = append(src.agents, model.Agent{ID: id, TeamLeaderID: "tl2"})
		src.pcts[id] = 50
	}
	// tl3's only agent has no scorecard this period
	src.agents = append(src.agents, model.Agent{ID: "t3-a0", TeamLeaderID: "tl3"})
	return src
}

func TestManagerRollup(t *testing.T) {
	Convey("Given a manager with a one-agent team at 90% and a nine-agent team at 50%", t, func() {
		src := managerFixture()

		Convey("When the manager roll-up is computed", func() {
			mr, err := rollup.Manager(context.Background(), src, "m1", period)

			Convey("Then it averages team averages, not agents", func() {
				So(err, ShouldBeNil)
				So(mr.AveragePercentage, ShouldEqual, 70)
				So(mr.AveragePercentage, ShouldNotEqual, 54)
			})

			Convey("And unscored teams are listed but excluded", func() {
				So(mr.TeamCount, ShouldEqual, 3)
				So(mr.ScoredTeamCount, ShouldEqual, 2)
				So(mr.AgentCount, ShouldEqual, 11)
				So(mr.ScoredAgentCount, ShouldEqual, 10)
				So(mr.Teams[2].TeamLeaderID, ShouldEqual, "tl3")
				So(mr.Teams[2].AveragePercentage, ShouldEqual, 0)
			})

			Convey("And it costs two store reads", func() {
				So(src.calls, ShouldEqual, 2)
			})
		})
	})

	Convey("Given a manager with no agents", t, func() {
		mr, err := rollup.Manager(context.Background(), &countingSource{}, "nobody", period)

		Convey("Then the average is zero", func() {
			So(err, ShouldBeNil)
			So(mr.AveragePercentage, ShouldEqual, 0)
			So(mr.TeamCount, ShouldEqual, 0)
			So(mr.Teams, ShouldBeEmpty)
		})
	})

	Convey("Given an invalid period", t, func() {
		_, err := rollup.Manager(context.Background(), managerFixture(), "m1", model.Period{Month: 0, Year: 2024})
		So(model.IsValidation(err), ShouldBeTrue)
	})
}

func TestTeamRollup(t *testing.T) {
	Convey("Given a team where one agent has no record", t, func() {
		src := &countingSource{
			agents: []model.Agent{
				{ID: "a1", TeamLeaderID: "tl1", Name: "Ana"},
				{ID: "a2", TeamLeaderID: "tl1"},
				{ID: "a3", TeamLeaderID: "tl1"},
			},
			pcts: map[string]float64{"a1": 80, "a2": 70.5},
		}

		tr, err := rollup.Team(context.Background(), src, "tl1", period)

		Convey("Then the missing agent is excluded, not zeroed", func() {
			So(err, ShouldBeNil)
			So(tr.AveragePercentage, ShouldEqual, 75.25)
			So(tr.AgentCount, ShouldEqual, 3)
			So(tr.ScoredAgentCount, ShouldEqual, 2)
			So(tr.Agents[0].AgentID, ShouldEqual, "a1")
			So(tr.Agents[0].Name, ShouldEqual, "Ana")
			So(src.calls, ShouldEqual, 2)
		})
	})

	Convey("Given a failing store", t, func() {
		boom := errors.New("down")
		src := &countingSource{agents: []model.Agent{{ID: "a1", TeamLeaderID: "tl1"}}, fail: boom}

		_, err := rollup.Team(context.Background(), src, "tl1", period)

		Convey("Then the error propagates", func() {
			So(errors.Is(err, boom), ShouldBeTrue)
		})
	})
}
