package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scorecard/internal/domain/model"
)

const barWidth = 20

// periodFlags binds --month and --year, defaulting to the current month.
type periodFlags struct {
	month, year int
}

func (f *periodFlags) bind(cmd *cobra.Command) {
	now := model.PeriodOf(time.Now())
	cmd.Flags().IntVar(&f.month, "month", now.Month, "Month, 1-12")
	cmd.Flags().IntVar(&f.year, "year", now.Year, "Year")
}

func (f *periodFlags) period() (model.Period, error) {
	p := model.Period{Month: f.month, Year: f.year}
	return p, p.Validate()
}

func newRollupCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rollup",
		Short: "Show team or manager averages for a month",
	}
	cmd.AddCommand(newTeamRollupCmd(c), newManagerRollupCmd(c))
	return cmd
}

func newTeamRollupCmd(c *cli) *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "team LEADER_ID",
		Short: "Average of one team leader's agents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			tr, err := c.client().TeamRollup(ctx, args[0], p)
			if err != nil {
				return err
			}
			printTeam(c, tr)
			return nil
		},
	}
	pf.bind(cmd)
	return cmd
}

func newManagerRollupCmd(c *cli) *cobra.Command {
	var pf periodFlags
	cmd := &cobra.Command{
		Use:   "manager MANAGER_ID",
		Short: "Mean of the team averages under one manager",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := pf.period()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			mr, err := c.client().ManagerRollup(ctx, args[0], p)
			if err != nil {
				return err
			}
			printManager(c, mr)
			return nil
		},
	}
	pf.bind(cmd)
	return cmd
}

func printTeam(c *cli, tr model.TeamRollup) {
	st := c.styles()
	st.title(c.out, fmt.Sprintf("Team %s  %s", tr.TeamLeaderID, tr.Period))
	fmt.Fprintf(c.out, "average %s  scored %d/%d\n", st.pct(tr.AveragePercentage), tr.ScoredAgentCount, tr.AgentCount)
	for _, a := range tr.Agents {
		fmt.Fprintf(c.out, "  %-24s %s %s\n", displayName(a.Name, a.AgentID), st.pct(a.Percentage), st.dim.Render(bar(a.Percentage, barWidth)))
	}
}

func printManager(c *cli, mr model.ManagerRollup) {
	st := c.styles()
	st.title(c.out, fmt.Sprintf("Manager %s  %s", mr.ManagerID, mr.Period))
	fmt.Fprintf(c.out, "average %s  teams %d/%d  agents %d/%d\n",
		st.pct(mr.AveragePercentage), mr.ScoredTeamCount, mr.TeamCount, mr.ScoredAgentCount, mr.AgentCount)
	for _, t := range mr.Teams {
		fmt.Fprintf(c.out, "  %-24s %s %s\n", t.TeamLeaderID, st.pct(t.AveragePercentage), st.dim.Render(bar(t.AveragePercentage, barWidth)))
	}
}

func newLeaderboardCmd(c *cli) *cobra.Command {
	var (
		pf    periodFlags
		limit int
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Rank agents by percentage for a month",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := pf.period()
			if err != nil {
				return err
			}
			ctx, cancel := c.context(cmd)
			defer cancel()

			entries, err := c.client().Leaderboard(ctx, p, limit)
			if err != nil {
				return err
			}
			st := c.styles()
			st.title(c.out, "Leaderboard "+p.String())
			for _, e := range entries {
				fmt.Fprintf(c.out, "%4d  %-24s %s\n", e.Rank, displayName(e.Name, e.AgentID), st.pct(e.Percentage))
			}
			return nil
		},
	}
	pf.bind(cmd)
	cmd.Flags().IntVar(&limit, "limit", 10, "Number of entries")
	return cmd
}

func displayName(name, id string) string {
	if name != "" {
		return name
	}
	return id
}
