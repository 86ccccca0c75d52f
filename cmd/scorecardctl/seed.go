package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/okian/scorecard/internal/adapters/spreadsheet"
	"github.com/okian/scorecard/internal/domain/model"
	"github.com/okian/scorecard/internal/seed"
)

func newSeedCmd(c *cli) *cobra.Command {
	var (
		cfg    seed.Config
		end    string
		format string
		output string
		push   bool
	)
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate sample agents and scorecards",
		Long: `Generate a sample organisation: one manager, team leaders and agents, with
one scorecard per agent per month. Lateness and break overruns are drawn as
incident counts and inverted so that 5 is always the best score.

With -o the scorecards are written to a file; with --push the people are
created on the server and the scorecards imported.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if output == "" && !push {
				return errors.New("nothing to do: pass -o FILE and/or --push")
			}
			cfg.End = model.PeriodOf(time.Now())
			if end != "" {
				p, err := model.ParsePeriod(end)
				if err != nil {
					return err
				}
				cfg.End = p
			}
			if cfg.Seed == 0 {
				cfg.Seed = uint64(time.Now().UnixNano()) //nolint:gosec // sample data
			}
			ds, err := seed.Generate(cfg)
			if err != nil {
				return err
			}
			codec, err := spreadsheet.ForFormat(format)
			if err != nil {
				return err
			}
			var buf bytes.Buffer
			if err := codec.Encode(&buf, ds.Table()); err != nil {
				return errors.Wrap(err, "encode scorecards")
			}

			if output != "" {
				if err := os.WriteFile(output, buf.Bytes(), filePermission); err != nil {
					return errors.Wrap(err, "write scorecards")
				}
				fmt.Fprintf(c.out, "wrote %d scorecards for %d agents to %s\n", len(ds.Rows), len(ds.Agents), output)
			}
			if !push {
				return nil
			}

			ctx, cancel := c.context(cmd)
			defer cancel()
			client := c.client()
			for _, a := range ds.People() {
				if _, err := client.SaveAgent(ctx, a); err != nil {
					return errors.Wrapf(err, "save %s", a.Email)
				}
			}
			res, err := client.Import(ctx, buf.Bytes(), format)
			if err != nil {
				return err
			}
			printImportResult(c, res)
			fmt.Fprintf(c.out, "manager %s\n", ds.Manager.ID)
			for _, l := range ds.Leaders {
				fmt.Fprintf(c.out, "team    %s\n", l.ID)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&cfg.Agents, "agents", seed.DefaultAgents, "Number of agents")
	cmd.Flags().IntVar(&cfg.Teams, "teams", seed.DefaultTeams, "Number of team leaders")
	cmd.Flags().IntVar(&cfg.Months, "months", seed.DefaultMonths, "Months of history per agent")
	cmd.Flags().StringVar(&end, "end", "", "Last month, YYYY-MM (default: current month)")
	cmd.Flags().Uint64Var(&cfg.Seed, "seed", 0, "Random seed (default: time based)")
	cmd.Flags().StringVar(&format, "format", spreadsheet.FormatCSV, "csv or xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write scorecards to this file")
	cmd.Flags().BoolVar(&push, "push", false, "Create the people and import the scorecards on the server")
	return cmd
}
