package main

import (
	"fmt"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/okian/scorecard/internal/seed"
)

const filePermission = 0o600

func newExportCmd(c *cli) *cobra.Command {
	var (
		q      seed.ExportQuery
		output string
	)
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Download scorecards in the import layout",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			d, err := c.client().Export(ctx, q)
			if err != nil {
				return err
			}
			if output == "" {
				output = d.Filename
			}
			if output == "-" {
				_, err := c.out.Write(d.Body)
				return err
			}
			if err := os.WriteFile(output, d.Body, filePermission); err != nil {
				return errors.Wrap(err, "write export")
			}
			fmt.Fprintf(c.out, "wrote %d records to %s\n", d.Records, output)
			return nil
		},
	}
	cmd.Flags().StringVar(&q.Format, "format", "csv", "csv or xlsx")
	cmd.Flags().StringVar(&q.From, "from", "", "First period, YYYY-MM")
	cmd.Flags().StringVar(&q.To, "to", "", "Last period, YYYY-MM")
	cmd.Flags().StringSliceVar(&q.AgentIDs, "agent", nil, "Restrict to agent ids (repeatable)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file, - for stdout (default: server-suggested name)")
	return cmd
}
