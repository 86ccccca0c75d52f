package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/okian/scorecard/internal/domain/model"
)

const jobPollInterval = 500 * time.Millisecond

func newImportCmd(c *cli) *cobra.Command {
	var (
		format string
		async  bool
		wait   bool
	)
	cmd := &cobra.Command{
		Use:   "import FILE",
		Short: "Import a CSV or XLSX file of scorecards",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := c.context(cmd)
			defer cancel()

			data, err := os.ReadFile(args[0])
			if err != nil {
				return errors.Wrap(err, "read file")
			}
			if format == "" {
				format = strings.TrimPrefix(strings.ToLower(filepath.Ext(args[0])), ".")
			}
			client := c.client()

			if !async {
				res, err := client.Import(ctx, data, format)
				if err != nil {
					return err
				}
				printImportResult(c, res)
				return nil
			}

			job, dup, err := client.SubmitImport(ctx, data, format)
			if err != nil {
				return err
			}
			st := c.styles()
			if dup {
				fmt.Fprintln(c.out, st.dim.Render("identical import already pending"))
			}
			fmt.Fprintf(c.out, "job %s %s\n", job.ID, job.Status)
			if !wait {
				return nil
			}
			job, err = client.WaitJob(ctx, job.ID, jobPollInterval)
			if err != nil {
				return err
			}
			if job.Status == model.JobFailed {
				return errors.Newf("import job %s failed: %s", job.ID, job.Error)
			}
			if job.Result != nil {
				printImportResult(c, *job.Result)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&format, "format", "", "File format: csv or xlsx (default: from the extension)")
	cmd.Flags().BoolVar(&async, "async", false, "Queue the import and return the job id")
	cmd.Flags().BoolVar(&wait, "wait", false, "With --async, poll until the job finishes")
	return cmd
}

func printImportResult(c *cli, res model.ImportResult) {
	st := c.styles()
	st.title(c.out, "Import")
	fmt.Fprintf(c.out, "imported %d of %d rows\n", res.Imported, res.Total)
	for _, e := range res.Errors {
		fmt.Fprintln(c.out, st.errs.Render("  "+e))
	}
}
