package main

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/okian/scorecard/internal/seed"
)

const envURL = "SCORECARD_URL"

// cli carries the flags shared by every subcommand.
type cli struct {
	out     io.Writer
	baseURL string
	actor   string
	timeout time.Duration
	plain   bool
}

func (c *cli) client() *seed.Client {
	return seed.NewClient(c.baseURL, seed.WithActor(c.actor))
}

func (c *cli) styles() printStyles {
	if c.plain {
		return plainStyles()
	}
	return newPrintStyles()
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}

	defaultURL := os.Getenv(envURL)
	if defaultURL == "" {
		defaultURL = seed.DefaultBaseURL
	}

	root := &cobra.Command{
		Use:   "scorecardctl",
		Short: "Operate a scorecard server: import, export, roll-ups and sample data",
		Long: `scorecardctl talks to a running scorecard server over HTTP.

Files use the spreadsheet layout of the import endpoint: one header row with
Agent Email or Employee ID, Month, Year, the eight metric columns and Notes.`,
		SilenceUsage: true,
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVar(&c.baseURL, "url", defaultURL, "Base URL of the scorecard server (env "+envURL+")")
	root.PersistentFlags().StringVar(&c.actor, "actor", os.Getenv("USER"), "Actor recorded on written scorecards")
	root.PersistentFlags().DurationVar(&c.timeout, "timeout", 2*time.Minute, "Overall deadline for the command")
	root.PersistentFlags().BoolVar(&c.plain, "plain", false, "Disable colours")

	root.AddCommand(
		newImportCmd(c),
		newExportCmd(c),
		newRollupCmd(c),
		newLeaderboardCmd(c),
		newSeedCmd(c),
	)
	return root
}

func (c *cli) context(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithTimeout(ctx, c.timeout)
}
