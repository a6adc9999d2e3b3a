package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/stores"
)

type runDetail struct {
	Run     *stores.Run            `json:"run"`
	Results []*stores.TargetResult `json:"results"`
}

func newHistoryCommand() *cobra.Command {
	var (
		limit  int
		offset int
	)

	cmd := &cobra.Command{
		Use:   "history [run-id]",
		Short: "Show recorded runs",
		Long: `Show the runs recorded in the journal, newest first. With a run ID, show
the outcome of every target of that run.`,
		Example: `  # Last 20 runs
  akin history

  # Targets of one run
  akin history 3f2c8a1e-5a4b-4a53-9a0e-6f1d0f3b7c11`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			journal, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if journal == nil {
				return fmt.Errorf("the run journal is disabled")
			}
			defer journal.Close()

			if len(args) == 1 {
				run, err := journal.GetRun(ctx, args[0])
				if err != nil {
					return err
				}
				results, err := journal.ListResults(ctx, run.ID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(a.stdout, runDetail{Run: run, Results: results})
				}
				return renderResults(a, run, results)
			}

			runs, err := journal.ListRuns(ctx, limit, offset)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(a.stdout, runs)
			}
			return renderRuns(a, runs)
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of runs")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of runs to skip")

	return cmd
}

func renderRuns(a *app, runs []*stores.Run) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tDURATION\tUNITS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ID,
			r.StartedAt.Local().Format(time.DateTime),
			r.Status,
			r.Duration().Round(time.Millisecond),
			strings.Join(r.Units, " "),
		)
	}
	return tw.Flush()
}

func renderResults(a *app, run *stores.Run, results []*stores.TargetResult) error {
	fmt.Fprintf(a.stdout, "Run %s (%s) %s\n", run.ID, run.Catalog, run.Status)
	if run.Error != nil {
		fmt.Fprintf(a.stdout, "Error: %s\n", *run.Error)
	}
	fmt.Fprintln(a.stdout)

	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tACTION\tOUTCOME\tDURATION\tERROR")
	for _, r := range results {
		msg := ""
		if r.Error != nil {
			msg = *r.Error
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", r.Unit, r.Action, r.Outcome, r.Duration, msg)
	}
	return tw.Flush()
}
