package commands

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/engine"
)

func newPlanCommand() *cobra.Command {
	var detailedExitCode bool

	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show what a run would do",
		Long: `Show what 'akin run' would do with every target without changing the machine.

Only read-only probes run: command lookups on PATH, package database queries,
custom test predicates and filesystem checks for git packages. Policies are
evaluated and their warnings shown.`,
		Example: `  # Plan the whole catalog
  akin plan

  # Fail when anything would change
  akin plan --detailed-exitcode`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			shell := a.newShell(true)
			root, err := a.loadRoot(shell)
			if err != nil {
				return err
			}
			gate, err := a.newGate(ctx)
			if err != nil {
				return err
			}

			oracle := engine.NewOracle(a.deps(shell), a.logger)
			plan, err := engine.NewPlanner(oracle, engineGate(gate)).Plan(ctx, root)
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(a.stdout, plan); err != nil {
					return err
				}
			} else if err := renderPlan(a, plan); err != nil {
				return err
			}

			if plan.Summary.Failures > 0 {
				return fmt.Errorf("%d target(s) would fail", plan.Summary.Failures)
			}
			if detailedExitCode && plan.Changes() > 0 {
				return fmt.Errorf("%d change(s) pending", plan.Changes())
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&detailedExitCode, "detailed-exitcode", false, "exit non-zero when changes are pending")

	return cmd
}

func renderPlan(a *app, plan *engine.Plan) error {
	tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "UNIT\tACTION\tOPERATION\tDETAIL")
	for _, e := range plan.Entries {
		detail := e.Reason
		if len(e.Warnings) > 0 {
			detail = strings.TrimSpace(detail + " " + strings.Join(e.Warnings, "; "))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Unit, e.Action, e.Operation, detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	s := plan.Summary
	_, err := fmt.Fprintf(a.stdout, "\nPlan: %d to install, %d to execute, %d to verify, %d unchanged, %d skipped, %d failing\n",
		s.Install, s.Execute, s.Verify, s.Noop, s.Skip, s.Failures)
	return err
}
