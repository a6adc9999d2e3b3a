package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/policy"
)

type finding struct {
	Unit     string `json:"unit"`
	Severity string `json:"severity"`
	Message  string `json:"message"`
}

func newValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the catalog and its policies",
		Long: `Validate the catalog without running anything.

This command checks:
  - Catalog syntax and schema (YAML or CUE)
  - Starlark conditions and predicates
  - Phase structure and unique unit names
  - Action arguments of every target
  - Policy compliance (OPA/rego)`,
		Example: `  # Validate the configured catalog
  akin validate

  # Treat policy warnings as errors
  akin validate --strict --catalog ./laptop.yaml`,
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

			// Build catches duplicate unit names, which Walk does not.
			dispatcher := engine.NewDefaultDispatcher(a.deps(shell), a.logger)
			if _, _, err := a.buildUnits(shell, dispatcher); err != nil {
				return err
			}

			gate, err := a.newGate(ctx)
			if err != nil {
				return err
			}

			findings := []finding{}
			targets := 0
			err = engine.Walk(root, func(unit string, t engine.Target) error {
				targets++
				if _, err := t.Args(); err != nil {
					findings = append(findings, finding{Unit: unit, Severity: string(policy.SeverityError), Message: err.Error()})
					return nil
				}
				if gate == nil {
					return nil
				}
				for _, v := range gate.Violations(ctx, t) {
					findings = append(findings, finding{
						Unit:     unit,
						Severity: string(v.Severity),
						Message:  fmt.Sprintf("[%s] %s", v.Policy, v.Message),
					})
				}
				return nil
			})
			if err != nil {
				return err
			}

			if jsonOutput {
				if err := writeJSON(a.stdout, findings); err != nil {
					return err
				}
			} else {
				for _, f := range findings {
					fmt.Fprintf(a.stdout, "%-8s %s: %s\n", f.Severity, f.Unit, f.Message)
				}
				fmt.Fprintf(a.stdout, "%d targets checked, %d finding(s)\n", targets, len(findings))
			}

			problems := 0
			for _, f := range findings {
				if strict || policy.Severity(f.Severity).Blocks() {
					problems++
				}
			}
			if problems > 0 {
				return fmt.Errorf("validation failed: %d problem(s)", problems)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "treat warnings as errors")

	return cmd
}
