package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/engine"
)

type unitEntry struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

func newListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the units of the catalog",
		Long: `List every unit name that can be passed to 'akin run', in definition
order: the root phase, every phase and every target.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			shell := a.newShell(true)
			dispatcher := engine.NewDefaultDispatcher(a.deps(shell), a.logger)
			runner, _, err := a.buildUnits(shell, dispatcher)
			if err != nil {
				return err
			}

			entries := []unitEntry{}
			for _, name := range runner.Names() {
				task, _ := runner.Lookup(name)
				entries = append(entries, unitEntry{Name: name, Kind: string(task.Kind())})
			}

			if jsonOutput {
				return writeJSON(a.stdout, entries)
			}

			tw := tabwriter.NewWriter(a.stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "UNIT\tKIND")
			for _, e := range entries {
				fmt.Fprintf(tw, "%s\t%s\n", e.Name, e.Kind)
			}
			return tw.Flush()
		},
	}

	return cmd
}
