package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/engine"
	"github.com/akinizer/akinizer/pkg/tasks"
)

func newGraphCommand() *cobra.Command {
	var outFile string

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Render the unit tree in DOT format",
		Example: `  # Render with Graphviz
  akin graph | dot -Tsvg > units.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			shell := a.newShell(true)
			dispatcher := engine.NewDefaultDispatcher(a.deps(shell), a.logger)
			_, root, err := a.buildUnits(shell, dispatcher)
			if err != nil {
				return err
			}

			dot := tasks.ToDOT(root)
			if outFile == "" {
				_, err := fmt.Fprint(a.stdout, dot)
				return err
			}
			if err := os.WriteFile(outFile, []byte(dot), 0o644); err != nil {
				return fmt.Errorf("failed to write graph: %w", err)
			}
			a.logger.Info().Str("file", outFile).Msg("Graph written")
			return nil
		},
	}

	cmd.Flags().StringVarP(&outFile, "out", "o", "", "write the graph to a file instead of stdout")

	return cmd
}
