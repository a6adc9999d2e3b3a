package commands

import (
	"github.com/spf13/cobra"
)

func newRunCommand() *cobra.Command {
	var noJournal bool

	cmd := &cobra.Command{
		Use:   "run [unit...]",
		Short: "Run phases and targets of the catalog",
		Long: `Run units of the catalog. A unit is the root phase "default", a phase
such as "base" or "tools:git-tools", or a single target such as "base:git".

Units run one after another and the run stops at the first failure. Inside a
parallel phase the first failing target cancels its siblings.

Targets already installed are left alone, so a failed run can simply be run
again.`,
		Example: `  # Run the whole catalog
  akin run

  # Run one phase and one target
  akin run base tools:git-tools:fzf

  # Use another catalog without recording history
  akin run --catalog ./laptop.cue --no-journal`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx := cmd.Context()
			if noJournal {
				return a.execute(ctx, unitNames(args), nil)
			}

			journal, err := a.openJournal(ctx)
			if err != nil {
				return err
			}
			if journal != nil {
				defer journal.Close()
			}
			return a.execute(ctx, unitNames(args), journal)
		},
	}

	cmd.Flags().BoolVar(&noJournal, "no-journal", false, "do not record the run in the journal")

	return cmd
}
