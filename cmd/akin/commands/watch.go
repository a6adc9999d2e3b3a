package commands

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/akinizer/akinizer/pkg/config"
)

func newWatchCommand() *cobra.Command {
	var debounce time.Duration

	cmd := &cobra.Command{
		Use:   "watch [unit...]",
		Short: "Run units again whenever the catalog changes",
		Long: `Run the units once, then again every time the catalog or a policy file
is saved. A failed run is logged and watching continues. Stop with Ctrl-C.`,
		Example: `  # Re-run the tools phase while editing the catalog
  akin watch tools`,
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
			if journal != nil {
				defer journal.Close()
			}

			names := unitNames(args)
			rerun := func(ctx context.Context) {
				if err := a.execute(ctx, names, journal); err != nil {
					a.logger.Error().Err(err).Strs("units", names).Msg("Run failed, waiting for changes")
				}
			}

			rerun(ctx)

			files := a.watchedFiles()
			if err := config.NewWatcher(a.logger, debounce).Watch(ctx, files, rerun); err != nil {
				return err
			}
			a.logger.Info().Strs("files", files).Msg("Watching for changes")

			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().DurationVar(&debounce, "debounce", config.DefaultDebounce, "quiet period before re-running")

	return cmd
}
