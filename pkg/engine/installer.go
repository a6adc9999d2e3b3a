package engine

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Installer installs one target.
type Installer interface {
	Install(ctx context.Context, t Target) error
}

// CommandInstaller installs targets through explicit commands or the
// platform package manager.
type CommandInstaller struct {
	deps   Deps
	logger zerolog.Logger
}

// NewCommandInstaller creates a new command installer.
func NewCommandInstaller(deps Deps, logger zerolog.Logger) *CommandInstaller {
	return &CommandInstaller{
		deps:   deps,
		logger: logger.With().Str("component", "command-installer").Logger(),
	}
}

// Install runs the target's install commands, then its post-install hook.
func (i *CommandInstaller) Install(ctx context.Context, t Target) error {
	log := i.logger.With().Str("target", t.Name).Logger()
	log.Info().Msgf("Installing target '%s'...", t.Name)

	cmds, err := i.commands(t)
	if err != nil {
		return err
	}

	if err := runCommands(ctx, i.deps.Shell, log, t, cmds); err != nil {
		return err
	}

	return runPostInstall(ctx, log, t)
}

// commands selects explicit commands first, then the package manager.
func (i *CommandInstaller) commands(t Target) ([]string, error) {
	if t.Options.ActionCommands != nil {
		return append([]string(nil), t.Options.ActionCommands...), nil
	}

	manager, ok := detectPackageManager(i.deps.Platform)
	if !ok {
		return nil, NewUnrecognizedPlatformError(
			fmt.Sprintf("cannot determine install command(s) for target '%s'", t.Name)).
			WithTarget(t.Name).WithAction(t.Action)
	}
	return []string{manager.installCommand(t.Name, t.Options.GUI())}, nil
}

// runPostInstall invokes the target's post-install hook, if any.
func runPostInstall(ctx context.Context, log zerolog.Logger, t Target) error {
	if t.Options.PostInstall == nil {
		return nil
	}

	log.Info().Msgf("Running post-install steps for %s...", t.Name)
	if err := t.Options.PostInstall(ctx, t); err != nil {
		return NewInstallFailedError(
			fmt.Sprintf("post-install for target '%s' failed", t.Name), err).
			WithTarget(t.Name).WithAction(t.Action)
	}
	return nil
}
