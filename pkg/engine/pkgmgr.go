package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// packageManager is the native package manager of a platform variant.
type packageManager string

const (
	managerApt  packageManager = "apt"
	managerBrew packageManager = "brew"
)

// detectPackageManager picks the package manager for the platform.
func detectPackageManager(p Platform) (packageManager, bool) {
	switch {
	case p.IsLinux():
		return managerApt, true
	case p.IsMac():
		return managerBrew, true
	default:
		return "", false
	}
}

// queryCommand returns the command whose zero exit code means "installed".
func (m packageManager) queryCommand(name string, gui bool) string {
	switch m {
	case managerApt:
		return fmt.Sprintf("dpkg -s '%s'", name)
	case managerBrew:
		if gui {
			return fmt.Sprintf("brew list --cask '%s'", name)
		}
		return fmt.Sprintf("brew list --versions '%s'", name)
	default:
		return ""
	}
}

// installCommand returns the command installing name. Names are single
// quoted; ResolveTarget rejects names containing a quote.
func (m packageManager) installCommand(name string, gui bool) string {
	switch m {
	case managerApt:
		return fmt.Sprintf("sudo apt install -y '%s'", name)
	case managerBrew:
		if gui {
			return fmt.Sprintf("brew install --cask '%s'", name)
		}
		return fmt.Sprintf("brew install '%s'", name)
	default:
		return ""
	}
}

// runCommands executes commands in order. The first non-zero exit aborts the
// rest and reports the failing command along with the full set.
func runCommands(ctx context.Context, shell Shell, logger zerolog.Logger, t Target, commands []string) error {
	for _, cmd := range commands {
		logger.Info().Str("command", cmd).Msgf("Executing command: %s", cmd)

		res, err := shell.Exec(ctx, cmd)
		if err != nil {
			return NewInstallCommandFailedError(cmd, commands, err).
				WithTarget(t.Name).WithAction(t.Action)
		}
		if res.ExitCode != 0 {
			return NewInstallCommandFailedError(cmd, commands,
				fmt.Errorf("exit code %d", res.ExitCode)).
				WithTarget(t.Name).WithAction(t.Action)
		}
	}
	return nil
}

// quoteCommands renders commands for log messages.
func quoteCommands(commands []string) string {
	quoted := make([]string, len(commands))
	for i, c := range commands {
		quoted[i] = fmt.Sprintf("%q", c)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}
