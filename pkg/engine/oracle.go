package engine

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Deps bundles the boundary collaborators shared by the Oracle and the installers.
type Deps struct {
	Shell    Shell
	Git      GitClient
	FS       FileSystem
	Prober   CommandProber
	Platform Platform
	Paths    Paths
}

// Oracle answers whether a target is already installed. Every answer is
// derived from the current filesystem and command state; nothing is cached.
type Oracle struct {
	deps   Deps
	logger zerolog.Logger
}

// NewOracle creates a new installation-state oracle.
func NewOracle(deps Deps, logger zerolog.Logger) *Oracle {
	return &Oracle{
		deps:   deps,
		logger: logger.With().Str("component", "oracle").Logger(),
	}
}

// IsInstalled reports whether the target is satisfied, using the first
// applicable strategy: git package, custom predicate, command existence,
// then the native package manager.
func (o *Oracle) IsInstalled(ctx context.Context, t Target) (bool, error) {
	opts := t.Options
	log := o.logger.With().Str("target", t.Name).Logger()

	if opts.GitPackage != nil {
		log.Info().Msgf("Verifying git target '%s'...", t.Name)
		return o.isGitPackageInstalled(t, *opts.GitPackage), nil
	}

	if opts.TestFn != nil {
		log.Info().Msgf("Using custom test to verify '%s' is installed...", t.Name)
		ok, err := opts.TestFn(t)
		if err != nil {
			return false, fmt.Errorf("custom test for '%s': %w", t.Name, err)
		}
		if !ok {
			log.Info().Msgf("Custom test for '%s' failed. Assuming not installed...", t.Name)
		}
		return ok, nil
	}

	if opts.ActionCommands != nil || opts.ShouldVerifyCommand() {
		log.Info().Msgf("Verifying command '%s' exists...", t.CommandName())
		return o.deps.Prober.Exists(t.CommandName()), nil
	}

	manager, ok := detectPackageManager(o.deps.Platform)
	if !ok {
		return false, NewUnrecognizedPlatformError(
			fmt.Sprintf("verification for '%s' failed: unrecognized platform", t.Name)).
			WithTarget(t.Name).WithAction(t.Action)
	}

	cmd := manager.queryCommand(t.Name, opts.GUI())
	log.Info().Str("command", cmd).Msgf("Verifying target '%s' exists with `%s`...", t.Name, cmd)

	res, err := o.deps.Shell.Exec(ctx, cmd)
	if err != nil {
		return false, fmt.Errorf("query package '%s': %w", t.Name, err)
	}
	return res.ExitCode == 0, nil
}

// isGitPackageInstalled requires the clone directory and, when a binary
// symlink is configured, a resolving symlink in the bin directory. Partial
// state counts as not installed.
func (o *Oracle) isGitPackageInstalled(t Target, spec GitPackageSpec) bool {
	cloneDir, binDir := gitPaths(t, spec, o.deps.Paths)

	if !o.deps.FS.IsDir(cloneDir) {
		return false
	}
	if spec.BinSymlink == "" {
		return true
	}

	src := filepath.Join(cloneDir, spec.BinSymlink)
	dst := filepath.Join(binDir, spec.BinSymlink)
	return o.deps.FS.Exists(src) && o.deps.FS.IsSymlink(dst) && o.deps.FS.Exists(dst)
}

// gitPaths resolves the clone and bin directories of a git package.
func gitPaths(t Target, spec GitPackageSpec, paths Paths) (cloneDir, binDir string) {
	cloneDir = spec.CloneDir
	if cloneDir == "" {
		cloneDir = filepath.Join(paths.GitCloneDir, t.Name)
	}
	binDir = spec.BinDir
	if binDir == "" {
		binDir = paths.BinInstallDir
	}
	return cloneDir, binDir
}
