package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
)

// GitInstaller installs targets by cloning a repository at a ref and
// optionally symlinking one file of the clone into a bin directory.
type GitInstaller struct {
	deps   Deps
	logger zerolog.Logger

	// dirs serializes parent directory creation against rollback pruning
	// so concurrent installs never remove a parent another one just made.
	dirs sync.Mutex
}

// NewGitInstaller creates a new git package installer.
func NewGitInstaller(deps Deps, logger zerolog.Logger) *GitInstaller {
	return &GitInstaller{
		deps:   deps,
		logger: logger.With().Str("component", "git-installer").Logger(),
	}
}

// Install clones, links and finalizes a git package. It is idempotent: an
// existing clone directory or symlink is left untouched. A failed clone
// removes the clone directory and any parent it created that is still empty.
func (g *GitInstaller) Install(ctx context.Context, t Target) error {
	if t.Options.GitPackage == nil {
		return NewInstallFailedError(
			fmt.Sprintf("target '%s' has no git package", t.Name), nil).
			WithTarget(t.Name).WithAction(t.Action)
	}

	spec := *t.Options.GitPackage
	cloneDir, binDir := gitPaths(t, spec, g.deps.Paths)
	log := g.logger.With().
		Str("target", t.Name).
		Str("repo", spec.RepoURL).
		Logger()

	log.Info().Msgf("Installing target '%s' via git from '%s'...", t.Name, spec.RepoURL)

	if spec.Ref == "" {
		return NewInstallFailedError(
			"a specific `ref` is required (use a tag or commit; a branch such as `master` works but is unsafe)", nil).
			WithTarget(t.Name).WithAction(t.Action)
	}
	if IsUnsafeRef(spec.Ref) {
		log.Warn().Str("ref", spec.Ref).
			Msgf("Using `%s` as the `ref` is unsafe! Use a specific ref, e.g., a tag or commit.", spec.Ref)
	}

	if err := g.clone(ctx, log, t, spec, cloneDir); err != nil {
		return err
	}

	if spec.BinSymlink != "" {
		if err := g.link(log, t, spec, cloneDir, binDir); err != nil {
			return err
		}
	}

	return runPostInstall(ctx, log, t)
}

// clone creates cloneDir and checks out the ref, unless the directory already exists.
func (g *GitInstaller) clone(ctx context.Context, log zerolog.Logger, t Target, spec GitPackageSpec, cloneDir string) error {
	msgPrefix := fmt.Sprintf("error installing target '%s' from '%s'", t.Name, spec.RepoURL)

	if g.deps.FS.Exists(cloneDir) {
		if g.deps.FS.IsDir(cloneDir) {
			log.Warn().Str("clone_dir", cloneDir).
				Msgf("%s. (Is it already installed?) Directory exists: %s", msgPrefix, cloneDir)
			return nil
		}
		return NewFilesystemCollisionError(
			fmt.Sprintf("%s. File exists: %s", msgPrefix, cloneDir), cloneDir).
			WithTarget(t.Name).WithAction(t.Action)
	}

	g.dirs.Lock()
	parents := g.missingParents(cloneDir)
	err := g.deps.FS.MkdirAll(cloneDir)
	g.dirs.Unlock()
	if err != nil {
		return NewInstallFailedError(
			fmt.Sprintf("%s. Cannot create %s", msgPrefix, cloneDir), err).
			WithTarget(t.Name).WithAction(t.Action)
	}

	log.Info().Msgf("Cloning %s => %s", spec.RepoURL, cloneDir)
	err = g.deps.Git.Clone(ctx, spec.RepoURL, cloneDir)
	if err == nil {
		err = g.deps.Git.Checkout(ctx, cloneDir, spec.Ref)
	}
	if err != nil {
		g.rollback(log, cloneDir, parents)
		return NewGitCloneError(
			fmt.Sprintf("error cloning '%s' for target '%s'", spec.RepoURL, t.Name), err).
			WithTarget(t.Name).WithAction(t.Action).
			WithDetail("ref", spec.Ref)
	}

	return nil
}

// link exposes cloneDir/binSymlink as binDir/binSymlink.
func (g *GitInstaller) link(log zerolog.Logger, t Target, spec GitPackageSpec, cloneDir, binDir string) error {
	src := filepath.Join(cloneDir, spec.BinSymlink)
	dst := filepath.Join(binDir, spec.BinSymlink)

	log.Info().Msgf("Symlinking %s --> %s...", src, dst)

	if !g.deps.FS.Exists(src) {
		return NewInstallFailedError(
			fmt.Sprintf("error installing target '%s'. Bin symlink source missing in target: %s", t.Name, src), nil).
			WithTarget(t.Name).WithAction(t.Action).
			WithDetail("path", src)
	}

	msgPrefix := fmt.Sprintf("error symlinking '%s' --> '%s'", src, dst)
	if g.deps.FS.IsSymlink(dst) {
		log.Warn().Msgf("%s: Symlink exists", msgPrefix)
		return nil
	}
	if g.deps.FS.Exists(dst) {
		return NewFilesystemCollisionError(msgPrefix+": File exists", dst).
			WithTarget(t.Name).WithAction(t.Action)
	}

	if err := g.deps.FS.MkdirAll(filepath.Dir(dst)); err != nil {
		return NewInstallFailedError(msgPrefix, err).WithTarget(t.Name).WithAction(t.Action)
	}
	if err := g.deps.FS.Symlink(src, dst); err != nil {
		return NewInstallFailedError(msgPrefix, err).WithTarget(t.Name).WithAction(t.Action)
	}
	return nil
}

// rollback removes a partial clone, then prunes the created parents from the
// innermost outwards, stopping at the first one that is not empty.
func (g *GitInstaller) rollback(log zerolog.Logger, cloneDir string, parents []string) {
	if err := g.deps.FS.RemoveAll(cloneDir); err != nil {
		log.Error().Err(err).Str("path", cloneDir).Msg("Failed to remove partial clone")
		return
	}

	g.dirs.Lock()
	defer g.dirs.Unlock()
	for _, dir := range parents {
		if err := g.deps.FS.Remove(dir); err != nil {
			log.Debug().Err(err).Str("path", dir).Msg("Keeping parent directory")
			return
		}
	}
}

// missingParents returns the ancestors of dir that do not exist yet,
// innermost first.
func (g *GitInstaller) missingParents(dir string) []string {
	var missing []string
	for p := filepath.Clean(dir); ; {
		parent := filepath.Dir(p)
		if parent == p || g.deps.FS.Exists(parent) {
			return missing
		}
		missing = append(missing, parent)
		p = parent
	}
}
