// Package gitclient implements engine.GitClient with go-git, so installs do
// not depend on a git binary being present.
package gitclient

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog"
)

// Client clones repositories and checks out refs.
type Client struct {
	progress io.Writer
	logger   zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithProgress streams clone progress to w.
func WithProgress(w io.Writer) Option {
	return func(c *Client) {
		c.progress = w
	}
}

// New creates a git client.
func New(logger zerolog.Logger, opts ...Option) *Client {
	c := &Client{
		logger: logger.With().Str("component", "git").Logger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clone clones repoURL into destDir, which must be empty or absent.
func (c *Client) Clone(ctx context.Context, repoURL, destDir string) error {
	c.logger.Debug().Str("repo", repoURL).Str("dest", destDir).Msg("Cloning repository")

	_, err := git.PlainCloneContext(ctx, destDir, false, &git.CloneOptions{
		URL:      repoURL,
		Progress: c.progress,
		Tags:     git.AllTags,
	})
	if err != nil {
		return fmt.Errorf("clone %s: %w", repoURL, err)
	}
	return nil
}

// Checkout detaches the worktree at dir onto ref. The ref may be a commit
// hash, a tag or a branch of the origin remote.
func (c *Client) Checkout(ctx context.Context, dir, ref string) error {
	repo, err := git.PlainOpen(dir)
	if err != nil {
		return fmt.Errorf("open repository %s: %w", dir, err)
	}

	hash, err := resolveRef(repo, ref)
	if err != nil {
		return err
	}

	wt, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("open worktree %s: %w", dir, err)
	}
	if err := wt.Checkout(&git.CheckoutOptions{Hash: hash, Force: true}); err != nil {
		return fmt.Errorf("checkout %s: %w", ref, err)
	}

	c.logger.Debug().Str("dir", dir).Str("ref", ref).Str("commit", hash.String()).Msg("Checked out ref")
	return nil
}

// resolveRef tries ref as given, then as a remote branch and a tag.
func resolveRef(repo *git.Repository, ref string) (plumbing.Hash, error) {
	candidates := []string{
		ref,
		"refs/remotes/origin/" + ref,
		"refs/tags/" + ref,
	}

	var lastErr error
	for _, candidate := range candidates {
		hash, err := repo.ResolveRevision(plumbing.Revision(candidate))
		if err == nil {
			return *hash, nil
		}
		lastErr = err
	}

	if errors.Is(lastErr, plumbing.ErrReferenceNotFound) {
		return plumbing.ZeroHash, fmt.Errorf("ref %q not found: %w", ref, lastErr)
	}
	return plumbing.ZeroHash, fmt.Errorf("resolve ref %q: %w", ref, lastErr)
}
