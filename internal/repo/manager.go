// Package repo maintains one on-disk working tree per project and keeps it
// pinned to the tip of the project's branch on origin.
package repo

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/go-git/go-git/v5"
	gitcfg "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/rs/zerolog/log"
)

// ErrBranchNotFound indicates the requested branch does not exist on origin
var ErrBranchNotFound = errors.New("branch not found on origin")

// allBranchesRefSpec makes every remote branch discoverable even when the
// initial clone was shallow and single-branch.
const allBranchesRefSpec = gitcfg.RefSpec("+refs/heads/*:refs/remotes/origin/*")

// unshallowDepth is the git wire-protocol depth meaning "everything"; fetching
// with it converts a shallow clone into a complete one.
const unshallowDepth = math.MaxInt32

// Manager owns the per-project clone directories under a single root
type Manager struct {
	rootDir string
}

// NewManager creates a repository manager rooted at rootDir
func NewManager(rootDir string) (*Manager, error) {
	if err := os.MkdirAll(rootDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create projects root: %w", err)
	}
	return &Manager{rootDir: rootDir}, nil
}

// Dir returns the working directory a slug maps to
func (m *Manager) Dir(slug string) string {
	return filepath.Join(m.rootDir, slug)
}

// EnsureRepo returns a working directory whose tree matches the remote tip of
// branch. The first call clones; later calls fetch, switch branches when
// needed, and hard-reset, discarding uncommitted local edits. The call is safe
// to repeat.
func (m *Manager) EnsureRepo(ctx context.Context, repoURL, slug, branch string) (string, error) {
	dir := m.Dir(slug)

	if _, err := os.Stat(filepath.Join(dir, ".git")); err != nil {
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("failed to stat git directory: %w", err)
		}
		return m.clone(ctx, repoURL, dir, slug, branch)
	}

	return m.update(ctx, dir, slug, branch)
}

func (m *Manager) clone(ctx context.Context, repoURL, dir, slug, branch string) (string, error) {
	log.Debug().Str("slug", slug).Str("branch", branch).Str("url", repoURL).Msg("cloning repository")

	_, err := git.PlainCloneContext(ctx, dir, false, &git.CloneOptions{
		URL:           repoURL,
		ReferenceName: plumbing.NewBranchReferenceName(branch),
	})
	if err != nil {
		// A failed clone leaves a partial directory behind; remove it so the
		// next attempt starts from scratch instead of a broken update path.
		os.RemoveAll(dir)
		if errors.Is(err, plumbing.ErrReferenceNotFound) || errors.Is(err, git.NoMatchingRefSpecError{}) {
			return "", fmt.Errorf("clone %s: %w", branch, ErrBranchNotFound)
		}
		return "", fmt.Errorf("failed to clone %s: %w", repoURL, err)
	}

	log.Info().Str("slug", slug).Str("branch", branch).Msg("repository cloned")
	return dir, nil
}

func (m *Manager) update(ctx context.Context, dir, slug, branch string) (string, error) {
	repository, err := git.PlainOpen(dir)
	if err != nil {
		return "", fmt.Errorf("failed to open repository: %w", err)
	}

	// Widen the fetch refspec so branches beyond the originally cloned one
	// become visible.
	cfg, err := repository.Config()
	if err != nil {
		return "", fmt.Errorf("failed to read repository config: %w", err)
	}
	if origin, ok := cfg.Remotes["origin"]; ok {
		origin.Fetch = []gitcfg.RefSpec{allBranchesRefSpec}
		if err := repository.SetConfig(cfg); err != nil {
			return "", fmt.Errorf("failed to update remote refspec: %w", err)
		}
	}

	fetchOpts := &git.FetchOptions{
		RemoteName: "origin",
		RefSpecs:   []gitcfg.RefSpec{allBranchesRefSpec},
		Prune:      true,
		Tags:       git.NoTags,
		Force:      true,
	}
	if m.isShallow(dir) {
		fetchOpts.Depth = unshallowDepth
	}

	if err := repository.FetchContext(ctx, fetchOpts); err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return "", fmt.Errorf("failed to fetch origin: %w", err)
	}

	remoteRef, err := repository.Reference(plumbing.NewRemoteReferenceName("origin", branch), true)
	if err != nil {
		return "", fmt.Errorf("resolve origin/%s: %w", branch, ErrBranchNotFound)
	}

	wt, err := repository.Worktree()
	if err != nil {
		return "", fmt.Errorf("failed to get worktree: %w", err)
	}

	localRef := plumbing.NewBranchReferenceName(branch)
	err = wt.Checkout(&git.CheckoutOptions{Branch: localRef, Force: true})
	if err != nil {
		// Branch unknown locally: create a tracking branch from origin/branch
		err = wt.Checkout(&git.CheckoutOptions{
			Branch: localRef,
			Hash:   remoteRef.Hash(),
			Create: true,
			Force:  true,
		})
		if err != nil {
			return "", fmt.Errorf("failed to checkout branch %s: %w", branch, err)
		}
	}

	if err := wt.Reset(&git.ResetOptions{Commit: remoteRef.Hash(), Mode: git.HardReset}); err != nil {
		return "", fmt.Errorf("failed to reset to origin/%s: %w", branch, err)
	}

	log.Info().Str("slug", slug).Str("branch", branch).
		Str("commit", remoteRef.Hash().String()[:8]).Msg("repository updated")
	return dir, nil
}

// isShallow reports whether the clone carries a shallow marker
func (m *Manager) isShallow(dir string) bool {
	_, err := os.Stat(filepath.Join(dir, ".git", "shallow"))
	return err == nil
}
