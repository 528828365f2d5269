// Package vcs reads the current revision of the repository a thread's root
// path belongs to.
package vcs

import (
	"errors"
	"fmt"

	git "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

var (
	// ErrNotRepository is returned when dir is not inside a git work tree.
	ErrNotRepository = errors.New("vcs: not a git repository")
	// ErrNoCommits is returned for a repository whose HEAD has no commit.
	ErrNoCommits = errors.New("vcs: repository has no commits")
)

// Revision returns the commit hash HEAD points at for the repository that
// contains dir. Parent directories are searched for .git.
func Revision(dir string) (string, error) {
	repo, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true})
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return "", ErrNotRepository
	}
	if err != nil {
		return "", fmt.Errorf("vcs: open %s: %w", dir, err)
	}
	head, err := repo.Head()
	if errors.Is(err, plumbing.ErrReferenceNotFound) {
		return "", ErrNoCommits
	}
	if err != nil {
		return "", fmt.Errorf("vcs: read head: %w", err)
	}
	return head.Hash().String(), nil
}
