// Package gitops records project changes as git commits so the transaction
// history can be audited and rolled back with ordinary git tools.
package gitops

import (
	"errors"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Identity is the name and email commits are made under.
type Identity struct {
	Name  string
	Email string
}

// Init initializes a new git repository at dir.
func Init(dir string) error {
	if _, err := git.PlainInit(dir, false); err != nil {
		return fmt.Errorf("git init: %w", err)
	}
	return nil
}

// IsRepo reports whether dir is the root of a git repository.
func IsRepo(dir string) bool {
	_, err := git.PlainOpen(dir)
	return err == nil
}

// HasChanges reports whether the working tree differs from HEAD, including
// untracked files not covered by .gitignore.
func HasChanges(dir string) (bool, error) {
	wt, err := worktree(dir)
	if err != nil {
		return false, err
	}
	st, err := wt.Status()
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return !st.IsClean(), nil
}

// CommitAll stages every change (additions, modifications and deletions) and
// creates a commit authored and committed by who. Returns the short commit hash.
func CommitAll(dir, message string, who Identity) (string, error) {
	wt, err := worktree(dir)
	if err != nil {
		return "", err
	}

	st, err := wt.Status()
	if err != nil {
		return "", fmt.Errorf("git status: %w", err)
	}
	for path, fs := range st {
		if fs.Worktree == git.Unmodified {
			continue
		}
		if _, err := wt.Add(path); err != nil {
			return "", fmt.Errorf("git add %s: %w", path, err)
		}
	}

	sig := &object.Signature{Name: who.Name, Email: who.Email, When: time.Now()}
	hash, err := wt.Commit(message, &git.CommitOptions{Author: sig, Committer: sig})
	if err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return hash.String()[:7], nil
}

// CommitIfChanged commits all changes when there are any. It returns an empty
// hash when the tree was clean.
func CommitIfChanged(dir, message string, who Identity) (string, error) {
	changed, err := HasChanges(dir)
	if err != nil || !changed {
		return "", err
	}
	return CommitAll(dir, message, who)
}

func worktree(dir string) (*git.Worktree, error) {
	repo, err := git.PlainOpen(dir)
	if errors.Is(err, git.ErrRepositoryNotExists) {
		return nil, fmt.Errorf("%s is not a git repository", dir)
	}
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		return nil, fmt.Errorf("opening worktree: %w", err)
	}
	return wt, nil
}
