package git

import (
	"context"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Add stages paths relative to the worktree root.
func (r *Repo) Add(ctx context.Context, paths ...string) error {
	if r.worktree == nil {
		return WrapError(ErrBareRepository, "cannot add files")
	}
	for _, path := range paths {
		if path == "" {
			continue
		}
		if _, err := r.worktree.Add(path); err != nil {
			return WrapErrorf(err, "failed to add path %q", path)
		}
	}
	return nil
}

// Commit records the staged changes and returns the new commit hash.
// It returns ErrEmptyCommit when nothing is staged.
func (r *Repo) Commit(ctx context.Context, msg string, who Signature) (string, error) {
	if r.worktree == nil {
		return "", WrapError(ErrBareRepository, "cannot commit")
	}
	if msg == "" {
		return "", WrapError(ErrInvalidRef, "commit message cannot be empty")
	}

	status, err := r.worktree.Status()
	if err != nil {
		return "", WrapError(err, "failed to read worktree status")
	}
	staged := false
	for _, s := range status {
		if s.Staging != git.Unmodified && s.Staging != git.Untracked {
			staged = true
			break
		}
	}
	if !staged {
		return "", ErrEmptyCommit
	}

	sig := toObjectSignature(who)
	hash, err := r.worktree.Commit(msg, &git.CommitOptions{
		Author:    sig,
		Committer: sig,
	})
	if err != nil {
		return "", WrapError(err, "failed to commit")
	}
	return hash.String(), nil
}

// IsClean reports whether the worktree has no modifications.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	if r.worktree == nil {
		return false, WrapError(ErrBareRepository, "cannot read status")
	}
	status, err := r.worktree.Status()
	if err != nil {
		return false, WrapError(err, "failed to read worktree status")
	}
	return status.IsClean(), nil
}

func toObjectSignature(who Signature) *object.Signature {
	when := who.When
	if when.IsZero() {
		when = time.Now()
	}
	return &object.Signature{Name: who.Name, Email: who.Email, When: when}
}
