package git

import (
	"context"
	"errors"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CurrentBranch returns the short name of the checked out branch.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		return "", WrapError(ErrResolveFailed, "failed to resolve HEAD")
	}
	if !head.Name().IsBranch() {
		return "", WrapError(ErrInvalidRef, "HEAD is detached")
	}
	return head.Name().Short(), nil
}

// CheckoutBranch checks out the local branch name. When only the remote
// tracking branch exists a local branch is created from it first.
func (r *Repo) CheckoutBranch(ctx context.Context, name string) error {
	if r.worktree == nil {
		return WrapError(ErrBareRepository, "cannot checkout")
	}
	if name == "" {
		return WrapError(ErrInvalidRef, "branch name cannot be empty")
	}

	local := plumbing.NewBranchReferenceName(name)
	if _, err := r.repo.Reference(local, true); err != nil {
		remoteRef, rerr := r.repo.Reference(plumbing.NewRemoteReferenceName(DefaultRemoteName, name), true)
		if rerr != nil {
			return WrapErrorf(ErrBranchMissing, "branch %q", name)
		}
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(local, remoteRef.Hash())); err != nil {
			return WrapErrorf(err, "failed to create local branch %q", name)
		}
	}

	if err := r.worktree.Checkout(&git.CheckoutOptions{Branch: local}); err != nil {
		return WrapErrorf(err, "failed to checkout %q", name)
	}
	return nil
}

// Head returns the commit hash HEAD points at.
func (r *Repo) Head(ctx context.Context) (string, error) {
	head, err := r.repo.Head()
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return "", WrapError(ErrResolveFailed, "repository has no commits")
		}
		return "", WrapError(err, "failed to resolve HEAD")
	}
	return head.Hash().String(), nil
}

// Resolve resolves a revision (branch, tag, hash, HEAD~1, ...) to a commit hash.
func (r *Repo) Resolve(ctx context.Context, rev string) (string, error) {
	if rev == "" {
		return "", WrapError(ErrInvalidRef, "revision cannot be empty")
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "revision %q", rev)
	}
	return hash.String(), nil
}

// HasCommit reports whether the object database contains the commit.
func (r *Repo) HasCommit(ctx context.Context, hash string) bool {
	if !plumbing.IsHash(hash) {
		return false
	}
	_, err := r.repo.CommitObject(plumbing.NewHash(hash))
	return err == nil
}
