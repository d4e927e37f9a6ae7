package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// PushBranchOptions describes a branch update on a remote.
type PushBranchOptions struct {
	// Remote defaults to DefaultRemoteName.
	Remote string

	// Branch is the remote branch to update.
	Branch string

	// Commit is the commit the remote branch must point at afterwards.
	Commit string

	// Lease is the remote head the caller last observed. When set the push
	// replaces the remote head only if it still equals Lease, and the update
	// is allowed to be a non-fast-forward. When empty the push must be a
	// fast-forward or create the branch.
	Lease string
}

// Fetch downloads all branches and tags from remote. A fetch with nothing
// new is not an error.
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	method, err := r.authFor(remote)
	if err != nil {
		return err
	}

	err = r.repo.FetchContext(ctx, &git.FetchOptions{
		RemoteName: remote,
		RefSpecs: []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("+refs/heads/*:refs/remotes/%s/*", remote)),
		},
		Tags: git.AllTags,
		Auth: method,
	})
	if err = mapTransportError(err, "failed to fetch"); err != nil && !errors.Is(err, ErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// RemoteRefs lists the references advertised by remote, keyed by full name.
func (r *Repo) RemoteRefs(ctx context.Context, remote string) (map[string]string, error) {
	if remote == "" {
		remote = DefaultRemoteName
	}
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return nil, WrapErrorf(ErrResolveFailed, "remote %q not found", remote)
	}
	method, err := r.authFor(remote)
	if err != nil {
		return nil, err
	}

	refs, err := rem.ListContext(ctx, &git.ListOptions{Auth: method})
	if err != nil {
		if errors.Is(err, transport.ErrEmptyRemoteRepository) {
			return map[string]string{}, nil
		}
		return nil, mapTransportError(err, "failed to list remote references")
	}

	out := make(map[string]string, len(refs))
	for _, ref := range refs {
		if ref.Type() != plumbing.HashReference {
			continue
		}
		out[ref.Name().String()] = ref.Hash().String()
	}
	return out, nil
}

// RemoteHead returns the commit the remote branch points at, or "" when the
// branch does not exist on the remote.
func (r *Repo) RemoteHead(ctx context.Context, remote, branch string) (string, error) {
	refs, err := r.RemoteRefs(ctx, remote)
	if err != nil {
		return "", err
	}
	return refs[plumbing.NewBranchReferenceName(branch).String()], nil
}

// RemoteTag returns the commit hash the remote tag object or commit points
// at as advertised, or "" when the tag does not exist on the remote.
func (r *Repo) RemoteTag(ctx context.Context, remote, tag string) (string, error) {
	refs, err := r.RemoteRefs(ctx, remote)
	if err != nil {
		return "", err
	}
	return refs[plumbing.NewTagReferenceName(tag).String()], nil
}

// PushBranch updates a remote branch to opts.Commit.
//
// With a lease the update is a compare-and-swap: the current remote head is
// checked against opts.Lease before the push and again by go-git while
// negotiating, and a mismatch yields ErrStaleLease. Pushing a commit the
// remote branch already points at succeeds without transferring anything.
func (r *Repo) PushBranch(ctx context.Context, opts PushBranchOptions) error {
	if opts.Remote == "" {
		opts.Remote = DefaultRemoteName
	}
	if opts.Branch == "" || !plumbing.IsHash(opts.Commit) {
		return WrapError(ErrInvalidRef, "push needs a branch and a commit hash")
	}
	target := plumbing.NewHash(opts.Commit)
	if _, err := r.repo.CommitObject(target); err != nil {
		return WrapErrorf(ErrResolveFailed, "commit %s", opts.Commit)
	}

	current, err := r.RemoteHead(ctx, opts.Remote, opts.Branch)
	if err != nil {
		return err
	}
	if current == opts.Commit {
		return nil
	}
	if opts.Lease != "" && current != opts.Lease {
		return WrapErrorf(ErrStaleLease, "branch %q is at %q, expected %q", opts.Branch, current, opts.Lease)
	}

	// go-git pushes references, so the commit is published through a local
	// branch of the same name.
	ref := plumbing.NewBranchReferenceName(opts.Branch)
	if head, herr := r.repo.Head(); herr != nil || head.Name() != ref {
		if err := r.repo.Storer.SetReference(plumbing.NewHashReference(ref, target)); err != nil {
			return WrapErrorf(err, "failed to update local branch %q", opts.Branch)
		}
	} else if head.Hash() != target {
		return WrapErrorf(ErrInvalidRef, "checked out branch %q is not at %s", opts.Branch, opts.Commit)
	}

	method, err := r.authFor(opts.Remote)
	if err != nil {
		return err
	}

	pushOpts := &git.PushOptions{
		RemoteName: opts.Remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       method,
	}
	if opts.Lease != "" {
		pushOpts.Force = true
		pushOpts.RequireRemoteRefs = []gitconfig.RefSpec{
			gitconfig.RefSpec(fmt.Sprintf("%s:%s", opts.Lease, ref)),
		}
	}

	err = r.repo.PushContext(ctx, pushOpts)
	if err = mapTransportError(err, fmt.Sprintf("failed to push %q", opts.Branch)); err != nil &&
		!errors.Is(err, ErrAlreadyUpToDate) {
		return err
	}
	return nil
}

// PushTag publishes a local tag. It returns ErrTagExists when the remote
// already has a tag of that name pointing elsewhere.
func (r *Repo) PushTag(ctx context.Context, remote, name string) error {
	if remote == "" {
		remote = DefaultRemoteName
	}
	local, err := r.repo.Tag(name)
	if err != nil {
		return WrapErrorf(ErrTagMissing, "tag %q", name)
	}

	existing, err := r.RemoteTag(ctx, remote, name)
	if err != nil {
		return err
	}
	if existing != "" {
		if existing == local.Hash().String() {
			return nil
		}
		return WrapErrorf(ErrTagExists, "remote tag %q", name)
	}

	method, err := r.authFor(remote)
	if err != nil {
		return err
	}
	ref := plumbing.NewTagReferenceName(name)
	err = r.repo.PushContext(ctx, &git.PushOptions{
		RemoteName: remote,
		RefSpecs:   []gitconfig.RefSpec{gitconfig.RefSpec(fmt.Sprintf("%s:%s", ref, ref))},
		Auth:       method,
	})
	if err = mapTransportError(err, fmt.Sprintf("failed to push tag %q", name)); err != nil &&
		!errors.Is(err, ErrAlreadyUpToDate) {
		return err
	}
	return nil
}
