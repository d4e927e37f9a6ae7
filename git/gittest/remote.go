// Package gittest provides in-process git remotes for tests. Remotes are
// served by go-git's server implementation over a private URL scheme, so
// clone, fetch and push work without a git binary or network.
package gittest

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/plumbing/transport/client"
	"github.com/go-git/go-git/v5/plumbing/transport/server"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/require"

	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/git"
)

// Scheme is the URL scheme served by the in-process transport.
const Scheme = "gittest"

// Author is the signature used for seeded commits.
var Author = git.Signature{Name: "Test User", Email: "test@example.com"}

type loader struct {
	mu    sync.Mutex
	repos map[string]storer.Storer
}

func (l *loader) Load(ep *transport.Endpoint) (storer.Storer, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	s, ok := l.repos[ep.Path]
	if !ok {
		return nil, transport.ErrRepositoryNotFound
	}
	return s, nil
}

var (
	registry = &loader{repos: map[string]storer.Storer{}}
	install  sync.Once
	counter  atomic.Int64
)

// Remote is a bare in-memory repository reachable at URL.
type Remote struct {
	URL     string
	storage *memory.Storage
	work    *git.Repo
	workFS  *fsb.FS
}

// NewRemote creates an empty remote.
func NewRemote(t testing.TB) *Remote {
	t.Helper()
	install.Do(func() {
		client.InstallProtocol(Scheme, server.NewClient(registry))
	})

	st := memory.NewStorage()
	_, err := gogit.Init(st, nil)
	require.NoError(t, err, "failed to init remote storage")

	path := fmt.Sprintf("/repo-%d", counter.Add(1))
	registry.mu.Lock()
	registry.repos[path] = st
	registry.mu.Unlock()
	t.Cleanup(func() {
		registry.mu.Lock()
		delete(registry.repos, path)
		registry.mu.Unlock()
	})

	ctx := context.Background()
	workFS := fsb.NewInMemoryFS()
	work, err := git.Init(ctx, &git.Options{FS: workFS})
	require.NoError(t, err, "failed to init seeding repository")

	r := &Remote{URL: Scheme + "://local" + path, storage: st, work: work, workFS: workFS}
	require.NoError(t, work.AddRemote(ctx, git.DefaultRemoteName, r.URL))
	return r
}

// Commit writes files on top of the seeding repository's history, commits
// them and updates branch on the remote, overwriting whatever it pointed
// at. It returns the new commit hash.
func (r *Remote) Commit(t testing.TB, branch, message string, files map[string]string) string {
	t.Helper()
	ctx := context.Background()

	for name, content := range files {
		require.NoError(t, r.workFS.WriteFile(name, []byte(content), 0o644))
		require.NoError(t, r.work.Add(ctx, name))
	}
	hash, err := r.work.Commit(ctx, message, Author)
	require.NoError(t, err, "failed to commit %q", message)

	lease, err := r.work.RemoteHead(ctx, git.DefaultRemoteName, branch)
	require.NoError(t, err)
	require.NoError(t, r.work.PushBranch(ctx, git.PushBranchOptions{
		Branch: branch,
		Commit: hash,
		Lease:  lease,
	}), "failed to push seed commit to %q", branch)
	return hash
}

// Tag creates an annotated tag at commit directly in the remote.
func (r *Remote) Tag(t testing.TB, name, commit string) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, r.work.CreateTag(ctx, name, commit, name, Author))
	require.NoError(t, r.work.PushTag(ctx, git.DefaultRemoteName, name))
}

// Head returns the commit branch points at, or "" if it does not exist.
func (r *Remote) Head(t testing.TB, branch string) string {
	t.Helper()
	ref, err := r.storage.Reference(plumbing.NewBranchReferenceName(branch))
	if err != nil {
		return ""
	}
	return ref.Hash().String()
}

// HasTag reports whether the remote has tag name.
func (r *Remote) HasTag(t testing.TB, name string) bool {
	t.Helper()
	_, err := r.storage.Reference(plumbing.NewTagReferenceName(name))
	return err == nil
}

// ReadFile returns path as committed at the head of branch.
func (r *Remote) ReadFile(t testing.TB, branch, path string) string {
	t.Helper()
	repo, err := gogit.Open(r.storage, nil)
	require.NoError(t, err)
	ref, err := repo.Reference(plumbing.NewBranchReferenceName(branch), true)
	require.NoError(t, err, "branch %q missing on remote", branch)
	commit, err := repo.CommitObject(ref.Hash())
	require.NoError(t, err)
	file, err := commit.File(path)
	require.NoError(t, err, "%s missing on %q", path, branch)
	content, err := file.Contents()
	require.NoError(t, err)
	return content
}

// SetBranch points branch on the remote at commit, bypassing any checks.
func (r *Remote) SetBranch(t testing.TB, branch, commit string) {
	t.Helper()
	ref := plumbing.NewHashReference(plumbing.NewBranchReferenceName(branch), plumbing.NewHash(commit))
	require.NoError(t, r.storage.SetReference(ref))
}
