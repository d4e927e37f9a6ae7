package git_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/git/gittest"
)

// cloneBranch clones remote into a fresh in-memory filesystem.
func cloneBranch(t *testing.T, remote *gittest.Remote, branch string) (*git.Repo, *fsb.FS) {
	t.Helper()
	memFS := fsb.NewInMemoryFS()
	repo, err := git.Clone(context.Background(), remote.URL, &git.Options{FS: memFS, Branch: branch})
	require.NoError(t, err, "failed to clone %s", remote.URL)
	return repo, memFS
}

func TestOptionsValidate(t *testing.T) {
	_, err := git.Init(context.Background(), &git.Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, git.ErrInvalidRef)

	_, err = git.Init(context.Background(), &git.Options{FS: fsb.NewInMemoryFS(), StorerCacheSize: -1})
	assert.ErrorIs(t, err, git.ErrInvalidRef)
}

func TestOpenMissingRepository(t *testing.T) {
	_, err := git.Open(context.Background(), &git.Options{FS: fsb.NewInMemoryFS()})
	assert.ErrorIs(t, err, git.ErrRepositoryMissing)
}

func TestCloneChecksOutBranch(t *testing.T) {
	remote := gittest.NewRemote(t)
	remote.Commit(t, "main", "initial", map[string]string{"README.md": "main\n"})
	dev := remote.Commit(t, "dev", "feat: dev work", map[string]string{"VERSION": "1.0.0-alpha0\n"})

	repo, memFS := cloneBranch(t, remote, "dev")
	ctx := context.Background()

	branch, err := repo.CurrentBranch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "dev", branch)

	head, err := repo.Head(ctx)
	require.NoError(t, err)
	assert.Equal(t, dev, head)

	data, err := memFS.ReadFile("VERSION")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha0\n", string(data))
}

func TestCommitRequiresStagedChanges(t *testing.T) {
	remote := gittest.NewRemote(t)
	remote.Commit(t, "dev", "initial", map[string]string{"VERSION": "1.0.0\n"})
	repo, _ := cloneBranch(t, remote, "dev")

	_, err := repo.Commit(context.Background(), "nothing", gittest.Author)
	assert.ErrorIs(t, err, git.ErrEmptyCommit)
}

func TestCommitsBetween(t *testing.T) {
	remote := gittest.NewRemote(t)
	first := remote.Commit(t, "dev", "chore: initial", map[string]string{"a.txt": "1"})
	remote.Tag(t, "V1.0.0", first)
	second := remote.Commit(t, "dev", "feat: add b", map[string]string{"b.txt": "2"})
	third := remote.Commit(t, "dev", "fix: repair b", map[string]string{"b.txt": "3"})

	repo, _ := cloneBranch(t, remote, "dev")
	ctx := context.Background()

	commits, err := repo.CommitsBetween(ctx, "V1.0.0", third)
	require.NoError(t, err)
	require.Len(t, commits, 2)
	assert.Equal(t, third, commits[0].Hash)
	assert.Equal(t, "fix: repair b", commits[0].Subject())
	assert.Equal(t, second, commits[1].Hash)

	all, err := repo.CommitsBetween(ctx, "", third)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	_, err = repo.CommitsBetween(ctx, "V9.9.9", third)
	assert.ErrorIs(t, err, git.ErrResolveFailed)
}

func TestReadFileAt(t *testing.T) {
	remote := gittest.NewRemote(t)
	first := remote.Commit(t, "dev", "one", map[string]string{"VERSION": "1.0.0-alpha1\n"})
	remote.Commit(t, "dev", "two", map[string]string{"VERSION": "1.0.0-alpha2\n"})

	repo, _ := cloneBranch(t, remote, "dev")
	ctx := context.Background()

	data, err := repo.ReadFileAt(ctx, first, "VERSION")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha1\n", string(data))

	data, err = repo.ReadFileAt(ctx, "HEAD", "VERSION")
	require.NoError(t, err)
	assert.Equal(t, "1.0.0-alpha2\n", string(data))

	_, err = repo.ReadFileAt(ctx, "HEAD", "missing.txt")
	assert.ErrorIs(t, err, git.ErrFileMissing)
}

func TestPushBranchLease(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*gittest.Remote, *git.Repo, *fsb.FS, string) {
		remote := gittest.NewRemote(t)
		base := remote.Commit(t, "dev", "initial", map[string]string{"VERSION": "1.0.0-alpha0\n"})
		remote.Commit(t, "master", "previous release", map[string]string{"VERSION": "0.9.0\n"})

		repo, memFS := cloneBranch(t, remote, "dev")
		require.NoError(t, memFS.WriteFile("VERSION", []byte("1.0.0\n"), 0o644))
		require.NoError(t, repo.Add(ctx, "VERSION"))
		stable, err := repo.Commit(ctx, "Release 1.0.0", gittest.Author)
		require.NoError(t, err)
		require.NotEqual(t, base, stable)
		return remote, repo, memFS, stable
	}

	t.Run("lease matches", func(t *testing.T) {
		remote, repo, _, stable := setup(t)
		lease := remote.Head(t, "master")

		err := repo.PushBranch(ctx, git.PushBranchOptions{Branch: "master", Commit: stable, Lease: lease})
		require.NoError(t, err)
		assert.Equal(t, stable, remote.Head(t, "master"))
		assert.Equal(t, "1.0.0\n", remote.ReadFile(t, "master", "VERSION"))
	})

	t.Run("stale lease is rejected", func(t *testing.T) {
		remote, repo, _, stable := setup(t)
		lease := remote.Head(t, "master")
		moved := remote.Commit(t, "master", "concurrent hotfix", map[string]string{"HOTFIX": "x"})

		err := repo.PushBranch(ctx, git.PushBranchOptions{Branch: "master", Commit: stable, Lease: lease})
		require.Error(t, err)
		assert.ErrorIs(t, err, git.ErrStaleLease)
		assert.Equal(t, moved, remote.Head(t, "master"), "remote must keep the concurrent update")
	})

	t.Run("repeat push is a no-op", func(t *testing.T) {
		remote, repo, _, stable := setup(t)
		lease := remote.Head(t, "master")

		require.NoError(t, repo.PushBranch(ctx, git.PushBranchOptions{Branch: "master", Commit: stable, Lease: lease}))
		require.NoError(t, repo.PushBranch(ctx, git.PushBranchOptions{Branch: "master", Commit: stable, Lease: lease}))
		assert.Equal(t, stable, remote.Head(t, "master"))
	})

	t.Run("creates missing branch without lease", func(t *testing.T) {
		remote, repo, _, stable := setup(t)

		require.NoError(t, repo.PushBranch(ctx, git.PushBranchOptions{Branch: "release", Commit: stable}))
		assert.Equal(t, stable, remote.Head(t, "release"))
	})

	t.Run("fast-forward of checked out branch", func(t *testing.T) {
		remote, repo, _, stable := setup(t)

		require.NoError(t, repo.PushBranch(ctx, git.PushBranchOptions{Branch: "dev", Commit: stable}))
		assert.Equal(t, stable, remote.Head(t, "dev"))
	})

	t.Run("non fast-forward without lease", func(t *testing.T) {
		remote, repo, _, stable := setup(t)
		remote.Commit(t, "dev", "someone else", map[string]string{"OTHER": "y"})

		err := repo.PushBranch(ctx, git.PushBranchOptions{Branch: "dev", Commit: stable})
		assert.ErrorIs(t, err, git.ErrNotFastForward)
	})

	t.Run("invalid arguments", func(t *testing.T) {
		_, repo, _, _ := setup(t)
		err := repo.PushBranch(ctx, git.PushBranchOptions{Branch: "master", Commit: "not-a-hash"})
		assert.ErrorIs(t, err, git.ErrInvalidRef)
	})
}

func TestTags(t *testing.T) {
	ctx := context.Background()
	remote := gittest.NewRemote(t)
	first := remote.Commit(t, "dev", "initial", map[string]string{"VERSION": "1.0.0\n"})
	remote.Tag(t, "V1.0.0", first)
	second := remote.Commit(t, "dev", "next", map[string]string{"VERSION": "1.1.0-alpha0\n"})

	repo, _ := cloneBranch(t, remote, "dev")

	tags, err := repo.Tags(ctx)
	require.NoError(t, err)
	require.Len(t, tags, 1)
	assert.Equal(t, git.Tag{Name: "V1.0.0", Commit: first}, tags[0])

	err = repo.CreateTag(ctx, "V1.0.0", second, "dup", gittest.Author)
	assert.ErrorIs(t, err, git.ErrTagExists)

	require.NoError(t, repo.CreateTag(ctx, "V1.1.0", second, "notes", gittest.Author))
	exists, err := repo.TagExists(ctx, "V1.1.0")
	require.NoError(t, err)
	assert.True(t, exists)

	commit, err := repo.TagCommit(ctx, "V1.1.0")
	require.NoError(t, err)
	assert.Equal(t, second, commit)

	require.NoError(t, repo.PushTag(ctx, "", "V1.1.0"))
	assert.True(t, remote.HasTag(t, "V1.1.0"))

	// Pushing the same tag again is a no-op.
	require.NoError(t, repo.PushTag(ctx, "", "V1.1.0"))
}

func TestPushTagConflict(t *testing.T) {
	ctx := context.Background()
	remote := gittest.NewRemote(t)
	first := remote.Commit(t, "dev", "initial", map[string]string{"VERSION": "1.0.0\n"})

	repo, memFS := cloneBranch(t, remote, "dev")
	remote.Tag(t, "V1.0.0", first)

	require.NoError(t, memFS.WriteFile("VERSION", []byte("1.0.1\n"), 0o644))
	require.NoError(t, repo.Add(ctx, "VERSION"))
	local, err := repo.Commit(ctx, "local", gittest.Author)
	require.NoError(t, err)
	require.NoError(t, repo.CreateTag(ctx, "V1.0.0", local, "mine", gittest.Author))

	err = repo.PushTag(ctx, "", "V1.0.0")
	assert.ErrorIs(t, err, git.ErrTagExists)
}

func TestRemoteURL(t *testing.T) {
	remote := gittest.NewRemote(t)
	remote.Commit(t, "dev", "initial", map[string]string{"a": "b"})
	repo, _ := cloneBranch(t, remote, "dev")

	url, err := repo.RemoteURL("")
	require.NoError(t, err)
	assert.Equal(t, remote.URL, url)

	_, err = repo.RemoteURL("upstream")
	assert.ErrorIs(t, err, git.ErrResolveFailed)

	err = repo.AddRemote(context.Background(), "origin", "gittest://local/other")
	assert.ErrorIs(t, err, git.ErrRemoteExists)
}
