// Package git is a task-oriented wrapper around go-git used by the release
// orchestrator. Repositories live on an fs.Filesystem so the same code runs
// against a host directory or an in-memory tree.
package git

import (
	"context"
	"fmt"
	"time"

	gobilly "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5"
	gitconfig "github.com/go-git/go-git/v5/config"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"github.com/go-git/go-git/v5/storage/filesystem"

	"github.com/input-output-hk/catalyst-forge-release/fs"
	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/git/internal/auth"
	"github.com/input-output-hk/catalyst-forge-release/git/internal/fsbridge"
)

const (
	// DefaultStorerCacheSize is the default size for the LRU object cache.
	DefaultStorerCacheSize = 1000

	// DefaultWorkdir is the default worktree directory name.
	DefaultWorkdir = "."

	// DefaultRemoteName is the default remote name used for operations.
	DefaultRemoteName = "origin"
)

// Options configures repository creation and access.
type Options struct {
	// FS is the filesystem holding the repository. Required.
	FS fs.Filesystem

	// Workdir is the path within FS for the worktree root. Defaults to ".".
	Workdir string

	// Bare creates or opens a repository without a worktree.
	Bare bool

	// Branch selects the branch checked out by Clone. Empty means the
	// remote's default branch.
	Branch string

	// StorerCacheSize sets the number of LRU object cache entries.
	StorerCacheSize int

	// Auth resolves credentials per remote URL. Nil means anonymous.
	Auth AuthProvider
}

// Validate checks that the Options are usable.
func (o *Options) Validate() error {
	if o.FS == nil {
		return WrapError(ErrInvalidRef, "FS is required")
	}
	if o.StorerCacheSize < 0 {
		return WrapError(ErrInvalidRef, "StorerCacheSize cannot be negative")
	}
	return nil
}

func (o *Options) applyDefaults() {
	if o.Workdir == "" {
		o.Workdir = DefaultWorkdir
	}
	if o.StorerCacheSize == 0 {
		o.StorerCacheSize = DefaultStorerCacheSize
	}
}

// AuthProvider resolves authentication methods for git operations.
type AuthProvider interface {
	// Method returns the transport.AuthMethod for remoteURL, or nil when
	// no credentials apply.
	Method(remoteURL string) (transport.AuthMethod, error)
}

// NewTokenAuth returns an AuthProvider that presents token to HTTPS remotes.
// When hosts are given the token is only sent to matching hosts.
//
//nolint:ireturn // callers only need the AuthProvider behaviour
func NewTokenAuth(user, token string, hosts ...string) AuthProvider {
	p := auth.NewTokenProvider(user, token)
	if len(hosts) > 0 {
		p = p.WithAllowedHosts(hosts...)
	}
	return p
}

// Signature identifies the author and committer of commits and tags.
type Signature struct {
	Name  string
	Email string
	When  time.Time
}

// Repo is an open repository.
type Repo struct {
	repo     *git.Repository
	worktree *git.Worktree
	fs       fs.Filesystem
	options  Options
}

// Init creates a new repository.
func Init(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Init(storage, worktreeFS)
	if err != nil {
		return nil, WrapError(err, "failed to initialize repository")
	}
	return newRepo(repo, opts)
}

// Open opens an existing repository.
func Open(ctx context.Context, opts *Options) (*Repo, error) {
	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	repo, err := git.Open(storage, worktreeFS)
	if err != nil {
		if err == git.ErrRepositoryNotExists {
			return nil, WrapError(ErrRepositoryMissing, "failed to open repository")
		}
		return nil, WrapError(err, "failed to open repository")
	}
	return newRepo(repo, opts)
}

// Clone clones remoteURL with full history.
func Clone(ctx context.Context, remoteURL string, opts *Options) (*Repo, error) {
	if remoteURL == "" {
		return nil, WrapError(ErrInvalidRef, "remote URL cannot be empty")
	}

	storage, worktreeFS, err := prepare(opts)
	if err != nil {
		return nil, err
	}

	cloneOpts := &git.CloneOptions{
		URL:        remoteURL,
		RemoteName: DefaultRemoteName,
		Tags:       git.AllTags,
	}
	if opts.Branch != "" {
		cloneOpts.ReferenceName = plumbing.NewBranchReferenceName(opts.Branch)
		cloneOpts.SingleBranch = false
	}
	if opts.Auth != nil {
		method, authErr := opts.Auth.Method(remoteURL)
		if authErr != nil {
			return nil, WrapError(ErrAuthRequired, authErr.Error())
		}
		cloneOpts.Auth = method
	}

	repo, err := git.CloneContext(ctx, storage, worktreeFS, cloneOpts)
	if err != nil {
		return nil, mapTransportError(err, "failed to clone repository")
	}
	return newRepo(repo, opts)
}

func prepare(opts *Options) (*filesystem.Storage, gobilly.Filesystem, error) {
	if opts == nil {
		return nil, nil, WrapError(ErrInvalidRef, "options are required")
	}
	if err := opts.Validate(); err != nil {
		return nil, nil, WrapError(err, "invalid options")
	}
	opts.applyDefaults()

	billyFS, err := fsbridge.ToBillyFilesystem(opts.FS)
	if err != nil {
		return nil, nil, fmt.Errorf("filesystem conversion failed: %w", err)
	}

	scopedFS, err := billyFS.Chroot(opts.Workdir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to chroot to workdir %q: %w", opts.Workdir, err)
	}

	if opts.Bare {
		return fsbridge.NewStorage(scopedFS, opts.StorerCacheSize), nil, nil
	}

	dotGitFS, err := scopedFS.Chroot(".git")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to access .git directory: %w", err)
	}
	return fsbridge.NewStorage(dotGitFS, opts.StorerCacheSize), scopedFS, nil
}

func newRepo(repo *git.Repository, opts *Options) (*Repo, error) {
	r := &Repo{
		repo:    repo,
		fs:      opts.FS,
		options: *opts,
	}
	if !opts.Bare {
		worktree, err := repo.Worktree()
		if err != nil {
			return nil, WrapError(err, "failed to get worktree")
		}
		r.worktree = worktree
	}
	return r, nil
}

// AddRemote registers a remote named name pointing at url.
func (r *Repo) AddRemote(ctx context.Context, name, url string) error {
	if name == "" {
		name = DefaultRemoteName
	}
	_, err := r.repo.CreateRemote(&gitconfig.RemoteConfig{Name: name, URLs: []string{url}})
	if err != nil {
		if err == git.ErrRemoteExists {
			return WrapErrorf(ErrRemoteExists, "remote %q", name)
		}
		return WrapErrorf(err, "failed to add remote %q", name)
	}
	return nil
}

// RemoteURL returns the first URL configured for remote.
func (r *Repo) RemoteURL(remote string) (string, error) {
	if remote == "" {
		remote = DefaultRemoteName
	}
	rem, err := r.repo.Remote(remote)
	if err != nil {
		return "", WrapErrorf(ErrResolveFailed, "remote %q not found", remote)
	}
	urls := rem.Config().URLs
	if len(urls) == 0 {
		return "", WrapErrorf(ErrResolveFailed, "remote %q has no URL", remote)
	}
	return urls[0], nil
}

// authFor resolves credentials for remote.
//
//nolint:ireturn // go-git consumes transport.AuthMethod
func (r *Repo) authFor(remote string) (transport.AuthMethod, error) {
	if r.options.Auth == nil {
		return nil, nil
	}
	url, err := r.RemoteURL(remote)
	if err != nil {
		return nil, err
	}
	method, err := r.options.Auth.Method(url)
	if err != nil {
		return nil, WrapError(ErrAuthRequired, err.Error())
	}
	return method, nil
}

// Filesystem returns the filesystem the repository was opened on.
//
//nolint:ireturn // exposes the native abstraction
func (r *Repo) Filesystem() fs.Filesystem {
	return r.fs
}

// WorktreeFS returns a filesystem rooted at the worktree.
func (r *Repo) WorktreeFS() (*fsb.FS, error) {
	if r.worktree == nil {
		return nil, WrapError(ErrBareRepository, "no worktree")
	}
	return fsb.NewFS(r.worktree.Filesystem), nil
}

// Workdir returns the worktree path within Filesystem.
func (r *Repo) Workdir() string {
	return r.options.Workdir
}
