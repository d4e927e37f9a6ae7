package release

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/changelog"
	"github.com/input-output-hk/catalyst-forge-release/executor"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/hosting"
	"github.com/input-output-hk/catalyst-forge-release/journal"
	"github.com/input-output-hk/catalyst-forge-release/notify"
	"github.com/input-output-hk/catalyst-forge-release/publish"
	"github.com/input-output-hk/catalyst-forge-release/version"
)

// CommitPrefix starts the subject of every commit the orchestrator makes.
// Changelogs leave these commits out.
const CommitPrefix = "chore(release):"

// DefaultAuthor signs release commits and tags when none is configured.
var DefaultAuthor = git.Signature{Name: "forge-release", Email: "forge-release@users.noreply.github.com"}

// Config describes the repository being released.
type Config struct {
	// Project is the package name used for publishing and notifications.
	Project string

	// Repository is the remote URL to clone.
	Repository string

	// Remote is the name given to Repository in the clone. Defaults to origin.
	Remote string

	// MutableBranch receives development versions. StableBranch receives
	// released versions.
	MutableBranch string
	StableBranch  string

	// VersionStore locates and encodes the version file.
	VersionStore version.Store

	// WorkRoot is the directory, inside the collaborators' filesystem, in
	// which each release gets its own working tree.
	WorkRoot string

	// Author signs release commits.
	Author git.Signature

	// NotifyChannel and NotifyTemplate configure the notification message.
	NotifyChannel  string
	NotifyTemplate string
}

func (c *Config) applyDefaults() {
	if c.Remote == "" {
		c.Remote = git.DefaultRemoteName
	}
	if c.MutableBranch == "" {
		c.MutableBranch = "dev"
	}
	if c.StableBranch == "" {
		c.StableBranch = "master"
	}
	if c.VersionStore == nil {
		c.VersionStore = version.PlainStore{}
	}
	if c.Author.Name == "" {
		c.Author = DefaultAuthor
	}
	if c.NotifyTemplate == "" {
		c.NotifyTemplate = notify.DefaultTemplate
	}
}

// Validate checks that the configuration can drive a release.
func (c *Config) Validate() error {
	switch {
	case c.Project == "":
		return fmt.Errorf("project name is required")
	case c.Repository == "":
		return fmt.Errorf("repository url is required")
	case c.WorkRoot == "":
		return fmt.Errorf("work root is required")
	case c.MutableBranch == c.StableBranch:
		return fmt.Errorf("mutable and stable branch must differ, both are %q", c.StableBranch)
	}
	return nil
}

// Repository is the part of the git facade the orchestrator uses.
type Repository interface {
	Head(ctx context.Context) (string, error)
	HasCommit(ctx context.Context, hash string) bool
	RemoteHead(ctx context.Context, remote, branch string) (string, error)
	Fetch(ctx context.Context, remote string) error
	Tags(ctx context.Context) ([]git.Tag, error)
	CommitsBetween(ctx context.Context, from, to string) ([]git.Commit, error)
	ReadFileAt(ctx context.Context, rev, path string) ([]byte, error)
	Add(ctx context.Context, paths ...string) error
	Commit(ctx context.Context, msg string, who git.Signature) (string, error)
	PushBranch(ctx context.Context, opts git.PushBranchOptions) error
	CreateTag(ctx context.Context, name, target, message string, who git.Signature) error
	TagCommit(ctx context.Context, name string) (string, error)
	PushTag(ctx context.Context, remote, name string) error
	WorktreeFS() (*fsb.FS, error)
}

// RepositoryOpener clones and reopens working trees.
type RepositoryOpener interface {
	Clone(ctx context.Context, url, branch, dir string) (Repository, error)
	Open(ctx context.Context, dir string) (Repository, error)
}

// GitOpener opens repositories with the git facade.
type GitOpener struct {
	FS   fs.Filesystem
	Auth git.AuthProvider
}

// Clone implements RepositoryOpener.
//
//nolint:ireturn // the orchestrator works against the Repository interface
func (g GitOpener) Clone(ctx context.Context, url, branch, dir string) (Repository, error) {
	repo, err := git.Clone(ctx, url, &git.Options{FS: g.FS, Workdir: dir, Branch: branch, Auth: g.Auth})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Open implements RepositoryOpener.
//
//nolint:ireturn // the orchestrator works against the Repository interface
func (g GitOpener) Open(ctx context.Context, dir string) (Repository, error) {
	repo, err := git.Open(ctx, &git.Options{FS: g.FS, Workdir: dir, Auth: g.Auth})
	if err != nil {
		return nil, err
	}
	return repo, nil
}

// Builder produces release artifacts. tree is the working tree and dir its
// location on the host; returned paths are relative to tree.
type Builder interface {
	Build(ctx context.Context, tree fs.Filesystem, dir, version string) ([]string, error)
}

// CommandBuilder runs an executor.BuildSpec.
type CommandBuilder struct {
	Spec    executor.BuildSpec
	Options []executor.BuilderOption
}

// Build implements Builder.
func (b CommandBuilder) Build(ctx context.Context, tree fs.Filesystem, dir, version string) ([]string, error) {
	return executor.NewBuilder(b.Spec, tree, dir, b.Options...).Build(ctx, version)
}

// ChangelogGenerator produces the release notes for a commit range.
type ChangelogGenerator interface {
	Generate(ctx context.Context, title string, rng changelog.Range) (*changelog.Changelog, error)
}

// Collaborators are the external systems a release talks to.
type Collaborators struct {
	Repos   RepositoryOpener
	Journal journal.Store
	Builder Builder

	// Recorder creates the release record. Nil records the release as an
	// annotated tag in the checked out repository.
	Recorder hosting.Recorder

	// Changelog overrides the generator built over the checked out repository.
	Changelog ChangelogGenerator

	// Publisher and Notifier may be nil, in which case the step is skipped.
	Publisher publish.Publisher
	Notifier  notify.Notifier
}

func (c Collaborators) validate() error {
	switch {
	case c.Repos == nil:
		return fmt.Errorf("repository opener is required")
	case c.Journal == nil:
		return fmt.Errorf("journal is required")
	case c.Builder == nil:
		return fmt.Errorf("builder is required")
	}
	return nil
}

func (c *Config) workdir(id string) string {
	return path.Join(c.WorkRoot, id)
}

func timePtr(t time.Time) *time.Time {
	return &t
}
