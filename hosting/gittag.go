package hosting

import (
	"context"
	stderrors "errors"
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/git"
)

// TagRepository is the part of the git facade used to record releases as
// annotated tags.
type TagRepository interface {
	CreateTag(ctx context.Context, name, target, message string, who git.Signature) error
	TagCommit(ctx context.Context, name string) (string, error)
	PushTag(ctx context.Context, remote, name string) error
	Fetch(ctx context.Context, remote string) error
}

// GitTag records a release as an annotated tag whose message holds the
// title and notes. It is used for hosts without a release API.
type GitTag struct {
	repo   TagRepository
	remote string
	who    git.Signature
	logger *slog.Logger
}

// NewGitTag returns a GitTag recorder pushing to remote.
func NewGitTag(repo TagRepository, remote string, who git.Signature, logger *slog.Logger) *GitTag {
	if remote == "" {
		remote = git.DefaultRemoteName
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &GitTag{repo: repo, remote: remote, who: who, logger: logger}
}

// Name implements Recorder.
func (g *GitTag) Name() string {
	return "git-tag"
}

// CreateRelease tags rec.Commit and pushes the tag. A tag left behind by an
// earlier attempt on the same commit is pushed again; a tag on any other
// commit is ErrReleaseExists.
func (g *GitTag) CreateRelease(ctx context.Context, rec Record) (*Record, error) {
	if err := validate(rec); err != nil {
		return nil, err
	}
	message := rec.Title
	if rec.Body != "" {
		message += "\n\n" + rec.Body
	}

	err := g.repo.CreateTag(ctx, rec.Tag, rec.Commit, message, g.who)
	if stderrors.Is(err, git.ErrTagExists) {
		existing, terr := g.repo.TagCommit(ctx, rec.Tag)
		if terr != nil || existing != rec.Commit {
			return nil, releaseExists(rec.Tag, err)
		}
		err = nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeExecutionFailed, "failed to create tag %s", rec.Tag)
	}

	if err := g.repo.PushTag(ctx, g.remote, rec.Tag); err != nil {
		if stderrors.Is(err, git.ErrTagExists) {
			return nil, releaseExists(rec.Tag, err)
		}
		return nil, errors.Wrapf(err, errors.CodeNetwork, "failed to push tag %s", rec.Tag)
	}

	g.logger.Info("pushed release tag", "tag", rec.Tag, "commit", rec.Commit)
	out := rec
	return &out, nil
}

// GetRelease fetches tags from the remote and returns the one named tag.
func (g *GitTag) GetRelease(ctx context.Context, tag string) (*Record, error) {
	if err := g.repo.Fetch(ctx, g.remote); err != nil {
		return nil, errors.Wrap(err, errors.CodeNetwork, "failed to fetch tags")
	}
	commit, err := g.repo.TagCommit(ctx, tag)
	if err != nil {
		if stderrors.Is(err, git.ErrTagMissing) {
			return nil, releaseNotFound(tag)
		}
		return nil, errors.Wrapf(err, errors.CodeExecutionFailed, "failed to read tag %s", tag)
	}
	return &Record{Tag: tag, Commit: commit, Title: tag}, nil
}
