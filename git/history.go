package git

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// Commit is a summary of a commit object.
type Commit struct {
	Hash    string
	Message string
	Author  string
	Email   string
	When    time.Time
	Parents int
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSpace(subject)
}

// IsMerge reports whether the commit has more than one parent.
func (c Commit) IsMerge() bool {
	return c.Parents > 1
}

// CommitsBetween returns the commits reachable from to and not reachable
// from from, newest first. An empty from returns the full history of to.
func (r *Repo) CommitsBetween(ctx context.Context, from, to string) ([]Commit, error) {
	toHash, err := r.resolveCommit(to)
	if err != nil {
		return nil, err
	}

	excluded := map[plumbing.Hash]struct{}{}
	if from != "" {
		fromHash, err := r.resolveCommit(from)
		if err != nil {
			return nil, err
		}
		if err := r.walk(ctx, fromHash, func(c *object.Commit) error {
			excluded[c.Hash] = struct{}{}
			return nil
		}); err != nil {
			return nil, err
		}
	}

	var commits []Commit
	err = r.walk(ctx, toHash, func(c *object.Commit) error {
		if _, skip := excluded[c.Hash]; skip {
			return nil
		}
		commits = append(commits, Commit{
			Hash:    c.Hash.String(),
			Message: c.Message,
			Author:  c.Author.Name,
			Email:   c.Author.Email,
			When:    c.Author.When,
			Parents: c.NumParents(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return commits, nil
}

// ReadFileAt returns the content of path in the tree of revision rev.
func (r *Repo) ReadFileAt(ctx context.Context, rev, path string) ([]byte, error) {
	hash, err := r.resolveCommit(rev)
	if err != nil {
		return nil, err
	}
	commit, err := r.repo.CommitObject(hash)
	if err != nil {
		return nil, WrapErrorf(ErrResolveFailed, "commit %s", hash)
	}
	file, err := commit.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return nil, WrapErrorf(ErrFileMissing, "%s at %s", path, hash)
		}
		return nil, WrapErrorf(err, "failed to read %s at %s", path, hash)
	}
	content, err := file.Contents()
	if err != nil {
		return nil, WrapErrorf(err, "failed to read %s at %s", path, hash)
	}
	return []byte(content), nil
}

func (r *Repo) walk(ctx context.Context, from plumbing.Hash, fn func(*object.Commit) error) error {
	iter, err := r.repo.Log(&git.LogOptions{From: from})
	if err != nil {
		return WrapError(err, "failed to read history")
	}
	defer iter.Close()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return WrapError(err, "failed to read history")
		}
		if err := fn(c); err != nil {
			return err
		}
	}
}

// resolveCommit resolves rev to a commit hash, peeling annotated tags.
func (r *Repo) resolveCommit(rev string) (plumbing.Hash, error) {
	if rev == "" {
		return plumbing.ZeroHash, WrapError(ErrInvalidRef, "revision cannot be empty")
	}
	hash, err := r.repo.ResolveRevision(plumbing.Revision(rev))
	if err != nil {
		return plumbing.ZeroHash, WrapErrorf(ErrResolveFailed, "revision %q", rev)
	}
	if tag, err := r.repo.TagObject(*hash); err == nil {
		commit, err := tag.Commit()
		if err != nil {
			return plumbing.ZeroHash, WrapErrorf(ErrResolveFailed, "tag %q does not point at a commit", rev)
		}
		return commit.Hash, nil
	}
	return *hash, nil
}
