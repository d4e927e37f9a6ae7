package git

import (
	"context"
	"errors"
	"sort"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/storer"
)

// Tag is a tag name and the commit it points at.
type Tag struct {
	Name   string
	Commit string
}

// CreateTag creates an annotated tag name at target with message.
// It returns ErrTagExists when the tag is already present locally.
func (r *Repo) CreateTag(ctx context.Context, name, target, message string, who Signature) error {
	if name == "" {
		return WrapError(ErrInvalidRef, "tag name cannot be empty")
	}
	if message == "" {
		message = name
	}

	hash, err := r.resolveCommit(target)
	if err != nil {
		return err
	}

	if _, err := r.repo.Tag(name); err == nil {
		return WrapErrorf(ErrTagExists, "tag %q", name)
	}

	_, err = r.repo.CreateTag(name, hash, &git.CreateTagOptions{
		Tagger:  toObjectSignature(who),
		Message: message,
	})
	if err != nil {
		if errors.Is(err, git.ErrTagExists) {
			return WrapErrorf(ErrTagExists, "tag %q", name)
		}
		return WrapErrorf(err, "failed to create tag %q", name)
	}
	return nil
}

// TagExists reports whether the tag exists locally.
func (r *Repo) TagExists(ctx context.Context, name string) (bool, error) {
	_, err := r.repo.Tag(name)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, git.ErrTagNotFound):
		return false, nil
	default:
		return false, WrapErrorf(err, "failed to look up tag %q", name)
	}
}

// TagCommit returns the commit hash the tag points at.
func (r *Repo) TagCommit(ctx context.Context, name string) (string, error) {
	if _, err := r.repo.Tag(name); err != nil {
		return "", WrapErrorf(ErrTagMissing, "tag %q", name)
	}
	hash, err := r.resolveCommit(plumbing.NewTagReferenceName(name).String())
	if err != nil {
		return "", err
	}
	return hash.String(), nil
}

// Tags lists local tags sorted by name.
func (r *Repo) Tags(ctx context.Context) ([]Tag, error) {
	iter, err := r.repo.Tags()
	if err != nil {
		return nil, WrapError(err, "failed to list tags")
	}
	defer iter.Close()

	var tags []Tag
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		hash, err := r.resolveCommit(ref.Name().String())
		if err != nil {
			// Tags on non-commit objects are not interesting here.
			return nil
		}
		tags = append(tags, Tag{Name: ref.Name().Short(), Commit: hash.String()})
		return nil
	})
	if err != nil && !errors.Is(err, storer.ErrStop) {
		return nil, WrapError(err, "failed to list tags")
	}

	sort.Slice(tags, func(i, j int) bool { return tags[i].Name < tags[j].Name })
	return tags, nil
}
