// Package hosting creates release records on the source-control host.
package hosting

import (
	"context"
	stderrors "errors"

	"github.com/input-output-hk/catalyst-forge-release/errors"
)

var (
	// ErrReleaseExists is returned when a release or tag with the same name
	// already exists.
	ErrReleaseExists = stderrors.New("release already exists")

	// ErrReleaseNotFound is returned by GetRelease for unknown tags.
	ErrReleaseNotFound = stderrors.New("release not found")
)

// Record is a published release: a tag on a commit with a title and notes.
type Record struct {
	ID         int64
	Tag        string
	Commit     string
	Title      string
	Body       string
	Draft      bool
	Prerelease bool
	URL        string
}

// Recorder creates and reads release records.
type Recorder interface {
	Name() string
	CreateRelease(ctx context.Context, rec Record) (*Record, error)
	GetRelease(ctx context.Context, tag string) (*Record, error)
}

func releaseExists(tag string, cause error) error {
	if cause == nil {
		cause = ErrReleaseExists
	} else {
		cause = stderrors.Join(ErrReleaseExists, cause)
	}
	return errors.WrapWithContext(cause, errors.CodeConflict, "release already exists", map[string]interface{}{
		"tag": tag,
	})
}

func releaseNotFound(tag string) error {
	return errors.WrapWithContext(ErrReleaseNotFound, errors.CodeNotFound, "release not found", map[string]interface{}{
		"tag": tag,
	})
}

func validate(rec Record) error {
	if rec.Tag == "" || rec.Commit == "" {
		return errors.New(errors.CodeInvalidInput, "release needs a tag and a commit")
	}
	return nil
}
