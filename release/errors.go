package release

import (
	stderrors "errors"
	"fmt"

	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/hosting"
	"github.com/input-output-hk/catalyst-forge-release/journal"
	"github.com/input-output-hk/catalyst-forge-release/publish"
	"github.com/input-output-hk/catalyst-forge-release/version"
)

// StepError reports the step a release stopped at. Steps completed before
// it stay in effect; the release can be resumed with ReleaseID.
type StepError struct {
	Step      domain.StepName
	ReleaseID string
	Err       error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("release %s: step %s failed: %v", e.ReleaseID, e.Step, e.Err)
}

// Unwrap returns the step's error.
func (e *StepError) Unwrap() error {
	return e.Err
}

// Code classifies the failure.
func (e *StepError) Code() errors.ErrorCode {
	return codeOf(e.Err)
}

// codeOf returns the code of the outermost PlatformError in err, or derives
// one from the package sentinels it wraps.
func codeOf(err error) errors.ErrorCode {
	var pe *errors.PlatformError
	if stderrors.As(err, &pe) {
		return pe.Code
	}

	switch {
	case stderrors.Is(err, git.ErrStaleLease),
		stderrors.Is(err, git.ErrNotFastForward),
		stderrors.Is(err, git.ErrTagExists),
		stderrors.Is(err, hosting.ErrReleaseExists),
		stderrors.Is(err, publish.ErrAlreadyPublished),
		stderrors.Is(err, journal.ErrLocked):
		return errors.CodeConflict
	case stderrors.Is(err, git.ErrAuthRequired):
		return errors.CodeUnauthorized
	case stderrors.Is(err, git.ErrAuthFailed):
		return errors.CodeForbidden
	case stderrors.Is(err, git.ErrBranchMissing),
		stderrors.Is(err, git.ErrRepositoryMissing),
		stderrors.Is(err, git.ErrFileMissing),
		stderrors.Is(err, journal.ErrNotFound):
		return errors.CodeNotFound
	case stderrors.Is(err, version.ErrInvalidVersion),
		stderrors.Is(err, version.ErrNotPrerelease),
		stderrors.Is(err, version.ErrPrerelease),
		stderrors.Is(err, version.ErrMalformedFile):
		return errors.CodeInvalidInput
	default:
		return errors.CodeExecutionFailed
	}
}
