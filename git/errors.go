package git

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/transport"
)

// Sentinel errors. Check them with errors.Is.
var (
	// ErrAlreadyUpToDate is returned when a fetch has nothing to transfer.
	ErrAlreadyUpToDate = errors.New("already up to date")

	// ErrAuthRequired is returned when a remote requires credentials that
	// are missing or could not be resolved.
	ErrAuthRequired = errors.New("authentication required")

	// ErrAuthFailed is returned when the remote rejected the credentials.
	ErrAuthFailed = errors.New("authentication failed")

	// ErrBranchMissing is returned when a branch does not exist locally or on the remote.
	ErrBranchMissing = errors.New("branch does not exist")

	// ErrTagExists is returned when a tag with the same name already exists.
	ErrTagExists = errors.New("tag already exists")

	// ErrTagMissing is returned when a tag does not exist.
	ErrTagMissing = errors.New("tag does not exist")

	// ErrNotFastForward is returned when a push would rewrite remote history.
	ErrNotFastForward = errors.New("not a fast-forward")

	// ErrStaleLease is returned when a compare-and-swap push finds the remote
	// branch at a different commit than the caller last observed.
	ErrStaleLease = errors.New("remote branch moved since it was last observed")

	// ErrEmptyCommit is returned when a commit is requested with nothing staged.
	ErrEmptyCommit = errors.New("nothing to commit")

	// ErrFileMissing is returned when a path does not exist in a commit tree.
	ErrFileMissing = errors.New("file does not exist in revision")

	// ErrInvalidRef is returned for malformed names or arguments.
	ErrInvalidRef = errors.New("invalid reference")

	// ErrResolveFailed is returned when a revision or remote cannot be resolved.
	ErrResolveFailed = errors.New("cannot resolve revision")

	// ErrRemoteExists is returned when adding a remote whose name is taken.
	ErrRemoteExists = errors.New("remote already exists")

	// ErrRepositoryMissing is returned by Open when no repository exists.
	ErrRepositoryMissing = errors.New("repository does not exist")

	// ErrBareRepository is returned for worktree operations on a bare repository.
	ErrBareRepository = errors.New("repository has no worktree")
)

// WrapError wraps err with msg while keeping it matchable with errors.Is.
func WrapError(err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, err)
}

// WrapErrorf wraps err with a formatted message.
func WrapErrorf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// mapTransportError converts go-git transport and push errors into sentinels.
func mapTransportError(err error, msg string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, git.NoErrAlreadyUpToDate):
		return ErrAlreadyUpToDate
	case errors.Is(err, git.ErrNonFastForwardUpdate):
		return WrapError(ErrNotFastForward, msg)
	case errors.Is(err, git.ErrRemoteNotFound):
		return WrapError(ErrResolveFailed, msg+": remote not found")
	case errors.Is(err, transport.ErrAuthenticationRequired):
		return WrapError(ErrAuthRequired, msg)
	case errors.Is(err, transport.ErrAuthorizationFailed):
		return WrapError(ErrAuthFailed, msg)
	case strings.Contains(err.Error(), "required to be"):
		// go-git reports RequireRemoteRefs mismatches as plain errors.
		return WrapErrorf(ErrStaleLease, "%s: %s", msg, err.Error())
	default:
		return WrapError(err, msg)
	}
}
