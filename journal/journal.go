// Package journal persists release progress so a failed release can be
// resumed from its first incomplete step. It also holds the per-repository
// lock that keeps two releases of the same repository from running at once.
package journal

import (
	"context"
	stderrors "errors"
	"path/filepath"

	"github.com/adrg/xdg"

	"github.com/input-output-hk/catalyst-forge-release/domain"
)

// AppName is the directory name used under the XDG state home.
const AppName = "forge-release"

var (
	// ErrNotFound is returned by Load for unknown release IDs.
	ErrNotFound = stderrors.New("release not found in journal")

	// ErrLocked is returned by Lock when another release holds the lock.
	ErrLocked = stderrors.New("repository is locked by another release")
)

// Store persists releases and repository locks.
type Store interface {
	Save(ctx context.Context, rel *domain.Release) error
	Load(ctx context.Context, id string) (*domain.Release, error)
	List(ctx context.Context) ([]*domain.Release, error)

	// Lock takes the release lock of repo for owner. Taking a lock already
	// held by the same owner succeeds.
	Lock(ctx context.Context, repo, owner string) error
	// Unlock releases a lock held by owner.
	Unlock(ctx context.Context, repo, owner string) error
}

// DefaultDir returns $XDG_STATE_HOME/forge-release.
func DefaultDir() string {
	return filepath.Join(xdg.StateHome, AppName)
}
