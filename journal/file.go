package journal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
)

const (
	releasesDir = "releases"
	locksDir    = "locks"
)

// FileStore keeps one JSON document per release under <root>/releases and
// one lock file per repository under <root>/locks.
type FileStore struct {
	fs     fs.Filesystem
	root   string
	logger *slog.Logger
	now    func() time.Time
}

// Option configures a FileStore.
type Option func(*FileStore)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *FileStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithClock sets the time source used for lock timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *FileStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewFileStore returns a FileStore rooted at root in fsys.
func NewFileStore(fsys fs.Filesystem, root string, opts ...Option) *FileStore {
	s := &FileStore{
		fs:     fsys,
		root:   root,
		logger: slog.New(slog.DiscardHandler),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *FileStore) releasePath(id string) string {
	return path.Join(s.root, releasesDir, id+".json")
}

func (s *FileStore) lockPath(repo string) string {
	sum := sha256.Sum256([]byte(repo))
	return path.Join(s.root, locksDir, hex.EncodeToString(sum[:8])+".lock")
}

func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && id != "." && id != ".."
}

// Save writes rel atomically: the document is written to a temporary file
// and renamed over the previous version.
func (s *FileStore) Save(ctx context.Context, rel *domain.Release) error {
	if rel == nil || !validID(rel.ID) {
		return errors.New(errors.CodeInvalidInput, "release id is invalid")
	}
	data, err := json.MarshalIndent(rel, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to encode release")
	}

	if err := s.fs.MkdirAll(path.Join(s.root, releasesDir), 0o755); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to create journal directory")
	}
	final := s.releasePath(rel.ID)
	tmp := final + ".tmp"
	if err := s.fs.WriteFile(tmp, append(data, '\n'), 0o600); err != nil {
		return errors.Wrapf(err, errors.CodeStorage, "failed to write release %s", rel.ID)
	}
	if err := s.fs.Rename(tmp, final); err != nil {
		_ = s.fs.Remove(tmp)
		return errors.Wrapf(err, errors.CodeStorage, "failed to commit release %s", rel.ID)
	}

	s.logger.Debug("saved release", "release_id", rel.ID, "status", rel.Status)
	return nil
}

// Load reads the release with id.
func (s *FileStore) Load(ctx context.Context, id string) (*domain.Release, error) {
	if !validID(id) {
		return nil, errors.New(errors.CodeInvalidInput, "release id is invalid")
	}
	p := s.releasePath(id)
	exists, err := s.fs.Exists(p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeStorage, "failed to read release %s", id)
	}
	if !exists {
		return nil, errors.WrapWithContext(ErrNotFound, errors.CodeNotFound, "unknown release", map[string]interface{}{
			"release_id": id,
		})
	}

	data, err := s.fs.ReadFile(p)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeStorage, "failed to read release %s", id)
	}
	var rel domain.Release
	if err := json.Unmarshal(data, &rel); err != nil {
		return nil, errors.Wrapf(err, errors.CodeStorage, "release %s is corrupt", id)
	}
	return &rel, nil
}

// List returns all releases, newest first.
func (s *FileStore) List(ctx context.Context) ([]*domain.Release, error) {
	dir := path.Join(s.root, releasesDir)
	exists, err := s.fs.Exists(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to list releases")
	}
	if !exists {
		return nil, nil
	}

	entries, err := s.fs.ReadDir(dir)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to list releases")
	}

	var out []*domain.Release
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		rel, err := s.Load(ctx, strings.TrimSuffix(name, ".json"))
		if err != nil {
			s.logger.Warn("skipping unreadable release", "file", name, "error", err)
			continue
		}
		out = append(out, rel)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

type lockFile struct {
	Repository string    `json:"repository"`
	Owner      string    `json:"owner"`
	CreatedAt  time.Time `json:"created_at"`
}

// StaleLockAge is how long a lock whose owner never saved a release document
// is honored. Such a lock is left behind by a run that was killed between
// taking the lock and writing its journal.
const StaleLockAge = time.Minute

// Lock creates the lock file for repo with an exclusive create. A stale lock
// is removed and the create is retried once.
func (s *FileStore) Lock(ctx context.Context, repo, owner string) error {
	if repo == "" || owner == "" {
		return errors.New(errors.CodeInvalidInput, "lock needs a repository and an owner")
	}
	if err := s.fs.MkdirAll(path.Join(s.root, locksDir), 0o755); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to create lock directory")
	}

	p := s.lockPath(repo)
	for attempt := 0; ; attempt++ {
		f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
		if err == nil {
			return s.writeLock(f, p, repo, owner)
		}
		if !stderrors.Is(err, os.ErrExist) {
			return errors.Wrap(err, errors.CodeStorage, "failed to create lock")
		}

		holder, rerr := s.readLock(p)
		if rerr != nil {
			return rerr
		}
		if holder.Owner == owner {
			return nil
		}
		stale, serr := s.staleLock(holder)
		if serr != nil {
			return serr
		}
		if !stale || attempt > 0 {
			return errors.WrapWithContext(ErrLocked, errors.CodeConflict, "another release is in progress", map[string]interface{}{
				"repository": repo,
				"owner":      holder.Owner,
				"since":      holder.CreatedAt.Format(time.RFC3339),
				"lock":       p,
			})
		}

		s.logger.Warn("removing stale repository lock",
			"repository", repo,
			"owner", holder.Owner,
			"since", holder.CreatedAt)
		if err := s.fs.Remove(p); err != nil && !stderrors.Is(err, os.ErrNotExist) {
			return errors.Wrap(err, errors.CodeStorage, "failed to remove stale lock")
		}
	}
}

// staleLock reports whether holder's release never reached the journal and
// the lock is older than StaleLockAge.
func (s *FileStore) staleLock(holder *lockFile) (bool, error) {
	if s.now().Sub(holder.CreatedAt) < StaleLockAge {
		return false, nil
	}
	if !validID(holder.Owner) {
		return true, nil
	}
	exists, err := s.fs.Exists(s.releasePath(holder.Owner))
	if err != nil {
		return false, errors.Wrap(err, errors.CodeStorage, "failed to read lock owner")
	}
	return !exists, nil
}

func (s *FileStore) writeLock(f fs.File, p, repo, owner string) error {
	data, err := json.Marshal(lockFile{Repository: repo, Owner: owner, CreatedAt: s.now().UTC()})
	if err != nil {
		_ = f.Close()
		_ = s.fs.Remove(p)
		return errors.Wrap(err, errors.CodeInternal, "failed to encode lock")
	}
	if _, err := f.Write(data); err != nil {
		_ = f.Close()
		_ = s.fs.Remove(p)
		return errors.Wrap(err, errors.CodeStorage, "failed to write lock")
	}
	if err := f.Close(); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to write lock")
	}
	s.logger.Debug("acquired repository lock", "repository", repo, "owner", owner)
	return nil
}

// Unlock removes the lock of repo if owner holds it.
func (s *FileStore) Unlock(ctx context.Context, repo, owner string) error {
	p := s.lockPath(repo)
	exists, err := s.fs.Exists(p)
	if err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to read lock")
	}
	if !exists {
		return nil
	}
	holder, err := s.readLock(p)
	if err != nil {
		return err
	}
	if holder.Owner != owner {
		return errors.Newf(errors.CodeConflict, "lock of %s is held by %s", repo, holder.Owner)
	}
	if err := s.fs.Remove(p); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to remove lock")
	}
	s.logger.Debug("released repository lock", "repository", repo, "owner", owner)
	return nil
}

func (s *FileStore) readLock(p string) (*lockFile, error) {
	data, err := s.fs.ReadFile(p)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeStorage, "failed to read lock")
	}
	var holder lockFile
	if err := json.Unmarshal(data, &holder); err != nil {
		return nil, errors.Wrap(fmt.Errorf("lock %s: %w", p, err), errors.CodeStorage, "lock file is corrupt")
	}
	return &holder, nil
}
