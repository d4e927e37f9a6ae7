// Package billy adapts go-billy filesystems to fs.Filesystem.
package billy

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	parentfs "github.com/input-output-hk/catalyst-forge-release/fs"
)

var _ parentfs.Filesystem = (*FS)(nil)

// FS implements fs.Filesystem on top of a go-billy filesystem.
type FS struct {
	fs billy.Filesystem
}

// NewFS wraps an existing go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{fs: fsys}
}

// NewInMemoryFS creates an empty in-memory filesystem.
func NewInMemoryFS() *FS {
	return &FS{fs: memfs.New()}
}

// NewOSFS creates a filesystem rooted at path on the host.
func NewOSFS(path string) *FS {
	return &FS{fs: osfs.New(path)}
}

// Raw returns the underlying go-billy filesystem.
//
//nolint:ireturn // exposes the adapter target for go-git storage.
func (b *FS) Raw() billy.Filesystem {
	return b.fs
}

// Chroot returns a filesystem rooted at path inside b.
func (b *FS) Chroot(path string) (*FS, error) {
	sub, err := b.fs.Chroot(path)
	if err != nil {
		return nil, fmt.Errorf("billy: chroot %q: %w", path, err)
	}
	return &FS{fs: sub}, nil
}

// Create implements Filesystem.Create.
//
//nolint:ireturn // returns the fs.File interface.
func (b *FS) Create(name string) (parentfs.File, error) {
	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("billy: create %q: %w", name, err)
	}
	return &File{file: f, fs: b}, nil
}

// Exists implements Filesystem.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case os.IsNotExist(err):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// Glob implements Filesystem.Glob.
func (b *FS) Glob(pattern string) ([]string, error) {
	matches, err := util.Glob(b.fs, pattern)
	if err != nil {
		return nil, fmt.Errorf("billy: glob %q: %w", pattern, err)
	}
	return matches, nil
}

// MkdirAll implements Filesystem.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// Open implements Filesystem.Open.
//
//nolint:ireturn // returns the fs.File interface.
func (b *FS) Open(name string) (parentfs.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return &File{file: f, fs: b}, nil
}

// OpenFile implements Filesystem.OpenFile.
//
//nolint:ireturn // returns the fs.File interface.
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (parentfs.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("billy: openfile %q: %w", name, err)
	}
	return &File{file: f, fs: b}, nil
}

// ReadDir implements Filesystem.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", dirname, err)
	}
	return list, nil
}

// ReadFile implements Filesystem.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// Remove implements Filesystem.Remove.
func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("billy: remove %q: %w", name, err)
	}
	return nil
}

// Rename implements Filesystem.Rename.
func (b *FS) Rename(from, to string) error {
	if err := b.fs.Rename(from, to); err != nil {
		return fmt.Errorf("billy: rename %q -> %q: %w", from, to, err)
	}
	return nil
}

// Stat implements Filesystem.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return info, nil
}

// Walk implements Filesystem.Walk.
func (b *FS) Walk(root string, walkFn filepath.WalkFunc) error {
	if err := util.Walk(b.fs, root, walkFn); err != nil {
		return fmt.Errorf("billy: walk %q: %w", root, err)
	}
	return nil
}

// WriteFile implements Filesystem.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", filename, err)
	}
	return nil
}
