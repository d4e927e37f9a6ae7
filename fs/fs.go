// Package fs defines the filesystem abstraction used by the release tooling.
// Working trees, version files, build artifacts and the release journal are
// all accessed through Filesystem so tests can run against memory.
package fs

import (
	"os"
	"path/filepath"
)

// Filesystem is the set of filesystem operations the release tooling needs.
type Filesystem interface {
	Create(name string) (File, error)
	Exists(path string) (bool, error)
	Glob(pattern string) ([]string, error)
	MkdirAll(path string, perm os.FileMode) error
	Open(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(path string) ([]byte, error)
	Remove(name string) error
	Rename(from, to string) error
	Stat(name string) (os.FileInfo, error)
	Walk(root string, walkFn filepath.WalkFunc) error
	WriteFile(filename string, data []byte, perm os.FileMode) error
}

// GetAbs returns the absolute form of path.
func GetAbs(path string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(path)
}
