package billy

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"
)

// BaseOSFS is a billy.Filesystem that resolves paths like the process does:
// absolute paths are used as is and relative paths start at the working
// directory.
type BaseOSFS struct {
	osfs.ChrootOS
}

// Chroot returns a new filesystem rooted at the provided path.
//
//nolint:ireturn // billy.Filesystem is an interface; signature is dictated by upstream.
func (b *BaseOSFS) Chroot(path string) (billy.Filesystem, error) {
	return osfs.New(path), nil
}

// Root returns the root path for this filesystem.
func (b *BaseOSFS) Root() string {
	return "/"
}

// NewBaseOSFS returns the host filesystem. The CLI uses it for the journal
// and for build artifacts.
func NewBaseOSFS() *FS {
	return &FS{
		fs: &BaseOSFS{},
	}
}
