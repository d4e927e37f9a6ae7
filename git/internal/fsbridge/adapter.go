// Package fsbridge adapts fs.Filesystem values to the go-billy types go-git needs.
package fsbridge

import (
	"fmt"

	"github.com/go-git/go-billy/v5"

	"github.com/input-output-hk/catalyst-forge-release/fs"
	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

// ToBillyFilesystem returns the go-billy filesystem behind fsys.
// Only filesystems created by the fs/billy package are supported.
//
//nolint:ireturn // go-git consumes billy.Filesystem
func ToBillyFilesystem(fsys fs.Filesystem) (billy.Filesystem, error) {
	b, ok := fsys.(*fsb.FS)
	if !ok {
		return nil, fmt.Errorf("filesystem must be a billy.FS from fs/billy package, got %T", fsys)
	}
	return b.Raw(), nil
}
