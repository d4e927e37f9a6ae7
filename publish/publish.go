// Package publish uploads built release artifacts to a package index.
package publish

import (
	"context"
	stderrors "errors"
	"path"

	"github.com/input-output-hk/catalyst-forge-release/fs"
)

// ErrAlreadyPublished is returned when the index already holds the package
// version. A retried publish step treats it as success.
var ErrAlreadyPublished = stderrors.New("package version already published")

// Package is a set of artifacts for one released version.
type Package struct {
	Name    string
	Version string
	// Files are artifact paths relative to Root.
	Files []string
	// Root holds the artifacts. Nil means the publisher's own filesystem.
	Root fs.Filesystem
}

// Publisher uploads a Package.
type Publisher interface {
	Name() string
	Publish(ctx context.Context, pkg Package) error
}

func validate(pkg Package) error {
	if pkg.Name == "" || pkg.Version == "" {
		return stderrors.New("package name and version are required")
	}
	if len(pkg.Files) == 0 {
		return stderrors.New("package has no files")
	}
	return nil
}

func baseName(p string) string {
	return path.Base(p)
}

func rootOf(pkg Package, fallback fs.Filesystem) fs.Filesystem {
	if pkg.Root != nil {
		return pkg.Root
	}
	return fallback
}
