package fsbridge

import (
	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-git/v5/plumbing/cache"
	"github.com/go-git/go-git/v5/storage/filesystem"
)

// NewStorage creates go-git object storage on billyFS with an LRU object cache.
func NewStorage(billyFS billy.Filesystem, cacheSize int) *filesystem.Storage {
	if cacheSize <= 0 {
		cacheSize = 100
	}
	return filesystem.NewStorage(billyFS, cache.NewObjectLRU(cache.FileSize(cacheSize)))
}
