package fsbridge

import (
	"testing"

	"github.com/go-git/go-billy/v5/memfs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-release/fs"
	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

// foreignFS satisfies fs.Filesystem without being backed by go-billy.
type foreignFS struct {
	fs.Filesystem
}

func TestToBillyFilesystem(t *testing.T) {
	t.Run("billy backed", func(t *testing.T) {
		mem := memfs.New()
		got, err := ToBillyFilesystem(fsb.NewFS(mem))
		require.NoError(t, err)
		assert.Equal(t, mem, got)
	})

	t.Run("foreign filesystem", func(t *testing.T) {
		got, err := ToBillyFilesystem(foreignFS{})
		require.Error(t, err)
		assert.Nil(t, got)
		assert.Contains(t, err.Error(), "filesystem must be a billy.FS")
	})
}

func TestNewStorageClampsCache(t *testing.T) {
	assert.NotNil(t, NewStorage(memfs.New(), 0))
	assert.NotNil(t, NewStorage(memfs.New(), 500))
}
