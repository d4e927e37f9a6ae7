package fs

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetAbs(t *testing.T) {
	t.Run("absolute path passthrough", func(t *testing.T) {
		got, err := GetAbs("/tmp")
		require.NoError(t, err)
		assert.Equal(t, "/tmp", got)
	})

	t.Run("relative path conversion", func(t *testing.T) {
		got, err := GetAbs(".")
		require.NoError(t, err)
		assert.True(t, filepath.IsAbs(got))
	})
}
