package version

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

const pythonModule = `# Copyright header stays untouched
# START_VERSION_BLOCK
VERSION_MAJOR = 1
VERSION_MINOR = 4
VERSION_BUILD = 0
VERSION_ALPHA = 2  # alpha counter
# END_VERSION_BLOCK

__version__ = f"{VERSION_MAJOR}.{VERSION_MINOR}.{VERSION_BUILD}"
`

func TestPlainStore(t *testing.T) {
	memFS := fsb.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("VERSION", []byte("1.4.0-alpha2\n"), 0o644))
	store := PlainStore{}

	v, err := Read(memFS, store)
	require.NoError(t, err)
	assert.Equal(t, "1.4.0-alpha2", v.String())

	require.NoError(t, Write(memFS, store, MustParse("1.4.0")))
	data, err := memFS.ReadFile("VERSION")
	require.NoError(t, err)
	assert.Equal(t, "1.4.0\n", string(data))
}

func TestPlainStoreErrors(t *testing.T) {
	memFS := fsb.NewInMemoryFS()
	store := PlainStore{File: "build/VERSION"}

	_, err := Read(memFS, store)
	require.Error(t, err)

	require.NoError(t, memFS.WriteFile("build/VERSION", []byte("\n"), 0o644))
	_, err = Read(memFS, store)
	assert.ErrorIs(t, err, ErrMalformedFile)
}

func TestBlockStoreDecode(t *testing.T) {
	v, err := BlockStore{}.Decode([]byte(pythonModule))
	require.NoError(t, err)
	assert.Equal(t, "1.4.0-alpha2", v.String())

	stable := `# START_VERSION_BLOCK
VERSION_MAJOR = 0
VERSION_MINOR = 1
VERSION_BUILD = 7
VERSION_ALPHA = None
# END_VERSION_BLOCK
`
	v, err = BlockStore{}.Decode([]byte(stable))
	require.NoError(t, err)
	assert.Equal(t, "0.1.7", v.String())
}

func TestBlockStoreEncodePreservesSurroundings(t *testing.T) {
	memFS := fsb.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("ovos_core/version.py", []byte(pythonModule), 0o644))
	store := BlockStore{File: "ovos_core/version.py"}

	require.NoError(t, Write(memFS, store, MustParse("1.4.0")))
	data, err := memFS.ReadFile("ovos_core/version.py")
	require.NoError(t, err)
	assert.Equal(t, `# Copyright header stays untouched
# START_VERSION_BLOCK
VERSION_MAJOR = 1
VERSION_MINOR = 4
VERSION_BUILD = 0
VERSION_ALPHA = None  # alpha counter
# END_VERSION_BLOCK

__version__ = f"{VERSION_MAJOR}.{VERSION_MINOR}.{VERSION_BUILD}"
`, string(data))

	require.NoError(t, Write(memFS, store, MustParse("1.5.0-alpha0")))
	v, err := Read(memFS, store)
	require.NoError(t, err)
	assert.Equal(t, "1.5.0-alpha0", v.String())
}

func TestBlockStoreKeepsCRLF(t *testing.T) {
	crlf := strings.ReplaceAll(pythonModule, "\n", "\r\n")

	v, err := BlockStore{}.Decode([]byte(crlf))
	require.NoError(t, err)
	assert.Equal(t, "1.4.0-alpha2", v.String())

	out, err := BlockStore{}.Encode([]byte(crlf), MustParse("1.4.0"))
	require.NoError(t, err)
	want := strings.Replace(crlf, "VERSION_ALPHA = 2", "VERSION_ALPHA = None", 1)
	assert.Equal(t, want, string(out))
}

func TestBlockStoreLongLines(t *testing.T) {
	long := "BLOB = \"" + strings.Repeat("x", 70000) + "\"\n"
	content := long + pythonModule + "# no trailing newline"

	v, err := BlockStore{}.Decode([]byte(content))
	require.NoError(t, err)
	assert.Equal(t, "1.4.0-alpha2", v.String())

	out, err := BlockStore{}.Encode([]byte(content), MustParse("1.5.0-alpha0"))
	require.NoError(t, err)
	want := strings.NewReplacer(
		"VERSION_MINOR = 4", "VERSION_MINOR = 5",
		"VERSION_ALPHA = 2", "VERSION_ALPHA = 0",
	).Replace(content)
	assert.Equal(t, want, string(out))
}

func TestBlockStoreMalformed(t *testing.T) {
	tests := map[string]string{
		"no block":       "VERSION_MAJOR = 1\n",
		"unclosed block": "# START_VERSION_BLOCK\nVERSION_MAJOR = 1\n",
		"missing minor":  "# START_VERSION_BLOCK\nVERSION_MAJOR = 1\nVERSION_BUILD = 0\n# END_VERSION_BLOCK\n",
		"bad number":     "# START_VERSION_BLOCK\nVERSION_MAJOR = x\nVERSION_MINOR = 1\nVERSION_BUILD = 0\n# END_VERSION_BLOCK\n",
		"bad alpha":      "# START_VERSION_BLOCK\nVERSION_MAJOR = 1\nVERSION_MINOR = 1\nVERSION_BUILD = 0\nVERSION_ALPHA = -3\n# END_VERSION_BLOCK\n",
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := BlockStore{}.Decode([]byte(content))
			assert.ErrorIs(t, err, ErrMalformedFile)
		})
	}
}

func TestNewStore(t *testing.T) {
	s, err := NewStore("", "")
	require.NoError(t, err)
	assert.Equal(t, "VERSION", s.Path())

	s, err = NewStore("python", "pkg/version.py")
	require.NoError(t, err)
	assert.IsType(t, BlockStore{}, s)
	assert.Equal(t, "pkg/version.py", s.Path())

	_, err = NewStore("toml", "")
	assert.Error(t, err)
}
