package publish_test

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/publish"
)

type upload struct {
	fields   map[string]string
	filename string
	content  []byte
	user     string
	pass     string
}

type fakeIndex struct {
	mu      sync.Mutex
	uploads []upload
	files   map[string]bool
	status  int
}

func (f *fakeIndex) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if f.status != 0 {
		w.WriteHeader(f.status)
		_, _ = io.WriteString(w, "index unavailable")
		return
	}
	if err := r.ParseMultipartForm(10 << 20); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	file, header, err := r.FormFile("content")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	content, _ := io.ReadAll(file)

	u := upload{fields: map[string]string{}, filename: header.Filename, content: content}
	u.user, u.pass, _ = r.BasicAuth()
	for k, v := range r.MultipartForm.Value {
		u.fields[k] = v[0]
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.files == nil {
		f.files = map[string]bool{}
	}
	if f.files[header.Filename] {
		http.Error(w, "400 File already exists. See https://pypi.org/help/#file-name-reuse", http.StatusBadRequest)
		return
	}
	f.files[header.Filename] = true
	f.uploads = append(f.uploads, u)
	w.WriteHeader(http.StatusOK)
}

func newDist(t *testing.T) *billy.FS {
	t.Helper()
	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("dist/ovos_core-1.4.0.tar.gz", []byte("sdist-bytes"), 0o644))
	require.NoError(t, memFS.WriteFile("dist/ovos_core-1.4.0-py3-none-any.whl", []byte("wheel-bytes"), 0o644))
	return memFS
}

func TestPyPIPublish(t *testing.T) {
	index := &fakeIndex{}
	srv := httptest.NewServer(index)
	defer srv.Close()

	p := publish.NewPyPI("pypi-secret",
		publish.WithRepositoryURL(srv.URL),
		publish.WithPyPIFilesystem(newDist(t)))
	assert.Equal(t, "pypi", p.Name())

	pkg := publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0-py3-none-any.whl", "dist/ovos_core-1.4.0.tar.gz"},
	}
	require.NoError(t, p.Publish(context.Background(), pkg))
	require.Len(t, index.uploads, 2)

	wheel := index.uploads[0]
	assert.Equal(t, "__token__", wheel.user)
	assert.Equal(t, "pypi-secret", wheel.pass)
	assert.Equal(t, "file_upload", wheel.fields[":action"])
	assert.Equal(t, "ovos-core", wheel.fields["name"])
	assert.Equal(t, "1.4.0", wheel.fields["version"])
	assert.Equal(t, "bdist_wheel", wheel.fields["filetype"])
	assert.Equal(t, "py3", wheel.fields["pyversion"])
	sum := sha256.Sum256([]byte("wheel-bytes"))
	assert.Equal(t, hex.EncodeToString(sum[:]), wheel.fields["sha256_digest"])
	assert.Equal(t, "wheel-bytes", string(wheel.content))

	sdist := index.uploads[1]
	assert.Equal(t, "sdist", sdist.fields["filetype"])
	assert.Equal(t, "source", sdist.fields["pyversion"])

	err := p.Publish(context.Background(), pkg)
	assert.ErrorIs(t, err, publish.ErrAlreadyPublished)
}

func TestPyPIPartialRetry(t *testing.T) {
	index := &fakeIndex{files: map[string]bool{"ovos_core-1.4.0.tar.gz": true}}
	srv := httptest.NewServer(index)
	defer srv.Close()

	p := publish.NewPyPI("tok", publish.WithRepositoryURL(srv.URL))
	err := p.Publish(context.Background(), publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0.tar.gz", "dist/ovos_core-1.4.0-py3-none-any.whl"},
		Root:    newDist(t),
	})
	require.NoError(t, err)
	require.Len(t, index.uploads, 1)
	assert.Equal(t, "ovos_core-1.4.0-py3-none-any.whl", index.uploads[0].filename)
}

func TestPyPIErrors(t *testing.T) {
	pkg := publish.Package{Name: "ovos-core", Version: "1.4.0", Files: []string{"dist/ovos_core-1.4.0.tar.gz"}}

	t.Run("missing token", func(t *testing.T) {
		err := publish.NewPyPI("").Publish(context.Background(), pkg)
		assert.Equal(t, errors.CodeUnauthorized, errors.CodeOf(err))
	})

	t.Run("no files", func(t *testing.T) {
		err := publish.NewPyPI("tok").Publish(context.Background(), publish.Package{Name: "x", Version: "1"})
		assert.Equal(t, errors.CodeInvalidInput, errors.CodeOf(err))
	})

	t.Run("forbidden", func(t *testing.T) {
		srv := httptest.NewServer(&fakeIndex{status: http.StatusForbidden})
		defer srv.Close()
		p := publish.NewPyPI("tok", publish.WithRepositoryURL(srv.URL), publish.WithPyPIFilesystem(newDist(t)))
		err := p.Publish(context.Background(), pkg)
		assert.Equal(t, errors.CodeForbidden, errors.CodeOf(err))
		assert.NotErrorIs(t, err, publish.ErrAlreadyPublished)
	})

	t.Run("server error", func(t *testing.T) {
		srv := httptest.NewServer(&fakeIndex{status: http.StatusInternalServerError})
		defer srv.Close()
		p := publish.NewPyPI("tok", publish.WithRepositoryURL(srv.URL), publish.WithPyPIFilesystem(newDist(t)))
		err := p.Publish(context.Background(), pkg)
		assert.True(t, errors.IsRetryable(err))
	})
}

func TestDistributionType(t *testing.T) {
	tests := []struct {
		name      string
		filetype  string
		pyversion string
		wantErr   bool
	}{
		{name: "pkg-1.0.0.tar.gz", filetype: "sdist", pyversion: "source"},
		{name: "pkg-1.0.0.zip", filetype: "sdist", pyversion: "source"},
		{name: "pkg-1.0.0-py3-none-any.whl", filetype: "bdist_wheel", pyversion: "py3"},
		{name: "pkg-1.0.0-1-cp311-cp311-manylinux_x86_64.whl", filetype: "bdist_wheel", pyversion: "cp311"},
		{name: "pkg.whl", wantErr: true},
		{name: "pkg-1.0.0.exe", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			filetype, pyversion, err := publish.DistributionType(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.filetype, filetype)
			assert.Equal(t, tt.pyversion, pyversion)
		})
	}
}
