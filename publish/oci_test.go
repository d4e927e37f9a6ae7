package publish_test

import (
	"context"
	"encoding/json"
	"testing"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content/memory"

	"github.com/input-output-hk/catalyst-forge-release/publish"
)

func TestOCIPublish(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := publish.NewOCI(store, "registry.example.com/ovos/ovos-core")
	assert.Equal(t, "oci", p.Name())

	pkg := publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0.tar.gz", "dist/ovos_core-1.4.0-py3-none-any.whl"},
		Root:    newDist(t),
	}
	require.NoError(t, p.Publish(ctx, pkg))

	desc, data, err := oras.FetchBytes(ctx, store, "1.4.0", oras.DefaultFetchBytesOptions)
	require.NoError(t, err)
	assert.Equal(t, ocispec.MediaTypeImageManifest, desc.MediaType)

	var manifest ocispec.Manifest
	require.NoError(t, json.Unmarshal(data, &manifest))
	assert.Equal(t, publish.ArtifactMediaType, manifest.ArtifactType)
	assert.Equal(t, "ovos-core", manifest.Annotations[publish.AnnotationPackage])
	assert.Equal(t, "1.4.0", manifest.Annotations[publish.AnnotationVersion])

	require.Len(t, manifest.Layers, 2)
	assert.Equal(t, "ovos_core-1.4.0.tar.gz", manifest.Layers[0].Annotations[ocispec.AnnotationTitle])
	assert.Equal(t, "ovos_core-1.4.0-py3-none-any.whl", manifest.Layers[1].Annotations[ocispec.AnnotationTitle])

	blob, err := store.Fetch(ctx, manifest.Layers[1])
	require.NoError(t, err)
	defer blob.Close()
	var buf [64]byte
	n, _ := blob.Read(buf[:])
	assert.Equal(t, "wheel-bytes", string(buf[:n]))
}

func TestOCIPublishExistingTag(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	p := publish.NewOCI(store, "registry.example.com/ovos/ovos-core")
	pkg := publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0.tar.gz"},
		Root:    newDist(t),
	}

	require.NoError(t, p.Publish(ctx, pkg))
	before, err := store.Resolve(ctx, "1.4.0")
	require.NoError(t, err)

	err = p.Publish(ctx, pkg)
	require.ErrorIs(t, err, publish.ErrAlreadyPublished)

	after, err := store.Resolve(ctx, "1.4.0")
	require.NoError(t, err)
	assert.Equal(t, before.Digest, after.Digest, "the tag is not moved")
}

func TestOCIPublishResumesPartialPush(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	dist := newDist(t)
	p := publish.NewOCI(store, "registry.example.com/ovos/ovos-core")

	// A first attempt that only got the sdist out, under another tag.
	require.NoError(t, p.Publish(ctx, publish.Package{
		Name: "ovos-core", Version: "1.4.0-partial", Files: []string{"dist/ovos_core-1.4.0.tar.gz"}, Root: dist,
	}))

	require.NoError(t, p.Publish(ctx, publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0.tar.gz", "dist/ovos_core-1.4.0-py3-none-any.whl"},
		Root:    dist,
	}))
}

func TestOCIPublishMissingFile(t *testing.T) {
	p := publish.NewOCI(memory.New(), "registry.example.com/ovos/ovos-core")
	err := p.Publish(context.Background(), publish.Package{
		Name: "ovos-core", Version: "1.4.0", Files: []string{"dist/missing.whl"}, Root: newDist(t),
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, publish.ErrAlreadyPublished)
}

func TestNewOCIRepository(t *testing.T) {
	tests := []struct {
		reference string
		registry  string
		path      string
	}{
		{"ghcr.io/org/widgets", "ghcr.io", "org/widgets"},
		{"ghcr.io/org/widgets:1.4.0", "ghcr.io", "org/widgets"},
		{"localhost:5000/widgets", "localhost:5000", "widgets"},
		{"localhost:5000/team/widgets@sha256:0000000000000000000000000000000000000000000000000000000000000000", "localhost:5000", "team/widgets"},
	}
	for _, tt := range tests {
		t.Run(tt.reference, func(t *testing.T) {
			repo, err := publish.NewOCIRepository(tt.reference, publish.OCIAuth{PlainHTTP: true, Username: "u", Password: "p"})
			require.NoError(t, err)
			assert.Equal(t, tt.registry, repo.Reference.Registry)
			assert.Equal(t, tt.path, repo.Reference.Repository)
			assert.True(t, repo.PlainHTTP)
		})
	}

	_, err := publish.NewOCIRepository("not a reference", publish.OCIAuth{})
	require.Error(t, err)
}
