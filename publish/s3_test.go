package publish_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	s3client "github.com/input-output-hk/catalyst-forge-release/aws/s3"
	"github.com/input-output-hk/catalyst-forge-release/aws/s3/s3test"
	"github.com/input-output-hk/catalyst-forge-release/publish"
)

func TestS3Publish(t *testing.T) {
	ctx := context.Background()
	mock := &s3test.MockS3Client{}
	client := s3client.NewWithClient(mock)
	p := publish.NewS3(client, "releases", "/python/", slog.Default())

	pkg := publish.Package{
		Name:    "ovos-core",
		Version: "1.4.0",
		Files:   []string{"dist/ovos_core-1.4.0.tar.gz", "dist/ovos_core-1.4.0-py3-none-any.whl"},
		Root:    newDist(t),
	}
	assert.Equal(t, "python/ovos-core/1.4.0/ovos_core-1.4.0.tar.gz", p.Key(pkg, pkg.Files[0]))

	require.NoError(t, p.Publish(ctx, pkg))
	body, ok := mock.Object("releases", "python/ovos-core/1.4.0/ovos_core-1.4.0-py3-none-any.whl")
	require.True(t, ok)
	assert.Equal(t, "wheel-bytes", string(body))
	assert.Equal(t, 2, mock.Puts)

	err := p.Publish(ctx, pkg)
	assert.ErrorIs(t, err, publish.ErrAlreadyPublished)
	assert.Equal(t, 2, mock.Puts, "existing objects are not overwritten")
}

func TestS3PublishRequiresBucket(t *testing.T) {
	p := publish.NewS3(s3client.NewWithClient(&s3test.MockS3Client{}), "", "", nil)
	err := p.Publish(context.Background(), publish.Package{Name: "a", Version: "1", Files: []string{"a"}})
	require.Error(t, err)
	assert.NotErrorIs(t, err, publish.ErrAlreadyPublished)
}
