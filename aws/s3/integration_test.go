//go:build integration

package s3_test

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	awssdk "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/docker/go-connections/nat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/localstack"

	s3client "github.com/input-output-hk/catalyst-forge-release/aws/s3"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

func TestClientLocalStack(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	container, err := localstack.Run(ctx, "localstack/localstack:latest")
	require.NoError(t, err, "failed to start LocalStack container")
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	port, err := nat.NewPort("tcp", "4566")
	require.NoError(t, err)
	endpoint, err := container.PortEndpoint(ctx, port, "")
	require.NoError(t, err)
	if !strings.HasPrefix(endpoint, "http") {
		endpoint = "http://" + endpoint
	}

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("test", "test", "")))
	require.NoError(t, err)
	admin := s3.NewFromConfig(cfg, func(o *s3.Options) {
		o.BaseEndpoint = awssdk.String(endpoint)
		o.UsePathStyle = true
	})

	bucket := fmt.Sprintf("forge-release-%d", time.Now().UnixNano())
	_, err = admin.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: awssdk.String(bucket)})
	require.NoError(t, err)

	memFS := billy.NewInMemoryFS()
	require.NoError(t, memFS.WriteFile("dist/app-1.4.0.tar.gz", []byte{0x1f, 0x8b, 0x08, 0x00}, 0o644))

	client, err := s3client.New(ctx,
		s3client.WithRegion("us-east-1"),
		s3client.WithEndpoint(endpoint),
		s3client.WithFilesystem(memFS))
	require.NoError(t, err)

	key := "app/1.4.0/app-1.4.0.tar.gz"
	exists, err := client.Exists(ctx, bucket, key)
	require.NoError(t, err)
	assert.False(t, exists)

	res, err := client.UploadFile(ctx, bucket, key, "dist/app-1.4.0.tar.gz", map[string]string{"version": "1.4.0"})
	require.NoError(t, err)
	assert.Equal(t, int64(4), res.Size)

	exists, err = client.Exists(ctx, bucket, key)
	require.NoError(t, err)
	assert.True(t, exists)
}
