// Package s3test provides a function-field mock of the S3 API for tests.
package s3test

import (
	"context"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
)

// MockS3Client implements s3.S3API. Unset function fields fall back to an
// in-memory object store, so a zero MockS3Client behaves like an empty bucket.
type MockS3Client struct {
	PutObjectFunc  func(context.Context, *s3.PutObjectInput, ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObjectFunc func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)

	mu      sync.Mutex
	Objects map[string][]byte
	Types   map[string]string
	Puts    int
}

func objectKey(bucket, key *string) string {
	return aws.ToString(bucket) + "/" + aws.ToString(key)
}

// PutObject mocks the S3 PutObject operation.
func (m *MockS3Client) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if m.PutObjectFunc != nil {
		return m.PutObjectFunc(ctx, params, optFns...)
	}
	body, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Objects == nil {
		m.Objects = map[string][]byte{}
		m.Types = map[string]string{}
	}
	k := objectKey(params.Bucket, params.Key)
	m.Objects[k] = body
	m.Types[k] = aws.ToString(params.ContentType)
	m.Puts++
	return &s3.PutObjectOutput{ETag: aws.String(`"etag"`)}, nil
}

// HeadObject mocks the S3 HeadObject operation.
func (m *MockS3Client) HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.Objects[objectKey(params.Bucket, params.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{ContentLength: aws.Int64(int64(len(body)))}, nil
}

// Object returns the stored body for bucket/key.
func (m *MockS3Client) Object(bucket, key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	body, ok := m.Objects[bucket+"/"+key]
	return body, ok
}
