package s3

import (
	"bytes"
	"context"
	"fmt"
	"mime"
	"path/filepath"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gabriel-vasile/mimetype"
)

// UploadResult describes a completed upload.
type UploadResult struct {
	Bucket      string
	Key         string
	Size        int64
	ContentType string
	ETag        string
}

// Exists reports whether bucket/key exists.
func (c *Client) Exists(ctx context.Context, bucket, key string) (bool, error) {
	if bucket == "" || key == "" {
		return false, NewObjectError("exists", bucket, key, ErrInvalidInput)
	}
	_, err := c.api.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err == nil {
		return true, nil
	}
	err = mapError(err)
	if IsObjectNotFound(err) {
		return false, nil
	}
	return false, NewObjectError("exists", bucket, key, err)
}

// UploadFile uploads path from the client filesystem to bucket/key.
// metadata is attached as user metadata.
func (c *Client) UploadFile(ctx context.Context, bucket, key, path string, metadata map[string]string) (*UploadResult, error) {
	if bucket == "" || key == "" {
		return nil, NewObjectError("upload", bucket, key, ErrInvalidInput)
	}
	data, err := c.fs.ReadFile(path)
	if err != nil {
		return nil, NewObjectError("upload", bucket, key, fmt.Errorf("read %s: %w", path, err))
	}
	return c.Upload(ctx, bucket, key, path, data, metadata)
}

// Upload stores data at bucket/key. name is only used to detect the
// content type.
func (c *Client) Upload(ctx context.Context, bucket, key, name string, data []byte, metadata map[string]string) (*UploadResult, error) {
	if bucket == "" || key == "" {
		return nil, NewObjectError("upload", bucket, key, ErrInvalidInput)
	}
	contentType := DetectContentType(name, data)

	input := &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	}
	if len(metadata) > 0 {
		input.Metadata = metadata
	}

	out, err := c.api.PutObject(ctx, input)
	if err != nil {
		return nil, NewObjectError("upload", bucket, key, mapError(err))
	}

	c.logger.Debug("uploaded object",
		"bucket", bucket,
		"key", key,
		"size", len(data),
		"content_type", contentType)

	return &UploadResult{
		Bucket:      bucket,
		Key:         key,
		Size:        int64(len(data)),
		ContentType: contentType,
		ETag:        strings.Trim(aws.ToString(out.ETag), `"`),
	}, nil
}

// DetectContentType sniffs data with mimetype and falls back to the file
// extension when sniffing only finds generic binary or text.
func DetectContentType(path string, data []byte) string {
	sniffed := mimetype.Detect(data)
	if sniffed != nil && !sniffed.Is("application/octet-stream") && !sniffed.Is("text/plain") {
		return sniffed.String()
	}
	if byExt := mime.TypeByExtension(filepath.Ext(path)); byExt != "" {
		return byExt
	}
	if sniffed != nil {
		return sniffed.String()
	}
	return "application/octet-stream"
}
