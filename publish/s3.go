package publish

import (
	"context"
	"fmt"
	"log/slog"
	"path"
	"strings"

	s3client "github.com/input-output-hk/catalyst-forge-release/aws/s3"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

// ObjectStore is the subset of the S3 client used for publishing.
type ObjectStore interface {
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Upload(ctx context.Context, bucket, key, name string, data []byte, metadata map[string]string) (*s3client.UploadResult, error)
}

// S3 publishes artifacts to <bucket>/<prefix>/<name>/<version>/<file>.
type S3 struct {
	store  ObjectStore
	bucket string
	prefix string
	fs     fs.Filesystem
	logger *slog.Logger
}

// NewS3 returns an S3 publisher. Artifacts of packages without a Root are
// read from the host filesystem.
func NewS3(store ObjectStore, bucket, prefix string, logger *slog.Logger) *S3 {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &S3{
		store:  store,
		bucket: bucket,
		prefix: strings.Trim(prefix, "/"),
		fs:     billy.NewBaseOSFS(),
		logger: logger,
	}
}

// Name implements Publisher.
func (s *S3) Name() string {
	return "s3"
}

// Key returns the object key for file in pkg.
func (s *S3) Key(pkg Package, file string) string {
	return path.Join(s.prefix, pkg.Name, pkg.Version, baseName(file))
}

// Publish uploads the artifacts of pkg that are not in the bucket yet. When
// every artifact is already there it returns ErrAlreadyPublished.
func (s *S3) Publish(ctx context.Context, pkg Package) error {
	if err := validate(pkg); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid package")
	}
	if s.bucket == "" {
		return errors.New(errors.CodeInvalidConfig, "s3 bucket is not set")
	}
	root := rootOf(pkg, s.fs)

	existing := 0
	for _, file := range pkg.Files {
		key := s.Key(pkg, file)
		exists, err := s.store.Exists(ctx, s.bucket, key)
		if err != nil {
			return errors.Wrapf(err, errors.CodePublishFailed, "failed to check s3://%s/%s", s.bucket, key)
		}
		if exists {
			existing++
			s.logger.Warn("artifact already published", "bucket", s.bucket, "key", key)
			continue
		}

		data, err := root.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, errors.CodePublishFailed, "failed to read %s", file)
		}
		res, err := s.store.Upload(ctx, s.bucket, key, file, data, map[string]string{
			"package": pkg.Name,
			"version": pkg.Version,
		})
		if err != nil {
			return errors.Wrapf(err, errors.CodePublishFailed, "failed to upload %s", baseName(file))
		}
		s.logger.Info("uploaded artifact",
			"bucket", s.bucket,
			"key", key,
			"size", res.Size,
			"content_type", res.ContentType)
	}

	if existing == len(pkg.Files) {
		return fmt.Errorf("s3://%s/%s: %w", s.bucket, path.Join(s.prefix, pkg.Name, pkg.Version), ErrAlreadyPublished)
	}
	return nil
}
