package s3

import (
	"errors"
	"fmt"
	"net/http"

	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
)

// Sentinel errors. Check them with errors.Is.
var (
	ErrObjectNotFound = errors.New("s3: object not found")
	ErrBucketNotFound = errors.New("s3: bucket not found")
	ErrAccessDenied   = errors.New("s3: access denied")
	ErrInvalidInput   = errors.New("s3: invalid input")
)

// Error is an S3 operation failure with its bucket and key.
type Error struct {
	Op     string
	Bucket string
	Key    string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Bucket != "" && e.Key != "":
		return fmt.Sprintf("s3.%s %s/%s: %v", e.Op, e.Bucket, e.Key, e.Err)
	case e.Bucket != "":
		return fmt.Sprintf("s3.%s bucket %s: %v", e.Op, e.Bucket, e.Err)
	default:
		return fmt.Sprintf("s3.%s: %v", e.Op, e.Err)
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewError creates an Error for op.
func NewError(op string, err error) *Error {
	return &Error{Op: op, Err: err}
}

// NewObjectError creates an Error with bucket and key context.
func NewObjectError(op, bucket, key string, err error) *Error {
	return &Error{Op: op, Bucket: bucket, Key: key, Err: err}
}

// IsObjectNotFound reports whether err means the object does not exist.
func IsObjectNotFound(err error) bool {
	return errors.Is(err, ErrObjectNotFound)
}

// mapError classifies an SDK error, keeping the original in the chain.
func mapError(err error) error {
	if err == nil {
		return nil
	}

	var notFound *types.NotFound
	var noSuchKey *types.NoSuchKey
	var noSuchBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &notFound), errors.As(err, &noSuchKey):
		return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
	case errors.As(err, &noSuchBucket):
		return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NotFound", "NoSuchKey":
			return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		case "NoSuchBucket":
			return fmt.Errorf("%w: %w", ErrBucketNotFound, err)
		case "AccessDenied", "Forbidden":
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) {
		switch respErr.HTTPStatusCode() {
		case http.StatusNotFound:
			return fmt.Errorf("%w: %w", ErrObjectNotFound, err)
		case http.StatusForbidden:
			return fmt.Errorf("%w: %w", ErrAccessDenied, err)
		}
	}
	return err
}
