// Package errors provides the structured error type shared by the release
// tooling. Errors carry a string code for classification, a message, optional
// context and the wrapped cause.
package errors

// ErrorCode represents a specific error condition.
// Codes are string-based so they read well in logs and serialize naturally.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested resource does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates a resource already exists and cannot be created again.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeConflict indicates a resource state conflict that prevents the operation.
	CodeConflict ErrorCode = "CONFLICT"

	// Permission errors.

	// CodeUnauthorized indicates the request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeForbidden indicates the authenticated principal lacks permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeConfigLoadFailed indicates the configuration source could not be read or compiled.
	CodeConfigLoadFailed ErrorCode = "CONFIG_LOAD_FAILED"

	// CodeConfigDecodeFailed indicates the configuration could not be decoded into Go types.
	CodeConfigDecodeFailed ErrorCode = "CONFIG_DECODE_FAILED"

	// Infrastructure errors.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the rate limit has been exceeded.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeStorage indicates the local state store failed.
	CodeStorage ErrorCode = "STORAGE_ERROR"

	// Execution errors.

	// CodeExecutionFailed indicates a general execution failure.
	CodeExecutionFailed ErrorCode = "EXECUTION_FAILED"

	// CodeBuildFailed indicates a build operation failed.
	CodeBuildFailed ErrorCode = "BUILD_FAILED"

	// CodePublishFailed indicates a publish operation failed.
	CodePublishFailed ErrorCode = "PUBLISH_FAILED"

	// CodeNotifyFailed indicates a notification could not be delivered.
	CodeNotifyFailed ErrorCode = "NOTIFY_FAILED"

	// System errors.

	// CodeInternal indicates an internal error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeUnavailable indicates a remote service is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// retryableCodes lists the codes that describe transient failures.
var retryableCodes = map[ErrorCode]bool{
	CodeNetwork:     true,
	CodeTimeout:     true,
	CodeRateLimit:   true,
	CodeUnavailable: true,
}

// Retryable reports whether errors with this code are usually transient.
func (c ErrorCode) Retryable() bool {
	return retryableCodes[c]
}
