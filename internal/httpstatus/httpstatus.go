// Package httpstatus classifies HTTP responses from the release collaborators
// into platform error codes.
package httpstatus

import (
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/input-output-hk/catalyst-forge-release/errors"
)

// maxBody bounds how much of an error response is kept in the error message.
const maxBody = 512

// Code maps an HTTP status to an error code. fallback is used for statuses
// that carry no more specific meaning.
func Code(status int, fallback errors.ErrorCode) errors.ErrorCode {
	switch {
	case status == http.StatusUnauthorized:
		return errors.CodeUnauthorized
	case status == http.StatusForbidden:
		return errors.CodeForbidden
	case status == http.StatusNotFound:
		return errors.CodeNotFound
	case status == http.StatusConflict:
		return errors.CodeConflict
	case status == http.StatusTooManyRequests:
		return errors.CodeRateLimit
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		return errors.CodeTimeout
	case status == http.StatusBadGateway || status == http.StatusServiceUnavailable:
		return errors.CodeUnavailable
	case status >= 500:
		return errors.CodeUnavailable
	default:
		return fallback
	}
}

// ReadBody returns at most maxBody bytes of the response body, trimmed.
func ReadBody(resp *http.Response) string {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	return strings.TrimSpace(string(b))
}

// Error builds a PlatformError for a non-success response.
func Error(resp *http.Response, fallback errors.ErrorCode, op string) error {
	body := ReadBody(resp)
	msg := fmt.Sprintf("%s: unexpected status %d", op, resp.StatusCode)
	if body != "" {
		msg += ": " + body
	}
	return errors.New(Code(resp.StatusCode, fallback), msg)
}
