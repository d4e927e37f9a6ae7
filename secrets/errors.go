package secrets

import (
	"errors"
	"fmt"
)

var (
	// ErrSecretNotFound indicates the provider has no such secret.
	ErrSecretNotFound = errors.New("secret not found")

	// ErrProviderError indicates a backend failure not covered by another error.
	ErrProviderError = errors.New("provider error")

	// ErrInvalidRef indicates a malformed SecretRef.
	ErrInvalidRef = errors.New("invalid secret reference")

	// ErrAccessDenied indicates the credentials in use may not read the secret.
	ErrAccessDenied = errors.New("access denied")

	// ErrUnknownProvider indicates a reference to an unregistered provider.
	ErrUnknownProvider = errors.New("unknown secret provider")
)

// ProviderError wraps a provider failure with the provider and reference.
type ProviderError struct {
	Provider string
	Ref      SecretRef
	Err      error
}

// Error implements the error interface. The secret value never appears here.
func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider %q error for secret %q: %v", e.Provider, e.Ref.Path, e.Err)
}

// Unwrap returns the underlying error.
func (e *ProviderError) Unwrap() error {
	return e.Err
}

// NewProviderError creates a ProviderError.
func NewProviderError(provider string, ref SecretRef, err error) *ProviderError {
	return &ProviderError{Provider: provider, Ref: ref, Err: err}
}

// IsProviderError reports whether err contains a ProviderError.
func IsProviderError(err error) bool {
	var pe *ProviderError
	return errors.As(err, &pe)
}

// WrapProviderError wraps err in a ProviderError prefixed with msg.
func WrapProviderError(provider string, ref SecretRef, err error, msg string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", msg, NewProviderError(provider, ref, err))
}

// ValidationError reports an invalid reference or value.
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %q: %s (value: %q)", e.Field, e.Message, e.Value)
}

// Is lets ValidationError match ErrInvalidRef.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidRef
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value, message string) *ValidationError {
	return &ValidationError{Field: field, Value: value, Message: message}
}

// IsValidationError reports whether err contains a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
