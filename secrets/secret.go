// Package secrets resolves credentials for the release adapters from
// pluggable providers. Configuration never holds a credential directly, only
// a reference of the form scheme://path[#key] that is resolved just in time:
//
//	env://PYPI_TOKEN           environment variable
//	aws://forge/release#pypi   field "pypi" of a JSON secret in AWS Secrets Manager
//	memory://matrix-token      in-memory provider (tests)
//
// Resolved values are copied out and zeroed once used.
package secrets

import (
	"fmt"
	"strings"
	"time"
)

// Secret is a resolved secret value.
type Secret struct {
	// Value is the secret data. It must never be logged.
	Value []byte
	// Version identifies the provider-side version, when known.
	Version   string
	CreatedAt time.Time
	// AutoClear zeroes Value after the first String or Bytes call.
	AutoClear bool
}

// String returns the value as a string, clearing it when AutoClear is set.
func (s *Secret) String() string {
	if s.Value == nil {
		return ""
	}
	value := string(s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Bytes returns a copy of the value, clearing it when AutoClear is set.
func (s *Secret) Bytes() []byte {
	if s.Value == nil {
		return nil
	}
	value := make([]byte, len(s.Value))
	copy(value, s.Value)
	if s.AutoClear {
		s.Clear()
	}
	return value
}

// Clear zeroes the value in memory.
func (s *Secret) Clear() {
	for i := range s.Value {
		s.Value[i] = 0
	}
	s.Value = nil
}

// SecretRef points at a secret without holding its value.
type SecretRef struct {
	// Provider is the registered provider name. Empty selects the manager default.
	Provider string
	// Path identifies the secret within the provider.
	Path string
	// Key selects a field when the secret value is a JSON object.
	Key string
	// Version selects a provider-specific version. Empty means latest.
	Version string
}

// String renders the reference in the form accepted by ParseRef.
func (r SecretRef) String() string {
	var b strings.Builder
	if r.Provider != "" {
		b.WriteString(r.Provider + "://")
	}
	b.WriteString(r.Path)
	if r.Key != "" {
		b.WriteString("#" + r.Key)
	}
	return b.String()
}

// ParseRef parses "scheme://path[#key]". A reference without a scheme uses
// the manager's default provider.
func ParseRef(raw string) (SecretRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return SecretRef{}, NewValidationError("ref", raw, "reference cannot be empty")
	}

	var ref SecretRef
	rest := raw
	if scheme, path, ok := strings.Cut(raw, "://"); ok {
		if scheme == "" {
			return SecretRef{}, NewValidationError("ref", raw, "scheme cannot be empty")
		}
		ref.Provider = scheme
		rest = path
	}
	if path, key, ok := strings.Cut(rest, "#"); ok {
		if key == "" {
			return SecretRef{}, NewValidationError("ref", raw, "key cannot be empty")
		}
		rest, ref.Key = path, key
	}
	if rest == "" {
		return SecretRef{}, NewValidationError("ref", raw, "path cannot be empty")
	}
	ref.Path = rest
	return ref, nil
}

// MustParseRef is ParseRef that panics on error.
func MustParseRef(raw string) SecretRef {
	ref, err := ParseRef(raw)
	if err != nil {
		panic(fmt.Sprintf("secrets: %v", err))
	}
	return ref
}
