package secrets

import "context"

// Resolver fetches a secret by reference.
type Resolver interface {
	Resolve(ctx context.Context, ref SecretRef) (*Secret, error)
}

// Provider is a named secret backend.
type Provider interface {
	Resolver

	// Name returns the provider identifier, which is also its ref scheme.
	Name() string

	// Close releases any resources held by the provider.
	Close() error
}
