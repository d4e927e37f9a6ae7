// Package env resolves secrets from environment variables.
package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/secrets"
)

// Name is the provider name and ref scheme.
const Name = "env"

// Provider reads secrets from the process environment. The ref path is the
// variable name.
type Provider struct {
	lookup func(string) (string, bool)
}

// Option configures a Provider.
type Option func(*Provider)

// WithLookup replaces os.LookupEnv.
func WithLookup(fn func(string) (string, bool)) Option {
	return func(p *Provider) {
		if fn != nil {
			p.lookup = fn
		}
	}
}

// New creates a Provider.
func New(opts ...Option) *Provider {
	p := &Provider{lookup: os.LookupEnv}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements secrets.Provider.
func (p *Provider) Name() string {
	return Name
}

// Resolve implements secrets.Resolver. An unset or empty variable is
// reported as not found.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	value, ok := p.lookup(ref.Path)
	if !ok || value == "" {
		return nil, fmt.Errorf("environment variable %q: %w", ref.Path, secrets.ErrSecretNotFound)
	}
	return &secrets.Secret{Value: []byte(value), CreatedAt: time.Now()}, nil
}

// Close implements secrets.Provider.
func (p *Provider) Close() error {
	return nil
}
