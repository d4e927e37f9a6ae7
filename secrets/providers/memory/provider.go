// Package memory provides an in-memory secret provider for tests and local
// dry runs.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/secrets"
)

// Name is the provider name and ref scheme.
const Name = "memory"

// Provider keeps secrets in a map. It is safe for concurrent use.
type Provider struct {
	store map[string][]byte
	mu    sync.RWMutex
}

// New creates a Provider seeded with values.
func New(values map[string]string) *Provider {
	p := &Provider{store: make(map[string][]byte, len(values))}
	for path, value := range values {
		p.store[path] = []byte(value)
	}
	return p
}

// Name implements secrets.Provider.
func (p *Provider) Name() string {
	return Name
}

// Set stores value at path, replacing any previous value.
func (p *Provider) Set(path, value string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if old, ok := p.store[path]; ok {
		clear(old)
	}
	p.store[path] = []byte(value)
}

// Resolve implements secrets.Resolver. The returned value is a copy.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("resolve operation cancelled: %w", err)
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	value, ok := p.store[ref.Path]
	if !ok {
		return nil, fmt.Errorf("secret %q: %w", ref.Path, secrets.ErrSecretNotFound)
	}
	out := make([]byte, len(value))
	copy(out, value)
	return &secrets.Secret{Value: out, CreatedAt: time.Now()}, nil
}

// Close zeroes and drops every stored secret.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for path, value := range p.store {
		clear(value)
		delete(p.store, path)
	}
	return nil
}
