package secrets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Config holds the configuration for the Manager.
type Config struct {
	// DefaultProvider resolves references without a scheme.
	DefaultProvider string

	// AutoClear marks resolved secrets to zero themselves after first use.
	AutoClear bool

	// Logger receives one audit record per resolution. The secret value is
	// never logged. Nil disables auditing.
	Logger *slog.Logger
}

// Manager routes references to registered providers.
type Manager struct {
	providers       map[string]Provider
	defaultProvider string
	autoClear       bool
	logger          *slog.Logger
	mu              sync.RWMutex
}

// NewManager creates a Manager.
func NewManager(config *Config) *Manager {
	if config == nil {
		config = &Config{}
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Manager{
		providers:       make(map[string]Provider),
		defaultProvider: config.DefaultProvider,
		autoClear:       config.AutoClear,
		logger:          logger,
	}
}

// RegisterProvider adds provider under name. Names are unique.
func (m *Manager) RegisterProvider(name string, provider Provider) error {
	if name == "" {
		return errors.New("provider name cannot be empty")
	}
	if provider == nil {
		return errors.New("provider cannot be nil")
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.providers[name]; exists {
		return fmt.Errorf("provider with name %q already registered", name)
	}
	m.providers[name] = provider
	return nil
}

// Providers returns the registered provider names, sorted.
func (m *Manager) Providers() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.providers))
	for name := range m.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Resolve resolves ref through its provider. When ref.Key is set the secret
// must be a JSON object and the returned value is that field.
func (m *Manager) Resolve(ctx context.Context, ref SecretRef) (*Secret, error) {
	name := ref.Provider
	if name == "" {
		name = m.defaultProvider
	}
	if name == "" {
		return nil, fmt.Errorf("no provider for %q and no default configured: %w", ref.Path, ErrUnknownProvider)
	}
	if ref.Path == "" {
		return nil, fmt.Errorf("secret reference path cannot be empty: %w", ErrInvalidRef)
	}

	m.mu.RLock()
	provider, exists := m.providers[name]
	m.mu.RUnlock()
	if !exists {
		m.audit(ctx, name, ref, ErrUnknownProvider)
		return nil, fmt.Errorf("provider %q not found: %w", name, ErrUnknownProvider)
	}

	secret, err := provider.Resolve(ctx, ref)
	if err == nil && ref.Key != "" {
		secret, err = extractKey(secret, ref.Key)
	}
	m.audit(ctx, name, ref, err)
	if err != nil {
		return nil, WrapProviderError(name, ref, err, "failed to resolve secret")
	}

	secret.AutoClear = m.autoClear
	return secret, nil
}

// ResolveString parses raw with ParseRef and returns the secret as a string.
// The resolved secret is cleared before returning.
func (m *Manager) ResolveString(ctx context.Context, raw string) (string, error) {
	ref, err := ParseRef(raw)
	if err != nil {
		return "", err
	}
	secret, err := m.Resolve(ctx, ref)
	if err != nil {
		return "", err
	}
	value := string(secret.Value)
	secret.Clear()
	return value, nil
}

// Close closes every provider and empties the registry.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for name, provider := range m.providers {
		if err := provider.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close provider %q: %w", name, err))
		}
	}
	m.providers = make(map[string]Provider)
	return errors.Join(errs...)
}

func (m *Manager) audit(ctx context.Context, provider string, ref SecretRef, err error) {
	attrs := []any{"provider", provider, "path", ref.Path, "success", err == nil}
	if ref.Key != "" {
		attrs = append(attrs, "key", ref.Key)
	}
	if err != nil {
		attrs = append(attrs, "error", err)
	}
	m.logger.InfoContext(ctx, "secret resolved", attrs...)
}

func extractKey(secret *Secret, key string) (*Secret, error) {
	defer secret.Clear()

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(secret.Value, &fields); err != nil {
		return nil, fmt.Errorf("secret is not a JSON object, cannot select %q: %w", key, ErrInvalidRef)
	}
	raw, ok := fields[key]
	if !ok {
		return nil, fmt.Errorf("secret has no field %q: %w", key, ErrSecretNotFound)
	}

	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		// Non-string fields are returned in their JSON form.
		value = string(raw)
	}
	return &Secret{Value: []byte(value), Version: secret.Version, CreatedAt: secret.CreatedAt}, nil
}
