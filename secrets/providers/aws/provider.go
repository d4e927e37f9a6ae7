// Package aws resolves secrets from AWS Secrets Manager.
//
//	provider, err := aws.New(ctx, aws.WithRegion("eu-central-1"))
//	manager.RegisterProvider(aws.Name, provider)
//	token, err := manager.ResolveString(ctx, "aws://forge/release#pypi")
//
// For LocalStack, point the client at the container with WithEndpoint.
package aws

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-release/secrets"
)

// Name is the provider name and ref scheme.
const Name = "aws"

// Version stages accepted in SecretRef.Version. Anything else is a version ID.
var versionStages = map[string]bool{
	"AWSCURRENT":  true,
	"AWSPREVIOUS": true,
	"AWSPENDING":  true,
}

// SecretsManagerAPI is the subset of the Secrets Manager client the
// provider calls. It exists so tests can substitute a mock.
type SecretsManagerAPI interface {
	GetSecretValue(
		ctx context.Context,
		params *secretsmanager.GetSecretValueInput,
		optFns ...func(*secretsmanager.Options),
	) (*secretsmanager.GetSecretValueOutput, error)
}

// Config holds the provider configuration.
type Config struct {
	Region     string
	MaxRetries int
	// Endpoint overrides the service endpoint and switches to static test
	// credentials. Used for LocalStack.
	Endpoint string
}

// Option configures the provider.
type Option func(*Config)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *Config) {
		c.Region = region
	}
}

// WithMaxRetries sets the SDK retry limit.
func WithMaxRetries(maxRetries int) Option {
	return func(c *Config) {
		c.MaxRetries = maxRetries
	}
}

// WithEndpoint sets a custom endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *Config) {
		c.Endpoint = endpoint
	}
}

// Provider implements secrets.Provider for AWS Secrets Manager.
type Provider struct {
	client SecretsManagerAPI
}

// New loads the default AWS configuration and creates a Provider.
func New(ctx context.Context, opts ...Option) (*Provider, error) {
	cfg := &Config{}
	for _, opt := range opts {
		opt(cfg)
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.MaxRetries > 0 {
		loadOpts = append(loadOpts, config.WithRetryMaxAttempts(cfg.MaxRetries))
	}
	if cfg.Endpoint != "" {
		if cfg.Region == "" {
			loadOpts = append(loadOpts, config.WithRegion("us-east-1"))
		}
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := secretsmanager.NewFromConfig(awsCfg, func(o *secretsmanager.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return &Provider{client: client}, nil
}

// NewWithClient creates a Provider around an existing client.
func NewWithClient(client SecretsManagerAPI) *Provider {
	return &Provider{client: client}
}

// Name implements secrets.Provider.
func (p *Provider) Name() string {
	return Name
}

// Resolve implements secrets.Resolver. String and binary secrets are both
// returned as bytes.
func (p *Provider) Resolve(ctx context.Context, ref secrets.SecretRef) (*secrets.Secret, error) {
	if ref.Path == "" {
		return nil, fmt.Errorf("secret reference path cannot be empty: %w", secrets.ErrInvalidRef)
	}

	input := &secretsmanager.GetSecretValueInput{SecretId: aws.String(ref.Path)}
	if ref.Version != "" {
		if versionStages[ref.Version] {
			input.VersionStage = aws.String(ref.Version)
		} else {
			input.VersionId = aws.String(ref.Version)
		}
	}

	output, err := p.client.GetSecretValue(ctx, input)
	if err != nil {
		return nil, mapAWSError(ref, err)
	}

	var value []byte
	switch {
	case output.SecretString != nil:
		value = []byte(*output.SecretString)
	case output.SecretBinary != nil:
		value = output.SecretBinary
	default:
		return nil, fmt.Errorf("secret %q has no value: %w", ref.Path, secrets.ErrProviderError)
	}

	secret := &secrets.Secret{Value: value, Version: aws.ToString(output.VersionId)}
	if output.CreatedDate != nil {
		secret.CreatedAt = *output.CreatedDate
	}
	return secret, nil
}

// Close implements secrets.Provider. The SDK client holds nothing to release.
func (p *Provider) Close() error {
	return nil
}

func mapAWSError(ref secrets.SecretRef, err error) error {
	var rnf *types.ResourceNotFoundException
	if errors.As(err, &rnf) {
		return fmt.Errorf("secret %q not found: %w", ref.Path, secrets.ErrSecretNotFound)
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		code := apiErr.ErrorCode()
		if code == "AccessDeniedException" || strings.Contains(strings.ToLower(apiErr.ErrorMessage()), "access denied") {
			return fmt.Errorf("access denied for secret %q: %w", ref.Path, secrets.ErrAccessDenied)
		}
		return fmt.Errorf("secret %q: %s: %w", ref.Path, code,
			secrets.NewProviderError(Name, ref, err))
	}
	return fmt.Errorf("failed to resolve secret %q: %w", ref.Path, secrets.NewProviderError(Name, ref, err))
}
