// Package s3 is a small Amazon S3 client for publishing release artifacts.
// Files are read through fs.Filesystem and uploaded with a detected content
// type; existence checks use HeadObject so a publish can be repeated safely.
package s3

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

// S3API is the subset of the S3 client used by Client. It exists so tests
// can substitute a mock.
type S3API interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
}

// ClientConfig holds client settings collected from options.
type ClientConfig struct {
	Region         string
	MaxRetries     int
	Timeout        time.Duration
	ForcePathStyle bool
	// Endpoint overrides the service endpoint and switches to static test
	// credentials. Used for LocalStack.
	Endpoint   string
	Filesystem fs.Filesystem
	Logger     *slog.Logger
}

// Option configures a Client.
type Option func(*ClientConfig)

// WithRegion sets the AWS region.
func WithRegion(region string) Option {
	return func(c *ClientConfig) {
		c.Region = region
	}
}

// WithMaxRetries sets the SDK retry limit.
func WithMaxRetries(maxRetries int) Option {
	return func(c *ClientConfig) {
		c.MaxRetries = maxRetries
	}
}

// WithTimeout bounds each HTTP request.
func WithTimeout(timeout time.Duration) Option {
	return func(c *ClientConfig) {
		c.Timeout = timeout
	}
}

// WithForcePathStyle uses path-style addressing.
func WithForcePathStyle(enabled bool) Option {
	return func(c *ClientConfig) {
		c.ForcePathStyle = enabled
	}
}

// WithEndpoint sets a custom endpoint.
func WithEndpoint(endpoint string) Option {
	return func(c *ClientConfig) {
		c.Endpoint = endpoint
	}
}

// WithFilesystem sets the filesystem files are read from.
func WithFilesystem(filesystem fs.Filesystem) Option {
	return func(c *ClientConfig) {
		c.Filesystem = filesystem
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *ClientConfig) {
		c.Logger = logger
	}
}

// Client uploads files to S3.
type Client struct {
	api    S3API
	fs     fs.Filesystem
	logger *slog.Logger
}

// New creates a Client using the default AWS credential chain.
func New(ctx context.Context, opts ...Option) (*Client, error) {
	cfg := &ClientConfig{MaxRetries: 3}
	for _, opt := range opts {
		opt(cfg)
	}

	var loadOpts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.Endpoint != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("test", "test", "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, NewError("client initialization", err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1"
	}
	if cfg.MaxRetries > 0 {
		awsCfg.RetryMaxAttempts = cfg.MaxRetries
	}

	api := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.UsePathStyle = cfg.ForcePathStyle || cfg.Endpoint != ""
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
		if cfg.Timeout > 0 {
			o.HTTPClient = &http.Client{Timeout: cfg.Timeout}
		}
	})
	return newClient(api, cfg), nil
}

// NewWithClient creates a Client around an existing S3API.
func NewWithClient(api S3API, opts ...Option) *Client {
	cfg := &ClientConfig{}
	for _, opt := range opts {
		opt(cfg)
	}
	return newClient(api, cfg)
}

func newClient(api S3API, cfg *ClientConfig) *Client {
	c := &Client{api: api, fs: cfg.Filesystem, logger: cfg.Logger}
	if c.fs == nil {
		c.fs = billy.NewOSFS("/")
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	return c
}
