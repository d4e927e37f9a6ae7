package publish

import (
	"bytes"
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/internal/httpstatus"
)

const (
	// DefaultPyPIURL is the legacy upload endpoint of the public index.
	DefaultPyPIURL = "https://upload.pypi.org/legacy/"

	// PyPIUsername is the user name paired with API tokens.
	PyPIUsername = "__token__"
)

// PyPI publishes sdists and wheels through the legacy upload API.
type PyPI struct {
	url      string
	username string
	token    string
	client   *http.Client
	fs       fs.Filesystem
	logger   *slog.Logger
}

// PyPIOption configures a PyPI publisher.
type PyPIOption func(*PyPI)

// WithRepositoryURL sets the upload endpoint, for example a test index.
func WithRepositoryURL(url string) PyPIOption {
	return func(p *PyPI) {
		if url != "" {
			p.url = url
		}
	}
}

// WithUsername overrides the upload user name.
func WithUsername(username string) PyPIOption {
	return func(p *PyPI) {
		if username != "" {
			p.username = username
		}
	}
}

// WithHTTPClient sets the HTTP client.
func WithHTTPClient(client *http.Client) PyPIOption {
	return func(p *PyPI) {
		if client != nil {
			p.client = client
		}
	}
}

// WithPyPIFilesystem sets the filesystem artifacts are read from when a
// Package has no Root.
func WithPyPIFilesystem(filesystem fs.Filesystem) PyPIOption {
	return func(p *PyPI) {
		if filesystem != nil {
			p.fs = filesystem
		}
	}
}

// WithPyPILogger sets the logger.
func WithPyPILogger(logger *slog.Logger) PyPIOption {
	return func(p *PyPI) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPyPI returns a PyPI publisher authenticating with token.
func NewPyPI(token string, opts ...PyPIOption) *PyPI {
	p := &PyPI{
		url:      DefaultPyPIURL,
		username: PyPIUsername,
		token:    token,
		client:   &http.Client{Timeout: 2 * time.Minute},
		fs:       billy.NewBaseOSFS(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name implements Publisher.
func (p *PyPI) Name() string {
	return "pypi"
}

// Publish uploads every file of pkg. When all files already exist it returns
// ErrAlreadyPublished; a partially uploaded version is completed.
func (p *PyPI) Publish(ctx context.Context, pkg Package) error {
	if err := validate(pkg); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid package")
	}
	if p.token == "" {
		return errors.New(errors.CodeUnauthorized, "pypi token is empty")
	}

	existing := 0
	for _, file := range pkg.Files {
		err := p.upload(ctx, pkg, file)
		switch {
		case err == nil:
			p.logger.Info("uploaded distribution", "file", baseName(file), "package", pkg.Name, "version", pkg.Version)
		case stderrors.Is(err, ErrAlreadyPublished):
			p.logger.Warn("distribution already exists", "file", baseName(file))
			existing++
		default:
			return err
		}
	}
	if existing == len(pkg.Files) {
		return fmt.Errorf("%s %s: %w", pkg.Name, pkg.Version, ErrAlreadyPublished)
	}
	return nil
}

func (p *PyPI) upload(ctx context.Context, pkg Package, file string) error {
	data, err := rootOf(pkg, p.fs).ReadFile(file)
	if err != nil {
		return errors.Wrapf(err, errors.CodePublishFailed, "failed to read %s", file)
	}
	filetype, pyversion, err := DistributionType(baseName(file))
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "unsupported artifact")
	}

	md5sum := md5.Sum(data)
	sha := sha256.Sum256(data)
	fields := [][2]string{
		{":action", "file_upload"},
		{"protocol_version", "1"},
		{"metadata_version", "2.1"},
		{"name", pkg.Name},
		{"version", pkg.Version},
		{"filetype", filetype},
		{"pyversion", pyversion},
		{"md5_digest", hex.EncodeToString(md5sum[:])},
		{"sha256_digest", hex.EncodeToString(sha[:])},
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return errors.Wrap(err, errors.CodeInternal, "failed to build upload form")
		}
	}
	part, err := w.CreateFormFile("content", baseName(file))
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to build upload form")
	}
	if _, err := part.Write(data); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to build upload form")
	}
	if err := w.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "failed to build upload form")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.url, &body)
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "invalid repository url")
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	req.SetBasicAuth(p.username, p.token)

	resp, err := p.client.Do(req)
	if err != nil {
		return errors.Wrapf(err, errors.CodeNetwork, "failed to upload %s", baseName(file))
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	if alreadyExists(resp) {
		return fmt.Errorf("%s: %w", baseName(file), ErrAlreadyPublished)
	}
	return httpstatus.Error(resp, errors.CodePublishFailed, "upload "+baseName(file))
}

// alreadyExists recognizes the index's duplicate file response. Warehouse
// answers 400 with the reason in the status line; other indexes use 409.
func alreadyExists(resp *http.Response) bool {
	if resp.StatusCode == http.StatusConflict {
		return true
	}
	if resp.StatusCode != http.StatusBadRequest {
		return false
	}
	if strings.Contains(strings.ToLower(resp.Status), "already exists") {
		return true
	}
	return strings.Contains(strings.ToLower(httpstatus.ReadBody(resp)), "already exists")
}

// DistributionType returns the upload filetype and pyversion for a
// distribution file name.
func DistributionType(name string) (filetype, pyversion string, err error) {
	switch {
	case strings.HasSuffix(name, ".whl"):
		// name-version(-build)?-python-abi-platform.whl
		parts := strings.Split(strings.TrimSuffix(name, ".whl"), "-")
		if len(parts) < 5 {
			return "", "", fmt.Errorf("malformed wheel name %q", name)
		}
		return "bdist_wheel", parts[len(parts)-3], nil
	case strings.HasSuffix(name, ".tar.gz"), strings.HasSuffix(name, ".zip"):
		return "sdist", "source", nil
	default:
		return "", "", fmt.Errorf("unknown distribution type for %q", name)
	}
}
