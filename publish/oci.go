package publish

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"oras.land/oras-go/v2"
	"oras.land/oras-go/v2/content"
	"oras.land/oras-go/v2/errdef"
	"oras.land/oras-go/v2/registry/remote"
	"oras.land/oras-go/v2/registry/remote/auth"
	"oras.land/oras-go/v2/registry/remote/retry"

	s3client "github.com/input-output-hk/catalyst-forge-release/aws/s3"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/fs/billy"
)

// ArtifactMediaType is the artifactType of release manifests pushed by OCI.
const ArtifactMediaType = "application/vnd.forge.release.v1"

// Manifest annotations set on every pushed release.
const (
	AnnotationPackage = "dev.forge.release.package"
	AnnotationVersion = "org.opencontainers.image.version"
)

// OCI publishes the artifacts of a release as a single OCI artifact, one
// layer per file, tagged with the release version.
type OCI struct {
	target     oras.Target
	repository string
	fs         fs.Filesystem
	logger     *slog.Logger
}

// OCIOption configures an OCI publisher.
type OCIOption func(*OCI)

// WithOCIFilesystem sets the filesystem artifacts are read from when a
// package has no Root.
func WithOCIFilesystem(filesystem fs.Filesystem) OCIOption {
	return func(o *OCI) {
		if filesystem != nil {
			o.fs = filesystem
		}
	}
}

// WithOCILogger sets the logger.
func WithOCILogger(logger *slog.Logger) OCIOption {
	return func(o *OCI) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// NewOCI returns a publisher pushing to target. repository names the
// target in logs and errors.
func NewOCI(target oras.Target, repository string, opts ...OCIOption) *OCI {
	o := &OCI{
		target:     target,
		repository: repository,
		fs:         billy.NewBaseOSFS(),
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// OCIAuth configures access to a registry.
type OCIAuth struct {
	// Username and Password are static credentials. Without them the
	// Docker credential chain is not consulted and requests are anonymous.
	Username string
	Password string

	// PlainHTTP talks to the registry without TLS.
	PlainHTTP bool

	// Transport overrides the HTTP transport.
	Transport http.RoundTripper
}

// NewOCIRepository opens the remote repository named by reference, for
// example "ghcr.io/org/widgets". A tag or digest in reference is ignored.
func NewOCIRepository(reference string, opts OCIAuth) (*remote.Repository, error) {
	repoPath := repositoryPath(reference)
	repo, err := remote.NewRepository(repoPath)
	if err != nil {
		return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid oci repository %q", reference)
	}
	repo.PlainHTTP = opts.PlainHTTP

	transport := opts.Transport
	if transport == nil {
		transport = retry.NewTransport(http.DefaultTransport)
	}
	client := &auth.Client{
		Client: &http.Client{Transport: transport},
		Cache:  auth.NewCache(),
	}
	client.SetUserAgent("forge-release")
	if opts.Username != "" {
		client.Credential = auth.StaticCredential(repo.Reference.Registry, auth.Credential{
			Username: opts.Username,
			Password: opts.Password,
		})
	}
	repo.Client = client
	return repo, nil
}

// repositoryPath strips a tag or digest from reference. Colons before the
// last slash belong to a registry port.
func repositoryPath(reference string) string {
	head, tail := "", reference
	if i := strings.LastIndex(reference, "/"); i != -1 {
		head, tail = reference[:i+1], reference[i+1:]
	}
	if at := strings.Index(tail, "@"); at != -1 {
		tail = tail[:at]
	}
	if colon := strings.Index(tail, ":"); colon != -1 {
		tail = tail[:colon]
	}
	return head + tail
}

// Name implements Publisher.
func (o *OCI) Name() string {
	return "oci"
}

// Publish pushes the artifacts of pkg and tags the manifest with its
// version. An existing tag returns ErrAlreadyPublished; tags are never
// moved.
func (o *OCI) Publish(ctx context.Context, pkg Package) error {
	if err := validate(pkg); err != nil {
		return errors.Wrap(err, errors.CodeInvalidInput, "invalid package")
	}
	ref := o.repository + ":" + pkg.Version

	if _, err := o.target.Resolve(ctx, pkg.Version); err == nil {
		o.logger.Warn("release already pushed", "reference", ref)
		return fmt.Errorf("%s: %w", ref, ErrAlreadyPublished)
	} else if !stderrors.Is(err, errdef.ErrNotFound) {
		return mapOCIError(err, "failed to resolve "+ref)
	}

	root := rootOf(pkg, o.fs)
	layers := make([]ocispec.Descriptor, 0, len(pkg.Files))
	for _, file := range pkg.Files {
		data, err := root.ReadFile(file)
		if err != nil {
			return errors.Wrapf(err, errors.CodePublishFailed, "failed to read %s", file)
		}

		desc := content.NewDescriptorFromBytes(s3client.DetectContentType(file, data), data)
		exists, err := o.target.Exists(ctx, desc)
		if err != nil {
			return mapOCIError(err, "failed to check "+baseName(file))
		}
		// Blobs of an interrupted push are already in place.
		if !exists {
			if err := o.target.Push(ctx, desc, bytes.NewReader(data)); err != nil && !stderrors.Is(err, errdef.ErrAlreadyExists) {
				return mapOCIError(err, "failed to push "+baseName(file))
			}
		}
		desc.Annotations = map[string]string{ocispec.AnnotationTitle: baseName(file)}
		layers = append(layers, desc)

		o.logger.Debug("pushed layer",
			"file", file,
			"digest", desc.Digest.String(),
			"size", desc.Size)
	}

	manifest, err := oras.PackManifest(ctx, o.target, oras.PackManifestVersion1_1, ArtifactMediaType, oras.PackManifestOptions{
		Layers: layers,
		ManifestAnnotations: map[string]string{
			AnnotationPackage: pkg.Name,
			AnnotationVersion: pkg.Version,
		},
	})
	if err != nil {
		return mapOCIError(err, "failed to pack manifest")
	}
	if err := o.target.Tag(ctx, manifest, pkg.Version); err != nil {
		return mapOCIError(err, "failed to tag "+ref)
	}

	o.logger.Info("pushed release",
		"reference", ref,
		"digest", manifest.Digest.String(),
		"files", len(layers))
	return nil
}

func mapOCIError(err error, msg string) error {
	switch {
	case stderrors.Is(err, auth.ErrBasicCredentialNotFound):
		return errors.Wrap(err, errors.CodeUnauthorized, msg)
	case stderrors.Is(err, context.DeadlineExceeded):
		return errors.Wrap(err, errors.CodeTimeout, msg)
	default:
		return errors.Wrap(err, errors.CodePublishFailed, msg)
	}
}
