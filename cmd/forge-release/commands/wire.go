package commands

import (
	"context"
	"io"
	"log/slog"
	"strings"

	"github.com/input-output-hk/catalyst-forge-release/aws/s3"
	"github.com/input-output-hk/catalyst-forge-release/config"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/executor"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/hosting"
	"github.com/input-output-hk/catalyst-forge-release/journal"
	"github.com/input-output-hk/catalyst-forge-release/notify"
	"github.com/input-output-hk/catalyst-forge-release/publish"
	"github.com/input-output-hk/catalyst-forge-release/release"
	"github.com/input-output-hk/catalyst-forge-release/secrets"
	awsprovider "github.com/input-output-hk/catalyst-forge-release/secrets/providers/aws"
	"github.com/input-output-hk/catalyst-forge-release/secrets/providers/env"
)

// gitTokenUser is the user name presented with token authentication. Hosts
// that authenticate by token ignore it.
const gitTokenUser = "x-access-token"

// wiring holds what is needed to turn a release definition into an
// orchestrator.
type wiring struct {
	cfg      *config.Config
	fs       fs.Filesystem
	secrets  *secrets.Manager
	journal  journal.Store
	workRoot string
	gitToken string
	output   io.Writer
	logger   *slog.Logger
}

// secretRefs returns every secret reference in cfg.
func secretRefs(cfg *config.Config, extra ...string) []string {
	var refs []string
	add := func(ref string) {
		if ref != "" {
			refs = append(refs, ref)
		}
	}
	for _, ref := range extra {
		add(ref)
	}
	if cfg.Hosting.Type == "github" {
		add(cfg.Hosting.Token)
	}
	if pypi, ok := cfg.Publish.AsPyPI(); ok {
		add(pypi.Token)
	}
	if oci, ok := cfg.Publish.AsOCI(); ok {
		add(oci.Password)
	}
	if cfg.Notify != nil {
		add(cfg.Notify.Token)
		add(cfg.Notify.Webhook)
	}
	return refs
}

// newSecretManager registers the providers the given references need. The
// environment provider is always available; AWS Secrets Manager is only
// set up when a reference uses it, so runs without AWS credentials work.
func newSecretManager(ctx context.Context, refs []string, logger *slog.Logger) (*secrets.Manager, error) {
	m := secrets.NewManager(&secrets.Config{DefaultProvider: env.Name, AutoClear: true, Logger: logger})
	if err := m.RegisterProvider(env.Name, env.New()); err != nil {
		return nil, errors.Wrap(err, errors.CodeInternal, "failed to register secret provider")
	}

	for _, ref := range refs {
		if !strings.HasPrefix(ref, awsprovider.Name+"://") {
			continue
		}
		p, err := awsprovider.New(ctx)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to set up AWS Secrets Manager")
		}
		if err := m.RegisterProvider(awsprovider.Name, p); err != nil {
			return nil, errors.Wrap(err, errors.CodeInternal, "failed to register secret provider")
		}
		break
	}
	return m, nil
}

func (w *wiring) resolve(ctx context.Context, what, ref string) (string, error) {
	value, err := w.secrets.ResolveString(ctx, ref)
	if err != nil {
		return "", errors.Wrapf(err, errors.CodeUnauthorized, "failed to resolve %s", what)
	}
	return value, nil
}

// releaseConfig maps the release definition onto the orchestrator config.
func (w *wiring) releaseConfig() (release.Config, error) {
	store, err := w.cfg.VersionStore()
	if err != nil {
		return release.Config{}, err
	}
	return release.Config{
		Project:        w.cfg.Project,
		Repository:     w.cfg.Repository,
		Remote:         w.cfg.Remote,
		MutableBranch:  w.cfg.Branches.Mutable,
		StableBranch:   w.cfg.Branches.Stable,
		VersionStore:   store,
		WorkRoot:       w.workRoot,
		Author:         w.cfg.Signature(),
		NotifyChannel:  w.cfg.NotifyChannel(),
		NotifyTemplate: w.cfg.NotifyTemplate(),
	}, nil
}

// collaborators builds the external systems named by the definition.
func (w *wiring) collaborators(ctx context.Context) (release.Collaborators, error) {
	spec, err := w.cfg.BuildSpec()
	if err != nil {
		return release.Collaborators{}, err
	}

	opener := release.GitOpener{FS: w.fs}
	if w.gitToken != "" {
		token, err := w.resolve(ctx, "git token", w.gitToken)
		if err != nil {
			return release.Collaborators{}, err
		}
		opener.Auth = git.NewTokenAuth(gitTokenUser, token)
	}

	collab := release.Collaborators{
		Repos:   opener,
		Journal: w.journal,
		Builder: release.CommandBuilder{
			Spec: spec,
			Options: []executor.BuilderOption{
				executor.WithBuildLogger(w.logger),
				executor.WithBuildOutput(w.output),
			},
		},
	}

	if collab.Recorder, err = w.recorder(ctx, &opener); err != nil {
		return release.Collaborators{}, err
	}
	collab.Repos = opener
	if collab.Publisher, err = w.publisher(ctx); err != nil {
		return release.Collaborators{}, err
	}
	if collab.Notifier, err = w.notifier(ctx); err != nil {
		return release.Collaborators{}, err
	}
	return collab, nil
}

// recorder returns the GitHub recorder for github hosting. The same token
// authenticates git pushes when no separate git token is configured.
//
//nolint:ireturn // recorders are selected by configuration
func (w *wiring) recorder(ctx context.Context, opener *release.GitOpener) (hosting.Recorder, error) {
	h := w.cfg.Hosting
	switch h.Type {
	case "", "git-tag":
		return nil, nil
	case "github":
		token, err := w.resolve(ctx, "hosting token", h.Token)
		if err != nil {
			return nil, err
		}
		if opener.Auth == nil {
			opener.Auth = git.NewTokenAuth(gitTokenUser, token)
		}
		opts := []hosting.GitHubOption{hosting.WithLogger(w.logger)}
		if h.BaseURL != "" {
			opts = append(opts, hosting.WithBaseURL(h.BaseURL))
		}
		return hosting.NewGitHub(h.Owner, h.Repo, token, opts...), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown hosting type %q", h.Type)
	}
}

//nolint:ireturn // publishers are selected by configuration
func (w *wiring) publisher(ctx context.Context) (publish.Publisher, error) {
	if len(w.cfg.Publish) == 0 {
		return nil, nil
	}
	if pypi, ok := w.cfg.Publish.AsPyPI(); ok {
		token, err := w.resolve(ctx, "pypi token", pypi.Token)
		if err != nil {
			return nil, err
		}
		return publish.NewPyPI(token,
			publish.WithRepositoryURL(pypi.RepositoryURL),
			publish.WithUsername(pypi.Username),
			publish.WithPyPILogger(w.logger),
		), nil
	}
	if cfg, ok := w.cfg.Publish.AsS3(); ok {
		opts := []s3.Option{s3.WithLogger(w.logger)}
		if cfg.Region != "" {
			opts = append(opts, s3.WithRegion(cfg.Region))
		}
		if cfg.Endpoint != "" {
			opts = append(opts, s3.WithEndpoint(cfg.Endpoint), s3.WithForcePathStyle(true))
		}
		client, err := s3.New(ctx, opts...)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeUnavailable, "failed to create S3 client")
		}
		return publish.NewS3(client, cfg.Bucket, cfg.Prefix, w.logger), nil
	}
	if cfg, ok := w.cfg.Publish.AsOCI(); ok {
		opts := publish.OCIAuth{Username: cfg.Username, PlainHTTP: cfg.PlainHTTP}
		if cfg.Password != "" {
			password, err := w.resolve(ctx, "registry password", cfg.Password)
			if err != nil {
				return nil, err
			}
			opts.Password = password
		}
		repo, err := publish.NewOCIRepository(cfg.Repository, opts)
		if err != nil {
			return nil, err
		}
		return publish.NewOCI(repo, cfg.Repository, publish.WithOCILogger(w.logger)), nil
	}
	return nil, errors.Newf(errors.CodeInvalidConfig, "unknown publisher type %q", w.cfg.Publish.Type())
}

//nolint:ireturn // notifiers are selected by configuration
func (w *wiring) notifier(ctx context.Context) (notify.Notifier, error) {
	n := w.cfg.Notify
	if n == nil {
		return nil, nil
	}
	switch n.Type {
	case "matrix":
		token, err := w.resolve(ctx, "matrix token", n.Token)
		if err != nil {
			return nil, err
		}
		return notify.NewMatrix(n.Homeserver, token, notify.WithMatrixLogger(w.logger)), nil
	case "slack":
		webhook, err := w.resolve(ctx, "slack webhook", n.Webhook)
		if err != nil {
			return nil, err
		}
		return notify.NewSlack(webhook, nil, w.logger), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidConfig, "unknown notifier type %q", n.Type)
	}
}

// orchestrator builds a release orchestrator from the wiring.
func (w *wiring) orchestrator(ctx context.Context, opts ...release.Option) (*release.Orchestrator, error) {
	cfg, err := w.releaseConfig()
	if err != nil {
		return nil, err
	}
	collab, err := w.collaborators(ctx)
	if err != nil {
		return nil, err
	}
	return release.New(cfg, collab, append([]release.Option{release.WithLogger(w.logger)}, opts...)...)
}
