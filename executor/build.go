package executor

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
)

// VersionEnvVar carries the version being released into the build command.
const VersionEnvVar = "RELEASE_VERSION"

// DefaultArtifactPattern is used when a BuildSpec names no artifacts.
const DefaultArtifactPattern = "dist/*"

// BuildSpec describes how a project produces its distribution artifacts.
type BuildSpec struct {
	// Command is the program and its arguments.
	Command []string

	// Env is added to the build environment.
	Env map[string]string

	// Artifacts are glob patterns, relative to the working tree, that must
	// match at least one file after a successful build.
	Artifacts []string

	Retries    int
	RetryDelay time.Duration
}

// Builder runs a BuildSpec in a working tree.
type Builder struct {
	exec   Executor
	tree   fs.Filesystem
	dir    string
	spec   BuildSpec
	output io.Writer
	logger *slog.Logger
}

// BuilderOption configures a Builder.
type BuilderOption func(*Builder)

// WithBuildLogger sets the Builder logger.
func WithBuildLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithBuildOutput streams build output to w.
func WithBuildOutput(w io.Writer) BuilderOption {
	return func(b *Builder) {
		b.output = w
	}
}

// WithExecutor replaces the command executor.
func WithExecutor(e Executor) BuilderOption {
	return func(b *Builder) {
		if e != nil {
			b.exec = e
		}
	}
}

// NewBuilder returns a Builder. tree is the working tree used to collect
// artifacts; dir is the same tree's location on the host, where the command
// runs.
func NewBuilder(spec BuildSpec, tree fs.Filesystem, dir string, opts ...BuilderOption) *Builder {
	b := &Builder{
		exec:   New(),
		tree:   tree,
		dir:    dir,
		spec:   spec,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Build runs the build command for version and returns the artifact paths
// relative to the working tree, sorted and without duplicates.
func (b *Builder) Build(ctx context.Context, version string) ([]string, error) {
	if len(b.spec.Command) == 0 {
		return nil, errors.New(errors.CodeInvalidConfig, "build command is empty")
	}

	opts := []Option{
		WithCombinedOutput(),
		WithWorkingDir(b.dir),
		WithEnv(b.spec.Env),
		WithEnvVar(VersionEnvVar, version),
		WithRetry(b.spec.Retries, b.spec.RetryDelay),
	}
	if b.output != nil {
		opts = append(opts, WithOutput(b.output, b.output))
	}

	b.logger.Info("running build",
		"command", b.spec.Command,
		"version", version,
		"dir", b.dir)

	result, err := b.exec.Execute(ctx, b.spec.Command[0], b.spec.Command[1:], opts...)
	if err != nil {
		return nil, errors.WrapWithContext(err, errors.CodeBuildFailed, "build command failed", map[string]interface{}{
			"version": version,
		})
	}
	b.logger.Debug("build finished",
		"attempts", result.Attempts,
		"duration", result.Duration)

	return CollectArtifacts(b.tree, b.spec.Artifacts)
}

// CollectArtifacts expands patterns in tree. Every pattern must match at
// least one regular file.
func CollectArtifacts(tree fs.Filesystem, patterns []string) ([]string, error) {
	if len(patterns) == 0 {
		patterns = []string{DefaultArtifactPattern}
	}

	seen := map[string]bool{}
	var artifacts []string
	for _, pattern := range patterns {
		matches, err := tree.Glob(pattern)
		if err != nil {
			return nil, errors.Wrapf(err, errors.CodeInvalidConfig, "invalid artifact pattern %q", pattern)
		}

		found := 0
		for _, m := range matches {
			info, err := tree.Stat(m)
			if err != nil || info.IsDir() {
				continue
			}
			found++
			if !seen[m] {
				seen[m] = true
				artifacts = append(artifacts, m)
			}
		}
		if found == 0 {
			return nil, errors.Newf(errors.CodeBuildFailed, "artifact pattern %q matched no files", pattern)
		}
	}

	sort.Strings(artifacts)
	return artifacts, nil
}

// String describes the spec for logs.
func (s BuildSpec) String() string {
	return fmt.Sprintf("%v -> %v", s.Command, s.Artifacts)
}
