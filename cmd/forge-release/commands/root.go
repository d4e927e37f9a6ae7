// Package commands implements the forge-release command line.
package commands

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/input-output-hk/catalyst-forge-release/config"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/internal/telemetry"
	"github.com/input-output-hk/catalyst-forge-release/journal"
	"github.com/input-output-hk/catalyst-forge-release/release"
)

// Version is set at build time with -ldflags "-X ...commands.Version=...".
var Version = "dev"

// EnvPrefix prefixes environment variables that override flags, for
// example FORGE_RELEASE_LOG_LEVEL.
const EnvPrefix = "FORGE_RELEASE"

// Flag keys shared by every command.
const (
	flagConfig       = "config"
	flagLogFormat    = "log-format"
	flagLogLevel     = "log-level"
	flagStateDir     = "state-dir"
	flagWorkdir      = "workdir"
	flagOTLPEndpoint = "otlp-endpoint"
	flagGitToken     = "git-token"
)

// app carries what the commands share.
type app struct {
	v      *viper.Viper
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := NewRootCommand(os.Stdout, os.Stderr)
	if err := cmd.ExecuteContext(ctx); err != nil {
		reportError(os.Stderr, err)
		return 1
	}
	return 0
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "forge-release",
		Short: "Release a project from its development branch",
		Long: `forge-release stabilizes the development version of a repository, pushes
it to the stable branch, records the release, builds and publishes the
artifacts, bumps the development branch to the next minor version and
announces the release.

A failed release stops at the failing step and can be resumed by its id.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
	}

	flags := root.PersistentFlags()
	flags.String(flagConfig, config.DefaultPath, "release definition")
	flags.String(flagLogFormat, "text", "log format: text or json")
	flags.String(flagLogLevel, "info", "log level: debug, info, warn or error")
	flags.String(flagStateDir, "", "directory for the release journal (default $XDG_STATE_HOME/forge-release)")
	flags.String(flagWorkdir, "", "directory for release working trees (default <state-dir>/work)")
	flags.String(flagOTLPEndpoint, "", "OTLP/HTTP endpoint for traces")
	flags.String(flagGitToken, "", "secret reference of a token for HTTPS git remotes, e.g. env://GIT_TOKEN")
	a.bind(flags)

	root.AddCommand(
		a.newRunCommand(),
		a.newResumeCommand(),
		a.newStatusCommand(),
		a.newListCommand(),
		a.newVersionCommand(),
	)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root
}

func (a *app) bind(flags *pflag.FlagSet) {
	a.v.SetEnvPrefix(EnvPrefix)
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	_ = a.v.BindPFlags(flags)
}

func (a *app) init() error {
	logger, err := newLogger(a.stderr, a.v.GetString(flagLogFormat), a.v.GetString(flagLogLevel))
	if err != nil {
		return err
	}
	a.logger = logger
	return nil
}

func newLogger(w io.Writer, format, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, errors.Newf(errors.CodeInvalidInput, "invalid log level %q", level)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, errors.Newf(errors.CodeInvalidInput, "invalid log format %q", format)
	}
}

func (a *app) stateDir() string {
	if dir := a.v.GetString(flagStateDir); dir != "" {
		return dir
	}
	return journal.DefaultDir()
}

func (a *app) workRoot() string {
	if dir := a.v.GetString(flagWorkdir); dir != "" {
		return dir
	}
	return filepath.Join(a.stateDir(), "work")
}

// startTelemetry installs tracing for commands that run releases.
func (a *app) startTelemetry(ctx context.Context) func() {
	shutdown, err := telemetry.Init(ctx, "forge-release", Version, a.v.GetString(flagOTLPEndpoint))
	if err != nil {
		a.logger.Warn("tracing disabled", "error", err)
		return func() {}
	}
	return func() {
		if err := shutdown(context.Background()); err != nil {
			a.logger.Warn("failed to flush traces", "error", err)
		}
	}
}

// reportError prints err, naming the failed step and how to resume.
func reportError(w io.Writer, err error) {
	var stepErr *release.StepError
	if stderrors.As(err, &stepErr) {
		fmt.Fprintf(w, "release %s failed at step %s [%s]: %v\n", stepErr.ReleaseID, stepErr.Step, stepErr.Code(), stepErr.Err)
		fmt.Fprintf(w, "completed steps remain in effect; continue with: forge-release resume %s\n", stepErr.ReleaseID)
		return
	}
	fmt.Fprintf(w, "error: %v\n", err)
}
