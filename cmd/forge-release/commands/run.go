package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/input-output-hk/catalyst-forge-release/config"
	"github.com/input-output-hk/catalyst-forge-release/domain"
	fsb "github.com/input-output-hk/catalyst-forge-release/fs/billy"
	"github.com/input-output-hk/catalyst-forge-release/journal"
	"github.com/input-output-hk/catalyst-forge-release/release"
)

// journalStore opens the journal in the state directory.
func (a *app) journalStore() *journal.FileStore {
	return journal.NewFileStore(fsb.NewBaseOSFS(), a.stateDir(), journal.WithLogger(a.logger))
}

// prepare loads the release definition and wires its collaborators.
func (a *app) prepare(ctx context.Context) (*wiring, error) {
	fsys := fsb.NewBaseOSFS()
	cfg, err := config.Load(ctx, fsys, a.v.GetString(flagConfig))
	if err != nil {
		return nil, err
	}

	gitToken := a.v.GetString(flagGitToken)
	mgr, err := newSecretManager(ctx, secretRefs(cfg, gitToken), a.logger)
	if err != nil {
		return nil, err
	}

	return &wiring{
		cfg:      cfg,
		fs:       fsys,
		secrets:  mgr,
		journal:  a.journalStore(),
		workRoot: a.workRoot(),
		gitToken: gitToken,
		output:   a.stderr,
		logger:   a.logger,
	}, nil
}

func (a *app) newRunCommand() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start a new release",
		Long: `Start a new release of the repository named in the release definition.

The development version on the mutable branch is stabilized, committed to
the stable branch, tagged, built, bumped and announced. Progress is
recorded in the journal; if a step fails the release can be continued
with "forge-release resume <id>".

Only one release per repository runs at a time. The lock lives under
<state-dir>/locks and is released when the command exits. A lock left by a
run that was killed before it recorded its release is cleared after a
minute; any other leftover lock can be removed by deleting its file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			w, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = w.secrets.Close() }()

			if dryRun {
				return a.printPlan(w)
			}

			stop := a.startTelemetry(ctx)
			defer stop()

			o, err := w.orchestrator(ctx)
			if err != nil {
				return err
			}
			rel, err := o.Run(ctx)
			if rel != nil {
				a.printSummary(rel)
			}
			return err
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print the release plan without running it")
	return cmd
}

func (a *app) newResumeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "resume <id>",
		Short: "Continue a failed or interrupted release",
		Long: `Continue a release from its first step that has not succeeded.
Steps that already succeeded are not repeated.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			w, err := a.prepare(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = w.secrets.Close() }()

			stop := a.startTelemetry(ctx)
			defer stop()

			o, err := w.orchestrator(ctx)
			if err != nil {
				return err
			}
			rel, err := o.Resume(ctx, args[0])
			if rel != nil {
				a.printSummary(rel)
			}
			return err
		},
	}
}

// printPlan shows what run would do.
func (a *app) printPlan(w *wiring) error {
	cfg, err := w.releaseConfig()
	if err != nil {
		return err
	}
	fmt.Fprintf(a.stdout, "release of %s from %s\n", cfg.Project, cfg.Repository)
	fmt.Fprintf(a.stdout, "  %s -> %s, version file %s\n\n", cfg.MutableBranch, cfg.StableBranch, cfg.VersionStore.Path())
	fmt.Fprintln(a.stdout, planTable(release.Plan()))
	return nil
}

func (a *app) printSummary(rel *domain.Release) {
	fmt.Fprintln(a.stdout, releaseTable(rel))
	if rel.Status == domain.StatusSucceeded {
		fmt.Fprintf(a.stdout, "released %s %s", rel.Project, rel.Version)
		if rel.ReleaseURL != "" {
			fmt.Fprintf(a.stdout, " (%s)", rel.ReleaseURL)
		}
		fmt.Fprintln(a.stdout)
	}
}
