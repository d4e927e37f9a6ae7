package release

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/input-output-hk/catalyst-forge-release/changelog"
	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
	"github.com/input-output-hk/catalyst-forge-release/fs"
	"github.com/input-output-hk/catalyst-forge-release/git"
	"github.com/input-output-hk/catalyst-forge-release/hosting"
	"github.com/input-output-hk/catalyst-forge-release/notify"
	"github.com/input-output-hk/catalyst-forge-release/publish"
	"github.com/input-output-hk/catalyst-forge-release/version"
)

// state is a release in progress together with its working tree.
type state struct {
	o    *Orchestrator
	cfg  *Config
	rel  *domain.Release
	repo Repository
	tree fs.Filesystem
}

func newState(o *Orchestrator, rel *domain.Release) *state {
	return &state{o: o, cfg: &o.cfg, rel: rel}
}

type stepFunc func(ctx context.Context, attempt int) error

func (s *state) steps() map[domain.StepName]stepFunc {
	return map[domain.StepName]stepFunc{
		domain.StepCheckout:      s.checkout,
		domain.StepStabilize:     s.stabilize,
		domain.StepChangelog:     s.changelog,
		domain.StepCommitStable:  s.commitStable,
		domain.StepPushStable:    s.pushStable,
		domain.StepVerifyVersion: s.verifyVersion,
		domain.StepCreateRelease: s.createRelease,
		domain.StepBuild:         s.build,
		domain.StepBump:          s.bump,
		domain.StepCommitNext:    s.commitNext,
		domain.StepPublish:       s.publish,
		domain.StepNotify:        s.notify,
	}
}

// run dispatches one step attempt.
func (s *state) run(ctx context.Context, step domain.StepName, attempt int) error {
	fn, ok := s.steps()[step]
	if !ok {
		return errors.Newf(errors.CodeInvalidInput, "unknown step %q", step)
	}
	if step != domain.StepCheckout && s.repo == nil {
		return errors.Newf(errors.CodeInternal, "step %s needs a checked out repository", step)
	}
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.CodeExecutionFailed, "release interrupted")
	}
	return fn(ctx, attempt)
}

// wrap attaches the code derived from err.
func wrap(err error, msg string) error {
	return errors.Wrap(err, codeOf(err), msg)
}

// wrapAs is wrap with a more specific code for otherwise unclassified errors.
func wrapAs(err error, fallback errors.ErrorCode, msg string) error {
	code := codeOf(err)
	if code == errors.CodeExecutionFailed {
		code = fallback
	}
	return errors.Wrap(err, code, msg)
}

func (s *state) succeeded(step domain.StepName) bool {
	for _, rec := range s.rel.Steps {
		if rec.Name == step {
			return rec.Status == domain.StatusSucceeded
		}
	}
	return false
}

// reattach reopens the working tree of a resumed release. A tree lost before
// anything was committed is recreated by checking out again; once the stable
// commit exists the release can only continue from its own tree.
func (s *state) reattach(ctx context.Context) error {
	if !s.succeeded(domain.StepCheckout) {
		return nil
	}

	repo, err := s.o.collab.Repos.Open(ctx, s.rel.Workdir)
	if err == nil {
		return s.attach(repo)
	}
	if s.succeeded(domain.StepCommitStable) {
		return errors.WrapWithContext(err, errors.CodeNotFound, "working tree of the release is lost", map[string]interface{}{
			"release_id": s.rel.ID,
			"workdir":    s.rel.Workdir,
		})
	}

	s.o.logger.Warn("working tree is gone, checking out again",
		"release_id", s.rel.ID,
		"workdir", s.rel.Workdir,
		"error", err)
	for i := range s.rel.Steps {
		rec := &s.rel.Steps[i]
		if rec.Name == domain.StepCommitStable {
			break
		}
		rec.Status = domain.StatusPending
	}
	s.rel.BaseCommit, s.rel.StableLease = "", ""
	s.rel.StartVersion, s.rel.Version, s.rel.Tag, s.rel.PreviousTag = "", "", "", ""
	s.rel.Changelog = ""
	return nil
}

func (s *state) attach(repo Repository) error {
	tree, err := repo.WorktreeFS()
	if err != nil {
		return wrap(err, "failed to access working tree")
	}
	s.repo, s.tree = repo, tree
	return nil
}

func (s *state) checkout(ctx context.Context, attempt int) error {
	if s.repo == nil {
		var repo Repository
		if attempt > 1 {
			repo, _ = s.o.collab.Repos.Open(ctx, s.rel.Workdir)
		}
		if repo == nil {
			var err error
			repo, err = s.o.collab.Repos.Clone(ctx, s.cfg.Repository, s.cfg.MutableBranch, s.rel.Workdir)
			if err != nil {
				return wrap(err, fmt.Sprintf("failed to clone branch %s", s.cfg.MutableBranch))
			}
		}
		if err := s.attach(repo); err != nil {
			return err
		}
	}

	head, err := s.repo.Head(ctx)
	if err != nil {
		return wrap(err, "failed to resolve HEAD")
	}
	lease, err := s.repo.RemoteHead(ctx, s.cfg.Remote, s.cfg.StableBranch)
	if err != nil {
		return wrap(err, fmt.Sprintf("failed to read remote branch %s", s.cfg.StableBranch))
	}

	s.rel.BaseCommit = head
	s.rel.StableLease = lease
	return nil
}

func (s *state) stabilize(ctx context.Context, attempt int) error {
	store := s.cfg.VersionStore
	current, err := version.Read(s.tree, store)
	if err != nil {
		return wrap(err, "failed to read version")
	}

	var stable version.Version
	switch {
	case current.IsPrerelease():
		stable, err = current.Stabilize()
		if err != nil {
			return wrap(err, "failed to stabilize version")
		}
		s.rel.StartVersion = current.String()
	case attempt > 1 && s.rel.Version == current.String():
		// An earlier attempt already rewrote the file.
		stable = current
	default:
		return errors.Wrapf(version.ErrNotPrerelease, errors.CodeInvalidInput,
			"%s holds %s, expected a development version", store.Path(), current)
	}

	tags, err := s.repo.Tags(ctx)
	if err != nil {
		return wrap(err, "failed to list tags")
	}
	names := make([]string, 0, len(tags))
	for _, t := range tags {
		if t.Name == stable.Tag() {
			return errors.WrapWithContext(git.ErrTagExists, errors.CodeConflict, "version is already released", map[string]interface{}{
				"tag":    t.Name,
				"commit": t.Commit,
			})
		}
		names = append(names, t.Name)
	}
	previous, _ := version.PreviousTag(names, stable)

	if err := version.Write(s.tree, store, stable); err != nil {
		return wrap(err, "failed to write version")
	}

	s.rel.Version = stable.String()
	s.rel.Tag = stable.Tag()
	s.rel.PreviousTag = previous
	return nil
}

func (s *state) changelog(ctx context.Context, _ int) error {
	gen := s.o.collab.Changelog
	if gen == nil {
		gen = changelog.NewGenerator(s.repo,
			changelog.WithLogger(s.o.logger),
			changelog.WithExcludedPrefixes(CommitPrefix))
	}

	// The range ends at the commit the release started from, so the notes
	// never include the release's own commits.
	cl, err := gen.Generate(ctx, s.rel.Tag, changelog.Range{From: s.rel.PreviousTag, To: s.rel.BaseCommit})
	if err != nil {
		return wrap(err, "failed to generate changelog")
	}
	s.rel.Changelog = cl.Markdown()
	return nil
}

// commit records the staged version file. A retried attempt reuses the
// commit an earlier attempt made: either the one journaled as previous, or
// HEAD when nothing is left to commit and HEAD moved past parent.
func (s *state) commit(ctx context.Context, attempt int, previous, parent, message string) (string, error) {
	if previous != "" && s.repo.HasCommit(ctx, previous) {
		return previous, nil
	}
	if err := s.repo.Add(ctx, s.cfg.VersionStore.Path()); err != nil {
		return "", wrap(err, "failed to stage version file")
	}

	hash, err := s.repo.Commit(ctx, message, s.cfg.Author)
	if stderrors.Is(err, git.ErrEmptyCommit) && attempt > 1 {
		head, herr := s.repo.Head(ctx)
		if herr == nil && head != parent {
			return head, nil
		}
	}
	if err != nil {
		return "", wrap(err, "failed to commit version")
	}
	return hash, nil
}

func (s *state) commitStable(ctx context.Context, attempt int) error {
	hash, err := s.commit(ctx, attempt, s.rel.StabilizedCommit, s.rel.BaseCommit,
		fmt.Sprintf("%s %s", CommitPrefix, s.rel.Version))
	if err != nil {
		return err
	}
	s.rel.StabilizedCommit = hash
	return nil
}

func (s *state) pushStable(ctx context.Context, _ int) error {
	err := s.repo.PushBranch(ctx, git.PushBranchOptions{
		Remote: s.cfg.Remote,
		Branch: s.cfg.StableBranch,
		Commit: s.rel.StabilizedCommit,
		Lease:  s.rel.StableLease,
	})
	if err != nil {
		return wrap(err, fmt.Sprintf("failed to push %s", s.cfg.StableBranch))
	}
	return nil
}

func (s *state) verifyVersion(ctx context.Context, _ int) error {
	head, err := s.repo.RemoteHead(ctx, s.cfg.Remote, s.cfg.StableBranch)
	if err != nil {
		return wrap(err, fmt.Sprintf("failed to read remote branch %s", s.cfg.StableBranch))
	}
	if head != s.rel.StabilizedCommit {
		return errors.WrapWithContext(git.ErrStaleLease, errors.CodeConflict, "stable branch moved after push", map[string]interface{}{
			"branch":   s.cfg.StableBranch,
			"expected": s.rel.StabilizedCommit,
			"actual":   head,
		})
	}

	store := s.cfg.VersionStore
	content, err := s.repo.ReadFileAt(ctx, s.rel.StabilizedCommit, store.Path())
	if err != nil {
		return wrap(err, "failed to read pushed version file")
	}
	pushed, err := store.Decode(content)
	if err != nil {
		return wrap(err, "failed to decode pushed version file")
	}
	if pushed.String() != s.rel.Version {
		return errors.Newf(errors.CodeConflict, "stable branch holds version %s, expected %s", pushed, s.rel.Version)
	}
	return nil
}

func (s *state) recorder() hosting.Recorder {
	if s.o.collab.Recorder != nil {
		return s.o.collab.Recorder
	}
	return hosting.NewGitTag(s.repo, s.cfg.Remote, s.cfg.Author, s.o.logger)
}

func (s *state) createRelease(ctx context.Context, attempt int) error {
	recorder := s.recorder()
	rec, err := recorder.CreateRelease(ctx, hosting.Record{
		Tag:    s.rel.Tag,
		Commit: s.rel.StabilizedCommit,
		Title:  s.rel.Tag,
		Body:   s.rel.Changelog,
	})
	if stderrors.Is(err, hosting.ErrReleaseExists) && attempt > 1 {
		existing, gerr := recorder.GetRelease(ctx, s.rel.Tag)
		if gerr == nil && existing.Commit == s.rel.StabilizedCommit {
			rec, err = existing, nil
		}
	}
	if err != nil {
		return wrap(err, fmt.Sprintf("failed to create release %s with %s", s.rel.Tag, recorder.Name()))
	}
	s.rel.ReleaseURL = rec.URL
	return nil
}

func (s *state) build(ctx context.Context, _ int) error {
	paths, err := s.o.collab.Builder.Build(ctx, s.tree, s.rel.Workdir, s.rel.Version)
	if err != nil {
		var pe *errors.PlatformError
		if stderrors.As(err, &pe) {
			return err
		}
		return errors.Wrap(err, errors.CodeBuildFailed, "build failed")
	}

	artifacts := make([]domain.Artifact, 0, len(paths))
	for _, p := range paths {
		data, err := s.tree.ReadFile(p)
		if err != nil {
			return errors.Wrapf(err, errors.CodeBuildFailed, "failed to read artifact %s", p)
		}
		sum := sha256.Sum256(data)
		artifacts = append(artifacts, domain.Artifact{
			Path:   p,
			Type:   ArtifactType(p),
			SHA256: hex.EncodeToString(sum[:]),
			Size:   int64(len(data)),
		})
	}
	s.rel.Artifacts = artifacts
	return nil
}

// ArtifactType classifies an artifact by its file name.
func ArtifactType(name string) domain.ArtifactType {
	switch {
	case strings.HasSuffix(name, ".whl"):
		return domain.ArtifactTypeWheel
	case strings.HasSuffix(name, ".tar.gz"):
		return domain.ArtifactTypeSdist
	default:
		return domain.ArtifactTypeArchive
	}
}

func (s *state) bump(_ context.Context, _ int) error {
	stable, err := version.Parse(s.rel.Version)
	if err != nil {
		return wrap(err, "invalid released version")
	}
	next, err := stable.NextDevelopment()
	if err != nil {
		return wrap(err, "failed to compute next version")
	}
	if err := version.Write(s.tree, s.cfg.VersionStore, next); err != nil {
		return wrap(err, "failed to write version")
	}
	s.rel.NextVersion = next.String()
	return nil
}

func (s *state) commitNext(ctx context.Context, attempt int) error {
	hash, err := s.commit(ctx, attempt, s.rel.BumpCommit, s.rel.StabilizedCommit,
		fmt.Sprintf("%s start %s", CommitPrefix, s.rel.NextVersion))
	if err != nil {
		return err
	}
	s.rel.BumpCommit = hash

	err = s.repo.PushBranch(ctx, git.PushBranchOptions{
		Remote: s.cfg.Remote,
		Branch: s.cfg.MutableBranch,
		Commit: hash,
		Lease:  s.rel.BaseCommit,
	})
	if err != nil {
		return wrap(err, fmt.Sprintf("failed to push %s", s.cfg.MutableBranch))
	}
	return nil
}

func (s *state) publish(ctx context.Context, attempt int) error {
	publisher := s.o.collab.Publisher
	if publisher == nil {
		s.o.logger.Info("no publisher configured, skipping", "release_id", s.rel.ID)
		return nil
	}

	files := make([]string, 0, len(s.rel.Artifacts))
	for _, a := range s.rel.Artifacts {
		files = append(files, a.Path)
	}
	err := publisher.Publish(ctx, publish.Package{
		Name:    s.cfg.Project,
		Version: s.rel.Version,
		Files:   files,
		Root:    s.tree,
	})
	switch {
	case err == nil:
		return nil
	case stderrors.Is(err, publish.ErrAlreadyPublished) && attempt > 1:
		s.o.logger.Info("package already published by an earlier attempt",
			"release_id", s.rel.ID,
			"publisher", publisher.Name())
		return nil
	default:
		return wrapAs(err, errors.CodePublishFailed, fmt.Sprintf("failed to publish %s %s to %s", s.cfg.Project, s.rel.Version, publisher.Name()))
	}
}

func (s *state) notify(ctx context.Context, _ int) error {
	notifier := s.o.collab.Notifier
	if notifier == nil {
		s.o.logger.Info("no notifier configured, skipping", "release_id", s.rel.ID)
		return nil
	}

	text, err := notify.Render(s.cfg.NotifyTemplate, notify.TemplateData{
		Name:       s.cfg.Project,
		Version:    s.rel.Version,
		Tag:        s.rel.Tag,
		ReleaseURL: s.rel.ReleaseURL,
		Changelog:  s.rel.Changelog,
	})
	if err != nil {
		return errors.Wrap(err, errors.CodeInvalidConfig, "failed to render notification")
	}

	err = notifier.Notify(ctx, notify.Message{
		Channel: s.cfg.NotifyChannel,
		Text:    text,
		Key:     s.rel.ID,
	})
	if err != nil {
		return wrapAs(err, errors.CodeNotifyFailed, fmt.Sprintf("failed to notify via %s", notifier.Name()))
	}
	return nil
}
