// Package release drives a minor release of a repository through a fixed
// sequence of steps: stabilize the version, record the changelog, push the
// stable branch, create the release, build, bump to the next development
// version, publish and notify.
//
// Steps run strictly in order and the first failure stops the release
// without undoing earlier steps. Progress is written to a journal after
// every state change, so a failed release can be resumed from the first
// step that did not succeed. Steps tolerate finding their own effect
// already in place when they are retried.
package release

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/input-output-hk/catalyst-forge-release/domain"
	"github.com/input-output-hk/catalyst-forge-release/errors"
)

const tracerName = "github.com/input-output-hk/catalyst-forge-release/release"

// Plan returns the steps of a release in execution order.
func Plan() []domain.StepName {
	return []domain.StepName{
		domain.StepCheckout,
		domain.StepStabilize,
		domain.StepChangelog,
		domain.StepCommitStable,
		domain.StepPushStable,
		domain.StepVerifyVersion,
		domain.StepCreateRelease,
		domain.StepBuild,
		domain.StepBump,
		domain.StepCommitNext,
		domain.StepPublish,
		domain.StepNotify,
	}
}

// StepHandler executes one attempt of a step.
type StepHandler func(ctx context.Context, step domain.StepName, attempt int) error

// Middleware wraps step execution.
type Middleware func(next StepHandler) StepHandler

// Orchestrator runs and resumes releases.
type Orchestrator struct {
	cfg        Config
	collab     Collaborators
	logger     *slog.Logger
	tracer     trace.Tracer
	events     domain.EventSink
	middleware []Middleware
	newID      func() string
	now        func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Orchestrator) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithTracer replaces the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(o *Orchestrator) {
		if tracer != nil {
			o.tracer = tracer
		}
	}
}

// WithEventSink receives step events.
func WithEventSink(sink domain.EventSink) Option {
	return func(o *Orchestrator) {
		o.events = sink
	}
}

// WithMiddleware adds middleware around every step. The first one given is
// the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(o *Orchestrator) {
		o.middleware = append(o.middleware, mw...)
	}
}

// WithIDGenerator sets the release ID generator.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) {
		if fn != nil {
			o.newID = fn
		}
	}
}

// WithClock sets the time source.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		if now != nil {
			o.now = now
		}
	}
}

// New returns an Orchestrator.
func New(cfg Config, collab Collaborators, opts ...Option) (*Orchestrator, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid release configuration")
	}
	if err := collab.validate(); err != nil {
		return nil, errors.Wrap(err, errors.CodeInvalidConfig, "invalid release collaborators")
	}

	o := &Orchestrator{
		cfg:    cfg,
		collab: collab,
		logger: slog.New(slog.DiscardHandler),
		tracer: otel.Tracer(tracerName),
		newID:  uuid.NewString,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// Config returns the effective configuration.
func (o *Orchestrator) Config() Config {
	return o.cfg
}

// Run starts a new release. The returned Release is non-nil whenever the
// release was created, including on failure.
func (o *Orchestrator) Run(ctx context.Context) (*domain.Release, error) {
	now := o.now().UTC()
	id := o.newID()
	rel := &domain.Release{
		ID:            id,
		Repository:    o.cfg.Repository,
		Project:       o.cfg.Project,
		MutableBranch: o.cfg.MutableBranch,
		StableBranch:  o.cfg.StableBranch,
		Workdir:       o.cfg.workdir(id),
		Status:        domain.StatusPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for _, name := range Plan() {
		rel.Steps = append(rel.Steps, domain.StepRecord{Name: name, Status: domain.StatusPending})
	}

	if err := o.collab.Journal.Lock(ctx, rel.Repository, rel.ID); err != nil {
		return nil, err
	}
	defer o.unlock(rel)

	if err := o.collab.Journal.Save(ctx, rel); err != nil {
		return nil, err
	}
	o.logger.Info("starting release", "release_id", rel.ID, "repository", rel.Repository)
	return rel, o.execute(ctx, newState(o, rel))
}

// Resume continues the release id from its first step that did not succeed.
func (o *Orchestrator) Resume(ctx context.Context, id string) (*domain.Release, error) {
	rel, err := o.collab.Journal.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if rel.Repository != o.cfg.Repository {
		return rel, errors.Newf(errors.CodeInvalidConfig,
			"release %s belongs to %s, not to the configured repository %s", id, rel.Repository, o.cfg.Repository)
	}
	if rel.Status == domain.StatusSucceeded {
		o.logger.Info("release already succeeded", "release_id", id)
		return rel, nil
	}

	if err := o.collab.Journal.Lock(ctx, rel.Repository, rel.ID); err != nil {
		return rel, err
	}
	defer o.unlock(rel)

	st := newState(o, rel)
	if err := st.reattach(ctx); err != nil {
		return rel, err
	}
	o.logger.Info("resuming release", "release_id", rel.ID, "step", firstPending(rel))
	return rel, o.execute(ctx, st)
}

func (o *Orchestrator) unlock(rel *domain.Release) {
	// The caller's context may already be cancelled.
	if err := o.collab.Journal.Unlock(context.Background(), rel.Repository, rel.ID); err != nil {
		o.logger.Warn("failed to release repository lock", "release_id", rel.ID, "error", err)
	}
}

func firstPending(rel *domain.Release) domain.StepName {
	for _, rec := range rel.Steps {
		if rec.Status != domain.StatusSucceeded {
			return rec.Name
		}
	}
	return ""
}

// execute runs every step that has not succeeded yet.
func (o *Orchestrator) execute(ctx context.Context, st *state) error {
	rel := st.rel
	ctx, span := o.tracer.Start(ctx, "release",
		trace.WithAttributes(
			attribute.String("release.id", rel.ID),
			attribute.String("release.repository", rel.Repository),
		))
	defer span.End()

	rel.Status = domain.StatusRunning
	if err := o.save(ctx, rel); err != nil {
		return err
	}

	handler := o.chain(st)
	for i := range rel.Steps {
		rec := &rel.Steps[i]
		if rec.Status == domain.StatusSucceeded {
			continue
		}

		rec.Attempts++
		rec.Status = domain.StatusRunning
		rec.StartedAt = timePtr(o.now().UTC())
		rec.FinishedAt = nil
		rec.Error, rec.ErrorCode = "", ""
		if err := o.save(ctx, rel); err != nil {
			return err
		}

		stepErr := handler(ctx, rec.Name, rec.Attempts)
		rec.FinishedAt = timePtr(o.now().UTC())
		if stepErr != nil {
			se := &StepError{Step: rec.Name, ReleaseID: rel.ID, Err: stepErr}
			rec.Status = domain.StatusFailed
			rec.Error = stepErr.Error()
			rec.ErrorCode = string(se.Code())
			rel.Status = domain.StatusFailed
			if err := o.save(ctx, rel); err != nil {
				o.logger.Error("failed to journal step failure", "release_id", rel.ID, "error", err)
			}
			span.RecordError(se)
			span.SetStatus(codes.Error, se.Error())
			return se
		}

		rec.Status = domain.StatusSucceeded
		if err := o.save(ctx, rel); err != nil {
			return err
		}
	}

	rel.Status = domain.StatusSucceeded
	rel.FinishedAt = timePtr(o.now().UTC())
	if err := o.save(ctx, rel); err != nil {
		return err
	}
	span.SetStatus(codes.Ok, "")
	o.logger.Info("release finished",
		"release_id", rel.ID,
		"version", rel.Version,
		"next_version", rel.NextVersion)
	return nil
}

func (o *Orchestrator) save(ctx context.Context, rel *domain.Release) error {
	rel.UpdatedAt = o.now().UTC()
	if err := o.collab.Journal.Save(ctx, rel); err != nil {
		return errors.Wrap(err, errors.CodeStorage, "failed to journal release progress")
	}
	return nil
}

// chain builds the handler for st: user middleware outside, then tracing,
// logging and events around the step itself.
func (o *Orchestrator) chain(st *state) StepHandler {
	handler := StepHandler(st.run)
	internal := []Middleware{o.tracing(st.rel.ID), o.logging(st.rel.ID), o.emitting(st.rel.ID)}
	all := append(append([]Middleware{}, o.middleware...), internal...)
	for i := len(all) - 1; i >= 0; i-- {
		handler = all[i](handler)
	}
	return handler
}

func (o *Orchestrator) tracing(releaseID string) Middleware {
	return func(next StepHandler) StepHandler {
		return func(ctx context.Context, step domain.StepName, attempt int) error {
			ctx, span := o.tracer.Start(ctx, "release."+step.String(),
				trace.WithAttributes(
					attribute.String("release.id", releaseID),
					attribute.String("release.step", step.String()),
					attribute.Int("release.attempt", attempt),
				))
			defer span.End()

			err := next(ctx, step, attempt)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
			}
			return err
		}
	}
}

func (o *Orchestrator) logging(releaseID string) Middleware {
	return func(next StepHandler) StepHandler {
		return func(ctx context.Context, step domain.StepName, attempt int) error {
			logger := o.logger.With("release_id", releaseID, "step", step.String(), "attempt", attempt)
			logger.Info("step started")
			started := o.now()

			err := next(ctx, step, attempt)
			if err != nil {
				logger.Error("step failed", "error", err, "code", codeOf(err))
				return err
			}
			logger.Info("step finished", "duration", o.now().Sub(started))
			return nil
		}
	}
}

func (o *Orchestrator) emitting(releaseID string) Middleware {
	return func(next StepHandler) StepHandler {
		return func(ctx context.Context, step domain.StepName, attempt int) error {
			if o.events == nil {
				return next(ctx, step, attempt)
			}
			o.events.Emit(domain.StepEvent{
				ReleaseID: releaseID,
				Step:      step,
				Status:    domain.StatusRunning,
				Attempt:   attempt,
				Timestamp: o.now().UTC(),
			})
			err := next(ctx, step, attempt)
			ev := domain.StepEvent{
				ReleaseID: releaseID,
				Step:      step,
				Status:    domain.StatusSucceeded,
				Attempt:   attempt,
				Timestamp: o.now().UTC(),
			}
			if err != nil {
				ev.Status = domain.StatusFailed
				ev.Error = err.Error()
			}
			o.events.Emit(ev)
			return err
		}
	}
}
