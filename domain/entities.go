package domain

import "time"

// Release is a single run of the release orchestrator for one repository.
type Release struct {
	// ID is the unique identifier of the release (UUID). Resume uses it.
	ID string `json:"id" yaml:"id"`

	// Repository is the remote URL of the released repository.
	Repository string `json:"repository" yaml:"repository"`

	// Project is the package name used for publishing and notifications.
	Project string `json:"project" yaml:"project"`

	// MutableBranch receives the next development version.
	MutableBranch string `json:"mutable_branch" yaml:"mutable_branch"`

	// StableBranch receives the stabilized commit.
	StableBranch string `json:"stable_branch" yaml:"stable_branch"`

	// Workdir is where the repository was checked out. Resume reopens it.
	Workdir string `json:"workdir" yaml:"workdir"`

	// Status is the overall status of the release.
	Status Status `json:"status" yaml:"status"`

	// StartVersion is the pre-release version found at checkout.
	StartVersion string `json:"start_version,omitempty" yaml:"start_version,omitempty"`

	// Version is the stable version being released.
	Version string `json:"version,omitempty" yaml:"version,omitempty"`

	// NextVersion is the development version committed after the release.
	NextVersion string `json:"next_version,omitempty" yaml:"next_version,omitempty"`

	// Tag is the release tag name.
	Tag string `json:"tag,omitempty" yaml:"tag,omitempty"`

	// PreviousTag is the tag the changelog starts from. Empty for a first release.
	PreviousTag string `json:"previous_tag,omitempty" yaml:"previous_tag,omitempty"`

	// BaseCommit is the head of the mutable branch at checkout, the
	// pre-stabilization commit.
	BaseCommit string `json:"base_commit,omitempty" yaml:"base_commit,omitempty"`

	// StableLease is the head of the stable branch observed at checkout.
	// Empty when the stable branch did not exist.
	StableLease string `json:"stable_lease,omitempty" yaml:"stable_lease,omitempty"`

	// StabilizedCommit is the commit carrying Version.
	StabilizedCommit string `json:"stabilized_commit,omitempty" yaml:"stabilized_commit,omitempty"`

	// BumpCommit is the commit carrying NextVersion.
	BumpCommit string `json:"bump_commit,omitempty" yaml:"bump_commit,omitempty"`

	// Changelog is the rendered release notes.
	Changelog string `json:"changelog,omitempty" yaml:"changelog,omitempty"`

	// ReleaseURL points at the release record, when the host provides one.
	ReleaseURL string `json:"release_url,omitempty" yaml:"release_url,omitempty"`

	// Artifacts are the files produced by the build step.
	Artifacts []Artifact `json:"artifacts,omitempty" yaml:"artifacts,omitempty"`

	// Steps holds one record per step in execution order.
	Steps []StepRecord `json:"steps" yaml:"steps"`

	// CreatedAt is when the release was started.
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// UpdatedAt is when the release record last changed.
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`

	// FinishedAt is when the release succeeded. Nil otherwise.
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// StepRecord tracks the execution of one step.
type StepRecord struct {
	// Name identifies the step.
	Name StepName `json:"name" yaml:"name"`

	// Status is the step status.
	Status Status `json:"status" yaml:"status"`

	// Attempts counts how many times the step was started.
	Attempts int `json:"attempts" yaml:"attempts"`

	// StartedAt is when the last attempt began. Nil if never started.
	StartedAt *time.Time `json:"started_at,omitempty" yaml:"started_at,omitempty"`

	// FinishedAt is when the last attempt ended. Nil while running.
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`

	// Error is the message of the last failure.
	Error string `json:"error,omitempty" yaml:"error,omitempty"`

	// ErrorCode is the classification of the last failure.
	ErrorCode string `json:"error_code,omitempty" yaml:"error_code,omitempty"`
}

// Artifact is a file produced by the build step.
type Artifact struct {
	// Path is relative to the working tree.
	Path string `json:"path" yaml:"path"`

	// Type classifies the artifact.
	Type ArtifactType `json:"type" yaml:"type"`

	// SHA256 is the hex digest of the file contents.
	SHA256 string `json:"sha256" yaml:"sha256"`

	// Size is the file size in bytes.
	Size int64 `json:"size" yaml:"size"`
}
