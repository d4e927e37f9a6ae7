package domain

// Status is the execution status of a release or one of its steps.
type Status string

const (
	// StatusPending indicates the step has not started yet.
	StatusPending Status = "PENDING"

	// StatusRunning indicates execution is in progress, or was interrupted
	// while in progress.
	StatusRunning Status = "RUNNING"

	// StatusSucceeded indicates the work completed.
	StatusSucceeded Status = "SUCCEEDED"

	// StatusFailed indicates the work stopped with an error.
	StatusFailed Status = "FAILED"
)

// String returns the string representation of the Status.
func (s Status) String() string {
	return string(s)
}

// StepName identifies an orchestrator step.
type StepName string

// Steps of a release, in execution order.
const (
	StepCheckout      StepName = "checkout"
	StepStabilize     StepName = "stabilize"
	StepChangelog     StepName = "changelog"
	StepCommitStable  StepName = "commit-stable"
	StepPushStable    StepName = "push-stable"
	StepVerifyVersion StepName = "verify-version"
	StepCreateRelease StepName = "create-release"
	StepBuild         StepName = "build"
	StepBump          StepName = "bump"
	StepCommitNext    StepName = "commit-next"
	StepPublish       StepName = "publish"
	StepNotify        StepName = "notify"
)

// String returns the string representation of the StepName.
func (n StepName) String() string {
	return string(n)
}

// ArtifactType classifies a built artifact by file name.
type ArtifactType string

const (
	// ArtifactTypeSdist is a Python source distribution.
	ArtifactTypeSdist ArtifactType = "SDIST"

	// ArtifactTypeWheel is a Python wheel.
	ArtifactTypeWheel ArtifactType = "WHEEL"

	// ArtifactTypeArchive is any other archive or file.
	ArtifactTypeArchive ArtifactType = "ARCHIVE"
)

// String returns the string representation of the ArtifactType.
func (t ArtifactType) String() string {
	return string(t)
}
