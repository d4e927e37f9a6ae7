// Package domain provides the type definitions shared by the release
// orchestrator, its journal and the CLI.
//
// The package holds plain data structures with JSON and YAML struct tags and
// has no dependencies outside the standard library. Behavior lives in the
// packages that own it: the release package drives a Release through its
// steps, the journal package persists it and the CLI renders it.
//
// # Domain Model
//
// A Release is one attempt to publish a version of a repository. It records
// the inputs observed at checkout (the base commit of the mutable branch and
// the head of the stable branch used as the push lease), the versions
// computed from the version file and every commit, tag and artifact the
// release produced:
//
//	Release
//	├── Steps []StepRecord  (one per orchestrator step, in execution order)
//	└── Artifacts []Artifact
//
// A StepRecord carries the status of one step and the number of attempts
// made. A Release that failed is resumed from its first step that did not
// succeed, so the records also act as the resume cursor.
//
// # Status Lifecycle
//
// Releases and steps share one status type:
//
//	PENDING -> RUNNING -> SUCCEEDED
//	                   \-> FAILED -> RUNNING (resume)
//
// # Events
//
// StepEvent values are emitted by the orchestrator as steps start and finish.
// The CLI uses them for progress output and tests use them to assert which
// collaborators ran.
package domain
