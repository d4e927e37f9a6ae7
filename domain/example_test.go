package domain_test

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/input-output-hk/catalyst-forge-release/domain"
)

// Example_release demonstrates the journal representation of a release
// that failed in its build step.
func Example_release() {
	// Fixed timestamp for deterministic output
	ts := time.Date(2025, 10, 8, 12, 0, 0, 0, time.UTC)

	rel := domain.Release{
		ID:            "5f0c6a3e-8d1b-4c7e-9a55-0c9d7a1f2b3c",
		Repository:    "https://github.com/OpenVoiceOS/ovos-core",
		Project:       "ovos-core",
		MutableBranch: "dev",
		StableBranch:  "master",
		Status:        domain.StatusFailed,
		StartVersion:  "1.4.0-alpha2",
		Version:       "1.4.0",
		Tag:           "V1.4.0",
		Steps: []domain.StepRecord{
			{Name: domain.StepPushStable, Status: domain.StatusSucceeded, Attempts: 1, StartedAt: &ts, FinishedAt: &ts},
			{Name: domain.StepBuild, Status: domain.StatusFailed, Attempts: 1, StartedAt: &ts, FinishedAt: &ts,
				Error: "build command failed", ErrorCode: "BUILD_FAILED"},
			{Name: domain.StepPublish, Status: domain.StatusPending},
		},
		CreatedAt: ts,
		UpdatedAt: ts,
	}

	data, err := json.Marshal(rel.Steps[1])
	if err != nil {
		fmt.Println("error:", err)
		return
	}
	fmt.Println(string(data))
	fmt.Println(rel.Status, rel.Steps[2].Name, rel.Steps[2].Status)

	// Output:
	// {"name":"build","status":"FAILED","attempts":1,"started_at":"2025-10-08T12:00:00Z","finished_at":"2025-10-08T12:00:00Z","error":"build command failed","error_code":"BUILD_FAILED"}
	// FAILED publish PENDING
}

// Example_stepEvent demonstrates collecting step events with a function sink.
func Example_stepEvent() {
	var seen []string
	sink := domain.EventSinkFunc(func(e domain.StepEvent) {
		seen = append(seen, fmt.Sprintf("%s:%s", e.Step, e.Status))
	})

	sink.Emit(domain.StepEvent{Step: domain.StepCheckout, Status: domain.StatusRunning, Attempt: 1})
	sink.Emit(domain.StepEvent{Step: domain.StepCheckout, Status: domain.StatusSucceeded, Attempt: 1})
	fmt.Println(seen)

	// Output:
	// [checkout:RUNNING checkout:SUCCEEDED]
}
