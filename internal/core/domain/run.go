package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// Run Errors
// =============================================================================

var (
	ErrRunFinalized    = errors.New("pipeline run is already finalized")
	ErrRunNotFinalized = errors.New("pipeline run is not finalized")
)

// =============================================================================
// Stage Results
// =============================================================================

// StageStatus is the recorded status of a single executed stage.
type StageStatus string

const (
	StageSuccess StageStatus = "success"
	StageFailure StageStatus = "failure"
	StageSkipped StageStatus = "skipped"
)

// StageResult records the outcome of one stage. Immutable once recorded;
// the ordered sequence of results is the audit trail for a run.
type StageResult struct {
	Name     string        `json:"name"`
	Status   StageStatus   `json:"status"`
	Output   string        `json:"output,omitempty"`
	Duration time.Duration `json:"duration"`
}

// =============================================================================
// Pipeline Run
// =============================================================================

// Outcome is the terminal result of a pipeline run.
type Outcome string

const (
	// OutcomeRunning is the initial, non-terminal state.
	OutcomeRunning   Outcome = "running"
	OutcomeSucceeded Outcome = "succeeded"
	OutcomeFailed    Outcome = "failed"
	OutcomeAborted   Outcome = "aborted"
)

// PipelineRun is the top-level aggregate for one pipeline execution. It owns
// the ordered sequence of stage results and a terminal outcome. A run is
// created at pipeline start and finalized exactly once; recording or
// finalizing after finalization is rejected.
type PipelineRun struct {
	ID            string        `json:"id"`
	Outcome       Outcome       `json:"outcome"`
	FailedStage   string        `json:"failed_stage,omitempty"`
	FailureReason string        `json:"failure_reason,omitempty"`
	Stages        []StageResult `json:"stages"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
}

// NewPipelineRun creates a run in the running state.
func NewPipelineRun() *PipelineRun {
	return &PipelineRun{
		ID:        uuid.New().String(),
		Outcome:   OutcomeRunning,
		StartedAt: time.Now().UTC(),
	}
}

// Finalized reports whether the run has reached a terminal outcome.
func (r *PipelineRun) Finalized() bool {
	return r.Outcome != OutcomeRunning
}

// RecordStage appends a stage result to the audit trail.
func (r *PipelineRun) RecordStage(result StageResult) error {
	if r.Finalized() {
		return ErrRunFinalized
	}
	r.Stages = append(r.Stages, result)
	return nil
}

// FinalizeSucceeded marks the run as succeeded.
func (r *PipelineRun) FinalizeSucceeded() error {
	return r.finalize(OutcomeSucceeded, "", "")
}

// FinalizeFailed marks the run as failed at the named stage.
func (r *PipelineRun) FinalizeFailed(stage, reason string) error {
	return r.finalize(OutcomeFailed, stage, reason)
}

// FinalizeAborted marks the run as aborted by an external cancel.
func (r *PipelineRun) FinalizeAborted() error {
	return r.finalize(OutcomeAborted, "", "")
}

func (r *PipelineRun) finalize(outcome Outcome, stage, reason string) error {
	if r.Finalized() {
		return ErrRunFinalized
	}
	now := time.Now().UTC()
	r.Outcome = outcome
	r.FailedStage = stage
	r.FailureReason = reason
	r.FinishedAt = &now
	return nil
}
