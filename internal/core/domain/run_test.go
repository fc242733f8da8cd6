package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// PipelineRun Tests
// =============================================================================

func TestNewPipelineRun(t *testing.T) {
	run := NewPipelineRun()

	assert.NotEmpty(t, run.ID)
	assert.Equal(t, OutcomeRunning, run.Outcome)
	assert.False(t, run.Finalized())
	assert.Nil(t, run.FinishedAt)
	assert.Empty(t, run.Stages)
}

func TestPipelineRun_RecordStage(t *testing.T) {
	run := NewPipelineRun()

	err := run.RecordStage(StageResult{Name: "Build", Status: StageSuccess, Duration: time.Second})
	require.NoError(t, err)
	err = run.RecordStage(StageResult{Name: "Publish", Status: StageFailure, Output: "registry rejected"})
	require.NoError(t, err)

	require.Len(t, run.Stages, 2)
	assert.Equal(t, "Build", run.Stages[0].Name)
	assert.Equal(t, "Publish", run.Stages[1].Name)
}

func TestStageResult_JSONDurationNanoseconds(t *testing.T) {
	data, err := json.Marshal(StageResult{
		Name:     "Build",
		Status:   StageSuccess,
		Duration: 1500 * time.Millisecond,
	})
	require.NoError(t, err)

	var fields map[string]any
	require.NoError(t, json.Unmarshal(data, &fields))

	// Duration marshals as nanoseconds, so the field name carries no unit.
	assert.Equal(t, float64((1500 * time.Millisecond).Nanoseconds()), fields["duration"])
	assert.NotContains(t, fields, "duration_ms")
}

func TestPipelineRun_FinalizeSucceeded(t *testing.T) {
	run := NewPipelineRun()

	err := run.FinalizeSucceeded()
	require.NoError(t, err)

	assert.Equal(t, OutcomeSucceeded, run.Outcome)
	assert.True(t, run.Finalized())
	require.NotNil(t, run.FinishedAt)
}

func TestPipelineRun_FinalizeFailed(t *testing.T) {
	run := NewPipelineRun()

	err := run.FinalizeFailed("Publish", "push rejected by registry")
	require.NoError(t, err)

	assert.Equal(t, OutcomeFailed, run.Outcome)
	assert.Equal(t, "Publish", run.FailedStage)
	assert.Equal(t, "push rejected by registry", run.FailureReason)
}

func TestPipelineRun_FinalizeExactlyOnce(t *testing.T) {
	run := NewPipelineRun()

	require.NoError(t, run.FinalizeAborted())

	assert.ErrorIs(t, run.FinalizeSucceeded(), ErrRunFinalized)
	assert.ErrorIs(t, run.FinalizeFailed("Build", "boom"), ErrRunFinalized)
	assert.Equal(t, OutcomeAborted, run.Outcome)
}

func TestPipelineRun_RecordAfterFinalizeRejected(t *testing.T) {
	run := NewPipelineRun()
	require.NoError(t, run.FinalizeSucceeded())

	err := run.RecordStage(StageResult{Name: "Report", Status: StageSuccess})
	assert.ErrorIs(t, err, ErrRunFinalized)
	assert.Empty(t, run.Stages)
}

// =============================================================================
// ImageRef Tests
// =============================================================================

func TestNewImageRef_TagFromBuildNumber(t *testing.T) {
	ref := NewImageRef("registry.local/acme/web", 42)

	assert.Equal(t, "registry.local/acme/web", ref.Repository)
	assert.Equal(t, "v42", ref.Tag)
	assert.Equal(t, "registry.local/acme/web:v42", ref.String())
}

func TestNewImageRef_SameBuildNumberIsStable(t *testing.T) {
	a := NewImageRef("acme/web", 7)
	b := NewImageRef("acme/web", 7)

	assert.Equal(t, a, b)
}

func TestImageRef_WithTag(t *testing.T) {
	ref := NewImageRef("acme/web", 3)
	alias := ref.WithTag(TagLatest)

	assert.Equal(t, "acme/web:latest", alias.String())
	// Original is unchanged.
	assert.Equal(t, "v3", ref.Tag)
}

// =============================================================================
// ConfigurationError Tests
// =============================================================================

func TestConfigurationError_Message(t *testing.T) {
	err := NewConfigurationError("app.replicas", "must be at least 1")

	assert.EqualError(t, err, "invalid configuration: app.replicas: must be at least 1")
}
