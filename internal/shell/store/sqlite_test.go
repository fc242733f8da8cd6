package store

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Test Helpers
// =============================================================================

func setupTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func finalizedRun(t *testing.T, stages ...domain.StageResult) *domain.PipelineRun {
	t.Helper()
	run := domain.NewPipelineRun()
	for _, stage := range stages {
		require.NoError(t, run.RecordStage(stage))
	}
	require.NoError(t, run.FinalizeSucceeded())
	return run
}

// =============================================================================
// SaveRun / GetRun
// =============================================================================

func TestSaveRun_RoundTrip(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := finalizedRun(t,
		domain.StageResult{Name: "Build", Status: domain.StageSuccess, Output: "dist/app.jar", Duration: 3 * time.Second},
		domain.StageResult{Name: "Containerize", Status: domain.StageSuccess, Output: "registry.local/app:v42", Duration: 9 * time.Second},
	)

	err := s.SaveRun(ctx, run)
	require.NoError(t, err)

	retrieved, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, retrieved.ID)
	assert.Equal(t, domain.OutcomeSucceeded, retrieved.Outcome)
	assert.Empty(t, retrieved.FailedStage)
	require.NotNil(t, retrieved.FinishedAt)

	require.Len(t, retrieved.Stages, 2)
	assert.Equal(t, "Build", retrieved.Stages[0].Name)
	assert.Equal(t, domain.StageSuccess, retrieved.Stages[0].Status)
	assert.Equal(t, "dist/app.jar", retrieved.Stages[0].Output)
	assert.Equal(t, 3*time.Second, retrieved.Stages[0].Duration)
	assert.Equal(t, "Containerize", retrieved.Stages[1].Name)
}

func TestSaveRun_FailedRunKeepsFailureDetail(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	run := domain.NewPipelineRun()
	require.NoError(t, run.RecordStage(domain.StageResult{Name: "Build", Status: domain.StageSuccess}))
	require.NoError(t, run.RecordStage(domain.StageResult{Name: "Publish", Status: domain.StageFailure, Output: "push rejected"}))
	require.NoError(t, run.RecordStage(domain.StageResult{Name: "RenderManifests", Status: domain.StageSkipped}))
	require.NoError(t, run.FinalizeFailed("Publish", "push rejected"))

	require.NoError(t, s.SaveRun(ctx, run))

	retrieved, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.OutcomeFailed, retrieved.Outcome)
	assert.Equal(t, "Publish", retrieved.FailedStage)
	assert.Equal(t, "push rejected", retrieved.FailureReason)
	require.Len(t, retrieved.Stages, 3)
	assert.Equal(t, domain.StageSkipped, retrieved.Stages[2].Status)
}

func TestSaveRun_StageOrderPreserved(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var stages []domain.StageResult
	for i := 0; i < 8; i++ {
		stages = append(stages, domain.StageResult{
			Name:   fmt.Sprintf("stage-%d", i),
			Status: domain.StageSuccess,
		})
	}
	run := finalizedRun(t, stages...)
	require.NoError(t, s.SaveRun(ctx, run))

	retrieved, err := s.GetRun(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, retrieved.Stages, 8)
	for i, stage := range retrieved.Stages {
		assert.Equal(t, fmt.Sprintf("stage-%d", i), stage.Name)
	}
}

func TestSaveRun_RejectsUnfinalizedRun(t *testing.T) {
	s := setupTestStore(t)

	run := domain.NewPipelineRun()
	err := s.SaveRun(context.Background(), run)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRunNotFinalized)
}

func TestGetRun_NotFound(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.GetRun(context.Background(), "missing-id")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRunNotFound)

	var storeErr *StoreError
	require.ErrorAs(t, err, &storeErr)
	assert.Equal(t, "GetRun", storeErr.Op)
	assert.Equal(t, "missing-id", storeErr.RunID)
}

// =============================================================================
// ListRuns
// =============================================================================

func TestListRuns_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		run := finalizedRun(t, domain.StageResult{Name: "Build", Status: domain.StageSuccess})
		// Stagger start times so ordering is unambiguous.
		run.StartedAt = time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC)
		require.NoError(t, s.SaveRun(ctx, run))
		ids = append(ids, run.ID)
	}

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, ids[2], runs[0].ID)
	assert.Equal(t, ids[1], runs[1].ID)
	assert.Equal(t, ids[0], runs[2].ID)
}

func TestListRuns_SubsecondOrdering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// Fractional seconds whose trimmed renderings would sort backwards
	// (".5Z" vs ".55Z" lexicographically).
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	older := finalizedRun(t)
	older.StartedAt = base.Add(500 * time.Millisecond)
	newer := finalizedRun(t)
	newer.StartedAt = base.Add(550 * time.Millisecond)

	require.NoError(t, s.SaveRun(ctx, older))
	require.NoError(t, s.SaveRun(ctx, newer))

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, newer.ID, runs[0].ID)
	assert.Equal(t, older.ID, runs[1].ID)
	assert.True(t, runs[0].StartedAt.Equal(newer.StartedAt))
}

func TestListRuns_LimitApplied(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		run := finalizedRun(t)
		run.StartedAt = time.Date(2026, 1, 1, 0, i, 0, 0, time.UTC)
		require.NoError(t, s.SaveRun(ctx, run))
	}

	runs, err := s.ListRuns(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, runs, 2)
}

func TestListRuns_Empty(t *testing.T) {
	s := setupTestStore(t)

	runs, err := s.ListRuns(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, runs)
}
