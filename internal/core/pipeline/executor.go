package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Executor
// =============================================================================

// Executor runs stages strictly in order, recording a StageResult per stage.
// It never rolls back prior successful stages on a later failure; any
// compensating action must be expressed as an explicit subsequent stage.
type Executor struct {
	logger *slog.Logger
}

// NewExecutor creates an executor.
func NewExecutor(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger.With("component", "executor")}
}

// Run executes the stages and returns the finalized run. A non-best-effort
// failure halts the sequence; the failing stage names the failure point and
// all subsequent stages are recorded as Skipped. An external cancel is
// observed only between stages and finalizes the run as Aborted.
func (e *Executor) Run(ctx context.Context, stages []Stage) *domain.PipelineRun {
	run := domain.NewPipelineRun()
	logger := e.logger.With("run_id", run.ID)

	for i, stage := range stages {
		if ctx.Err() != nil {
			logger.Warn("run aborted", "at_stage", stage.Name)
			e.skipRemaining(run, stages[i:])
			_ = run.FinalizeAborted()
			return run
		}

		logger.Info("stage started", "stage", stage.Name)
		start := time.Now()
		output, err := stage.Run(ctx)
		duration := time.Since(start)

		if err != nil {
			_ = run.RecordStage(domain.StageResult{
				Name:     stage.Name,
				Status:   domain.StageFailure,
				Output:   err.Error(),
				Duration: duration,
			})

			if ctx.Err() != nil {
				// The failure was induced by an external cancel observed
				// by the stage's collaborator.
				logger.Warn("run aborted", "at_stage", stage.Name)
				e.skipRemaining(run, stages[i+1:])
				_ = run.FinalizeAborted()
				return run
			}

			if stage.BestEffort {
				logger.Warn("best-effort stage failed, continuing",
					"stage", stage.Name, "error", err, "duration", duration)
				continue
			}

			logger.Error("stage failed, halting run",
				"stage", stage.Name, "error", err, "duration", duration)
			e.skipRemaining(run, stages[i+1:])
			_ = run.FinalizeFailed(stage.Name, err.Error())
			return run
		}

		_ = run.RecordStage(domain.StageResult{
			Name:     stage.Name,
			Status:   domain.StageSuccess,
			Output:   output,
			Duration: duration,
		})
		logger.Info("stage succeeded", "stage", stage.Name, "duration", duration)
	}

	_ = run.FinalizeSucceeded()
	logger.Info("run succeeded", "stages", len(run.Stages))
	return run
}

func (e *Executor) skipRemaining(run *domain.PipelineRun, stages []Stage) {
	for _, stage := range stages {
		_ = run.RecordStage(domain.StageResult{
			Name:   stage.Name,
			Status: domain.StageSkipped,
		})
	}
}
