package api

import "github.com/shipwaylabs/shipway/internal/core/domain"

// =============================================================================
// Response Types
// =============================================================================

// HealthResponse is the health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// StageResponse is one stage result in a run response.
type StageResponse struct {
	Name       string `json:"name"`
	Status     string `json:"status"`
	Output     string `json:"output,omitempty"`
	DurationMS int64  `json:"duration_ms"`
}

// RunResponse is a pipeline run with its audit trail.
type RunResponse struct {
	ID            string          `json:"id"`
	Outcome       string          `json:"outcome"`
	FailedStage   string          `json:"failed_stage,omitempty"`
	FailureReason string          `json:"failure_reason,omitempty"`
	Stages        []StageResponse `json:"stages"`
	StartedAt     string          `json:"started_at"`
	FinishedAt    string          `json:"finished_at,omitempty"`
}

// ListRunsResponse is a page of runs, newest first.
type ListRunsResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

func runToResponse(run *domain.PipelineRun) RunResponse {
	resp := RunResponse{
		ID:            run.ID,
		Outcome:       string(run.Outcome),
		FailedStage:   run.FailedStage,
		FailureReason: run.FailureReason,
		Stages:        make([]StageResponse, 0, len(run.Stages)),
		StartedAt:     run.StartedAt.Format(timeFormat),
	}
	if run.FinishedAt != nil {
		resp.FinishedAt = run.FinishedAt.Format(timeFormat)
	}
	for _, stage := range run.Stages {
		resp.Stages = append(resp.Stages, StageResponse{
			Name:       stage.Name,
			Status:     string(stage.Status),
			Output:     stage.Output,
			DurationMS: stage.Duration.Milliseconds(),
		})
	}
	return resp
}
