// Package pipeline runs an ordered sequence of named stages and records the
// outcome of each one into a pipeline run.
package pipeline

import "context"

// =============================================================================
// Stage
// =============================================================================

// Stage is one named step of a pipeline. Run performs the stage's action
// against an external collaborator and returns human-readable output.
type Stage struct {
	Name string
	Run  func(ctx context.Context) (string, error)

	// BestEffort stages record failures without halting the sequence. Used
	// for non-critical steps such as emitting a final status summary.
	BestEffort bool
}
