// Package store persists finalized pipeline runs. The ordered stage results
// are the audit trail; rows are immutable once written.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Store Interface
// =============================================================================

// Store is the persistence interface for pipeline runs.
type Store interface {
	// SaveRun persists a finalized run and its stage results.
	SaveRun(ctx context.Context, run *domain.PipelineRun) error
	// GetRun loads one run with its ordered stage results.
	GetRun(ctx context.Context, id string) (*domain.PipelineRun, error)
	// ListRuns returns the most recent runs, newest first.
	ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error)
	// Close releases the underlying connection.
	Close() error
}

// =============================================================================
// Errors
// =============================================================================

var (
	ErrRunNotFound      = errors.New("pipeline run not found")
	ErrConnectionFailed = errors.New("store connection failed")
	ErrMigrationFailed  = errors.New("store migration failed")
)

// StoreError wraps storage failures with operation context.
type StoreError struct {
	Op      string
	RunID   string
	Message string
	Err     error
}

func (e *StoreError) Error() string {
	if e.RunID != "" {
		return fmt.Sprintf("%s run %s: %s", e.Op, e.RunID, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a StoreError.
func NewStoreError(op, runID, message string, err error) *StoreError {
	return &StoreError{Op: op, RunID: runID, Message: message, Err: err}
}
