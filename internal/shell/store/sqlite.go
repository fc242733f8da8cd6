package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// timeLayout pads fractional seconds to fixed width. RFC3339Nano trims
// trailing zeros, which breaks lexicographic ORDER BY on sub-second ties
// (".5Z" sorts after ".55Z"); a fixed-width string keeps text order equal to
// time order.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// =============================================================================
// SQLiteStore
// =============================================================================

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore creates a new SQLite store and runs migrations.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite3", dsn+"?_foreign_keys=on")
	if err != nil {
		return nil, NewStoreError("NewSQLiteStore", "", "failed to open database", ErrConnectionFailed)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", "failed to ping database", ErrConnectionFailed)
	}

	if err := runMigrations(db.DB); err != nil {
		db.Close()
		return nil, NewStoreError("NewSQLiteStore", "", err.Error(), ErrMigrationFailed)
	}

	return &SQLiteStore{db: db}, nil
}

// runMigrations runs database migrations using embedded SQL files.
func runMigrations(db *sql.DB) error {
	driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to create migration source: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, "sqlite3", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// =============================================================================
// Rows
// =============================================================================

// runRow represents a pipeline run row in the database.
type runRow struct {
	ID            string  `db:"id"`
	Outcome       string  `db:"outcome"`
	FailedStage   string  `db:"failed_stage"`
	FailureReason string  `db:"failure_reason"`
	StartedAt     string  `db:"started_at"`
	FinishedAt    *string `db:"finished_at"`
}

// stageRow represents one stage result row. Seq preserves execution order.
type stageRow struct {
	RunID      string `db:"run_id"`
	Seq        int    `db:"seq"`
	Name       string `db:"name"`
	Status     string `db:"status"`
	Output     string `db:"output"`
	DurationMS int64  `db:"duration_ms"`
}

// =============================================================================
// Run Operations
// =============================================================================

// SaveRun persists a finalized run and its stage results in one transaction.
func (s *SQLiteStore) SaveRun(ctx context.Context, run *domain.PipelineRun) error {
	if !run.Finalized() {
		return NewStoreError("SaveRun", run.ID, "run is not finalized", domain.ErrRunNotFinalized)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return NewStoreError("SaveRun", run.ID, "failed to begin transaction", err)
	}
	defer tx.Rollback()

	var finishedAt *string
	if run.FinishedAt != nil {
		f := run.FinishedAt.Format(timeLayout)
		finishedAt = &f
	}

	query := `
		INSERT INTO runs (
			id, outcome, failed_stage, failure_reason, started_at, finished_at
		) VALUES (
			:id, :outcome, :failed_stage, :failure_reason, :started_at, :finished_at
		)`

	_, err = tx.NamedExecContext(ctx, query, map[string]any{
		"id":             run.ID,
		"outcome":        string(run.Outcome),
		"failed_stage":   run.FailedStage,
		"failure_reason": run.FailureReason,
		"started_at":     run.StartedAt.Format(timeLayout),
		"finished_at":    finishedAt,
	})
	if err != nil {
		return NewStoreError("SaveRun", run.ID, err.Error(), err)
	}

	stageQuery := `
		INSERT INTO stage_results (
			run_id, seq, name, status, output, duration_ms
		) VALUES (
			:run_id, :seq, :name, :status, :output, :duration_ms
		)`

	for i, stage := range run.Stages {
		_, err = tx.NamedExecContext(ctx, stageQuery, map[string]any{
			"run_id":      run.ID,
			"seq":         i,
			"name":        stage.Name,
			"status":      string(stage.Status),
			"output":      stage.Output,
			"duration_ms": stage.Duration.Milliseconds(),
		})
		if err != nil {
			return NewStoreError("SaveRun", run.ID, fmt.Sprintf("failed to save stage %q: %v", stage.Name, err), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return NewStoreError("SaveRun", run.ID, "failed to commit transaction", err)
	}

	return nil
}

// GetRun loads one run with its ordered stage results.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*domain.PipelineRun, error) {
	var row runRow
	err := s.db.GetContext(ctx, &row, `SELECT * FROM runs WHERE id = ?`, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, NewStoreError("GetRun", id, "run not found", ErrRunNotFound)
		}
		return nil, NewStoreError("GetRun", id, err.Error(), err)
	}

	run, err := rowToRun(&row)
	if err != nil {
		return nil, err
	}

	var stageRows []stageRow
	err = s.db.SelectContext(ctx, &stageRows,
		`SELECT * FROM stage_results WHERE run_id = ? ORDER BY seq ASC`, id)
	if err != nil {
		return nil, NewStoreError("GetRun", id, err.Error(), err)
	}

	run.Stages = make([]domain.StageResult, 0, len(stageRows))
	for _, sr := range stageRows {
		run.Stages = append(run.Stages, domain.StageResult{
			Name:     sr.Name,
			Status:   domain.StageStatus(sr.Status),
			Output:   sr.Output,
			Duration: time.Duration(sr.DurationMS) * time.Millisecond,
		})
	}

	return run, nil
}

// ListRuns returns the most recent runs, newest first. Stage results are not
// loaded for listings; use GetRun for the full audit trail.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]domain.PipelineRun, error) {
	if limit <= 0 {
		limit = 20
	}

	var rows []runRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT * FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, NewStoreError("ListRuns", "", err.Error(), err)
	}

	runs := make([]domain.PipelineRun, 0, len(rows))
	for _, row := range rows {
		run, err := rowToRun(&row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *run)
	}

	return runs, nil
}

// =============================================================================
// Row Conversion
// =============================================================================

// rowToRun converts a database row to a domain.PipelineRun.
func rowToRun(row *runRow) (*domain.PipelineRun, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, row.StartedAt)
	if err != nil {
		return nil, NewStoreError("rowToRun", row.ID, "invalid started_at timestamp", err)
	}

	var finishedAt *time.Time
	if row.FinishedAt != nil && *row.FinishedAt != "" {
		t, err := time.Parse(time.RFC3339Nano, *row.FinishedAt)
		if err != nil {
			return nil, NewStoreError("rowToRun", row.ID, "invalid finished_at timestamp", err)
		}
		finishedAt = &t
	}

	return &domain.PipelineRun{
		ID:            row.ID,
		Outcome:       domain.Outcome(row.Outcome),
		FailedStage:   row.FailedStage,
		FailureReason: row.FailureReason,
		StartedAt:     startedAt,
		FinishedAt:    finishedAt,
	}, nil
}
