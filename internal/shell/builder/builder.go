// Package builder invokes the external application build system as an opaque
// command. The build either succeeds or fails; a non-zero exit is the
// pass/fail signal. Test reports are consumed for archival only.
package builder

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Errors
// =============================================================================

var ErrBuildCommandEmpty = errors.New("build command is empty")

// BuildError reports a failed build collaborator invocation, carrying the
// collaborator's diagnostic output.
type BuildError struct {
	Op     string
	Output string
	Err    error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}

// =============================================================================
// Builder
// =============================================================================

// Config configures the external build invocation.
type Config struct {
	// Command is the build command and its arguments, e.g. ["make", "dist"].
	Command []string
	// Dir is the working directory for the command.
	Dir string
	// ArtifactPath is where the build is expected to leave the artifact.
	ArtifactPath string
	// TestReportPath optionally names a machine-readable test report the
	// build emits. Archived with the artifact, never parsed.
	TestReportPath string
	// Timeout bounds a single build invocation. Zero means no bound.
	Timeout time.Duration
}

// runner abstracts command execution for tests.
type runner interface {
	Run(ctx context.Context, dir string, name string, args ...string) (string, error)
}

// Builder runs the configured build command and resolves the artifact.
type Builder struct {
	cfg    Config
	runner runner
	logger *slog.Logger
}

// New creates a builder.
func New(cfg Config, logger *slog.Logger) (*Builder, error) {
	if len(cfg.Command) == 0 {
		return nil, ErrBuildCommandEmpty
	}
	if cfg.ArtifactPath == "" {
		return nil, domain.NewConfigurationError("build.artifact", "must not be empty")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Builder{
		cfg:    cfg,
		runner: execRunner{},
		logger: logger.With("component", "builder"),
	}, nil
}

// Build runs the build command and returns the artifact reference. The
// artifact must exist at the configured path after a successful exit.
func (b *Builder) Build(ctx context.Context) (domain.ArtifactRef, error) {
	if b.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.cfg.Timeout)
		defer cancel()
	}

	b.logger.Info("running build", "command", b.cfg.Command[0], "dir", b.cfg.Dir)

	output, err := b.runner.Run(ctx, b.cfg.Dir, b.cfg.Command[0], b.cfg.Command[1:]...)
	if err != nil {
		return domain.ArtifactRef{}, &BuildError{Op: "build command", Output: output, Err: err}
	}

	if _, err := os.Stat(b.cfg.ArtifactPath); err != nil {
		return domain.ArtifactRef{}, &BuildError{
			Op:     "resolve artifact",
			Output: output,
			Err:    fmt.Errorf("artifact not found at %s: %w", b.cfg.ArtifactPath, err),
		}
	}

	ref := domain.ArtifactRef{Path: b.cfg.ArtifactPath}
	if b.cfg.TestReportPath != "" {
		if _, err := os.Stat(b.cfg.TestReportPath); err == nil {
			ref.TestReport = b.cfg.TestReportPath
		} else {
			// Missing report is not a build failure; the report is archival only.
			b.logger.Warn("test report not found", "path", b.cfg.TestReportPath)
		}
	}

	b.logger.Info("build finished", "artifact", ref.Path, "test_report", ref.TestReport != "")
	return ref, nil
}

// =============================================================================
// Exec Runner
// =============================================================================

type execRunner struct{}

func (execRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return string(out), err
}
