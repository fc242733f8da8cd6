package builder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

type fakeRunner struct {
	output string
	err    error
	calls  int
	name   string
	args   []string
}

func (f *fakeRunner) Run(ctx context.Context, dir string, name string, args ...string) (string, error) {
	f.calls++
	f.name = name
	f.args = args
	return f.output, f.err
}

func newTestBuilder(t *testing.T, cfg Config, r runner) *Builder {
	t.Helper()
	b, err := New(cfg, nil)
	require.NoError(t, err)
	b.runner = r
	return b
}

// =============================================================================
// Builder Tests
// =============================================================================

func TestNew_EmptyCommandRejected(t *testing.T) {
	_, err := New(Config{ArtifactPath: "/tmp/a"}, nil)

	assert.ErrorIs(t, err, ErrBuildCommandEmpty)
}

func TestNew_EmptyArtifactPathRejected(t *testing.T) {
	_, err := New(Config{Command: []string{"make"}}, nil)

	var cfgErr *domain.ConfigurationError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestBuild_Success(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "app.tar")
	require.NoError(t, os.WriteFile(artifact, []byte("bits"), 0644))

	r := &fakeRunner{output: "compiled ok"}
	b := newTestBuilder(t, Config{
		Command:      []string{"make", "dist"},
		Dir:          dir,
		ArtifactPath: artifact,
	}, r)

	ref, err := b.Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, artifact, ref.Path)
	assert.Empty(t, ref.TestReport)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, "make", r.name)
	assert.Equal(t, []string{"dist"}, r.args)
}

func TestBuild_AttachesTestReportWhenPresent(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "app.tar")
	report := filepath.Join(dir, "report.xml")
	require.NoError(t, os.WriteFile(artifact, []byte("bits"), 0644))
	require.NoError(t, os.WriteFile(report, []byte("<tests/>"), 0644))

	b := newTestBuilder(t, Config{
		Command:        []string{"make"},
		ArtifactPath:   artifact,
		TestReportPath: report,
	}, &fakeRunner{})

	ref, err := b.Build(context.Background())

	require.NoError(t, err)
	assert.Equal(t, report, ref.TestReport)
}

func TestBuild_MissingReportIsNotFatal(t *testing.T) {
	dir := t.TempDir()
	artifact := filepath.Join(dir, "app.tar")
	require.NoError(t, os.WriteFile(artifact, []byte("bits"), 0644))

	b := newTestBuilder(t, Config{
		Command:        []string{"make"},
		ArtifactPath:   artifact,
		TestReportPath: filepath.Join(dir, "missing.xml"),
	}, &fakeRunner{})

	ref, err := b.Build(context.Background())

	require.NoError(t, err)
	assert.Empty(t, ref.TestReport)
}

func TestBuild_CommandFailure(t *testing.T) {
	b := newTestBuilder(t, Config{
		Command:      []string{"make"},
		ArtifactPath: "/nonexistent/app.tar",
	}, &fakeRunner{output: "compile error: syntax", err: errors.New("exit status 2")})

	_, err := b.Build(context.Background())

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Contains(t, buildErr.Output, "compile error")
}

func TestBuild_MissingArtifactIsFailure(t *testing.T) {
	b := newTestBuilder(t, Config{
		Command:      []string{"make"},
		ArtifactPath: filepath.Join(t.TempDir(), "never-created.tar"),
	}, &fakeRunner{output: "done"})

	_, err := b.Build(context.Background())

	var buildErr *BuildError
	require.ErrorAs(t, err, &buildErr)
	assert.Equal(t, "resolve artifact", buildErr.Op)
}
