// Package registry is the container collaborator: it layers an artifact into
// an image, tags it, and publishes it. Pushing an already-present immutable
// tag is a no-op success at the registry, so re-runs stay idempotent.
package registry

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"

	buildtypes "github.com/docker/docker/api/types/build"
	imagetypes "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/registry"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"

	"github.com/shipwaylabs/shipway/internal/core/domain"
)

// =============================================================================
// Client Interface
// =============================================================================

// Client is the container collaborator interface consumed by the orchestrator.
type Client interface {
	// BuildImage layers the artifact into an image tagged with ref.
	BuildImage(ctx context.Context, artifact domain.ArtifactRef, ref domain.ImageRef) error
	// Push publishes the image. Pushing the same immutable tag twice is
	// idempotent.
	Push(ctx context.Context, ref domain.ImageRef) error
	// Tag points dst at the same content as src (used for the mutable
	// convenience alias).
	Tag(ctx context.Context, src, dst domain.ImageRef) error
}

// =============================================================================
// Docker Client
// =============================================================================

// Config configures the Docker-backed registry client.
type Config struct {
	// Host overrides the Docker daemon address; empty uses the environment.
	Host string
	// ContextDir is the image build context. Empty defaults to the
	// directory containing the artifact.
	ContextDir string
	// Dockerfile is the Dockerfile path relative to the context dir.
	Dockerfile string
	// Username and Password authenticate pushes to the registry.
	// Treated as opaque strings, never logged.
	Username string
	Password string
}

// DockerClient implements Client using the Docker SDK.
type DockerClient struct {
	cli    *client.Client
	cfg    Config
	auth   string
	logger *slog.Logger
}

// NewDockerClient creates a Docker-backed client.
func NewDockerClient(cfg Config, logger *slog.Logger) (*DockerClient, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", ErrConnectionFailed)
	}

	auth, err := encodeAuth(cfg.Username, cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("encode registry auth: %w", err)
	}

	if logger == nil {
		logger = slog.Default()
	}
	return &DockerClient{
		cli:    cli,
		cfg:    cfg,
		auth:   auth,
		logger: logger.With("component", "registry"),
	}, nil
}

// Close closes the Docker client connection.
func (d *DockerClient) Close() error {
	return d.cli.Close()
}

// BuildImage builds the image from the configured context directory,
// injecting the artifact path as a build argument.
func (d *DockerClient) BuildImage(ctx context.Context, artifact domain.ArtifactRef, ref domain.ImageRef) error {
	contextDir := d.cfg.ContextDir
	if contextDir == "" {
		contextDir = filepath.Dir(artifact.Path)
	}

	d.logger.Info("building image", "image", ref.String(), "context", contextDir)

	buildCtx, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return fmt.Errorf("create build context: %w", err)
	}
	defer buildCtx.Close()

	artifactArg := filepath.Base(artifact.Path)
	resp, err := d.cli.ImageBuild(ctx, buildCtx, buildtypes.ImageBuildOptions{
		Tags:       []string{ref.String()},
		Dockerfile: d.cfg.Dockerfile,
		Remove:     true,
		BuildArgs:  map[string]*string{"ARTIFACT": &artifactArg},
	})
	if err != nil {
		return fmt.Errorf("image build: %w", err)
	}
	defer resp.Body.Close()

	if err := drainStream(resp.Body); err != nil {
		return fmt.Errorf("%w: %v", ErrImageBuildFailed, err)
	}

	d.logger.Info("image built", "image", ref.String())
	return nil
}

// Push publishes the image reference to its registry.
func (d *DockerClient) Push(ctx context.Context, ref domain.ImageRef) error {
	d.logger.Info("pushing image", "image", ref.String())

	resp, err := d.cli.ImagePush(ctx, ref.String(), imagetypes.PushOptions{RegistryAuth: d.auth})
	if err != nil {
		return &PushError{Ref: ref.String(), Err: err}
	}
	defer resp.Close()

	if err := drainStream(resp); err != nil {
		return &PushError{Ref: ref.String(), Message: err.Error(), Err: err}
	}

	d.logger.Info("image pushed", "image", ref.String())
	return nil
}

// Tag points dst at the same image content as src.
func (d *DockerClient) Tag(ctx context.Context, src, dst domain.ImageRef) error {
	if err := d.cli.ImageTag(ctx, src.String(), dst.String()); err != nil {
		return fmt.Errorf("tag %s as %s: %w", src.String(), dst.String(), err)
	}
	return nil
}

// =============================================================================
// Helpers
// =============================================================================

// encodeAuth builds the base64 auth header for registry operations.
// Empty credentials yield an empty header (anonymous push).
func encodeAuth(username, password string) (string, error) {
	if username == "" && password == "" {
		return "", nil
	}
	payload, err := json.Marshal(registry.AuthConfig{
		Username: username,
		Password: password,
	})
	if err != nil {
		return "", err
	}
	return base64.URLEncoding.EncodeToString(payload), nil
}

type streamMessage struct {
	Stream      string `json:"stream"`
	Error       string `json:"error"`
	ErrorDetail struct {
		Message string `json:"message"`
	} `json:"errorDetail"`
}

func (m streamMessage) errorMessage() string {
	if msg := strings.TrimSpace(m.Error); msg != "" {
		return msg
	}
	return strings.TrimSpace(m.ErrorDetail.Message)
}

// drainStream consumes a Docker JSON progress stream and returns the first
// error message it carries, if any.
func drainStream(r io.Reader) error {
	decoder := json.NewDecoder(r)
	for {
		var msg streamMessage
		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				return nil
			}
			return fmt.Errorf("decode progress stream: %w", err)
		}
		if errMsg := msg.errorMessage(); errMsg != "" {
			return fmt.Errorf("%s", errMsg)
		}
	}
}
