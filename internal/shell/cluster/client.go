// Package cluster is the orchestrator control-plane collaborator. Applying a
// manifest schedules work; reality converges asynchronously, observed via
// rollout status and pod listings.
package cluster

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os/exec"
	"strings"
)

// =============================================================================
// Client Interface
// =============================================================================

// RolloutState is the control plane's convergence report for a workload.
type RolloutState string

const (
	RolloutConverged  RolloutState = "converged"
	RolloutInProgress RolloutState = "in_progress"
	RolloutError      RolloutState = "error"
)

// Pod is the observed state of one scheduled pod.
type Pod struct {
	Name  string
	Phase string
}

// PodPhaseRunning is the phase that counts as "running" for dependency
// readiness.
const PodPhaseRunning = "Running"

// Client is the control-plane collaborator interface consumed by the
// orchestrator.
type Client interface {
	// Apply submits a declarative manifest stream. The call returns once
	// the control plane accepts the documents, not once they converge.
	Apply(ctx context.Context, manifestText string) error
	// RolloutStatus reports convergence for the named resource
	// (e.g. "deployment/web").
	RolloutStatus(ctx context.Context, resource string) (RolloutState, error)
	// ListPods lists pods matching a label selector.
	ListPods(ctx context.Context, selector string) ([]Pod, error)
}

// =============================================================================
// Kubectl Client
// =============================================================================

// Config configures the kubectl-backed client.
type Config struct {
	// Kubectl is the binary to invoke. Empty means "kubectl" on PATH.
	Kubectl string
	// Context selects a kubeconfig context. Empty uses the current one.
	Context string
	// Namespace scopes every call. Empty uses the default namespace.
	Namespace string
	// Insecure skips transport-identity verification on every call. An
	// explicit deployment-environment concern; logged once at construction.
	Insecure bool
}

// runner abstracts command execution for tests.
type runner interface {
	Run(ctx context.Context, stdin string, name string, args ...string) (string, error)
}

// KubectlClient implements Client by invoking the kubectl binary.
type KubectlClient struct {
	cfg    Config
	runner runner
	logger *slog.Logger
}

// NewKubectlClient creates a kubectl-backed client.
func NewKubectlClient(cfg Config, logger *slog.Logger) *KubectlClient {
	if cfg.Kubectl == "" {
		cfg.Kubectl = "kubectl"
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "cluster")
	if cfg.Insecure {
		logger.Warn("transport-identity verification disabled for control-plane calls")
	}
	return &KubectlClient{
		cfg:    cfg,
		runner: execRunner{},
		logger: logger,
	}
}

// Apply submits the manifest stream via stdin.
func (c *KubectlClient) Apply(ctx context.Context, manifestText string) error {
	args := append(c.baseArgs(), "apply", "-f", "-")

	c.logger.Info("applying manifests", "bytes", len(manifestText))
	out, err := c.runner.Run(ctx, manifestText, c.cfg.Kubectl, args...)
	if err != nil {
		return &ApplyError{Op: "apply", Output: strings.TrimSpace(out), Err: err}
	}
	c.logger.Debug("apply accepted", "output", strings.TrimSpace(out))
	return nil
}

// RolloutStatus asks the control plane for the workload's convergence state.
// A non-converged workload is reported as in-progress, not as an error, so
// the readiness poller can keep waiting.
func (c *KubectlClient) RolloutStatus(ctx context.Context, resource string) (RolloutState, error) {
	args := append(c.baseArgs(), "rollout", "status", resource, "--watch=false")

	out, err := c.runner.Run(ctx, "", c.cfg.Kubectl, args...)
	trimmed := strings.TrimSpace(out)
	if err == nil {
		if strings.Contains(trimmed, "successfully rolled out") {
			return RolloutConverged, nil
		}
		return RolloutInProgress, nil
	}
	if strings.Contains(trimmed, "Waiting for") {
		return RolloutInProgress, nil
	}
	return RolloutError, &ApplyError{Op: "rollout status", Output: trimmed, Err: err}
}

// ListPods lists pods matching the selector with their phases.
func (c *KubectlClient) ListPods(ctx context.Context, selector string) ([]Pod, error) {
	args := append(c.baseArgs(),
		"get", "pods",
		"-l", selector,
		"--no-headers",
		"-o", "custom-columns=NAME:.metadata.name,PHASE:.status.phase",
	)

	out, err := c.runner.Run(ctx, "", c.cfg.Kubectl, args...)
	if err != nil {
		return nil, &ApplyError{Op: "list pods", Output: strings.TrimSpace(out), Err: err}
	}
	return parsePodList(out), nil
}

// baseArgs holds the flags threaded into every invocation.
func (c *KubectlClient) baseArgs() []string {
	var args []string
	if c.cfg.Context != "" {
		args = append(args, "--context", c.cfg.Context)
	}
	if c.cfg.Namespace != "" {
		args = append(args, "--namespace", c.cfg.Namespace)
	}
	if c.cfg.Insecure {
		args = append(args, "--insecure-skip-tls-verify")
	}
	return args
}

// parsePodList parses "name phase" lines from custom-columns output.
func parsePodList(out string) []Pod {
	var pods []Pod
	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		pods = append(pods, Pod{Name: fields[0], Phase: fields[1]})
	}
	return pods
}

// AnyPodRunning reports whether at least one pod is in the running phase.
// A coarse but sufficient readiness signal for the bounded wait budget.
func AnyPodRunning(pods []Pod) bool {
	for _, p := range pods {
		if p.Phase == PodPhaseRunning {
			return true
		}
	}
	return false
}

// =============================================================================
// Exec Runner
// =============================================================================

type execRunner struct{}

func (execRunner) Run(ctx context.Context, stdin string, name string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	if stdin != "" {
		cmd.Stdin = bytes.NewBufferString(stdin)
	}
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// DescribePods renders a compact "name=phase" summary for diagnostics.
func DescribePods(pods []Pod) string {
	if len(pods) == 0 {
		return "no pods scheduled"
	}
	parts := make([]string, 0, len(pods))
	for _, p := range pods {
		parts = append(parts, fmt.Sprintf("%s=%s", p.Name, p.Phase))
	}
	return strings.Join(parts, ", ")
}
