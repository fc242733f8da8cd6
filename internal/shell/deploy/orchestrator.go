// Package deploy composes the full pipeline: build an artifact, containerize
// and publish it, render manifests, apply the data tier, wait for it, apply
// the application tier, and wait for the rollout to converge.
package deploy

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/shipwaylabs/shipway/internal/core/domain"
	"github.com/shipwaylabs/shipway/internal/core/manifest"
	"github.com/shipwaylabs/shipway/internal/core/pipeline"
	"github.com/shipwaylabs/shipway/internal/core/poll"
	"github.com/shipwaylabs/shipway/internal/core/validation"
	"github.com/shipwaylabs/shipway/internal/shell/cluster"
	"github.com/shipwaylabs/shipway/internal/shell/registry"
	"github.com/shipwaylabs/shipway/internal/shell/store"
)

// =============================================================================
// Stage Names
// =============================================================================

const (
	StageBuild           = "Build"
	StageContainerize    = "Containerize"
	StagePublish         = "Publish"
	StageRenderManifests = "RenderManifests"
	StageApplyDeps       = "ApplyDependencies"
	StageAwaitDeps       = "AwaitDependencyReadiness"
	StageApplyApp        = "ApplyApplication"
	StageAwaitApp        = "AwaitApplicationReadiness"
)

// =============================================================================
// Collaborators
// =============================================================================

// ArtifactBuilder produces the deployable artifact.
type ArtifactBuilder interface {
	Build(ctx context.Context) (domain.ArtifactRef, error)
}

// =============================================================================
// Params
// =============================================================================

// Params configures one pipeline. Everything the run needs is passed in at
// construction; nothing is read from ambient process state.
type Params struct {
	// Repository is the image repository; the per-run tag is derived from
	// BuildNumber and pinned in every rendered manifest.
	Repository  string
	BuildNumber int

	// App parameterizes the application tier. Image is derived from
	// Repository and BuildNumber; any caller-set value is overwritten.
	App        manifest.AppParams
	AppService manifest.ServiceParams

	// Data parameterizes the dependency tier.
	Data manifest.DataParams

	// DependencyPoll budgets the wait for the data tier; zero value gets the
	// default 30 attempts at 10s.
	DependencyPoll poll.Check
	// RolloutPoll budgets the wait for application rollout convergence.
	RolloutPoll poll.Check
}

func (p *Params) applyDefaults() {
	if p.DependencyPoll.MaxAttempts == 0 && p.DependencyPoll.Interval == 0 {
		p.DependencyPoll = poll.Check{Interval: 10 * time.Second, MaxAttempts: 30}
	}
	if p.DependencyPoll.Description == "" {
		p.DependencyPoll.Description = "dependency tier running"
	}
	if p.RolloutPoll.MaxAttempts == 0 && p.RolloutPoll.Interval == 0 {
		p.RolloutPoll = poll.Check{Interval: 10 * time.Second, MaxAttempts: 30}
	}
	if p.RolloutPoll.Description == "" {
		p.RolloutPoll.Description = "application rollout converged"
	}
}

// =============================================================================
// Orchestrator
// =============================================================================

// Orchestrator drives one pipeline run at a time. Stages are strictly
// sequential; an external cancel is observed between stages and between poll
// attempts, never mid-effect.
type Orchestrator struct {
	params   Params
	image    domain.ImageRef
	builder  ArtifactBuilder
	registry registry.Client
	cluster  cluster.Client
	store    store.Store

	executor      *pipeline.Executor
	depPoller     *poll.Poller
	rolloutPoller *poll.Poller
	logger        *slog.Logger
}

// New validates params and creates an orchestrator. Validation failures are
// configuration errors, returned before any external effect.
func New(params Params, b ArtifactBuilder, reg registry.Client, clu cluster.Client, st store.Store, logger *slog.Logger) (*Orchestrator, error) {
	if logger == nil {
		logger = slog.Default()
	}
	params.applyDefaults()

	if params.Repository == "" {
		return nil, domain.NewConfigurationError("repository", "must not be empty")
	}
	if params.BuildNumber < 1 {
		return nil, domain.NewConfigurationError("build_number", "must be at least 1")
	}
	image := domain.NewImageRef(params.Repository, params.BuildNumber)
	params.App.Image = image

	if err := validation.ValidateAppParams(params.App); err != nil {
		return nil, err
	}
	if err := validation.ValidateServiceParams(params.AppService); err != nil {
		return nil, err
	}
	if err := validation.ValidateDataParams(params.Data); err != nil {
		return nil, err
	}

	depPoller, err := poll.New(params.DependencyPoll, logger)
	if err != nil {
		return nil, err
	}
	rolloutPoller, err := poll.New(params.RolloutPoll, logger)
	if err != nil {
		return nil, err
	}

	return &Orchestrator{
		params:        params,
		image:         image,
		builder:       b,
		registry:      reg,
		cluster:       clu,
		store:         st,
		executor:      pipeline.NewExecutor(logger),
		depPoller:     depPoller,
		rolloutPoller: rolloutPoller,
		logger:        logger.With("component", "orchestrator"),
	}, nil
}

// Run executes the pipeline and returns the finalized run. The returned run
// is also reported and persisted best-effort; reporting failures are logged
// and never change the run's outcome.
func (o *Orchestrator) Run(ctx context.Context) *domain.PipelineRun {
	// Mutable state threaded between stages. Each stage only reads what a
	// predecessor produced, so sequential execution keeps this safe.
	var (
		artifact     domain.ArtifactRef
		depManifests string
		appManifests string
	)

	stages := []pipeline.Stage{
		{
			Name: StageBuild,
			Run: func(ctx context.Context) (string, error) {
				ref, err := o.builder.Build(ctx)
				if err != nil {
					return "", err
				}
				artifact = ref
				if ref.TestReport != "" {
					return fmt.Sprintf("%s (test report: %s)", ref.Path, ref.TestReport), nil
				}
				return ref.Path, nil
			},
		},
		{
			Name: StageContainerize,
			Run: func(ctx context.Context) (string, error) {
				if err := o.registry.BuildImage(ctx, artifact, o.image); err != nil {
					return "", err
				}
				return o.image.String(), nil
			},
		},
		{
			Name: StagePublish,
			Run: func(ctx context.Context) (string, error) {
				if err := o.registry.Push(ctx, o.image); err != nil {
					return "", err
				}
				// The mutable alias is convenience only; rendered manifests
				// always pin the immutable per-run tag.
				alias := o.image.WithTag(domain.TagLatest)
				if err := o.registry.Tag(ctx, o.image, alias); err != nil {
					return "", err
				}
				if err := o.registry.Push(ctx, alias); err != nil {
					return "", err
				}
				return fmt.Sprintf("%s, %s", o.image, alias), nil
			},
		},
		{
			Name: StageRenderManifests,
			Run: func(ctx context.Context) (string, error) {
				dep := manifest.OrderSet(manifest.Set{
					manifest.DataVolumeClaim(o.params.Data),
					manifest.DataDeployment(o.params.Data),
					manifest.DataService(o.params.Data),
				})
				app := manifest.OrderSet(manifest.Set{
					manifest.AppDeployment(o.params.App),
					manifest.AppService(o.params.AppService),
				})

				depText, err := dep.Render()
				if err != nil {
					return "", err
				}
				appText, err := app.Render()
				if err != nil {
					return "", err
				}
				depManifests = depText
				appManifests = appText
				return fmt.Sprintf("%d dependency documents, %d application documents", len(dep), len(app)), nil
			},
		},
		{
			Name: StageApplyDeps,
			Run: func(ctx context.Context) (string, error) {
				if err := o.cluster.Apply(ctx, depManifests); err != nil {
					return "", err
				}
				return "dependency tier applied", nil
			},
		},
		{
			Name: StageAwaitDeps,
			Run: func(ctx context.Context) (string, error) {
				selector := "app=" + o.params.Data.Name
				err := o.depPoller.Wait(ctx, func(ctx context.Context) (string, bool, error) {
					pods, err := o.cluster.ListPods(ctx, selector)
					if err != nil {
						return "", false, err
					}
					return cluster.DescribePods(pods), cluster.AnyPodRunning(pods), nil
				})
				if err != nil {
					return "", err
				}
				return "at least one pod running", nil
			},
		},
		{
			Name: StageApplyApp,
			Run: func(ctx context.Context) (string, error) {
				if err := o.cluster.Apply(ctx, appManifests); err != nil {
					return "", err
				}
				return "application tier applied", nil
			},
		},
		{
			Name: StageAwaitApp,
			Run: func(ctx context.Context) (string, error) {
				resource := "deployment/" + o.params.App.Name
				err := o.rolloutPoller.Wait(ctx, func(ctx context.Context) (string, bool, error) {
					state, err := o.cluster.RolloutStatus(ctx, resource)
					if err != nil {
						return "", false, err
					}
					return string(state), state == cluster.RolloutConverged, nil
				})
				if err != nil {
					return "", err
				}
				return "rollout converged", nil
			},
		},
	}

	run := o.executor.Run(ctx, stages)
	o.report(ctx, run)
	return run
}

// report emits the human-facing summary and persists the run. Best-effort:
// a reporting failure never masks the run's outcome.
func (o *Orchestrator) report(ctx context.Context, run *domain.PipelineRun) {
	logger := o.logger.With("run_id", run.ID, "outcome", run.Outcome)

	switch run.Outcome {
	case domain.OutcomeSucceeded:
		endpoint := ""
		if len(o.params.AppService.Ports) > 0 {
			endpoint = fmt.Sprintf("%s:%d", o.params.AppService.Name, o.params.AppService.Ports[0].Port)
		}
		logger.Info("deploy succeeded",
			"image", o.image.String(),
			"endpoint", endpoint,
			"stages", len(run.Stages))
	case domain.OutcomeFailed:
		logger.Error("deploy failed",
			"failed_stage", run.FailedStage,
			"reason", run.FailureReason)
	case domain.OutcomeAborted:
		logger.Warn("deploy aborted", "stages", len(run.Stages))
	}

	if o.store == nil {
		return
	}
	// Persist even when the run was aborted by cancel.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := o.store.SaveRun(saveCtx, run); err != nil {
		logger.Error("failed to persist run", "error", err)
	}
}
