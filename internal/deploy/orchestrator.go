// Package deploy is the deployment orchestrator: it creates deployment
// records, submits pipeline jobs, and drives a persisted deployment from
// QUEUED to DEPLOYED or FAILED.
package deploy

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/dockerx"
	"github.com/dropdeploy/dropdeploy/internal/jobs"
	"github.com/dropdeploy/dropdeploy/internal/metrics"
	"github.com/dropdeploy/dropdeploy/internal/store"
)

// logTailBytes bounds how much failure output is persisted on a deployment
const logTailBytes = 4000

// Submitter enqueues deployment jobs
type Submitter interface {
	Submit(ctx context.Context, payload jobs.DeployPayload) (string, error)
}

// RepoManager keeps per-project working trees pinned to their branch tips
type RepoManager interface {
	EnsureRepo(ctx context.Context, repoURL, slug, branch string) (string, error)
}

// Orchestrator sequences the deployment pipeline
type Orchestrator struct {
	store  *store.Store
	repos  RepoManager
	engine dockerx.Engine
	queue  Submitter
	prefix string
}

// NewOrchestrator wires the orchestrator's collaborators
func NewOrchestrator(st *store.Store, repos RepoManager, engine dockerx.Engine, queue Submitter, prefix string) *Orchestrator {
	return &Orchestrator{store: st, repos: repos, engine: engine, queue: queue, prefix: prefix}
}

// CreateDeployment persists a QUEUED deployment for the caller's project and
// submits the pipeline job. Ownership failures report as not-found so callers
// cannot probe for other users' projects.
func (o *Orchestrator) CreateDeployment(ctx context.Context, projectID, userID string) (store.Deployment, error) {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return store.Deployment{}, E(KindNotFound, "", fmt.Errorf("project %s not found", projectID))
		}
		return store.Deployment{}, E(KindInternal, "", err)
	}
	if project.UserID != userID {
		return store.Deployment{}, E(KindNotFound, "", fmt.Errorf("project %s not found", projectID))
	}

	deployment, err := o.store.CreateDeployment(ctx, project.ID)
	if err != nil {
		return store.Deployment{}, E(KindInternal, "", err)
	}

	payload := jobs.DeployPayload{DeploymentID: deployment.ID, ProjectID: project.ID}
	if _, err := o.queue.Submit(ctx, payload); err != nil {
		if jobs.IsTransient(err) {
			// The row is already QUEUED; it can be re-submitted once the
			// backend recovers. Not a deployment failure.
			log.Warn().Err(err).Str("deployment_id", deployment.ID).
				Msg("queue backend unreachable, deployment stays queued")
			return deployment, nil
		}
		return store.Deployment{}, E(KindInternal, "", fmt.Errorf("failed to submit deploy job: %w", err))
	}

	log.Info().Str("deployment_id", deployment.ID).Str("project_id", project.ID).
		Str("slug", project.Slug).Msg("deployment queued")
	return deployment, nil
}

// BuildAndDeploy runs the pipeline for a persisted deployment: clone or
// update the repository, build the image, replace the project's container.
// Failures are persisted on the row and returned so the queue can retry.
func (o *Orchestrator) BuildAndDeploy(ctx context.Context, deploymentID string) error {
	deployment, err := o.store.GetDeployment(ctx, deploymentID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("deployment_id", deploymentID).Msg("deployment gone, dropping stale job")
			return nil
		}
		return E(KindInternal, "", err)
	}

	project, err := o.store.GetProject(ctx, deployment.ProjectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			log.Info().Str("deployment_id", deploymentID).Msg("project gone, dropping stale job")
			return nil
		}
		return E(KindInternal, "", err)
	}

	if project.RepoURL == "" {
		// Nothing to build and nothing a retry could change
		o.markFailed(ctx, deployment.ID, "project has no repository URL")
		return nil
	}

	metrics.IncActiveJobs()
	defer metrics.DecActiveJobs()
	start := time.Now()

	if err := o.store.MarkDeploymentBuilding(ctx, deployment.ID); err != nil {
		return E(KindInternal, "", err)
	}

	hostPort, err := o.runPipeline(ctx, deployment.ID, project)
	if err != nil {
		o.markFailed(ctx, deployment.ID, err.Error())
		metrics.RecordDeployment(string(store.StatusFailed), time.Since(start))
		log.Error().Err(err).Str("deployment_id", deployment.ID).
			Str("slug", project.Slug).Msg("deployment failed")
		return err
	}

	metrics.RecordDeployment(string(store.StatusDeployed), time.Since(start))
	log.Info().Str("deployment_id", deployment.ID).Str("slug", project.Slug).
		Int("host_port", hostPort).Dur("duration", time.Since(start)).
		Msg("deployment completed")
	return nil
}

// runPipeline executes the three build steps and finalizes the row. Each step
// failure is classified with the step it died in.
func (o *Orchestrator) runPipeline(ctx context.Context, deploymentID string, project store.Project) (int, error) {
	workDir, err := o.repos.EnsureRepo(ctx, project.RepoURL, project.Slug, project.Branch)
	if err != nil {
		return 0, E(KindCloneFailed, string(store.StepCloning), err)
	}

	if err := o.store.SetDeploymentStep(ctx, deploymentID, store.StepBuildingImage); err != nil {
		return 0, E(KindInternal, string(store.StepBuildingImage), err)
	}

	imageRef, err := o.engine.BuildImage(ctx, project.Slug, workDir, project.Framework)
	if err != nil {
		return 0, E(classifyBuildError(err), string(store.StepBuildingImage), err)
	}

	if err := o.store.SetDeploymentStep(ctx, deploymentID, store.StepStarting); err != nil {
		return 0, E(KindInternal, string(store.StepStarting), err)
	}

	containerName := dockerx.ContainerName(o.prefix, project.Slug)
	hostPort, err := o.engine.ReplaceAndRun(ctx, imageRef, project.Framework, containerName)
	if err != nil {
		return 0, E(KindRunFailed, string(store.StepStarting), err)
	}

	// Transfer the subdomain before finalizing so the unique constraint
	// cannot reject the DEPLOYED write.
	if err := o.store.ClearSubdomainOnOtherDeployments(ctx, project.ID, project.Slug, deploymentID); err != nil {
		return 0, E(KindInternal, string(store.StepStarting), err)
	}

	if err := o.store.MarkDeploymentDeployed(ctx, deploymentID, hostPort, project.Slug); err != nil {
		return 0, E(KindInternal, string(store.StepStarting), err)
	}

	return hostPort, nil
}

func classifyBuildError(err error) Kind {
	if errors.Is(err, dockerx.ErrImageMissing) {
		return KindImageMissing
	}
	return KindBuildFailed
}

// markFailed persists the terminal FAILED state with the failure log tail.
// A failed persistence is logged but not returned; the original pipeline
// error is the one worth propagating.
func (o *Orchestrator) markFailed(ctx context.Context, deploymentID, logs string) {
	if err := o.store.MarkDeploymentFailed(ctx, deploymentID, tail(logs, logTailBytes)); err != nil {
		log.Error().Err(err).Str("deployment_id", deploymentID).Msg("failed to persist deployment failure")
	}
}

// DeleteProject removes a project after stopping and removing its container.
// Ownership failures report as not-found.
func (o *Orchestrator) DeleteProject(ctx context.Context, projectID, userID string) error {
	project, err := o.store.GetProject(ctx, projectID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return E(KindNotFound, "", fmt.Errorf("project %s not found", projectID))
		}
		return E(KindInternal, "", err)
	}
	if project.UserID != userID {
		return E(KindNotFound, "", fmt.Errorf("project %s not found", projectID))
	}

	containerName := dockerx.ContainerName(o.prefix, project.Slug)
	if err := o.engine.StopAndRemove(ctx, containerName); err != nil {
		return E(KindInternal, "", fmt.Errorf("failed to remove container %s: %w", containerName, err))
	}

	if err := o.store.DeleteProject(ctx, project.ID); err != nil {
		return E(KindInternal, "", err)
	}

	log.Info().Str("project_id", project.ID).Str("slug", project.Slug).Msg("project deleted")
	return nil
}

// SweepOrphanedBuilding fails BUILDING rows left behind by a crashed worker.
// Run at worker startup, before job consumption begins.
func (o *Orchestrator) SweepOrphanedBuilding(ctx context.Context) error {
	n, err := o.store.FailOrphanedBuilding(ctx, time.Now(),
		"worker restarted while this deployment was building; re-deploy to retry")
	if err != nil {
		return err
	}
	if n > 0 {
		log.Warn().Int64("count", n).Msg("marked orphaned building deployments as failed")
	}
	return nil
}

// tail returns the last n bytes of s
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
