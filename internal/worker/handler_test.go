package worker

import (
	"context"
	"errors"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/dockerx"
	"github.com/dropdeploy/dropdeploy/internal/jobs"
	"github.com/dropdeploy/dropdeploy/internal/store"
)

type noopQueue struct{}

func (noopQueue) Submit(ctx context.Context, payload jobs.DeployPayload) (string, error) {
	return "task-1", nil
}

type failingRepos struct{ err error }

func (f failingRepos) EnsureRepo(ctx context.Context, repoURL, slug, branch string) (string, error) {
	return "", f.err
}

func setupRuntime(t *testing.T, repos deploy.RepoManager) (*Runtime, *store.Store) {
	t.Helper()

	st, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(context.Background()))

	orch := deploy.NewOrchestrator(st, repos, new(dockerx.MockEngine), noopQueue{}, "dropdeploy")
	return &Runtime{orch: orch}, st
}

func deployTask(t *testing.T, payload jobs.DeployPayload) *asynq.Task {
	t.Helper()
	task, err := jobs.NewDeployTask(payload)
	require.NoError(t, err)
	return task
}

func TestHandleDeployStaleJobSucceeds(t *testing.T) {
	runtime, _ := setupRuntime(t, failingRepos{})

	task := deployTask(t, jobs.DeployPayload{DeploymentID: "gone", ProjectID: "gone"})
	assert.NoError(t, runtime.handleDeploy(context.Background(), task))

	recent := runtime.Recent()
	require.Len(t, recent, 1)
	assert.Empty(t, recent[0].Error)
}

func TestHandleDeployRetryableFailurePropagates(t *testing.T) {
	runtime, st := setupRuntime(t, failingRepos{err: errors.New("remote hung up unexpectedly")})
	ctx := context.Background()

	project, err := st.CreateProject(ctx, store.ProjectSpec{
		UserID: "user-1", Name: "Site", Slug: "site",
		RepoURL: "https://git.example.test/u/site.git", Framework: store.FrameworkStatic,
	})
	require.NoError(t, err)
	deployment, err := st.CreateDeployment(ctx, project.ID)
	require.NoError(t, err)

	task := deployTask(t, jobs.DeployPayload{DeploymentID: deployment.ID, ProjectID: project.ID})
	err = runtime.handleDeploy(ctx, task)
	require.Error(t, err, "clone failures return to the queue for retry")

	recent := runtime.Recent()
	require.Len(t, recent, 1)
	assert.Contains(t, recent[0].Error, "remote hung up")

	final, err := st.GetDeployment(ctx, deployment.ID)
	require.NoError(t, err)
	assert.Equal(t, store.StatusFailed, final.Status)
}

func TestHandleDeployMalformedPayloadDropped(t *testing.T) {
	runtime, _ := setupRuntime(t, failingRepos{})

	task := asynq.NewTask(jobs.TypeDeploy, []byte("not json"))
	assert.NoError(t, runtime.handleDeploy(context.Background(), task), "malformed payloads never retry")
	assert.Empty(t, runtime.Recent())
}
