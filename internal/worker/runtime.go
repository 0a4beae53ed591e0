// Package worker is the long-running runtime that consumes deployment jobs
// and invokes the orchestrator's pipeline with bounded concurrency.
package worker

import (
	"context"
	"sync"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/deploy"
	"github.com/dropdeploy/dropdeploy/internal/jobs"
)

// completionHistory bounds the introspection ring of finished jobs
const completionHistory = 100

// Completion is one finished pipeline run kept for introspection
type Completion struct {
	DeploymentID string    `json:"deployment_id"`
	ProjectID    string    `json:"project_id"`
	Error        string    `json:"error,omitempty"`
	FinishedAt   time.Time `json:"finished_at"`
}

// Runtime pulls deployment jobs and runs pipelines
type Runtime struct {
	server *asynq.Server
	orch   *deploy.Orchestrator

	mu          sync.Mutex
	completions []Completion
}

// New creates a worker runtime against the queue backend at redisAddr
func New(redisAddr string, concurrency int, orch *deploy.Orchestrator) *Runtime {
	if concurrency <= 0 {
		concurrency = 5
	}

	runtime := &Runtime{orch: orch}
	runtime.server = asynq.NewServer(
		asynq.RedisClientOpt{Addr: redisAddr},
		asynq.Config{
			Concurrency:    concurrency,
			RetryDelayFunc: jobs.RetryDelay,
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("task_type", task.Type()).Msg("job attempt failed")
			}),
			Logger: asynqLogger{},
		},
	)
	return runtime
}

// Run blocks consuming jobs until Shutdown is called
func (r *Runtime) Run() error {
	mux := asynq.NewServeMux()
	mux.HandleFunc(jobs.TypeDeploy, r.handleDeploy)

	log.Info().Msg("worker runtime started")
	return r.server.Run(mux)
}

// Shutdown drains in-flight jobs and stops the server
func (r *Runtime) Shutdown() {
	log.Info().Msg("worker runtime stopping")
	r.server.Shutdown()
}

// handleDeploy runs one pipeline and records its outcome. A returned error
// triggers the queue's retry policy.
func (r *Runtime) handleDeploy(ctx context.Context, task *asynq.Task) error {
	payload, err := jobs.ParseDeployPayload(task)
	if err != nil {
		// A payload that never parses will never parse on retry either
		log.Error().Err(err).Msg("dropping malformed deploy job")
		return nil
	}

	log.Info().Str("deployment_id", payload.DeploymentID).
		Str("project_id", payload.ProjectID).Msg("processing deploy job")

	runErr := r.orch.BuildAndDeploy(ctx, payload.DeploymentID)
	r.record(payload, runErr)

	if runErr != nil {
		if !deploy.KindOf(runErr).IsRetryable() {
			return nil
		}
		return runErr
	}

	log.Info().Str("deployment_id", payload.DeploymentID).Msg("deploy job completed")
	return nil
}

// record appends to the completion ring, discarding the oldest entries
func (r *Runtime) record(payload jobs.DeployPayload, err error) {
	completion := Completion{
		DeploymentID: payload.DeploymentID,
		ProjectID:    payload.ProjectID,
		FinishedAt:   time.Now().UTC(),
	}
	if err != nil {
		completion.Error = err.Error()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.completions = append(r.completions, completion)
	if len(r.completions) > completionHistory {
		r.completions = r.completions[len(r.completions)-completionHistory:]
	}
}

// Recent returns a copy of the completion ring, newest last
func (r *Runtime) Recent() []Completion {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Completion, len(r.completions))
	copy(out, r.completions)
	return out
}

// asynqLogger adapts asynq's logger interface onto zerolog
type asynqLogger struct{}

func (asynqLogger) Debug(args ...interface{}) { log.Debug().Msgf("%v", args) }
func (asynqLogger) Info(args ...interface{})  { log.Info().Msgf("%v", args) }
func (asynqLogger) Warn(args ...interface{})  { log.Warn().Msgf("%v", args) }
func (asynqLogger) Error(args ...interface{}) { log.Error().Msgf("%v", args) }
func (asynqLogger) Fatal(args ...interface{}) { log.Fatal().Msgf("%v", args) }
