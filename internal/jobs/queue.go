// Package jobs is the durable deployment job queue. Jobs survive process
// restarts in the queue backend and are delivered at least once with bounded
// retries.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"time"

	"github.com/hibiken/asynq"
)

// TypeDeploy is the task type for deployment pipeline runs
const TypeDeploy = "deploy:run"

const (
	// maxRetry allows 3 attempts total per job
	maxRetry = 2

	// retryBaseDelay starts the exponential backoff schedule: 2s, 4s, 8s
	retryBaseDelay = 2 * time.Second

	// taskTimeout bounds a single pipeline run; container builds can take
	// minutes, so this is generous.
	taskTimeout = 30 * time.Minute

	// completedRetention keeps finished tasks visible in the backend for
	// introspection before they are discarded.
	completedRetention = 24 * time.Hour
)

// DeployPayload identifies the deployment a job processes
type DeployPayload struct {
	DeploymentID string `json:"deployment_id"`
	ProjectID    string `json:"project_id"`
}

// NewDeployTask builds the asynq task for a deployment
func NewDeployTask(payload DeployPayload) (*asynq.Task, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal deploy payload: %w", err)
	}
	return asynq.NewTask(TypeDeploy, data), nil
}

// ParseDeployPayload decodes a deploy task payload
func ParseDeployPayload(task *asynq.Task) (DeployPayload, error) {
	var payload DeployPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return DeployPayload{}, fmt.Errorf("failed to unmarshal deploy payload: %w", err)
	}
	return payload, nil
}

// RetryDelay is the backoff schedule shared by the worker server: 2s on the
// first retry, doubling each attempt.
func RetryDelay(n int, _ error, _ *asynq.Task) time.Duration {
	if n < 1 {
		n = 1
	}
	return retryBaseDelay << (n - 1)
}

// Queue submits deployment jobs to the backend
type Queue struct {
	client *asynq.Client
}

// NewQueue connects a job producer to the queue backend at redisAddr
func NewQueue(redisAddr string) *Queue {
	return &Queue{client: asynq.NewClient(asynq.RedisClientOpt{Addr: redisAddr})}
}

// Submit enqueues a deployment job durably and returns its identifier
func (q *Queue) Submit(ctx context.Context, payload DeployPayload) (string, error) {
	task, err := NewDeployTask(payload)
	if err != nil {
		return "", err
	}

	info, err := q.client.EnqueueContext(ctx, task,
		asynq.MaxRetry(maxRetry),
		asynq.Timeout(taskTimeout),
		asynq.Retention(completedRetention),
	)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue deploy job: %w", err)
	}
	return info.ID, nil
}

// Close releases the backend connection
func (q *Queue) Close() error {
	return q.client.Close()
}

// IsTransient classifies a submit failure as a connectivity problem with the
// queue backend. Transient failures are survivable: the deployment row is
// already persisted as QUEUED and can be re-submitted once the backend
// recovers.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EHOSTUNREACH) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, fragment := range []string{"connection refused", "i/o timeout", "no such host", "broken pipe"} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}
	return false
}
