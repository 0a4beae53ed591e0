package jobs

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDeployTaskRoundTrip(t *testing.T) {
	task, err := NewDeployTask(DeployPayload{DeploymentID: "dep-1", ProjectID: "proj-1"})
	require.NoError(t, err)
	assert.Equal(t, TypeDeploy, task.Type())

	payload, err := ParseDeployPayload(task)
	require.NoError(t, err)
	assert.Equal(t, "dep-1", payload.DeploymentID)
	assert.Equal(t, "proj-1", payload.ProjectID)
}

func TestRetryDelaySchedule(t *testing.T) {
	assert.Equal(t, 2*time.Second, RetryDelay(1, nil, nil))
	assert.Equal(t, 4*time.Second, RetryDelay(2, nil, nil))
	assert.Equal(t, 8*time.Second, RetryDelay(3, nil, nil))

	// Defensive floor for out-of-range retry counts
	assert.Equal(t, 2*time.Second, RetryDelay(0, nil, nil))
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "dial tcp: i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	transient := []error{
		syscall.ECONNREFUSED,
		fmt.Errorf("enqueue: %w", syscall.ECONNREFUSED),
		&net.OpError{Op: "dial", Net: "tcp", Err: timeoutErr{}},
		errors.New("dial tcp 127.0.0.1:6379: connection refused"),
		context.DeadlineExceeded,
	}
	for _, err := range transient {
		assert.True(t, IsTransient(err), "expected transient: %v", err)
	}

	permanent := []error{
		nil,
		errors.New("payload too large"),
		errors.New("WRONGTYPE Operation against a key"),
	}
	for _, err := range permanent {
		assert.False(t, IsTransient(err), "expected permanent: %v", err)
	}
}
