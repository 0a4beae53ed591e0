package worker

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dropdeploy/dropdeploy/internal/jobs"
)

func TestCompletionRingIsBounded(t *testing.T) {
	runtime := &Runtime{}

	for i := 0; i < completionHistory+50; i++ {
		payload := jobs.DeployPayload{
			DeploymentID: fmt.Sprintf("dep-%d", i),
			ProjectID:    "proj-1",
		}
		var err error
		if i%2 == 0 {
			err = fmt.Errorf("attempt %d failed", i)
		}
		runtime.record(payload, err)
	}

	recent := runtime.Recent()
	assert.Len(t, recent, completionHistory)

	// Oldest entries were discarded; the newest survives at the end
	assert.Equal(t, fmt.Sprintf("dep-%d", completionHistory+49), recent[len(recent)-1].DeploymentID)
	assert.Equal(t, "dep-50", recent[0].DeploymentID)
}

func TestRecentReturnsACopy(t *testing.T) {
	runtime := &Runtime{}
	runtime.record(jobs.DeployPayload{DeploymentID: "dep-1", ProjectID: "p"}, nil)

	first := runtime.Recent()
	first[0].DeploymentID = "mutated"

	assert.Equal(t, "dep-1", runtime.Recent()[0].DeploymentID)
}
