package terminal

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dropdeploy/dropdeploy/internal/dockerx"
)

// muxStream builds an engine-style multiplexed stream from stdout and stderr
func muxStream(t *testing.T, stdout, stderr string) io.Reader {
	t.Helper()

	var buf bytes.Buffer
	if stdout != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stdout).Write([]byte(stdout))
		require.NoError(t, err)
	}
	if stderr != "" {
		_, err := stdcopy.NewStdWriter(&buf, stdcopy.Stderr).Write([]byte(stderr))
		require.NoError(t, err)
	}
	return &buf
}

func runningContainer(name string) dockerx.ContainerStatus {
	return dockerx.ContainerStatus{ID: "cid-1", Name: name, Running: true}
}

func TestValidateCommand(t *testing.T) {
	assert.NoError(t, validateCommand("ls -la"))
	assert.NoError(t, validateCommand("npm run start"))
	assert.NoError(t, validateCommand("tail -f /var/log/app.log"))

	for _, bad := range []string{"rm -rf /", "sh -c 'echo hi'", "kill 1", "", "   "} {
		err := validateCommand(bad)
		require.Error(t, err, "command %q", bad)
		var notAllowed *NotAllowedError
		assert.ErrorAs(t, err, &notAllowed)
		assert.Contains(t, err.Error(), "permitted commands")
	}
}

func TestExecuteHappyPath(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
	engine.On("Exec", mock.Anything, "dropdeploy-site", "ls -la").Return(&dockerx.ExecStream{
		ID:     "exec-1",
		Reader: muxStream(t, "total 4\nindex.html\n", ""),
	}, nil)
	engine.On("ExecExitCode", mock.Anything, "exec-1").Return(0, nil)

	result, err := gateway.Execute(context.Background(), "dropdeploy-site", "ls -la")
	require.NoError(t, err)
	assert.Contains(t, result.Stdout, "index.html")
	assert.Empty(t, result.Stderr)
	assert.Equal(t, 0, result.ExitCode)
	engine.AssertExpectations(t)
}

func TestExecuteDemuxesStderr(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
	engine.On("Exec", mock.Anything, "dropdeploy-site", "cat missing").Return(&dockerx.ExecStream{
		ID:     "exec-2",
		Reader: muxStream(t, "", "cat: missing: No such file or directory\n"),
	}, nil)
	engine.On("ExecExitCode", mock.Anything, "exec-2").Return(1, nil)

	result, err := gateway.Execute(context.Background(), "dropdeploy-site", "cat missing")
	require.NoError(t, err)
	assert.Empty(t, result.Stdout)
	assert.Contains(t, result.Stderr, "No such file")
	assert.Equal(t, 1, result.ExitCode)
}

func TestExecuteRejectsBeforeEngine(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	_, err := gateway.Execute(context.Background(), "dropdeploy-site", "rm -rf /")

	var notAllowed *NotAllowedError
	require.ErrorAs(t, err, &notAllowed)
	engine.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
	engine.AssertNotCalled(t, "Inspect", mock.Anything, mock.Anything)
}

func TestExecuteTimeout(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")
	gateway.timeout = 50 * time.Millisecond

	// A pipe with no writer models tail -f: output never completes
	pipeReader, pipeWriter := io.Pipe()
	t.Cleanup(func() { pipeWriter.Close() })

	engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
	engine.On("Exec", mock.Anything, "dropdeploy-site", "tail -f /proc/1/fd/1").Return(&dockerx.ExecStream{
		ID:     "exec-3",
		Reader: pipeReader,
	}, nil)

	start := time.Now()
	_, err := gateway.Execute(context.Background(), "dropdeploy-site", "tail -f /proc/1/fd/1")
	assert.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), 5*time.Second)
}

func TestExecuteExitCodeLookupFailure(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
	engine.On("Exec", mock.Anything, "dropdeploy-site", "pwd").Return(&dockerx.ExecStream{
		ID:     "exec-4",
		Reader: muxStream(t, "/app\n", ""),
	}, nil)
	engine.On("ExecExitCode", mock.Anything, "exec-4").Return(0, assert.AnError)

	result, err := gateway.Execute(context.Background(), "dropdeploy-site", "pwd")
	require.NoError(t, err, "buffers still return when the exit lookup fails")
	assert.Contains(t, result.Stdout, "/app")
	assert.Equal(t, -1, result.ExitCode)
}

func TestResolveContainerFallsBackToImageMatch(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	engine.On("Inspect", mock.Anything, "dropdeploy-site").
		Return(dockerx.ContainerStatus{}, assert.AnError)
	engine.On("ListRunning", mock.Anything).Return([]dockerx.ContainerSummary{
		{ID: "other", Name: "unrelated", Image: "nginx:alpine"},
		{ID: "cid-9", Name: "renamed", Image: "dropdeploy/site:latest"},
	}, nil)
	engine.On("Exec", mock.Anything, "cid-9", "pwd").Return(&dockerx.ExecStream{
		ID:     "exec-5",
		Reader: muxStream(t, "/app\n", ""),
	}, nil)
	engine.On("ExecExitCode", mock.Anything, "exec-5").Return(0, nil)

	result, err := gateway.Execute(context.Background(), "dropdeploy-site", "pwd")
	require.NoError(t, err)
	assert.Equal(t, 0, result.ExitCode)
}

func TestResolveContainerNotFound(t *testing.T) {
	engine := new(dockerx.MockEngine)
	gateway := NewGateway(engine, "dropdeploy")

	engine.On("Inspect", mock.Anything, "dropdeploy-gone").
		Return(dockerx.ContainerStatus{}, assert.AnError)
	engine.On("ListRunning", mock.Anything).Return([]dockerx.ContainerSummary{}, nil)

	_, err := gateway.Execute(context.Background(), "dropdeploy-gone", "ls")
	assert.ErrorIs(t, err, ErrContainerNotFound)
}

func TestShortcuts(t *testing.T) {
	t.Run("HelpSkipsEngine", func(t *testing.T) {
		engine := new(dockerx.MockEngine)
		gateway := NewGateway(engine, "dropdeploy")

		result, err := gateway.ExecuteShortcut(context.Background(), "dropdeploy-site", "/help")
		require.NoError(t, err)
		for _, name := range []string{"/show-logs", "/tail-logs", "/env", "/files", "/help"} {
			assert.Contains(t, result.Stdout, name)
		}
		engine.AssertNotCalled(t, "Inspect", mock.Anything, mock.Anything)
	})

	t.Run("ShowLogs", func(t *testing.T) {
		engine := new(dockerx.MockEngine)
		gateway := NewGateway(engine, "dropdeploy")

		engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
		engine.On("Logs", mock.Anything, "dropdeploy-site", 500).Return([]byte("log line\n"), nil)

		result, err := gateway.ExecuteShortcut(context.Background(), "dropdeploy-site", "/show-logs")
		require.NoError(t, err)
		assert.Equal(t, "log line\n", result.Stdout)
	})

	t.Run("TailLogs", func(t *testing.T) {
		engine := new(dockerx.MockEngine)
		gateway := NewGateway(engine, "dropdeploy")

		engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
		engine.On("Logs", mock.Anything, "dropdeploy-site", 100).Return([]byte("tail\n"), nil)

		result, err := gateway.ExecuteShortcut(context.Background(), "dropdeploy-site", "/tail-logs")
		require.NoError(t, err)
		assert.Equal(t, "tail\n", result.Stdout)
	})

	t.Run("EnvRunsInContainer", func(t *testing.T) {
		engine := new(dockerx.MockEngine)
		gateway := NewGateway(engine, "dropdeploy")

		engine.On("Inspect", mock.Anything, "dropdeploy-site").Return(runningContainer("dropdeploy-site"), nil)
		engine.On("Exec", mock.Anything, "dropdeploy-site", "env | sort").Return(&dockerx.ExecStream{
			ID:     "exec-6",
			Reader: muxStream(t, "HOME=/root\nPATH=/usr/bin\n", ""),
		}, nil)
		engine.On("ExecExitCode", mock.Anything, "exec-6").Return(0, nil)

		result, err := gateway.ExecuteShortcut(context.Background(), "dropdeploy-site", "/env")
		require.NoError(t, err)
		assert.Contains(t, result.Stdout, "PATH=")
	})

	t.Run("Unknown", func(t *testing.T) {
		engine := new(dockerx.MockEngine)
		gateway := NewGateway(engine, "dropdeploy")

		_, err := gateway.ExecuteShortcut(context.Background(), "dropdeploy-site", "/destroy")
		var unknown *UnknownShortcutError
		assert.ErrorAs(t, err, &unknown)
	})
}
