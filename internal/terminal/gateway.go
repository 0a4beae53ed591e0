// Package terminal is the command gateway: safety-bounded command execution
// inside a running container, plus named shortcut commands.
package terminal

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/docker/docker/pkg/stdcopy"
	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/dockerx"
)

// execTimeout is the wall-clock limit for a single command
const execTimeout = 30 * time.Second

// ErrTimeout marks a command that exceeded the execution time limit
var ErrTimeout = errors.New("command timed out after 30s")

// ErrContainerNotFound marks a target container that is not running
var ErrContainerNotFound = errors.New("container not found; deploy the project first")

// Result is the outcome of an executed command
type Result struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exitCode"`
}

// Gateway executes operator commands against running containers
type Gateway struct {
	engine  dockerx.Engine
	prefix  string
	timeout time.Duration
}

// NewGateway creates a command gateway bound to a container engine
func NewGateway(engine dockerx.Engine, prefix string) *Gateway {
	return &Gateway{engine: engine, prefix: prefix, timeout: execTimeout}
}

// Execute runs an allow-listed shell command inside the named container and
// returns its demultiplexed output and exit code.
func (g *Gateway) Execute(ctx context.Context, containerName, command string) (Result, error) {
	if err := validateCommand(command); err != nil {
		return Result{}, err
	}

	target, err := g.resolveContainer(ctx, containerName)
	if err != nil {
		return Result{}, err
	}

	return g.exec(ctx, target, command)
}

// exec runs a command without allow-list validation; shortcut expansions use
// it directly since their commands come from the fixed registry.
func (g *Gateway) exec(ctx context.Context, target, command string) (Result, error) {
	stream, err := g.engine.Exec(ctx, target, command)
	if err != nil {
		return Result{}, fmt.Errorf("failed to exec in %s: %w", target, err)
	}
	defer stream.Close()

	var stdout, stderr bytes.Buffer
	done := make(chan error, 1)
	go func() {
		// The engine multiplexes both streams over one connection with an
		// 8-byte frame header; stdcopy demultiplexes into the two buffers.
		_, copyErr := stdcopy.StdCopy(&stdout, &stderr, stream.Reader)
		done <- copyErr
	}()

	timer := time.NewTimer(g.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			return Result{}, fmt.Errorf("failed to read command output: %w", err)
		}
	case <-timer.C:
		stream.Close()
		return Result{}, ErrTimeout
	case <-ctx.Done():
		stream.Close()
		return Result{}, ctx.Err()
	}

	result := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	exitCode, err := g.engine.ExecExitCode(ctx, stream.ID)
	if err != nil {
		// The output is still useful without the code
		log.Warn().Err(err).Str("container", target).Msg("failed to read exec exit code")
		result.ExitCode = -1
		return result, nil
	}
	result.ExitCode = exitCode
	return result, nil
}

// resolveContainer finds the execution target: exact name first, then any
// running container whose image matches the slug the name implies.
func (g *Gateway) resolveContainer(ctx context.Context, containerName string) (string, error) {
	status, err := g.engine.Inspect(ctx, containerName)
	if err == nil && status.Running {
		return containerName, nil
	}

	slug := dockerx.SlugFromContainerName(g.prefix, containerName)
	wantImage := dockerx.ImageRef(g.prefix, slug)

	running, listErr := g.engine.ListRunning(ctx)
	if listErr != nil {
		return "", fmt.Errorf("failed to list running containers: %w", listErr)
	}
	for _, c := range running {
		if c.Image == wantImage {
			return c.ID, nil
		}
	}

	return "", fmt.Errorf("%q: %w", containerName, ErrContainerNotFound)
}
