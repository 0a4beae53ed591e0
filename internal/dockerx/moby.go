package dockerx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/archive"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	"github.com/rs/zerolog/log"

	"github.com/dropdeploy/dropdeploy/internal/recipes"
	"github.com/dropdeploy/dropdeploy/internal/store"
)

// buildLogTailChunks is how many trailing build-output chunks are retained
// for failure messages.
const buildLogTailChunks = 20

// EngineConfig carries the fixed parameters of the container engine adapter
type EngineConfig struct {
	// Prefix namespaces container names and image references
	Prefix string

	// Socket optionally overrides the engine control socket path
	Socket string

	// MemoryLimitBytes is the per-container memory hard cap
	MemoryLimitBytes int64

	// CPUShares is the per-container CPU weight
	CPUShares int64
}

// MobyEngine implements Engine using the Docker (Moby) SDK
type MobyEngine struct {
	client *client.Client
	cfg    EngineConfig
}

// NewMobyEngine connects to the Docker daemon and verifies it responds
func NewMobyEngine(ctx context.Context, cfg EngineConfig) (*MobyEngine, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Socket != "" {
		opts = append(opts, client.WithHost("unix://"+cfg.Socket))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Docker client: %w", err)
	}

	if _, err := cli.Ping(ctx); err != nil {
		cli.Close()
		return nil, fmt.Errorf("docker daemon unreachable: %w", err)
	}

	return &MobyEngine{client: cli, cfg: cfg}, nil
}

// Close closes the Docker client
func (e *MobyEngine) Close() error {
	return e.client.Close()
}

// BuildImage writes the framework recipe into contextDir, streams the engine
// build, and verifies the image actually exists afterwards. The build stream
// can report success yet produce nothing, so the inspect is not optional.
func (e *MobyEngine) BuildImage(ctx context.Context, slug, contextDir string, framework store.Framework) (string, error) {
	recipe, err := recipes.ForFramework(framework)
	if err != nil {
		return "", err
	}

	if err := recipes.WriteDockerfile(contextDir, framework); err != nil {
		return "", err
	}

	imageRef := ImageRef(e.cfg.Prefix, slug)
	log.Info().Str("slug", slug).Str("image", imageRef).Msg("building image")

	buildContext, err := archive.TarWithOptions(contextDir, &archive.TarOptions{})
	if err != nil {
		return "", fmt.Errorf("failed to tar build context: %w", err)
	}
	defer buildContext.Close()

	resp, err := e.client.ImageBuild(ctx, buildContext, build.ImageBuildOptions{
		Tags:        []string{imageRef},
		Dockerfile:  "Dockerfile",
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return "", &BuildError{Err: fmt.Errorf("failed to start image build: %w", err)}
	}
	defer resp.Body.Close()

	tail, err := consumeBuildStream(resp.Body)
	if err != nil {
		return "", &BuildError{Tail: tail, Err: err}
	}

	if _, err := e.client.ImageInspect(ctx, imageRef); err != nil {
		if client.IsErrNotFound(err) {
			return "", fmt.Errorf("%w: %s produced no image (%s)", ErrImageMissing, framework, recipe.MissingImageHint)
		}
		return "", fmt.Errorf("failed to verify built image: %w", err)
	}

	return imageRef, nil
}

// consumeBuildStream drains the engine's JSON build progress, keeping the
// last chunks for error context. An error message anywhere in the stream
// fails the build.
func consumeBuildStream(body io.Reader) (string, error) {
	var chunks []string
	decoder := json.NewDecoder(body)

	for {
		var msg jsonmessage.JSONMessage
		if err := decoder.Decode(&msg); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return joinTail(chunks), fmt.Errorf("failed to decode build output: %w", err)
		}

		if text := strings.TrimSpace(msg.Stream); text != "" {
			chunks = append(chunks, text)
			if len(chunks) > buildLogTailChunks {
				chunks = chunks[len(chunks)-buildLogTailChunks:]
			}
		}

		if msg.Error != nil {
			return joinTail(chunks), fmt.Errorf("build error: %s", msg.Error.Message)
		}
	}

	return joinTail(chunks), nil
}

func joinTail(chunks []string) string {
	return strings.Join(chunks, "\n")
}

// ReplaceAndRun enforces the one-container-per-project contract: any existing
// container with the name is stopped and removed, then a fresh one starts
// with the internal port bound to a verified-free host port.
func (e *MobyEngine) ReplaceAndRun(ctx context.Context, imageRef string, framework store.Framework, containerName string) (int, error) {
	internalPort, err := recipes.InternalPort(framework)
	if err != nil {
		return 0, err
	}

	if err := e.StopAndRemove(ctx, containerName); err != nil {
		return 0, fmt.Errorf("failed to remove previous container: %w", err)
	}

	hostPort, err := AllocateHostPort()
	if err != nil {
		return 0, err
	}

	exposed := nat.Port(strconv.Itoa(internalPort) + "/tcp")
	config := &container.Config{
		Image:        imageRef,
		ExposedPorts: nat.PortSet{exposed: struct{}{}},
	}
	hostConfig := &container.HostConfig{
		PortBindings: nat.PortMap{
			exposed: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(hostPort)}},
		},
		Resources: container.Resources{
			Memory:    e.cfg.MemoryLimitBytes,
			CPUShares: e.cfg.CPUShares,
		},
		RestartPolicy: container.RestartPolicy{Name: container.RestartPolicyUnlessStopped},
	}

	created, err := e.client.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
	if err != nil {
		// A stale container can appear between removal and create; clean it
		// up once and retry.
		if strings.Contains(err.Error(), "is already in use") {
			if rmErr := e.StopAndRemove(ctx, containerName); rmErr != nil {
				return 0, fmt.Errorf("failed to remove stale container: %w", rmErr)
			}
			created, err = e.client.ContainerCreate(ctx, config, hostConfig, nil, nil, containerName)
		}
		if err != nil {
			return 0, fmt.Errorf("failed to create container %s: %w", containerName, err)
		}
	}

	if err := e.client.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return 0, fmt.Errorf("failed to start container %s: %w", containerName, err)
	}

	log.Info().Str("container", containerName).Int("host_port", hostPort).
		Int("internal_port", internalPort).Msg("container started")
	return hostPort, nil
}

// StopAndRemove stops and removes a container by name; absence is a no-op
func (e *MobyEngine) StopAndRemove(ctx context.Context, containerName string) error {
	status, err := e.Inspect(ctx, containerName)
	if err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return err
	}

	if status.Running {
		timeout := 10 // seconds
		if err := e.client.ContainerStop(ctx, status.ID, container.StopOptions{Timeout: &timeout}); err != nil {
			return fmt.Errorf("failed to stop container %s: %w", containerName, err)
		}
	}

	if err := e.client.ContainerRemove(ctx, status.ID, container.RemoveOptions{Force: true}); err != nil {
		if client.IsErrNotFound(err) {
			return nil
		}
		return fmt.Errorf("failed to remove container %s: %w", containerName, err)
	}
	return nil
}

// Inspect gets the current status of a container
func (e *MobyEngine) Inspect(ctx context.Context, nameOrID string) (ContainerStatus, error) {
	info, err := e.client.ContainerInspect(ctx, nameOrID)
	if err != nil {
		return ContainerStatus{}, err
	}

	status := ContainerStatus{
		ID:    info.ID,
		Name:  strings.TrimPrefix(info.Name, "/"),
		Image: info.Config.Image,
	}
	if info.State != nil {
		status.State = info.State.Status
		status.Running = info.State.Running
	}
	return status, nil
}

// ListRunning lists running containers
func (e *MobyEngine) ListRunning(ctx context.Context) ([]ContainerSummary, error) {
	containers, err := e.client.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("status", "running")),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list containers: %w", err)
	}

	summaries := make([]ContainerSummary, 0, len(containers))
	for _, c := range containers {
		name := ""
		if len(c.Names) > 0 {
			name = strings.TrimPrefix(c.Names[0], "/")
		}
		summaries = append(summaries, ContainerSummary{ID: c.ID, Name: name, Image: c.Image})
	}
	return summaries, nil
}

// Exec starts a shell command inside a running container with both streams
// attached and returns the multiplexed output stream.
func (e *MobyEngine) Exec(ctx context.Context, containerName, command string) (*ExecStream, error) {
	created, err := e.client.ContainerExecCreate(ctx, containerName, container.ExecOptions{
		Cmd:          []string{"/bin/sh", "-c", command},
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create exec in %s: %w", containerName, err)
	}

	attached, err := e.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to attach exec in %s: %w", containerName, err)
	}

	return &ExecStream{
		ID:     created.ID,
		Reader: attached.Reader,
		close:  attached.Close,
	}, nil
}

// ExecExitCode retrieves the exit code of a finished exec
func (e *MobyEngine) ExecExitCode(ctx context.Context, execID string) (int, error) {
	inspect, err := e.client.ContainerExecInspect(ctx, execID)
	if err != nil {
		return 0, fmt.Errorf("failed to inspect exec: %w", err)
	}
	return inspect.ExitCode, nil
}

// Logs returns the last tail lines of a container's output. The engine
// multiplexes stdout and stderr; both are merged chronologically.
func (e *MobyEngine) Logs(ctx context.Context, containerName string, tail int) ([]byte, error) {
	reader, err := e.client.ContainerLogs(ctx, containerName, container.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get logs for %s: %w", containerName, err)
	}
	defer reader.Close()

	var buf strings.Builder
	if _, err := stdcopy.StdCopy(&buf, &buf, reader); err != nil {
		return nil, fmt.Errorf("failed to read logs for %s: %w", containerName, err)
	}
	return []byte(buf.String()), nil
}
