// Package dockerx adapts the Docker engine for the deployment pipeline:
// image builds from a prepared context, replace-and-run container lifecycle,
// and the exec/logs primitives the command gateway is built on.
package dockerx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/dropdeploy/dropdeploy/internal/store"
)

// Engine is the container-engine surface the pipeline and gateway consume
type Engine interface {
	// BuildImage writes the framework recipe into contextDir and builds the
	// image tagged for slug, returning the image reference.
	BuildImage(ctx context.Context, slug, contextDir string, framework store.Framework) (string, error)

	// ReplaceAndRun removes any container holding containerName, then creates
	// and starts a fresh one from imageRef with the framework's internal port
	// bound to an allocated host port, which it returns.
	ReplaceAndRun(ctx context.Context, imageRef string, framework store.Framework, containerName string) (int, error)

	// StopAndRemove stops (if running) and removes a container by name.
	// Removing a container that does not exist is a no-op.
	StopAndRemove(ctx context.Context, containerName string) error

	// Inspect returns the current state of a container
	Inspect(ctx context.Context, nameOrID string) (ContainerStatus, error)

	// ListRunning lists running containers with their names and images
	ListRunning(ctx context.Context) ([]ContainerSummary, error)

	// Exec starts `/bin/sh -c command` inside a running container with both
	// output streams attached. The returned stream is the engine's
	// byte-multiplexed protocol; close it when done.
	Exec(ctx context.Context, containerName, command string) (*ExecStream, error)

	// ExecExitCode retrieves the exit code of a finished exec
	ExecExitCode(ctx context.Context, execID string) (int, error)

	// Logs returns the last tail lines of a container's output, demultiplexed
	Logs(ctx context.Context, containerName string, tail int) ([]byte, error)
}

// ContainerStatus is a condensed view of a container inspect
type ContainerStatus struct {
	ID      string
	Name    string
	Image   string
	State   string
	Running bool
}

// ContainerSummary identifies a running container
type ContainerSummary struct {
	ID    string
	Name  string
	Image string
}

// ExecStream is a live exec attachment
type ExecStream struct {
	ID     string
	Reader io.Reader
	close  func()
}

// Close releases the underlying hijacked connection
func (s *ExecStream) Close() {
	if s.close != nil {
		s.close()
	}
}

// ErrImageMissing marks a build stream that completed without producing an
// image; the wrapping error carries the per-framework hint.
var ErrImageMissing = errors.New("image missing after build")

// BuildError is a failed image build with the tail of the build output
type BuildError struct {
	Tail string
	Err  error
}

func (e *BuildError) Error() string {
	if e.Tail == "" {
		return fmt.Sprintf("image build failed: %v", e.Err)
	}
	return fmt.Sprintf("image build failed: %v\n%s", e.Err, e.Tail)
}

func (e *BuildError) Unwrap() error { return e.Err }

// ImageRef derives the image reference for a slug: <prefix>/<slug>:latest
func ImageRef(prefix, slug string) string {
	return prefix + "/" + slug + ":latest"
}

// ContainerName derives the container name for a slug: <prefix>-<slug>
func ContainerName(prefix, slug string) string {
	return prefix + "-" + slug
}

// SlugFromContainerName strips the prefix from a container name, tolerating
// either separator normalization. Returns the input unchanged when the prefix
// is absent.
func SlugFromContainerName(prefix, name string) string {
	name = strings.TrimPrefix(name, "/")
	for _, sep := range []string{"-", "_", "/"} {
		if strings.HasPrefix(name, prefix+sep) {
			return strings.TrimPrefix(name, prefix+sep)
		}
	}
	return name
}
