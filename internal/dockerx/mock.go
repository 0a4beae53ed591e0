package dockerx

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/dropdeploy/dropdeploy/internal/store"
)

// MockEngine is a testify mock of the Engine interface
type MockEngine struct {
	mock.Mock
}

var _ Engine = (*MockEngine)(nil)

func (m *MockEngine) BuildImage(ctx context.Context, slug, contextDir string, framework store.Framework) (string, error) {
	args := m.Called(ctx, slug, contextDir, framework)
	return args.String(0), args.Error(1)
}

func (m *MockEngine) ReplaceAndRun(ctx context.Context, imageRef string, framework store.Framework, containerName string) (int, error) {
	args := m.Called(ctx, imageRef, framework, containerName)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) StopAndRemove(ctx context.Context, containerName string) error {
	args := m.Called(ctx, containerName)
	return args.Error(0)
}

func (m *MockEngine) Inspect(ctx context.Context, nameOrID string) (ContainerStatus, error) {
	args := m.Called(ctx, nameOrID)
	return args.Get(0).(ContainerStatus), args.Error(1)
}

func (m *MockEngine) ListRunning(ctx context.Context) ([]ContainerSummary, error) {
	args := m.Called(ctx)
	if summaries := args.Get(0); summaries != nil {
		return summaries.([]ContainerSummary), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) Exec(ctx context.Context, containerName, command string) (*ExecStream, error) {
	args := m.Called(ctx, containerName, command)
	if stream := args.Get(0); stream != nil {
		return stream.(*ExecStream), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockEngine) ExecExitCode(ctx context.Context, execID string) (int, error) {
	args := m.Called(ctx, execID)
	return args.Int(0), args.Error(1)
}

func (m *MockEngine) Logs(ctx context.Context, containerName string, tail int) ([]byte, error) {
	args := m.Called(ctx, containerName, tail)
	if logs := args.Get(0); logs != nil {
		return logs.([]byte), args.Error(1)
	}
	return nil, args.Error(1)
}
