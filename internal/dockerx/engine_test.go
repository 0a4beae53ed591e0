package dockerx

import (
	"fmt"
	"net"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNaming(t *testing.T) {
	assert.Equal(t, "dropdeploy/site:latest", ImageRef("dropdeploy", "site"))
	assert.Equal(t, "dropdeploy-site", ContainerName("dropdeploy", "site"))
}

func TestSlugFromContainerName(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"dropdeploy-site", "site"},
		{"/dropdeploy-site", "site"},
		{"dropdeploy_site", "site"},
		{"dropdeploy-my-cool-site", "my-cool-site"},
		{"unrelated", "unrelated"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SlugFromContainerName("dropdeploy", tt.name), "input %q", tt.name)
	}
}

func TestAllocateHostPortRange(t *testing.T) {
	for i := 0; i < 20; i++ {
		port, err := AllocateHostPort()
		require.NoError(t, err)
		assert.GreaterOrEqual(t, port, hostPortMin)
		assert.LessOrEqual(t, port, hostPortMax)
	}
}

func TestAllocateHostPortSkipsBoundPorts(t *testing.T) {
	// Occupy a port and confirm the allocator never hands it out
	listener, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Skip("cannot bind test listener")
	}
	defer listener.Close()

	// Allocation verifies by binding, so any returned port must be free now
	port, err := AllocateHostPort()
	require.NoError(t, err)

	probe, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	require.NoError(t, err, "allocated port %d must be bindable", port)
	probe.Close()
}

func TestConsumeBuildStream(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		stream := `{"stream":"Step 1/4 : FROM nginx:alpine\n"}
{"stream":" ---> abc123\n"}
{"stream":"Successfully built abc123\n"}
`
		tail, err := consumeBuildStream(strings.NewReader(stream))
		require.NoError(t, err)
		assert.Contains(t, tail, "Successfully built")
	})

	t.Run("ErrorChunkFailsWithTail", func(t *testing.T) {
		stream := `{"stream":"Step 2/4 : RUN npm install\n"}
{"errorDetail":{"message":"npm ERR! code E404"},"error":"npm ERR! code E404"}
`
		tail, err := consumeBuildStream(strings.NewReader(stream))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "E404")
		assert.Contains(t, tail, "npm install")
	})

	t.Run("TailBounded", func(t *testing.T) {
		var b strings.Builder
		for i := 0; i < 100; i++ {
			fmt.Fprintf(&b, "{\"stream\":\"line %d\\n\"}\n", i)
		}
		tail, err := consumeBuildStream(strings.NewReader(b.String()))
		require.NoError(t, err)

		lines := strings.Split(tail, "\n")
		assert.Len(t, lines, buildLogTailChunks)
		assert.Equal(t, "line 99", lines[len(lines)-1])
		assert.NotContains(t, tail, "line 0\n")
	})

	t.Run("GarbageStream", func(t *testing.T) {
		_, err := consumeBuildStream(strings.NewReader("not json at all"))
		assert.Error(t, err)
	})
}

func TestBuildErrorMessage(t *testing.T) {
	err := &BuildError{Tail: "npm ERR! missing script: start", Err: fmt.Errorf("build error: exit 1")}
	assert.Contains(t, err.Error(), "missing script")
	assert.Contains(t, err.Error(), "exit 1")

	bare := &BuildError{Err: fmt.Errorf("cannot connect")}
	assert.Contains(t, bare.Error(), "cannot connect")
}
