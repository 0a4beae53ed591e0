package recipes

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dropdeploy/dropdeploy/internal/store"
)

func TestCatalogCoversAllFrameworks(t *testing.T) {
	tests := []struct {
		framework store.Framework
		port      int
		fragment  string
	}{
		{store.FrameworkStatic, 80, "nginx"},
		{store.FrameworkNodeJS, 3000, `"npm", "start"`},
		{store.FrameworkNextJS, 3000, "npm run build"},
		{store.FrameworkDjango, 8000, "runserver"},
	}

	for _, tt := range tests {
		t.Run(string(tt.framework), func(t *testing.T) {
			recipe, err := ForFramework(tt.framework)
			require.NoError(t, err)
			assert.Equal(t, tt.port, recipe.InternalPort)
			assert.Contains(t, recipe.Dockerfile, tt.fragment)
			assert.NotEmpty(t, recipe.MissingImageHint)
		})
	}

	_, err := ForFramework(store.Framework("RAILS"))
	assert.Error(t, err)
}

func TestWriteDockerfile(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteDockerfile(dir, store.FrameworkStatic))

	content, err := os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "FROM nginx:alpine")

	// An existing Dockerfile is replaced by the catalog recipe
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Dockerfile"), []byte("FROM scratch\n"), 0644))
	require.NoError(t, WriteDockerfile(dir, store.FrameworkNodeJS))
	content, err = os.ReadFile(filepath.Join(dir, "Dockerfile"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "node:20-alpine")
}

func TestPatchNextConfigCreatesWhenMissing(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, PatchNextConfig(dir))

	content, err := os.ReadFile(filepath.Join(dir, "next.config.js"))
	require.NoError(t, err)
	assert.Contains(t, string(content), patchSentinel)
	assert.Contains(t, string(content), "ignoreDuringBuilds")
	assert.Contains(t, string(content), "ignoreBuildErrors")
}

func TestPatchNextConfigAppendsToExisting(t *testing.T) {
	dir := t.TempDir()
	original := "const nextConfig = { reactStrictMode: true };\n\nmodule.exports = nextConfig;\n"
	path := filepath.Join(dir, "next.config.js")
	require.NoError(t, os.WriteFile(path, []byte(original), 0644))

	require.NoError(t, PatchNextConfig(dir))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(content), original), "original content preserved")
	assert.Contains(t, string(content), patchSentinel)
}

func TestPatchNextConfigIdempotent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "next.config.mjs")
	require.NoError(t, os.WriteFile(path, []byte("export default {};\n"), 0644))

	require.NoError(t, PatchNextConfig(dir))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	require.NoError(t, PatchNextConfig(dir))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.Equal(t, string(first), string(second), "sentinel suppresses re-patch")
}

func TestWriteDockerfileNextJSPatchesConfig(t *testing.T) {
	dir := t.TempDir()

	require.NoError(t, WriteDockerfile(dir, store.FrameworkNextJS))

	_, err := os.Stat(filepath.Join(dir, "next.config.js"))
	assert.NoError(t, err, "config created during context preparation")
	_, err = os.Stat(filepath.Join(dir, "Dockerfile"))
	assert.NoError(t, err)
}
