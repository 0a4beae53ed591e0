package recipes

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// patchSentinel marks a config file that has already been patched. Detection
// is by substring so re-running the patch is a no-op.
const patchSentinel = "/* dropdeploy: relaxed build checks */"

var nextConfigNames = []string{"next.config.js", "next.config.mjs", "next.config.ts"}

const patchedNextConfig = patchSentinel + `
/** @type {import('next').NextConfig} */
const nextConfig = {
  eslint: { ignoreDuringBuilds: true },
  typescript: { ignoreBuildErrors: true },
};

module.exports = nextConfig;
`

// PatchNextConfig relaxes lint and type-check failures so they cannot abort
// a container build. An existing config file gets an override block appended;
// a missing one is created whole. Best effort: the patch prefers leaving a
// config alone over corrupting it, so unparseable content is still only
// appended to.
func PatchNextConfig(contextDir string) error {
	for _, name := range nextConfigNames {
		path := filepath.Join(contextDir, name)
		content, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", name, err)
		}

		if strings.Contains(string(content), patchSentinel) {
			return nil
		}
		return appendOverride(path, content, name)
	}

	// No config present: create one with the necessary flags
	path := filepath.Join(contextDir, "next.config.js")
	if err := os.WriteFile(path, []byte(patchedNextConfig), 0644); err != nil {
		return fmt.Errorf("failed to create next.config.js: %w", err)
	}
	return nil
}

func appendOverride(path string, content []byte, name string) error {
	override := "\n" + patchSentinel + "\n"
	if strings.HasSuffix(name, ".mjs") || strings.HasSuffix(name, ".ts") {
		override += `if (typeof nextConfig === "object" && nextConfig !== null) {
  nextConfig.eslint = { ...nextConfig.eslint, ignoreDuringBuilds: true };
  nextConfig.typescript = { ...nextConfig.typescript, ignoreBuildErrors: true };
}
`
	} else {
		override += `if (typeof module !== "undefined" && module.exports) {
  module.exports.eslint = { ...module.exports.eslint, ignoreDuringBuilds: true };
  module.exports.typescript = { ...module.exports.typescript, ignoreBuildErrors: true };
}
`
	}

	patched := append(content, []byte(override)...)
	if err := os.WriteFile(path, patched, 0644); err != nil {
		return fmt.Errorf("failed to patch %s: %w", name, err)
	}
	return nil
}
