// Package recipes maps each supported framework to its container build
// recipe and the internal port the built application listens on.
package recipes

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dropdeploy/dropdeploy/internal/store"
)

// Recipe is the build instruction set for one framework
type Recipe struct {
	// Dockerfile is written verbatim into the build context root
	Dockerfile string

	// InternalPort is the port the application listens on inside the container
	InternalPort int

	// MissingImageHint names the most common cause when a build stream
	// finishes cleanly but produces no image.
	MissingImageHint string
}

var catalog = map[store.Framework]Recipe{
	store.FrameworkStatic: {
		InternalPort:     80,
		MissingImageHint: "verify the repository contains the site files at its root",
		Dockerfile: `FROM nginx:alpine
COPY . /usr/share/nginx/html
EXPOSE 80
`,
	},
	store.FrameworkNodeJS: {
		InternalPort:     3000,
		MissingImageHint: "verify package.json declares a \"start\" script",
		Dockerfile: `FROM node:20-alpine
WORKDIR /app
COPY package*.json ./
RUN npm install --omit=dev
COPY . .
ENV NODE_ENV=production
EXPOSE 3000
CMD ["npm", "start"]
`,
	},
	store.FrameworkNextJS: {
		InternalPort:     3000,
		MissingImageHint: "verify the project builds with \"next build\" and declares a \"start\" script",
		Dockerfile: `FROM node:20-alpine AS builder
WORKDIR /app
COPY package*.json ./
RUN npm install
COPY . .
RUN npm run build

FROM node:20-alpine
WORKDIR /app
COPY --from=builder /app/package*.json ./
COPY --from=builder /app/node_modules ./node_modules
COPY --from=builder /app/.next ./.next
COPY --from=builder /app/public ./public
ENV NODE_ENV=production
EXPOSE 3000
CMD ["npm", "start"]
`,
	},
	store.FrameworkDjango: {
		InternalPort:     8000,
		MissingImageHint: "verify requirements.txt exists and manage.py lives at the repository root",
		Dockerfile: `FROM python:3.12-slim
WORKDIR /app
COPY requirements.txt ./
RUN pip install --no-cache-dir -r requirements.txt
COPY . .
EXPOSE 8000
CMD ["python", "manage.py", "runserver", "0.0.0.0:8000"]
`,
	},
}

// ForFramework returns the recipe for a framework
func ForFramework(f store.Framework) (Recipe, error) {
	recipe, ok := catalog[f]
	if !ok {
		return Recipe{}, fmt.Errorf("no recipe for framework %s", f)
	}
	return recipe, nil
}

// InternalPort returns the declared container port for a framework
func InternalPort(f store.Framework) (int, error) {
	recipe, err := ForFramework(f)
	if err != nil {
		return 0, err
	}
	return recipe.InternalPort, nil
}

// WriteDockerfile prepares the build context for a framework: for NEXTJS the
// framework config is patched first, then the recipe is written as Dockerfile
// into the context root. Any Dockerfile already present is overwritten so the
// build always uses the catalog recipe.
func WriteDockerfile(contextDir string, f store.Framework) error {
	recipe, err := ForFramework(f)
	if err != nil {
		return err
	}

	if f == store.FrameworkNextJS {
		if err := PatchNextConfig(contextDir); err != nil {
			return fmt.Errorf("failed to patch next config: %w", err)
		}
	}

	path := filepath.Join(contextDir, "Dockerfile")
	if err := os.WriteFile(path, []byte(recipe.Dockerfile), 0644); err != nil {
		return fmt.Errorf("failed to write Dockerfile: %w", err)
	}
	return nil
}
