package terminal

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Shortcut expands a /name into a shell command inside the container or a
// host-side engine call.
type Shortcut struct {
	Name        string
	Description string

	// shell is the command run inside the container; empty when host handles it
	shell string

	// host runs engine-side instead of inside the container
	host func(ctx context.Context, g *Gateway, target string) (Result, error)
}

var shortcuts = map[string]Shortcut{
	"/show-logs": {
		Name:        "/show-logs",
		Description: "show the last 500 lines of container logs",
		host:        logsShortcut(500),
	},
	"/tail-logs": {
		Name:        "/tail-logs",
		Description: "show the last 100 lines of container logs",
		host:        logsShortcut(100),
	},
	"/env": {
		Name:        "/env",
		Description: "print the container environment, sorted",
		shell:       "env | sort",
	},
	"/files": {
		Name:        "/files",
		Description: "list the application directory",
		shell:       "ls -la",
	},
	"/help": {
		Name:        "/help",
		Description: "list available shortcut commands",
	},
}

func logsShortcut(tail int) func(ctx context.Context, g *Gateway, target string) (Result, error) {
	return func(ctx context.Context, g *Gateway, target string) (Result, error) {
		logs, err := g.engine.Logs(ctx, target, tail)
		if err != nil {
			return Result{}, fmt.Errorf("failed to fetch logs: %w", err)
		}
		return Result{Stdout: string(logs)}, nil
	}
}

// UnknownShortcutError rejects a shortcut name outside the registry
type UnknownShortcutError struct {
	Name string
}

func (e *UnknownShortcutError) Error() string {
	return fmt.Sprintf("unknown shortcut %q; try /help", e.Name)
}

// ExecuteShortcut expands and runs a registered shortcut. /help never touches
// the container.
func (g *Gateway) ExecuteShortcut(ctx context.Context, containerName, command string) (Result, error) {
	name := strings.Fields(command)[0]
	shortcut, ok := shortcuts[name]
	if !ok {
		return Result{}, &UnknownShortcutError{Name: name}
	}

	if shortcut.Name == "/help" {
		return Result{Stdout: helpText()}, nil
	}

	target, err := g.resolveContainer(ctx, containerName)
	if err != nil {
		return Result{}, err
	}

	if shortcut.host != nil {
		return shortcut.host(ctx, g, target)
	}
	return g.exec(ctx, target, shortcut.shell)
}

func helpText() string {
	names := make([]string, 0, len(shortcuts))
	for name := range shortcuts {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("Available shortcuts:\n")
	for _, name := range names {
		fmt.Fprintf(&b, "  %-12s %s\n", name, shortcuts[name].Description)
	}
	return b.String()
}
