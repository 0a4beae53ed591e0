package terminal

import (
	"fmt"
	"sort"
	"strings"
)

// allowedCommands is the fixed set of base commands an operator may run
// inside a container: read-oriented tools plus the common runtime CLIs.
var allowedCommands = map[string]struct{}{
	"ls": {}, "cat": {}, "pwd": {}, "echo": {}, "env": {}, "whoami": {},
	"df": {}, "du": {}, "ps": {}, "top": {}, "head": {}, "tail": {},
	"grep": {}, "find": {}, "wc": {}, "date": {}, "uptime": {}, "which": {},
	"printenv": {}, "hostname": {}, "uname": {}, "id": {}, "free": {},
	"stat": {}, "file": {}, "sort": {}, "uniq": {}, "tr": {}, "cut": {},
	"awk": {}, "sed": {}, "less": {}, "more": {}, "mkdir": {}, "touch": {},
	"cp": {}, "mv": {}, "cd": {}, "npm": {}, "node": {}, "python": {},
	"pip": {}, "curl": {}, "wget": {},
}

// NotAllowedError rejects a command whose base token is off the allow-list.
// It is a validation failure: never retried, and it lists the permitted set.
type NotAllowedError struct {
	Command string
}

func (e *NotAllowedError) Error() string {
	return fmt.Sprintf("command %q is not allowed; permitted commands: %s", e.Command, strings.Join(AllowedCommands(), ", "))
}

// AllowedCommands returns the permitted base commands in sorted order
func AllowedCommands() []string {
	commands := make([]string, 0, len(allowedCommands))
	for cmd := range allowedCommands {
		commands = append(commands, cmd)
	}
	sort.Strings(commands)
	return commands
}

// validateCommand checks the first whitespace-delimited token against the
// allow-list before anything reaches the engine.
func validateCommand(command string) error {
	fields := strings.Fields(command)
	if len(fields) == 0 {
		return &NotAllowedError{Command: command}
	}
	if _, ok := allowedCommands[fields[0]]; !ok {
		return &NotAllowedError{Command: fields[0]}
	}
	return nil
}
