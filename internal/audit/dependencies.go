package audit

import (
	"context"

	"github.com/temirov/periodic-audit/internal/execshell"
)

// CommandExecutor runs the auditor process.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// PathExpander rewrites user shortcuts in configured paths.
type PathExpander interface {
	Expand(candidatePath string) string
}

type identityPathExpander struct{}

func (identityPathExpander) Expand(candidatePath string) string {
	return candidatePath
}
