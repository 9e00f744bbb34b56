package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/temirov/periodic-audit/internal/execshell"
)

const (
	commandChannelNameConstant           = "command"
	reportCommandExitTemplateConstant    = "report command '%s' exited with status %d"
	reportCommandSpawnTemplateConstant   = "run report command '%s': %w"
	reportCommandMissingTemplateConstant = "report command '%s': %w"
)

// ErrReportCommandNotConfigured indicates an enabled command channel without an executable.
var ErrReportCommandNotConfigured = errors.New("report_command.exe is not configured")

// CommandConfiguration describes the report command channel.
type CommandConfiguration struct {
	Disabled   bool   `mapstructure:"disabled" yaml:"disabled"`
	Executable string `mapstructure:"exe" yaml:"exe"`
}

// Sanitize trims the executable; a blank executable disables the channel.
func (configuration CommandConfiguration) Sanitize() CommandConfiguration {
	sanitized := configuration
	sanitized.Executable = strings.TrimSpace(configuration.Executable)
	if len(sanitized.Executable) == 0 {
		sanitized.Disabled = true
	}
	return sanitized
}

// CommandExecutor runs the report command.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
}

// CommandChannel pipes the report body to the standard input of an external
// program, which runs without arguments.
type CommandChannel struct {
	executor      CommandExecutor
	configuration CommandConfiguration
	expander      PathExpander
}

// NewCommandChannel constructs a CommandChannel.
func NewCommandChannel(executor CommandExecutor, configuration CommandConfiguration, expander PathExpander) *CommandChannel {
	return &CommandChannel{executor: executor, configuration: configuration, expander: expander}
}

// Name identifies the channel.
func (channel *CommandChannel) Name() string {
	return commandChannelNameConstant
}

// Send runs the command and fails when it cannot start or exits non-zero.
func (channel *CommandChannel) Send(executionContext context.Context, payload Payload) error {
	executable := strings.TrimSpace(channel.configuration.Executable)
	if len(executable) == 0 {
		return fmt.Errorf(reportCommandMissingTemplateConstant, executable, ErrReportCommandNotConfigured)
	}
	if channel.expander != nil {
		executable = channel.expander.Expand(executable)
	}

	command := execshell.ShellCommand{
		Name: execshell.CommandName(executable),
		Details: execshell.CommandDetails{
			StandardInput: []byte(payload.Body),
		},
	}
	_, executionError := channel.executor.Execute(executionContext, command)
	if executionError == nil {
		return nil
	}

	var failedError execshell.CommandFailedError
	if errors.As(executionError, &failedError) {
		return fmt.Errorf(reportCommandExitTemplateConstant, executable, failedError.Result.ExitCode)
	}
	return fmt.Errorf(reportCommandSpawnTemplateConstant, executable, executionError)
}
