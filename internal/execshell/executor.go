package execshell

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
)

const (
	commandStartedLogMessageConstant         = "Executing command"
	commandCompletedLogMessageConstant       = "Command completed"
	commandExecutionFailedLogMessageConstant = "Command execution failed"
	commandNameLogFieldConstant              = "command"
	commandArgumentsLogFieldConstant         = "arguments"
	workingDirectoryLogFieldConstant         = "working_directory"
	exitCodeLogFieldConstant                 = "exit_code"
	standardErrorLogFieldConstant            = "stderr_bytes"
	commandFailedErrorTemplateConstant       = "%s exited with code %d"
	commandExecutionErrorTemplateConstant    = "%s could not be executed: %v"
)

// CommandName identifies the executable to run.
type CommandName string

// CommandCargo is the default executable of the vulnerability auditor.
const CommandCargo CommandName = "cargo"

// CommandDetails describes the invocation of a command.
type CommandDetails struct {
	Arguments                   []string
	WorkingDirectory            string
	EnvironmentVariables        map[string]string
	RemovedEnvironmentVariables []string
	StandardInput               []byte
}

// ShellCommand couples an executable with its invocation details.
type ShellCommand struct {
	Name    CommandName
	Details CommandDetails
}

// ExecutionResult captures the outcome of a finished process.
type ExecutionResult struct {
	StandardOutput string
	StandardError  string
	ExitCode       int
}

// CommandRunner runs a command and reports its result. A non-zero exit code is
// not an error for a runner.
type CommandRunner interface {
	Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error)
}

// Errors returned when constructing a ShellExecutor.
var (
	ErrLoggerNotConfigured        = errors.New("logger not configured")
	ErrCommandRunnerNotConfigured = errors.New("command runner not configured")
)

// CommandFailedError reports a process that finished with a non-zero exit code.
type CommandFailedError struct {
	Command ShellCommand
	Result  ExecutionResult
}

// Error describes the failed command.
func (failedError CommandFailedError) Error() string {
	return fmt.Sprintf(commandFailedErrorTemplateConstant, failedError.Command.Name, failedError.Result.ExitCode)
}

// CommandExecutionError reports a process that could not be run at all.
type CommandExecutionError struct {
	Command ShellCommand
	Cause   error
}

// Error describes the execution failure.
func (executionError CommandExecutionError) Error() string {
	return fmt.Sprintf(commandExecutionErrorTemplateConstant, executionError.Command.Name, executionError.Cause)
}

// Unwrap exposes the underlying cause.
func (executionError CommandExecutionError) Unwrap() error {
	return executionError.Cause
}

// ShellExecutor runs commands through a CommandRunner, logging every execution
// and notifying registered observers.
type ShellExecutor struct {
	logger    *zap.Logger
	runner    CommandRunner
	observers []CommandEventObserver
}

// NewShellExecutor constructs a ShellExecutor.
func NewShellExecutor(logger *zap.Logger, runner CommandRunner, observers ...CommandEventObserver) (*ShellExecutor, error) {
	if logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if runner == nil {
		return nil, ErrCommandRunnerNotConfigured
	}

	registeredObservers := make([]CommandEventObserver, 0, len(observers))
	for _, observer := range observers {
		if observer != nil {
			registeredObservers = append(registeredObservers, observer)
		}
	}
	if len(registeredObservers) == 0 {
		registeredObservers = append(registeredObservers, noopCommandEventObserver{})
	}

	return &ShellExecutor{logger: logger, runner: runner, observers: registeredObservers}, nil
}

// Execute runs the command. A non-zero exit code yields CommandFailedError
// carrying the captured result; a runner failure yields CommandExecutionError.
func (executor *ShellExecutor) Execute(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	commandFields := []zap.Field{
		zap.String(commandNameLogFieldConstant, string(command.Name)),
		zap.Strings(commandArgumentsLogFieldConstant, command.Details.Arguments),
	}
	if len(command.Details.WorkingDirectory) > 0 {
		commandFields = append(commandFields, zap.String(workingDirectoryLogFieldConstant, command.Details.WorkingDirectory))
	}

	executor.logger.Debug(commandStartedLogMessageConstant, commandFields...)
	for _, observer := range executor.observers {
		observer.CommandStarted(command)
	}

	executionResult, runError := executor.runner.Run(executionContext, command)
	if runError != nil {
		executor.logger.Warn(commandExecutionFailedLogMessageConstant, append(commandFields, zap.Error(runError))...)
		for _, observer := range executor.observers {
			observer.CommandExecutionFailed(command, runError)
		}
		return ExecutionResult{}, CommandExecutionError{Command: command, Cause: runError}
	}

	executor.logger.Debug(
		commandCompletedLogMessageConstant,
		append(commandFields, zap.Int(exitCodeLogFieldConstant, executionResult.ExitCode), zap.Int(standardErrorLogFieldConstant, len(executionResult.StandardError)))...,
	)
	for _, observer := range executor.observers {
		observer.CommandCompleted(command, executionResult)
	}

	if executionResult.ExitCode != 0 {
		return ExecutionResult{}, CommandFailedError{Command: command, Result: executionResult}
	}

	return executionResult, nil
}
