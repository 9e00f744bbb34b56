package ui

import (
	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/execshell"
)

// ConsoleCommandEventLogger renders command lifecycle events using a zap logger configured for human-readable output.
type ConsoleCommandEventLogger struct {
	logger                *zap.Logger
	formatter             execshell.CommandMessageFormatter
	nonZeroExitIsFindings bool
}

// ConsoleCommandEventLoggerOption customizes a ConsoleCommandEventLogger.
type ConsoleCommandEventLoggerOption func(*ConsoleCommandEventLogger)

// WithNonZeroExitAsInfo logs non-zero exits at info level. The auditor exits
// non-zero whenever it finds vulnerabilities, which is an expected outcome.
func WithNonZeroExitAsInfo() ConsoleCommandEventLoggerOption {
	return func(eventLogger *ConsoleCommandEventLogger) {
		eventLogger.nonZeroExitIsFindings = true
	}
}

// NewConsoleCommandEventLogger constructs a console event logger backed by the provided zap logger.
func NewConsoleCommandEventLogger(logger *zap.Logger, options ...ConsoleCommandEventLoggerOption) *ConsoleCommandEventLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	eventLogger := &ConsoleCommandEventLogger{logger: logger, formatter: execshell.CommandMessageFormatter{}}
	for _, option := range options {
		option(eventLogger)
	}
	return eventLogger
}

// CommandStarted implements execshell.CommandEventObserver by logging command start notifications.
func (eventLogger *ConsoleCommandEventLogger) CommandStarted(command execshell.ShellCommand) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Info(eventLogger.formatter.BuildStartedMessage(command))
}

// CommandCompleted implements execshell.CommandEventObserver by logging command completion notifications.
func (eventLogger *ConsoleCommandEventLogger) CommandCompleted(command execshell.ShellCommand, result execshell.ExecutionResult) {
	if eventLogger == nil {
		return
	}
	if result.ExitCode == 0 {
		eventLogger.logger.Info(eventLogger.formatter.BuildSuccessMessage(command))
		return
	}
	if eventLogger.nonZeroExitIsFindings {
		eventLogger.logger.Info(eventLogger.formatter.BuildFailureMessage(command, result))
		return
	}
	eventLogger.logger.Warn(eventLogger.formatter.BuildFailureMessage(command, result))
}

// CommandExecutionFailed implements execshell.CommandEventObserver by logging unexpected execution failures.
func (eventLogger *ConsoleCommandEventLogger) CommandExecutionFailed(command execshell.ShellCommand, failure error) {
	if eventLogger == nil {
		return
	}
	eventLogger.logger.Error(eventLogger.formatter.BuildExecutionFailureMessage(command, failure))
}
