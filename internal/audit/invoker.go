package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/execshell"
	"github.com/temirov/periodic-audit/internal/jsonstream"
	"github.com/temirov/periodic-audit/internal/report"
)

const (
	toolNameConstant                         = "cargo-audit"
	auditSubcommandConstant                  = "audit"
	denyFlagConstant                         = "--deny"
	denyWarningsValueConstant                = "warnings"
	formatFlagConstant                       = "--format"
	formatJSONValueConstant                  = "json"
	databaseFlagConstant                     = "--db"
	binaryModeArgumentConstant               = "bin"
	terminalEnvironmentVariableConstant      = "TERM"
	colorTerminalEnvironmentVariableConstant = "COLORTERM"
	vulnerabilitiesFoundPathConstant         = "vulnerabilities.found"
	executionFailureTemplateConstant         = "Error executing %s (%s): %v"
	standardOutputEncodingTemplateConstant   = "Parse %s stdout as UTF-8"
	standardErrorEncodingTemplateConstant    = "Parse %s stderr as UTF-8"
	standardErrorMessageTemplateConstant     = "%s stderr:\n%s"
	exitCodeMessageTemplateConstant          = "%s exited with code %d"
	signalExitMessageTemplateConstant        = "%s exited due to signal"
	splitFailureTemplateConstant             = "Split %s JSON output: %v"
	resultCountMismatchTemplateConstant      = "%s emitted %d JSON results for %d binaries"
	invalidJSONTemplateConstant              = "Parse %s JSON output for '%s'"
	auditResultLogMessageConstant            = "audit result"
	auditInvocationLogMessageConstant        = "invoking auditor"
	binaryPathLogFieldConstant               = "binary"
	binaryCountLogFieldConstant              = "binary_count"
	vulnerableLogFieldConstant               = "vulnerable"
	prettyJSONLogFieldConstant               = "json"
	signalExitCodeConstant                   = -1
	fixedArgumentCountConstant               = 8
)

// Invoker runs cargo-audit in binary mode over a candidate list and folds its
// output into a report.
type Invoker struct {
	executor      CommandExecutor
	configuration ToolConfiguration
	logger        *zap.Logger
}

// NewInvoker constructs an Invoker.
func NewInvoker(executor CommandExecutor, configuration ToolConfiguration, logger *zap.Logger) *Invoker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Invoker{executor: executor, configuration: configuration.Sanitize(), logger: logger}
}

// Invoke audits binaries with a single auditor process. The i-th JSON object on
// stdout is attributed to the i-th binary. Any condition that makes the output
// unusable returns a failed copy of draft without entries.
func (invoker *Invoker) Invoke(executionContext context.Context, binaries []string, draft *report.Report) report.Report {
	command := invoker.buildCommand(binaries)
	invoker.logger.Debug(auditInvocationLogMessageConstant, zap.Int(binaryCountLogFieldConstant, len(binaries)))

	executionResult, executionError := invoker.executor.Execute(executionContext, command)
	if executionError != nil {
		var failedError execshell.CommandFailedError
		if !errors.As(executionError, &failedError) {
			return draft.Fail(fmt.Sprintf(executionFailureTemplateConstant, toolNameConstant, invoker.configuration.Executable, executionCause(executionError)))
		}
		executionResult = failedError.Result
	}

	if !utf8.ValidString(executionResult.StandardOutput) {
		return draft.Fail(fmt.Sprintf(standardOutputEncodingTemplateConstant, toolNameConstant))
	}

	if invoker.configuration.Debug {
		draft.AddMessage(exitCodeMessage(executionResult.ExitCode))
	}

	if !utf8.ValidString(executionResult.StandardError) {
		return draft.Fail(fmt.Sprintf(standardErrorEncodingTemplateConstant, toolNameConstant))
	}
	if len(strings.TrimSpace(executionResult.StandardError)) > 0 {
		draft.AddMessage(fmt.Sprintf(standardErrorMessageTemplateConstant, toolNameConstant, executionResult.StandardError))
	}

	parts, splitError := jsonstream.Split(executionResult.StandardOutput)
	if splitError != nil {
		return draft.Fail(fmt.Sprintf(splitFailureTemplateConstant, toolNameConstant, splitError))
	}
	if len(parts) != len(binaries) {
		return draft.Fail(fmt.Sprintf(resultCountMismatchTemplateConstant, toolNameConstant, len(parts), len(binaries)))
	}

	for partIndex, part := range parts {
		binaryPath := binaries[partIndex]
		if !gjson.Valid(part) {
			return draft.Fail(fmt.Sprintf(invalidJSONTemplateConstant, toolNameConstant, binaryPath))
		}

		entry := report.Entry{
			Path:       binaryPath,
			Vulnerable: gjson.Get(part, vulnerabilitiesFoundPathConstant).Type == gjson.True,
			JSON:       part,
			JSONPretty: strings.TrimSpace(string(pretty.Pretty([]byte(part)))),
		}
		if invoker.configuration.Debug {
			invoker.logger.Debug(
				auditResultLogMessageConstant,
				zap.String(binaryPathLogFieldConstant, entry.Path),
				zap.Bool(vulnerableLogFieldConstant, entry.Vulnerable),
				zap.String(prettyJSONLogFieldConstant, entry.JSONPretty),
			)
		}
		draft.AddEntry(entry)
	}

	return *draft
}

func (invoker *Invoker) buildCommand(binaries []string) execshell.ShellCommand {
	arguments := make([]string, 0, fixedArgumentCountConstant+len(binaries))
	arguments = append(arguments, auditSubcommandConstant, denyFlagConstant, denyWarningsValueConstant, formatFlagConstant, formatJSONValueConstant)
	if len(invoker.configuration.Database) > 0 {
		arguments = append(arguments, databaseFlagConstant, invoker.configuration.Database)
	}
	arguments = append(arguments, binaryModeArgumentConstant)
	arguments = append(arguments, binaries...)

	return execshell.ShellCommand{
		Name: execshell.CommandName(invoker.configuration.Executable),
		Details: execshell.CommandDetails{
			Arguments:                   arguments,
			RemovedEnvironmentVariables: []string{terminalEnvironmentVariableConstant, colorTerminalEnvironmentVariableConstant},
		},
	}
}

func executionCause(executionError error) error {
	var commandExecutionError execshell.CommandExecutionError
	if errors.As(executionError, &commandExecutionError) && commandExecutionError.Cause != nil {
		return commandExecutionError.Cause
	}
	return executionError
}

func exitCodeMessage(exitCode int) string {
	if exitCode == signalExitCodeConstant {
		return fmt.Sprintf(signalExitMessageTemplateConstant, toolNameConstant)
	}
	return fmt.Sprintf(exitCodeMessageTemplateConstant, toolNameConstant, exitCode)
}
