package execshell

import (
	"fmt"
	"strings"
)

const (
	genericStartTemplateConstant            = "Running %s"
	genericSuccessTemplateConstant          = "Completed %s"
	genericFailureTemplateConstant          = "%s failed with exit code %d%s"
	genericExecutionFailureTemplateConstant = "%s failed: %s"
	auditStartTemplateConstant              = "Auditing %d %s with %s"
	auditSuccessTemplateConstant            = "%s found no vulnerabilities in %d %s"
	auditFindingsTemplateConstant           = "%s reported findings for %d %s (exit code %d)"
	auditExecutionFailureTemplateConstant   = "Could not audit %d %s with %s: %s"
	commandLabelTemplateConstant            = "%s%s"
	workingDirectorySuffixTemplateConstant  = " (in %s)"
	standardErrorSuffixTemplateConstant     = ": %s"
	commandArgumentsJoinSeparatorConstant   = " "
	auditSubcommandConstant                 = "audit"
	auditBinaryModeArgumentConstant         = "bin"
	binarySingularLabelConstant             = "binary"
	binaryPluralLabelConstant               = "binaries"
	unknownFailureMessageConstant           = "unknown error"
	emptyStringConstant                     = ""
)

// CommandMessageFormatter builds human-readable descriptions of command
// lifecycle events. Auditor invocations get dedicated wording; every other
// command is described by its command line.
type CommandMessageFormatter struct{}

// BuildStartedMessage describes a command about to run.
func (formatter CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	if binaryCount, isAudit := auditedBinaryCount(command); isAudit {
		return fmt.Sprintf(auditStartTemplateConstant, binaryCount, binaryLabel(binaryCount), command.Name)
	}
	return fmt.Sprintf(genericStartTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildSuccessMessage describes a command that exited with code zero.
func (formatter CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	if binaryCount, isAudit := auditedBinaryCount(command); isAudit {
		return fmt.Sprintf(auditSuccessTemplateConstant, command.Name, binaryCount, binaryLabel(binaryCount))
	}
	return fmt.Sprintf(genericSuccessTemplateConstant, formatter.formatCommandLabel(command))
}

// BuildFailureMessage describes a command that exited with a non-zero code.
func (formatter CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	if binaryCount, isAudit := auditedBinaryCount(command); isAudit {
		return fmt.Sprintf(auditFindingsTemplateConstant, command.Name, binaryCount, binaryLabel(binaryCount), result.ExitCode)
	}
	return fmt.Sprintf(genericFailureTemplateConstant, formatter.formatCommandLabel(command), result.ExitCode, formatter.formatStandardErrorSuffix(result.StandardError))
}

// BuildExecutionFailureMessage describes a command that could not be run.
func (formatter CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, failure error) string {
	failureMessage := unknownFailureMessageConstant
	if failure != nil {
		failureMessage = failure.Error()
	}
	if binaryCount, isAudit := auditedBinaryCount(command); isAudit {
		return fmt.Sprintf(auditExecutionFailureTemplateConstant, binaryCount, binaryLabel(binaryCount), command.Name, failureMessage)
	}
	return fmt.Sprintf(genericExecutionFailureTemplateConstant, formatter.formatCommandLabel(command), failureMessage)
}

func (formatter CommandMessageFormatter) formatCommandLabel(command ShellCommand) string {
	commandParts := []string{string(command.Name)}
	commandParts = append(commandParts, command.Details.Arguments...)
	commandLabel := strings.Join(commandParts, commandArgumentsJoinSeparatorConstant)

	workingDirectorySuffix := emptyStringConstant
	if trimmedWorkingDirectory := strings.TrimSpace(command.Details.WorkingDirectory); len(trimmedWorkingDirectory) > 0 {
		workingDirectorySuffix = fmt.Sprintf(workingDirectorySuffixTemplateConstant, trimmedWorkingDirectory)
	}
	return fmt.Sprintf(commandLabelTemplateConstant, commandLabel, workingDirectorySuffix)
}

func (formatter CommandMessageFormatter) formatStandardErrorSuffix(standardError string) string {
	trimmedStandardError := strings.TrimSpace(standardError)
	if len(trimmedStandardError) == 0 {
		return emptyStringConstant
	}
	return fmt.Sprintf(standardErrorSuffixTemplateConstant, trimmedStandardError)
}

// auditedBinaryCount recognizes `<exe> audit ... bin <binaries...>` and
// returns the number of binaries that follow the bin mode argument.
func auditedBinaryCount(command ShellCommand) (int, bool) {
	arguments := command.Details.Arguments
	if len(arguments) == 0 || arguments[0] != auditSubcommandConstant {
		return 0, false
	}
	for argumentIndex, argument := range arguments {
		if argument == auditBinaryModeArgumentConstant {
			return len(arguments) - argumentIndex - 1, true
		}
	}
	return 0, false
}

func binaryLabel(binaryCount int) string {
	if binaryCount == 1 {
		return binarySingularLabelConstant
	}
	return binaryPluralLabelConstant
}
