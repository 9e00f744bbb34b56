package audit_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/periodic-audit/internal/audit"
	"github.com/temirov/periodic-audit/internal/execshell"
	"github.com/temirov/periodic-audit/internal/report"
)

const (
	testInvokerSubtestTemplateConstant = "%d_%s"
	testFirstBinaryConstant            = "/usr/local/bin/rg"
	testSecondBinaryConstant           = "/usr/local/bin/fd"
	testCleanResultConstant            = `{"database":{"advisory-count":812},"vulnerabilities":{"found":false,"count":0,"list":[]}}`
	testVulnerableResultConstant       = `{"database":{"advisory-count":812},"vulnerabilities":{"found":true,"count":1,"list":[{"advisory":{"id":"RUSTSEC-2024-0001"}}]}}`
	testUndecidedResultConstant        = `{"warnings":{}}`
	testStringFoundResultConstant      = `{"vulnerabilities":{"found":"yes"}}`
	testAuditorStandardErrorConstant   = "    Fetching advisory database\n"
)

type stubCommandExecutor struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (executor *stubCommandExecutor) Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	executor.recordedCommands = append(executor.recordedCommands, command)
	return executor.executionResult, executor.executionError
}

func exitedWith(executionResult execshell.ExecutionResult) *stubCommandExecutor {
	if executionResult.ExitCode == 0 {
		return &stubCommandExecutor{executionResult: executionResult}
	}
	return &stubCommandExecutor{executionError: execshell.CommandFailedError{Result: executionResult}}
}

func TestInvokerBuildsAuditorCommand(testInstance *testing.T) {
	testCases := []struct {
		name              string
		configuration     audit.ToolConfiguration
		expectedName      execshell.CommandName
		expectedArguments []string
	}{
		{
			name:              "default_executable",
			configuration:     audit.DefaultToolConfiguration(),
			expectedName:      execshell.CommandCargo,
			expectedArguments: []string{"audit", "--deny", "warnings", "--format", "json", "bin", testFirstBinaryConstant, testSecondBinaryConstant},
		},
		{
			name:              "custom_executable_and_database",
			configuration:     audit.ToolConfiguration{Executable: "/opt/cargo/bin/cargo", Database: "/var/lib/advisory-db"},
			expectedName:      execshell.CommandName("/opt/cargo/bin/cargo"),
			expectedArguments: []string{"audit", "--deny", "warnings", "--format", "json", "--db", "/var/lib/advisory-db", "bin", testFirstBinaryConstant, testSecondBinaryConstant},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testInvokerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			executor := exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant + "\n" + testCleanResultConstant + "\n"})
			invoker := audit.NewInvoker(executor, testCase.configuration, zap.NewNop())

			invoker.Invoke(context.Background(), []string{testFirstBinaryConstant, testSecondBinaryConstant}, report.New(fixedClock{}))

			require.Len(testInstance, executor.recordedCommands, 1)
			command := executor.recordedCommands[0]
			require.Equal(testInstance, testCase.expectedName, command.Name)
			require.Equal(testInstance, testCase.expectedArguments, command.Details.Arguments)
			require.ElementsMatch(testInstance, []string{"TERM", "COLORTERM"}, command.Details.RemovedEnvironmentVariables)
			require.Empty(testInstance, command.Details.StandardInput)
		})
	}
}

func TestInvokerProducesEntries(testInstance *testing.T) {
	testCases := []struct {
		name               string
		executor           *stubCommandExecutor
		binaries           []string
		expectedVulnerable []bool
		expectedMessages   []string
	}{
		{
			name:               "clean_results",
			executor:           exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant + "\n" + testCleanResultConstant}),
			binaries:           []string{testFirstBinaryConstant, testSecondBinaryConstant},
			expectedVulnerable: []bool{false, false},
			expectedMessages:   []string{},
		},
		{
			name:               "vulnerable_result_with_nonzero_exit",
			executor:           exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant + testVulnerableResultConstant, ExitCode: 1}),
			binaries:           []string{testFirstBinaryConstant, testSecondBinaryConstant},
			expectedVulnerable: []bool{false, true},
			expectedMessages:   []string{},
		},
		{
			name:               "missing_or_non_boolean_found_defaults_to_false",
			executor:           exitedWith(execshell.ExecutionResult{StandardOutput: testUndecidedResultConstant + "\n" + testStringFoundResultConstant}),
			binaries:           []string{testFirstBinaryConstant, testSecondBinaryConstant},
			expectedVulnerable: []bool{false, false},
			expectedMessages:   []string{},
		},
		{
			name:               "standard_error_becomes_message",
			executor:           exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant, StandardError: testAuditorStandardErrorConstant}),
			binaries:           []string{testFirstBinaryConstant},
			expectedVulnerable: []bool{false},
			expectedMessages:   []string{"cargo-audit stderr:\n" + testAuditorStandardErrorConstant},
		},
		{
			name:               "blank_standard_error_is_ignored",
			executor:           exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant, StandardError: " \n\t"}),
			binaries:           []string{testFirstBinaryConstant},
			expectedVulnerable: []bool{false},
			expectedMessages:   []string{},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testInvokerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			invoker := audit.NewInvoker(testCase.executor, audit.DefaultToolConfiguration(), zap.NewNop())

			auditReport := invoker.Invoke(context.Background(), testCase.binaries, report.New(fixedClock{}))

			require.False(testInstance, auditReport.Failed())
			require.Equal(testInstance, testCase.expectedMessages, auditReport.Messages())
			entries := auditReport.Entries()
			require.Len(testInstance, entries, len(testCase.binaries))
			for entryIndex, entry := range entries {
				require.Equal(testInstance, testCase.binaries[entryIndex], entry.Path)
				require.Equal(testInstance, testCase.expectedVulnerable[entryIndex], entry.Vulnerable)
				require.NotEmpty(testInstance, entry.JSON)
				require.NotEmpty(testInstance, entry.JSONPretty)
			}
		})
	}
}

func TestInvokerPrettyPrintsEntries(testInstance *testing.T) {
	executor := exitedWith(execshell.ExecutionResult{StandardOutput: `{"vulnerabilities":{"found":true}}`})
	invoker := audit.NewInvoker(executor, audit.DefaultToolConfiguration(), zap.NewNop())

	auditReport := invoker.Invoke(context.Background(), []string{testFirstBinaryConstant}, report.New(fixedClock{}))

	entries := auditReport.Entries()
	require.Len(testInstance, entries, 1)
	require.Equal(testInstance, `{"vulnerabilities":{"found":true}}`, entries[0].JSON)
	require.Equal(testInstance, "{\n  \"vulnerabilities\": {\n    \"found\": true\n  }\n}", entries[0].JSONPretty)
	require.True(testInstance, auditReport.Vulnerable())
}

func TestInvokerFailsAttempt(testInstance *testing.T) {
	testCases := []struct {
		name             string
		executor         *stubCommandExecutor
		binaries         []string
		expectedMessages []string
	}{
		{
			name:             "spawn_failure",
			executor:         &stubCommandExecutor{executionError: execshell.CommandExecutionError{Cause: errors.New("exec: \"cargo\": executable file not found in $PATH")}},
			binaries:         []string{testFirstBinaryConstant},
			expectedMessages: []string{"Error executing cargo-audit (cargo): exec: \"cargo\": executable file not found in $PATH"},
		},
		{
			name:             "standard_output_not_utf8",
			executor:         exitedWith(execshell.ExecutionResult{StandardOutput: "{\"a\":\"\xff\"}"}),
			binaries:         []string{testFirstBinaryConstant},
			expectedMessages: []string{"Parse cargo-audit stdout as UTF-8"},
		},
		{
			name:             "standard_error_not_utf8",
			executor:         exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant, StandardError: "\xfe"}),
			binaries:         []string{testFirstBinaryConstant},
			expectedMessages: []string{"Parse cargo-audit stderr as UTF-8"},
		},
		{
			name:             "fewer_results_than_binaries",
			executor:         exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant}),
			binaries:         []string{testFirstBinaryConstant, testSecondBinaryConstant},
			expectedMessages: []string{"cargo-audit emitted 1 JSON results for 2 binaries"},
		},
		{
			name:             "no_results_keeps_auditor_diagnostics",
			executor:         exitedWith(execshell.ExecutionResult{StandardError: "error: no such command: `audit`\n", ExitCode: 101}),
			binaries:         []string{testFirstBinaryConstant},
			expectedMessages: []string{"cargo-audit stderr:\nerror: no such command: `audit`\n", "cargo-audit emitted 0 JSON results for 1 binaries"},
		},
		{
			name:             "unbalanced_output",
			executor:         exitedWith(execshell.ExecutionResult{StandardOutput: `{"vulnerabilities":{"found":true}`}),
			binaries:         []string{testFirstBinaryConstant},
			expectedMessages: []string{"Split cargo-audit JSON output: split JSON stream at offset 33: mismatched braces"},
		},
		{
			name:             "invalid_json_part",
			executor:         exitedWith(execshell.ExecutionResult{StandardOutput: testCleanResultConstant + "\n{\"found\": tru}"}),
			binaries:         []string{testFirstBinaryConstant, testSecondBinaryConstant},
			expectedMessages: []string{"Parse cargo-audit JSON output for '" + testSecondBinaryConstant + "'"},
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testInvokerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			invoker := audit.NewInvoker(testCase.executor, audit.DefaultToolConfiguration(), zap.NewNop())

			auditReport := invoker.Invoke(context.Background(), testCase.binaries, report.New(fixedClock{}))

			require.True(testInstance, auditReport.Failed())
			require.Empty(testInstance, auditReport.Entries())
			require.Equal(testInstance, testCase.expectedMessages, auditReport.Messages())
		})
	}
}

func TestInvokerDebugOutput(testInstance *testing.T) {
	testCases := []struct {
		name            string
		exitCode        int
		expectedMessage string
	}{
		{name: "exit_code", exitCode: 1, expectedMessage: "cargo-audit exited with code 1"},
		{name: "zero_exit_code", exitCode: 0, expectedMessage: "cargo-audit exited with code 0"},
		{name: "signal", exitCode: -1, expectedMessage: "cargo-audit exited due to signal"},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testInvokerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			observerCore, observedLogs := observer.New(zap.DebugLevel)
			configuration := audit.DefaultToolConfiguration()
			configuration.Debug = true
			executor := exitedWith(execshell.ExecutionResult{StandardOutput: testVulnerableResultConstant, ExitCode: testCase.exitCode})
			invoker := audit.NewInvoker(executor, configuration, zap.New(observerCore))

			auditReport := invoker.Invoke(context.Background(), []string{testFirstBinaryConstant}, report.New(fixedClock{}))

			require.False(testInstance, auditReport.Failed())
			require.Equal(testInstance, []string{testCase.expectedMessage}, auditReport.Messages())
			require.Equal(testInstance, 1, observedLogs.FilterMessage("audit result").Len())
		})
	}
}
