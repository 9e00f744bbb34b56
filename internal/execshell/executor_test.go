package execshell_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/temirov/periodic-audit/internal/execshell"
)

const (
	testExecutorSubtestTemplateConstant          = "%d_%s"
	testExecutionSuccessCaseNameConstant         = "success"
	testExecutionFailureCaseNameConstant         = "failure_exit_code"
	testExecutionRunnerErrorCaseNameConstant     = "runner_error"
	testCommandArgumentConstant                  = "--version"
	testWorkingDirectoryConstant                 = "."
	testStandardOutputConstant                   = "cargo-audit 0.21.0"
	testStandardErrorOutputConstant              = "failure"
	testLoggerInitializationCaseNameConstant     = "logger_validation"
	testRunnerInitializationCaseNameConstant     = "runner_validation"
	testSuccessfulInitializationCaseNameConstant = "successful_initialization"
)

type recordingCommandRunner struct {
	executionResult  execshell.ExecutionResult
	executionError   error
	recordedCommands []execshell.ShellCommand
}

func (runner *recordingCommandRunner) Run(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error) {
	runner.recordedCommands = append(runner.recordedCommands, command)
	return runner.executionResult, runner.executionError
}

type recordingEventObserver struct {
	startedCount   int
	completedCount int
	failedCount    int
}

func (eventObserver *recordingEventObserver) CommandStarted(execshell.ShellCommand) {
	eventObserver.startedCount++
}

func (eventObserver *recordingEventObserver) CommandCompleted(execshell.ShellCommand, execshell.ExecutionResult) {
	eventObserver.completedCount++
}

func (eventObserver *recordingEventObserver) CommandExecutionFailed(execshell.ShellCommand, error) {
	eventObserver.failedCount++
}

func TestShellExecutorInitializationValidation(testInstance *testing.T) {
	testCases := []struct {
		name          string
		logger        *zap.Logger
		runner        execshell.CommandRunner
		expectError   error
		expectSuccess bool
	}{
		{
			name:        testLoggerInitializationCaseNameConstant,
			logger:      nil,
			runner:      &recordingCommandRunner{},
			expectError: execshell.ErrLoggerNotConfigured,
		},
		{
			name:        testRunnerInitializationCaseNameConstant,
			logger:      zap.NewNop(),
			runner:      nil,
			expectError: execshell.ErrCommandRunnerNotConfigured,
		},
		{
			name:          testSuccessfulInitializationCaseNameConstant,
			logger:        zap.NewNop(),
			runner:        &recordingCommandRunner{},
			expectSuccess: true,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testExecutorSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			executor, creationError := execshell.NewShellExecutor(testCase.logger, testCase.runner)
			if testCase.expectSuccess {
				require.NoError(testInstance, creationError)
				require.NotNil(testInstance, executor)
			} else {
				require.Error(testInstance, creationError)
				require.ErrorIs(testInstance, creationError, testCase.expectError)
			}
		})
	}
}

func TestShellExecutorExecuteBehavior(testInstance *testing.T) {
	runnerFailure := errors.New("runner failure")

	testCases := []struct {
		name              string
		runnerResult      execshell.ExecutionResult
		runnerError       error
		expectErrorType   any
		expectedLogCount  int
		expectedStarted   int
		expectedCompleted int
		expectedFailed    int
	}{
		{
			name: testExecutionSuccessCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardOutput: testStandardOutputConstant,
				ExitCode:       0,
			},
			expectedLogCount:  2,
			expectedStarted:   1,
			expectedCompleted: 1,
		},
		{
			name: testExecutionFailureCaseNameConstant,
			runnerResult: execshell.ExecutionResult{
				StandardOutput: testStandardOutputConstant,
				StandardError:  testStandardErrorOutputConstant,
				ExitCode:       1,
			},
			expectErrorType:   execshell.CommandFailedError{},
			expectedLogCount:  2,
			expectedStarted:   1,
			expectedCompleted: 1,
		},
		{
			name:             testExecutionRunnerErrorCaseNameConstant,
			runnerError:      runnerFailure,
			expectErrorType:  execshell.CommandExecutionError{},
			expectedLogCount: 2,
			expectedStarted:  1,
			expectedFailed:   1,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testExecutorSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			observerCore, observerLogs := observer.New(zap.DebugLevel)
			logger := zap.New(observerCore)

			recordingRunner := &recordingCommandRunner{
				executionResult: testCase.runnerResult,
				executionError:  testCase.runnerError,
			}
			eventObserver := &recordingEventObserver{}

			shellExecutor, creationError := execshell.NewShellExecutor(logger, recordingRunner, eventObserver)
			require.NoError(testInstance, creationError)

			command := execshell.ShellCommand{
				Name:    execshell.CommandCargo,
				Details: execshell.CommandDetails{Arguments: []string{testCommandArgumentConstant}, WorkingDirectory: testWorkingDirectoryConstant},
			}
			executionResult, executionError := shellExecutor.Execute(context.Background(), command)

			if testCase.expectErrorType != nil {
				require.Error(testInstance, executionError)
				require.IsType(testInstance, testCase.expectErrorType, executionError)
				require.Empty(testInstance, executionResult.StandardOutput)
			} else {
				require.NoError(testInstance, executionError)
				require.Equal(testInstance, testCase.runnerResult.StandardOutput, executionResult.StandardOutput)
			}

			require.Len(testInstance, observerLogs.All(), testCase.expectedLogCount)
			require.Len(testInstance, recordingRunner.recordedCommands, 1)
			require.Equal(testInstance, command, recordingRunner.recordedCommands[0])
			require.Equal(testInstance, testCase.expectedStarted, eventObserver.startedCount)
			require.Equal(testInstance, testCase.expectedCompleted, eventObserver.completedCount)
			require.Equal(testInstance, testCase.expectedFailed, eventObserver.failedCount)
		})
	}
}

func TestShellExecutorErrorsCarryDetails(testInstance *testing.T) {
	runnerFailure := errors.New("executable file not found in $PATH")

	failingRunner := &recordingCommandRunner{
		executionResult: execshell.ExecutionResult{StandardOutput: testStandardOutputConstant, StandardError: testStandardErrorOutputConstant, ExitCode: 2},
	}
	failingExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), failingRunner)
	require.NoError(testInstance, creationError)

	_, executionError := failingExecutor.Execute(context.Background(), execshell.ShellCommand{Name: execshell.CommandCargo})
	var failedError execshell.CommandFailedError
	require.True(testInstance, errors.As(executionError, &failedError))
	require.Equal(testInstance, 2, failedError.Result.ExitCode)
	require.Equal(testInstance, testStandardOutputConstant, failedError.Result.StandardOutput)
	require.Equal(testInstance, "cargo exited with code 2", failedError.Error())

	brokenRunner := &recordingCommandRunner{executionError: runnerFailure}
	brokenExecutor, creationError := execshell.NewShellExecutor(zap.NewNop(), brokenRunner)
	require.NoError(testInstance, creationError)

	_, executionError = brokenExecutor.Execute(context.Background(), execshell.ShellCommand{Name: execshell.CommandCargo})
	require.ErrorIs(testInstance, executionError, runnerFailure)
	require.Contains(testInstance, executionError.Error(), runnerFailure.Error())
}
