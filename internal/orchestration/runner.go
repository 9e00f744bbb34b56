package orchestration

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/report"
	"github.com/temirov/periodic-audit/internal/retry"
	"github.com/temirov/periodic-audit/internal/utils"
)

const (
	runIdentifierLogFieldConstant     = "run_id"
	stateLogFieldConstant             = "state"
	attemptsLogFieldConstant          = "attempts"
	failedLogFieldConstant            = "failed"
	vulnerableLogFieldConstant        = "vulnerable"
	pathCountLogFieldConstant         = "paths"
	runStartedLogMessageConstant      = "audit run started"
	auditFinishedLogMessageConstant   = "audit finished"
	runCancelledLogMessageConstant    = "audit run cancelled; report not dispatched"
	readinessFailedLogMessageConstant = "readiness notification failed"
	runCancelledErrorTemplateConstant = "audit run cancelled: %w"
)

// Errors reported when constructing a Runner.
var (
	ErrAttemptPerformerNotConfigured = errors.New("orchestration runner requires an attempt performer")
	ErrSchedulerNotConfigured        = errors.New("orchestration runner requires a retry scheduler")
	ErrDispatcherNotConfigured       = errors.New("orchestration runner requires a report dispatcher")
)

// Outcome summarizes a finished run.
type Outcome struct {
	RunIdentifier string
	Report        report.Report
	AuditState    retry.State
	Attempts      int
	DispatchError error
}

// Success reports whether the final report is not failed and every channel
// delivered it.
func (outcome Outcome) Success() bool {
	return !outcome.Report.Failed() && outcome.DispatchError == nil
}

// Dependencies bundles the collaborators of a Runner.
type Dependencies struct {
	Attempts              AttemptPerformer
	Scheduler             RetryScheduler
	Dispatcher            ReportDispatcher
	Notifier              ReadinessNotifier
	Logger                *zap.Logger
	RunIdentifierProvider RunIdentifierGenerator
}

// Runner executes audit cycles over a fixed set of watched paths.
type Runner struct {
	paths                  []string
	attempts               AttemptPerformer
	scheduler              RetryScheduler
	dispatcher             ReportDispatcher
	notifier               ReadinessNotifier
	logger                 *zap.Logger
	generateRunIdentifier  RunIdentifierGenerator
	commandContextAccessor utils.CommandContextAccessor
}

// NewRunner validates dependencies and constructs a Runner.
func NewRunner(paths []string, dependencies Dependencies) (*Runner, error) {
	switch {
	case dependencies.Attempts == nil:
		return nil, ErrAttemptPerformerNotConfigured
	case dependencies.Scheduler == nil:
		return nil, ErrSchedulerNotConfigured
	case dependencies.Dispatcher == nil:
		return nil, ErrDispatcherNotConfigured
	}

	runner := &Runner{
		paths:                  append([]string(nil), paths...),
		attempts:               dependencies.Attempts,
		scheduler:              dependencies.Scheduler,
		dispatcher:             dependencies.Dispatcher,
		notifier:               dependencies.Notifier,
		logger:                 dependencies.Logger,
		generateRunIdentifier:  dependencies.RunIdentifierProvider,
		commandContextAccessor: utils.NewCommandContextAccessor(),
	}
	if runner.logger == nil {
		runner.logger = zap.NewNop()
	}
	if runner.generateRunIdentifier == nil {
		runner.generateRunIdentifier = uuid.NewString
	}
	return runner, nil
}

// Run performs one cycle. The final report is dispatched after success and
// after the retry budget is spent. A cycle cancelled through executionContext
// is not dispatched and returns the cancellation cause. An attempt already in
// progress always runs to completion.
func (runner *Runner) Run(executionContext context.Context) (Outcome, error) {
	runIdentifier, identifierAvailable := runner.commandContextAccessor.RunIdentifier(executionContext)
	if !identifierAvailable {
		runIdentifier = runner.generateRunIdentifier()
		executionContext = runner.commandContextAccessor.WithRunIdentifier(executionContext, runIdentifier)
	}
	runLogger := runner.logger.With(zap.String(runIdentifierLogFieldConstant, runIdentifier))
	runLogger.Info(runStartedLogMessageConstant, zap.Int(pathCountLogFieldConstant, len(runner.paths)))

	retryOutcome := runner.scheduler.Run(executionContext, func(attemptContext context.Context) report.Report {
		return runner.attempts.Attempt(context.WithoutCancel(attemptContext), runner.paths)
	})

	outcome := Outcome{
		RunIdentifier: runIdentifier,
		Report:        retryOutcome.Report,
		AuditState:    retryOutcome.State,
		Attempts:      retryOutcome.Attempts,
	}

	if retryOutcome.State == retry.StateCancelled {
		runLogger.Warn(runCancelledLogMessageConstant, zap.Int(attemptsLogFieldConstant, retryOutcome.Attempts))
		cancellationCause := retryOutcome.Err
		if cancellationCause == nil {
			cancellationCause = context.Cause(executionContext)
		}
		return outcome, fmt.Errorf(runCancelledErrorTemplateConstant, cancellationCause)
	}

	runLogger.Info(
		auditFinishedLogMessageConstant,
		zap.String(stateLogFieldConstant, string(retryOutcome.State)),
		zap.Int(attemptsLogFieldConstant, retryOutcome.Attempts),
		zap.Bool(failedLogFieldConstant, retryOutcome.Report.Failed()),
		zap.Bool(vulnerableLogFieldConstant, retryOutcome.Report.Vulnerable()),
	)

	outcome.DispatchError = runner.dispatcher.Dispatch(executionContext, retryOutcome.Report)

	if runner.notifier != nil {
		if notifyError := runner.notifier.NotifyReady(); notifyError != nil {
			runLogger.Warn(readinessFailedLogMessageConstant, zap.Error(notifyError))
		}
	}

	return outcome, nil
}
