package orchestration

import (
	"context"

	"github.com/temirov/periodic-audit/internal/report"
	"github.com/temirov/periodic-audit/internal/retry"
)

// AttemptPerformer performs a single audit attempt over the watched paths.
type AttemptPerformer interface {
	Attempt(executionContext context.Context, paths []string) report.Report
}

// RetryScheduler repeats attempts until one succeeds or the budget is spent.
type RetryScheduler interface {
	Run(executionContext context.Context, attempt retry.AttemptFunc) retry.Outcome
}

// ReportDispatcher delivers the final report.
type ReportDispatcher interface {
	Dispatch(executionContext context.Context, auditReport report.Report) error
}

// ReadinessNotifier reports to the service manager that the run is done.
type ReadinessNotifier interface {
	NotifyReady() error
}

// RunIdentifierGenerator produces identifiers for runs that do not carry one.
type RunIdentifierGenerator func() string
