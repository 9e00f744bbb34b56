package audit

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/report"
)

const (
	noCandidatesMessageTemplateConstant = "WARNING: No existing paths to audit; %s skipped."
	attemptCompletedLogMessageConstant  = "audit attempt completed"
	candidateCountLogFieldConstant      = "candidates"
	failedLogFieldConstant              = "failed"
	entryCountLogFieldConstant          = "entries"
)

// Service combines enumeration and invocation into a single audit attempt.
type Service struct {
	enumerator *BinaryEnumerator
	invoker    *Invoker
	clock      report.Clock
	logger     *zap.Logger
}

// NewService constructs a Service using the provided dependencies.
func NewService(enumerator *BinaryEnumerator, invoker *Invoker, clock report.Clock, logger *zap.Logger) *Service {
	if clock == nil {
		clock = report.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{enumerator: enumerator, invoker: invoker, clock: clock, logger: logger}
}

// Attempt runs one audit over paths on a fresh report. It never returns an
// error; failures are recorded in the returned report.
func (service *Service) Attempt(executionContext context.Context, paths []string) report.Report {
	draft := report.New(service.clock)

	binaries, enumerationError := service.enumerator.Enumerate(paths, draft)
	if enumerationError != nil {
		return service.completed(draft.Fail(enumerationFailureMessage(enumerationError)), 0)
	}

	if len(binaries) == 0 {
		draft.AddMessage(fmt.Sprintf(noCandidatesMessageTemplateConstant, toolNameConstant))
		return service.completed(*draft, 0)
	}

	return service.completed(service.invoker.Invoke(executionContext, binaries, draft), len(binaries))
}

func (service *Service) completed(attemptReport report.Report, candidateCount int) report.Report {
	service.logger.Debug(
		attemptCompletedLogMessageConstant,
		zap.Int(candidateCountLogFieldConstant, candidateCount),
		zap.Int(entryCountLogFieldConstant, len(attemptReport.Entries())),
		zap.Bool(failedLogFieldConstant, attemptReport.Failed()),
		zap.Bool(vulnerableLogFieldConstant, attemptReport.Vulnerable()),
	)
	return attemptReport
}

func enumerationFailureMessage(enumerationError error) string {
	var directoryError *DirectoryError
	if errors.As(enumerationError, &directoryError) {
		return directoryError.ReportMessage()
	}
	return enumerationError.Error()
}
