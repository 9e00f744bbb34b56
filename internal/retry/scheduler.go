package retry

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/report"
)

const (
	minimumAttemptsConstant         = 1
	maximumAttemptsConstant         = 30
	initialDelayConstant            = 2 * time.Second
	maximumDelayConstant            = 120 * time.Second
	delayMultiplierConstant         = 2
	retryingLogMessageConstant      = "One or more audits failed. Retrying..."
	givenUpLogMessageConstant       = "Audit failed; giving up"
	cancelledLogMessageConstant     = "Audit retries cancelled"
	attemptLogFieldConstant         = "attempt"
	maximumAttemptsLogFieldConstant = "max_attempts"
	delayLogFieldConstant           = "delay"
)

// ErrAttemptFailed marks an attempt whose report is failed.
var ErrAttemptFailed = errors.New("audit attempt failed")

// State is the terminal state of a retry cycle.
type State string

// Terminal states of a retry cycle.
const (
	StateSuccess   State = "success"
	StateGivenUp   State = "given_up"
	StateCancelled State = "cancelled"
)

// AttemptFunc performs one audit attempt.
type AttemptFunc func(executionContext context.Context) report.Report

// Outcome describes a finished retry cycle. Report is the most recent attempt
// report; Err is set only for StateCancelled.
type Outcome struct {
	Report   report.Report
	State    State
	Attempts int
	Err      error
}

// EffectiveAttempts clamps the configured attempt count to [1, 30].
func EffectiveAttempts(configuredAttempts int) int {
	if configuredAttempts < minimumAttemptsConstant {
		return minimumAttemptsConstant
	}
	if configuredAttempts > maximumAttemptsConstant {
		return maximumAttemptsConstant
	}
	return configuredAttempts
}

// BackoffDelay returns the wait after the completedAttempts-th failed attempt:
// min(2s * 2^(completedAttempts-1), 120s).
func BackoffDelay(completedAttempts int) time.Duration {
	delay := initialDelayConstant
	for attemptIndex := 1; attemptIndex < completedAttempts && delay < maximumDelayConstant; attemptIndex++ {
		delay *= delayMultiplierConstant
	}
	if delay > maximumDelayConstant {
		return maximumDelayConstant
	}
	return delay
}

// Scheduler runs attempts under the exponential backoff policy.
type Scheduler struct {
	maximumAttempts int
	timer           backoff.Timer
	logger          *zap.Logger
}

// Option customizes a Scheduler.
type Option func(*Scheduler)

// WithTimer replaces the timer used for the waits between attempts.
func WithTimer(timer backoff.Timer) Option {
	return func(scheduler *Scheduler) {
		scheduler.timer = timer
	}
}

// NewScheduler constructs a Scheduler allowing EffectiveAttempts(configuredAttempts) attempts.
func NewScheduler(configuredAttempts int, logger *zap.Logger, options ...Option) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	scheduler := &Scheduler{maximumAttempts: EffectiveAttempts(configuredAttempts), logger: logger}
	for _, option := range options {
		option(scheduler)
	}
	return scheduler
}

// MaximumAttempts reports the effective attempt budget.
func (scheduler *Scheduler) MaximumAttempts() int {
	return scheduler.maximumAttempts
}

// Run performs attempts until one yields a report that is not failed or the
// budget is spent. Cancelling executionContext interrupts a pending wait; an
// attempt in progress is never interrupted by the scheduler.
func (scheduler *Scheduler) Run(executionContext context.Context, attempt AttemptFunc) Outcome {
	var lastReport report.Report
	completedAttempts := 0

	operation := func() error {
		lastReport = attempt(executionContext)
		completedAttempts++
		if lastReport.Failed() {
			return ErrAttemptFailed
		}
		return nil
	}

	notify := func(_ error, delay time.Duration) {
		scheduler.logger.Warn(
			retryingLogMessageConstant,
			zap.Int(attemptLogFieldConstant, completedAttempts),
			zap.Int(maximumAttemptsLogFieldConstant, scheduler.maximumAttempts),
			zap.Duration(delayLogFieldConstant, delay),
		)
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(newExponentialBackOff(), uint64(scheduler.maximumAttempts-1)),
		executionContext,
	)

	retryError := backoff.RetryNotifyWithTimer(operation, policy, notify, scheduler.timer)
	outcome := Outcome{Report: lastReport, Attempts: completedAttempts}

	switch {
	case retryError == nil:
		outcome.State = StateSuccess
	case errors.Is(retryError, ErrAttemptFailed), completedAttempts >= scheduler.maximumAttempts:
		outcome.State = StateGivenUp
		scheduler.logger.Error(givenUpLogMessageConstant, zap.Int(attemptLogFieldConstant, completedAttempts))
	default:
		outcome.State = StateCancelled
		outcome.Err = retryError
		scheduler.logger.Warn(cancelledLogMessageConstant, zap.Int(attemptLogFieldConstant, completedAttempts), zap.Error(retryError))
	}

	return outcome
}

func newExponentialBackOff() *backoff.ExponentialBackOff {
	exponentialBackOff := backoff.NewExponentialBackOff()
	exponentialBackOff.InitialInterval = initialDelayConstant
	exponentialBackOff.RandomizationFactor = 0
	exponentialBackOff.Multiplier = delayMultiplierConstant
	exponentialBackOff.MaxInterval = maximumDelayConstant
	exponentialBackOff.MaxElapsedTime = 0
	exponentialBackOff.Reset()
	return exponentialBackOff
}
