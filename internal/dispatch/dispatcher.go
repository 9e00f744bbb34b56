package dispatch

import (
	"context"
	"sync"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/temirov/periodic-audit/internal/report"
)

const (
	dispatchStartedLogMessageConstant  = "dispatching report"
	channelFailedLogMessageConstant    = "report delivery failed"
	channelDeliveredLogMessageConstant = "report delivered"
	channelLogFieldConstant            = "channel"
	channelCountLogFieldConstant       = "channels"
	subjectLogFieldConstant            = "subject"
)

// Dispatcher sends one report over a fixed set of channels.
type Dispatcher struct {
	subject  string
	channels []Channel
	logger   *zap.Logger
}

// NewDispatcher constructs a Dispatcher. subject is the configured subject
// line before outcome prefixes are applied.
func NewDispatcher(subject string, channels []Channel, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{subject: subject, channels: append([]Channel(nil), channels...), logger: logger}
}

// Dispatch renders auditReport and delivers it over every channel. Every
// channel is attempted even when others fail; failures are combined with
// multierr, each wrapped in a *ChannelError. Cancelling executionContext does
// not interrupt deliveries that are already running.
func (dispatcher *Dispatcher) Dispatch(executionContext context.Context, auditReport report.Report) error {
	payload := Payload{
		Subject: report.Subject(dispatcher.subject, auditReport),
		Body:    auditReport.Render(),
	}
	sendContext := context.WithoutCancel(executionContext)

	dispatcher.logger.Info(
		dispatchStartedLogMessageConstant,
		zap.String(subjectLogFieldConstant, payload.Subject),
		zap.Int(channelCountLogFieldConstant, len(dispatcher.channels)),
	)

	var (
		group         errgroup.Group
		failureGuard  sync.Mutex
		dispatchError error
	)
	for _, channel := range dispatcher.channels {
		group.Go(func() error {
			sendError := channel.Send(sendContext, payload)
			if sendError == nil {
				dispatcher.logger.Debug(channelDeliveredLogMessageConstant, zap.String(channelLogFieldConstant, channel.Name()))
				return nil
			}

			dispatcher.logger.Error(channelFailedLogMessageConstant, zap.String(channelLogFieldConstant, channel.Name()), zap.Error(sendError))
			failureGuard.Lock()
			dispatchError = multierr.Append(dispatchError, &ChannelError{Channel: channel.Name(), Err: sendError})
			failureGuard.Unlock()
			return nil
		})
	}
	_ = group.Wait()

	return dispatchError
}
