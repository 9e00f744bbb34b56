package readiness

import (
	"fmt"

	"github.com/coreos/go-systemd/v22/daemon"
	"go.uber.org/zap"
)

const (
	readinessSentLogMessageConstant    = "service manager notified"
	readinessSkippedLogMessageConstant = "no service manager socket; readiness not sent"
	notifyErrorTemplateConstant        = "notify service manager: %w"
)

// Notifier reports readiness to a supervising service manager.
type Notifier interface {
	NotifyReady() error
}

// SystemdNotifier sends READY=1 over the socket named by NOTIFY_SOCKET. It is a
// no-op when the process does not run under systemd.
type SystemdNotifier struct {
	logger *zap.Logger
}

// NewSystemdNotifier constructs a SystemdNotifier.
func NewSystemdNotifier(logger *zap.Logger) *SystemdNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SystemdNotifier{logger: logger}
}

// NotifyReady sends the readiness state.
func (notifier *SystemdNotifier) NotifyReady() error {
	sent, notifyError := daemon.SdNotify(false, daemon.SdNotifyReady)
	if notifyError != nil {
		return fmt.Errorf(notifyErrorTemplateConstant, notifyError)
	}
	if sent {
		notifier.logger.Debug(readinessSentLogMessageConstant)
	} else {
		notifier.logger.Debug(readinessSkippedLogMessageConstant)
	}
	return nil
}

// NoopNotifier discards readiness notifications.
type NoopNotifier struct{}

// NotifyReady does nothing.
func (NoopNotifier) NotifyReady() error {
	return nil
}
