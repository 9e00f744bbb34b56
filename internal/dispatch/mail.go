package dispatch

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/wneessen/go-mail"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

const (
	mailChannelNameConstant              = "mail"
	mailUserAgentConstant                = "periodic-audit"
	defaultMailSubjectConstant           = "periodic-audit report"
	defaultMailMaxConcurrencyConstant    = 1
	mailDisabledLogMessageConstant       = "Mail sending is disabled; not sending report e-mail."
	mailNoRecipientsLogMessageConstant   = "No mail.to addresses configured; not sending report e-mail."
	mailSentLogMessageConstant           = "report e-mail sent"
	recipientLogFieldConstant            = "recipient"
	fromAddressErrorTemplateConstant     = "parse mail.from address %q: %w"
	toAddressErrorTemplateConstant       = "parse mail.to address %q: %w"
	sendMailErrorTemplateConstant        = "send e-mail to %s: %w"
	acquireSendSlotErrorTemplateConstant = "wait for mail send slot: %w"
)

// MailConfiguration describes the e-mail channel.
type MailConfiguration struct {
	Disabled       bool     `mapstructure:"disabled" yaml:"disabled"`
	Relay          string   `mapstructure:"relay" yaml:"relay"`
	Subject        string   `mapstructure:"subject" yaml:"subject"`
	From           string   `mapstructure:"from" yaml:"from"`
	To             []string `mapstructure:"to" yaml:"to"`
	MaxConcurrency int      `mapstructure:"max_concurrency" yaml:"max_concurrency"`
}

// DefaultMailConfiguration returns baseline e-mail settings. Without a sender
// or recipients the channel stays disabled.
func DefaultMailConfiguration() MailConfiguration {
	return MailConfiguration{
		Subject:        defaultMailSubjectConstant,
		To:             []string{},
		MaxConcurrency: defaultMailMaxConcurrencyConstant,
	}
}

// Sanitize trims values, drops blank recipients and applies defaults.
func (configuration MailConfiguration) Sanitize() MailConfiguration {
	sanitized := configuration
	sanitized.Relay = strings.TrimSpace(configuration.Relay)
	sanitized.Subject = strings.TrimSpace(configuration.Subject)
	if len(sanitized.Subject) == 0 {
		sanitized.Subject = defaultMailSubjectConstant
	}
	sanitized.From = strings.TrimSpace(configuration.From)
	sanitized.To = make([]string, 0, len(configuration.To))
	for _, recipient := range configuration.To {
		if trimmedRecipient := strings.TrimSpace(recipient); len(trimmedRecipient) > 0 {
			sanitized.To = append(sanitized.To, trimmedRecipient)
		}
	}
	if len(sanitized.From) == 0 && len(sanitized.To) == 0 {
		sanitized.Disabled = true
	}
	if sanitized.MaxConcurrency < defaultMailMaxConcurrencyConstant {
		sanitized.MaxConcurrency = defaultMailMaxConcurrencyConstant
	}
	return sanitized
}

// MailTransport submits one message. Implementations must be safe for
// concurrent use.
type MailTransport interface {
	Send(executionContext context.Context, message *mail.Msg) error
}

// MailChannel sends the report as one plain-text message per recipient.
type MailChannel struct {
	configuration MailConfiguration
	transport     MailTransport
	logger        *zap.Logger
}

// NewMailChannel constructs a MailChannel.
func NewMailChannel(configuration MailConfiguration, transport MailTransport, logger *zap.Logger) *MailChannel {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MailChannel{configuration: configuration.Sanitize(), transport: transport, logger: logger}
}

// Name identifies the channel.
func (channel *MailChannel) Name() string {
	return mailChannelNameConstant
}

// Send validates every address, then submits the messages with at most
// max_concurrency submissions in flight. All recipients are attempted; their
// failures are combined.
func (channel *MailChannel) Send(executionContext context.Context, payload Payload) error {
	if channel.configuration.Disabled {
		channel.logger.Info(mailDisabledLogMessageConstant)
		return nil
	}
	if len(channel.configuration.To) == 0 {
		channel.logger.Info(mailNoRecipientsLogMessageConstant)
		return nil
	}

	messages, buildError := channel.buildMessages(payload)
	if buildError != nil {
		return buildError
	}

	sendSlots := semaphore.NewWeighted(int64(channel.configuration.MaxConcurrency))
	var (
		senders      sync.WaitGroup
		failureGuard sync.Mutex
		sendError    error
	)
	for recipientIndex, message := range messages {
		recipient := channel.configuration.To[recipientIndex]
		senders.Add(1)
		go func() {
			defer senders.Done()
			deliveryError := channel.deliver(executionContext, sendSlots, recipient, message)
			if deliveryError == nil {
				return
			}
			failureGuard.Lock()
			sendError = multierr.Append(sendError, deliveryError)
			failureGuard.Unlock()
		}()
	}
	senders.Wait()

	return sendError
}

func (channel *MailChannel) deliver(executionContext context.Context, sendSlots *semaphore.Weighted, recipient string, message *mail.Msg) error {
	if acquireError := sendSlots.Acquire(executionContext, 1); acquireError != nil {
		return fmt.Errorf(acquireSendSlotErrorTemplateConstant, acquireError)
	}
	defer sendSlots.Release(1)

	if transportError := channel.transport.Send(executionContext, message); transportError != nil {
		return fmt.Errorf(sendMailErrorTemplateConstant, recipient, transportError)
	}
	channel.logger.Info(mailSentLogMessageConstant, zap.String(recipientLogFieldConstant, recipient))
	return nil
}

func (channel *MailChannel) buildMessages(payload Payload) ([]*mail.Msg, error) {
	messages := make([]*mail.Msg, 0, len(channel.configuration.To))
	for _, recipient := range channel.configuration.To {
		message := mail.NewMsg()
		if fromError := message.From(channel.configuration.From); fromError != nil {
			return nil, fmt.Errorf(fromAddressErrorTemplateConstant, channel.configuration.From, fromError)
		}
		if toError := message.To(recipient); toError != nil {
			return nil, fmt.Errorf(toAddressErrorTemplateConstant, recipient, toError)
		}
		message.Subject(payload.Subject)
		message.SetUserAgent(mailUserAgentConstant)
		message.SetDate()
		message.SetBodyString(mail.TypeTextPlain, payload.Body)
		messages = append(messages, message)
	}
	return messages, nil
}
