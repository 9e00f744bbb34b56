package dispatch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/wneessen/go-mail"
)

const (
	smtpSchemeConstant               = "smtp"
	smtpsSchemeConstant              = "smtps"
	tlsQueryParameterConstant        = "tls"
	tlsRequiredValueConstant         = "required"
	tlsOpportunisticValueConstant    = "opportunistic"
	localRelayHostConstant           = "localhost"
	plainSMTPPortConstant            = 25
	submissionPortConstant           = 587
	implicitTLSPortConstant          = 465
	relayParseErrorTemplateConstant  = "parse mail relay %q: %w"
	relayPortErrorTemplateConstant   = "invalid port %q"
	relaySchemeErrorTemplateConstant = "unsupported scheme %q"
	relayTLSErrorTemplateConstant    = "unsupported tls mode %q"
	smtpClientErrorTemplateConstant  = "create SMTP client for %s: %w"
)

// ErrRelayHostMissing indicates a relay URL without a host.
var ErrRelayHostMissing = errors.New("relay host missing")

// RelaySettings describes how to reach the SMTP relay.
type RelaySettings struct {
	Host        string
	Port        int
	TLSPolicy   mail.TLSPolicy
	ImplicitTLS bool
	Username    string
	Password    string
}

// ParseRelay converts a relay URL into settings. An empty relay selects an
// unencrypted session with localhost:25. `smtp://` URLs are unencrypted unless
// `?tls=opportunistic` or `?tls=required` asks for STARTTLS; `smtps://` uses
// implicit TLS.
func ParseRelay(relay string) (RelaySettings, error) {
	trimmedRelay := strings.TrimSpace(relay)
	if len(trimmedRelay) == 0 {
		return RelaySettings{Host: localRelayHostConstant, Port: plainSMTPPortConstant, TLSPolicy: mail.NoTLS}, nil
	}

	relayURL, parseError := url.Parse(trimmedRelay)
	if parseError != nil {
		return RelaySettings{}, fmt.Errorf(relayParseErrorTemplateConstant, trimmedRelay, parseError)
	}

	settings := RelaySettings{Host: relayURL.Hostname()}
	if len(settings.Host) == 0 {
		return RelaySettings{}, fmt.Errorf(relayParseErrorTemplateConstant, trimmedRelay, ErrRelayHostMissing)
	}

	tlsMode := strings.ToLower(relayURL.Query().Get(tlsQueryParameterConstant))
	switch strings.ToLower(relayURL.Scheme) {
	case smtpSchemeConstant:
		switch tlsMode {
		case "":
			settings.TLSPolicy = mail.NoTLS
			settings.Port = plainSMTPPortConstant
		case tlsOpportunisticValueConstant:
			settings.TLSPolicy = mail.TLSOpportunistic
			settings.Port = submissionPortConstant
		case tlsRequiredValueConstant:
			settings.TLSPolicy = mail.TLSMandatory
			settings.Port = submissionPortConstant
		default:
			return RelaySettings{}, fmt.Errorf(relayParseErrorTemplateConstant, trimmedRelay, fmt.Errorf(relayTLSErrorTemplateConstant, tlsMode))
		}
	case smtpsSchemeConstant:
		settings.ImplicitTLS = true
		settings.TLSPolicy = mail.TLSMandatory
		settings.Port = implicitTLSPortConstant
	default:
		return RelaySettings{}, fmt.Errorf(relayParseErrorTemplateConstant, trimmedRelay, fmt.Errorf(relaySchemeErrorTemplateConstant, relayURL.Scheme))
	}

	if portText := relayURL.Port(); len(portText) > 0 {
		port, portError := strconv.Atoi(portText)
		if portError != nil || port <= 0 {
			return RelaySettings{}, fmt.Errorf(relayParseErrorTemplateConstant, trimmedRelay, fmt.Errorf(relayPortErrorTemplateConstant, portText))
		}
		settings.Port = port
	}

	if relayURL.User != nil {
		settings.Username = relayURL.User.Username()
		settings.Password, _ = relayURL.User.Password()
	}

	return settings, nil
}

// SMTPTransport submits messages to an SMTP relay with go-mail. Every Send
// opens its own session, so one transport can serve concurrent senders.
type SMTPTransport struct {
	settings RelaySettings
}

// NewSMTPTransport constructs an SMTPTransport.
func NewSMTPTransport(settings RelaySettings) *SMTPTransport {
	return &SMTPTransport{settings: settings}
}

// Send dials the relay and submits message.
func (transport *SMTPTransport) Send(executionContext context.Context, message *mail.Msg) error {
	client, clientError := mail.NewClient(transport.settings.Host, transport.clientOptions()...)
	if clientError != nil {
		return fmt.Errorf(smtpClientErrorTemplateConstant, transport.settings.Host, clientError)
	}
	return client.DialAndSendWithContext(executionContext, message)
}

func (transport *SMTPTransport) clientOptions() []mail.Option {
	options := []mail.Option{
		mail.WithPort(transport.settings.Port),
		mail.WithTLSPolicy(transport.settings.TLSPolicy),
	}
	if transport.settings.ImplicitTLS {
		options = append(options, mail.WithSSL())
	}
	if len(transport.settings.Username) > 0 {
		options = append(options,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(transport.settings.Username),
			mail.WithPassword(transport.settings.Password),
		)
	}
	return options
}

// RedactRelay masks the password of a relay URL. Unparsable values are
// returned unchanged.
func RedactRelay(relay string) string {
	relayURL, parseError := url.Parse(relay)
	if parseError != nil || relayURL.User == nil {
		return relay
	}
	return relayURL.Redacted()
}
