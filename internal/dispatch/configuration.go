package dispatch

import (
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

// Configuration groups the settings of every dispatch channel.
type Configuration struct {
	Mail          MailConfiguration    `mapstructure:"mail" yaml:"mail"`
	ReportFile    FileConfiguration    `mapstructure:"report_file" yaml:"report_file"`
	ReportCommand CommandConfiguration `mapstructure:"report_command" yaml:"report_command"`
}

// DefaultConfiguration returns dispatch settings in which every channel is
// inactive: mail lacks a sender, the file channel a path and the command
// channel an executable.
func DefaultConfiguration() Configuration {
	return Configuration{Mail: DefaultMailConfiguration()}
}

// Sanitize normalizes every channel section.
func (configuration Configuration) Sanitize() Configuration {
	return Configuration{
		Mail:          configuration.Mail.Sanitize(),
		ReportFile:    configuration.ReportFile.Sanitize(),
		ReportCommand: configuration.ReportCommand.Sanitize(),
	}
}

// ChannelDependencies supplies the collaborators channels are built from.
type ChannelDependencies struct {
	FileSystem    afero.Fs
	MailTransport MailTransport
	Executor      CommandExecutor
	PathExpander  PathExpander
	Logger        *zap.Logger
}

// BuildChannels constructs the configured channels. The mail channel is always
// present and reports its own disabled state; the file and command channels
// are included only when enabled.
func BuildChannels(configuration Configuration, dependencies ChannelDependencies) ([]Channel, error) {
	sanitized := configuration.Sanitize()

	mailTransport := dependencies.MailTransport
	if mailTransport == nil && !sanitized.Mail.Disabled {
		relaySettings, relayError := ParseRelay(sanitized.Mail.Relay)
		if relayError != nil {
			return nil, relayError
		}
		mailTransport = NewSMTPTransport(relaySettings)
	}

	channels := []Channel{NewMailChannel(sanitized.Mail, mailTransport, dependencies.Logger)}
	if !sanitized.ReportFile.Disabled {
		channels = append(channels, NewFileChannel(dependencies.FileSystem, sanitized.ReportFile, dependencies.PathExpander))
	}
	if !sanitized.ReportCommand.Disabled {
		channels = append(channels, NewCommandChannel(dependencies.Executor, sanitized.ReportCommand, dependencies.PathExpander))
	}
	return channels, nil
}
