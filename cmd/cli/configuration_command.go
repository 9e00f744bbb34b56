package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/temirov/periodic-audit/internal/dispatch"
)

const (
	configurationCommandUseConstant              = "config"
	configurationCommandShortDescriptionConstant = "Print the effective configuration as YAML"
	configurationEncodeErrorTemplateConstant     = "unable to encode configuration: %w"
	configurationIndentConstant                  = 2
)

// ConfigurationProvider returns the configuration resolved for the current invocation.
type ConfigurationProvider func() ApplicationConfiguration

func newConfigurationCommand(configurationProvider ConfigurationProvider) *cobra.Command {
	return &cobra.Command{
		Use:   configurationCommandUseConstant,
		Short: configurationCommandShortDescriptionConstant,
		Args:  cobra.NoArgs,
		RunE: func(command *cobra.Command, arguments []string) error {
			effectiveConfiguration := configurationProvider()
			effectiveConfiguration.Mail.Relay = dispatch.RedactRelay(effectiveConfiguration.Mail.Relay)

			encoder := yaml.NewEncoder(command.OutOrStdout())
			encoder.SetIndent(configurationIndentConstant)
			if encodeError := encoder.Encode(effectiveConfiguration); encodeError != nil {
				return fmt.Errorf(configurationEncodeErrorTemplateConstant, encodeError)
			}
			return encoder.Close()
		},
	}
}
