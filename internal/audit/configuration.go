package audit

import (
	"strings"

	"github.com/temirov/periodic-audit/internal/execshell"
)

const defaultTriesConstant = 5

// ToolConfiguration captures the settings of the vulnerability auditor.
type ToolConfiguration struct {
	Executable string `mapstructure:"exe" yaml:"exe"`
	Database   string `mapstructure:"db" yaml:"db"`
	Debug      bool   `mapstructure:"debug" yaml:"debug"`
	Tries      int    `mapstructure:"tries" yaml:"tries"`
}

// WatchConfiguration lists the files and directories whose executables are audited.
type WatchConfiguration struct {
	Paths []string `mapstructure:"paths" yaml:"paths"`
}

// DefaultToolConfiguration returns baseline auditor settings.
func DefaultToolConfiguration() ToolConfiguration {
	return ToolConfiguration{
		Executable: string(execshell.CommandCargo),
		Tries:      defaultTriesConstant,
	}
}

// DefaultWatchConfiguration returns an empty watch list.
func DefaultWatchConfiguration() WatchConfiguration {
	return WatchConfiguration{Paths: []string{}}
}

// Sanitize trims whitespace and applies defaults to unset values.
func (configuration ToolConfiguration) Sanitize() ToolConfiguration {
	sanitized := configuration
	sanitized.Executable = strings.TrimSpace(configuration.Executable)
	if len(sanitized.Executable) == 0 {
		sanitized.Executable = string(execshell.CommandCargo)
	}
	sanitized.Database = strings.TrimSpace(configuration.Database)
	if sanitized.Tries == 0 {
		sanitized.Tries = defaultTriesConstant
	}
	return sanitized
}

// Sanitize drops blank entries while keeping order and duplicates.
func (configuration WatchConfiguration) Sanitize() WatchConfiguration {
	sanitized := make([]string, 0, len(configuration.Paths))
	for _, path := range configuration.Paths {
		trimmed := strings.TrimSpace(path)
		if len(trimmed) == 0 {
			continue
		}
		sanitized = append(sanitized, trimmed)
	}
	return WatchConfiguration{Paths: sanitized}
}
