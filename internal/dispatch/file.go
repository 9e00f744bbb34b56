package dispatch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/afero"
)

const (
	fileChannelNameConstant              = "file"
	reportFilePermissionsConstant        = 0o644
	reportTrailerSeparatorConstant       = "\n\n\n"
	reportTrailerRuleCharacterConstant   = "="
	reportTrailerRuleWidthConstant       = 58
	reportTrailerTerminatorConstant      = "\n\n"
	openReportFileErrorTemplateConstant  = "open report file '%s': %w"
	writeReportFileErrorTemplateConstant = "write report file '%s': %w"
	closeReportFileErrorTemplateConstant = "close report file '%s': %w"
)

// ErrReportFilePathNotConfigured indicates an enabled file channel without a path.
var ErrReportFilePathNotConfigured = errors.New("report_file.path is not configured")

var reportTrailer = reportTrailerSeparatorConstant + strings.Repeat(reportTrailerRuleCharacterConstant, reportTrailerRuleWidthConstant) + reportTrailerTerminatorConstant

// FileConfiguration describes the report file channel.
type FileConfiguration struct {
	Disabled bool   `mapstructure:"disabled" yaml:"disabled"`
	Append   bool   `mapstructure:"append" yaml:"append"`
	Path     string `mapstructure:"path" yaml:"path"`
}

// Sanitize trims the path; a blank path disables the channel.
func (configuration FileConfiguration) Sanitize() FileConfiguration {
	sanitized := configuration
	sanitized.Path = strings.TrimSpace(configuration.Path)
	if len(sanitized.Path) == 0 {
		sanitized.Disabled = true
	}
	return sanitized
}

// PathExpander rewrites user shortcuts in configured paths.
type PathExpander interface {
	Expand(candidatePath string) string
}

// FileChannel writes the report body followed by a separator rule to a file,
// either replacing its contents or appending to them.
type FileChannel struct {
	fileSystem    afero.Fs
	configuration FileConfiguration
	expander      PathExpander
}

// NewFileChannel constructs a FileChannel. A nil expander leaves the path
// untouched.
func NewFileChannel(fileSystem afero.Fs, configuration FileConfiguration, expander PathExpander) *FileChannel {
	if fileSystem == nil {
		fileSystem = afero.NewOsFs()
	}
	return &FileChannel{fileSystem: fileSystem, configuration: configuration, expander: expander}
}

// Name identifies the channel.
func (channel *FileChannel) Name() string {
	return fileChannelNameConstant
}

// Send writes payload.Body to the configured file.
func (channel *FileChannel) Send(_ context.Context, payload Payload) (sendError error) {
	reportPath := strings.TrimSpace(channel.configuration.Path)
	if len(reportPath) == 0 {
		return fmt.Errorf(openReportFileErrorTemplateConstant, reportPath, ErrReportFilePathNotConfigured)
	}
	if channel.expander != nil {
		reportPath = channel.expander.Expand(reportPath)
	}

	openFlags := os.O_CREATE | os.O_WRONLY
	if channel.configuration.Append {
		openFlags |= os.O_APPEND
	} else {
		openFlags |= os.O_TRUNC
	}

	reportFile, openError := channel.fileSystem.OpenFile(reportPath, openFlags, reportFilePermissionsConstant)
	if openError != nil {
		return fmt.Errorf(openReportFileErrorTemplateConstant, reportPath, openError)
	}
	defer func() {
		if closeError := reportFile.Close(); closeError != nil && sendError == nil {
			sendError = fmt.Errorf(closeReportFileErrorTemplateConstant, reportPath, closeError)
		}
	}()

	if _, writeError := reportFile.WriteString(payload.Body + reportTrailer); writeError != nil {
		return fmt.Errorf(writeReportFileErrorTemplateConstant, reportPath, writeError)
	}
	return nil
}
