package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/cenkalti/backoff/v4"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/temirov/periodic-audit/internal/audit"
	"github.com/temirov/periodic-audit/internal/dispatch"
	"github.com/temirov/periodic-audit/internal/execshell"
	"github.com/temirov/periodic-audit/internal/orchestration"
	"github.com/temirov/periodic-audit/internal/readiness"
	"github.com/temirov/periodic-audit/internal/report"
	"github.com/temirov/periodic-audit/internal/retry"
	"github.com/temirov/periodic-audit/internal/ui"
	"github.com/temirov/periodic-audit/internal/utils"
	pathutils "github.com/temirov/periodic-audit/internal/utils/path"
)

const (
	applicationNameConstant                 = "periodic-audit"
	applicationShortDescriptionConstant     = "Audit installed Rust binaries for known vulnerabilities"
	applicationLongDescriptionConstant      = "periodic-audit runs cargo audit over the configured executables, retries failed audits with exponential backoff and delivers the report by e-mail, to a file or to a command."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML, TOML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	environmentFileFlagNameConstant         = "env-file"
	environmentFileFlagUsageConstant        = "Load environment overrides from a dotenv file (repeatable)."
	noSystemdFlagNameConstant               = "no-systemd"
	noSystemdFlagUsageConstant              = "Do not notify systemd when the run completes."
	versionFlagNameConstant                 = "version"
	versionFlagUsageConstant                = "Print the version and exit."
	versionOutputTemplateConstant           = "%s version: %s\n"
	unknownVersionConstant                  = "(devel)"
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	environmentPrefixConstant               = "PERIODICAUDIT"
	configurationNameConstant               = "periodic-audit"
	configurationTypeConstant               = ""
	embeddedConfigurationTypeConstant       = "yaml"
	systemConfigurationSearchPathConstant   = "/etc"
	currentConfigurationSearchPathConstant  = "."
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	executorCreationErrorTemplateConstant   = "unable to create command executor: %w"
	channelCreationErrorTemplateConstant    = "unable to configure report channels: %w"
	runnerCreationErrorTemplateConstant     = "unable to assemble audit run: %w"
	dispatchFailedErrorTemplateConstant     = "report dispatch failed: %w"
	loggerNotInitializedMessageConstant     = "logger not initialized"
)

// ErrAuditFailed indicates that the final report of a run is a failed report.
var ErrAuditFailed = errors.New("audit failed")

// ApplicationConfiguration describes the persisted configuration of periodic-audit.
type ApplicationConfiguration struct {
	Common                 ApplicationCommonConfiguration `mapstructure:"common" yaml:"common"`
	Watch                  audit.WatchConfiguration       `mapstructure:"watch" yaml:"watch"`
	CargoAudit             audit.ToolConfiguration        `mapstructure:"cargo_audit" yaml:"cargo_audit"`
	dispatch.Configuration `mapstructure:",squash" yaml:",inline"`
}

// ApplicationCommonConfiguration stores logging configuration.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Application wires the Cobra root command, configuration loader, and structured logger.
type Application struct {
	rootCommand            *cobra.Command
	configurationLoader    *utils.ConfigurationLoader
	loggerFactory          *utils.LoggerFactory
	logger                 *zap.Logger
	configuration          ApplicationConfiguration
	configurationMetadata  utils.LoadedConfiguration
	configurationFilePath  string
	logLevelFlagValue      string
	logFormatFlagValue     string
	environmentFilePaths   []string
	noSystemdFlagValue     bool
	versionFlagValue       bool
	commandContextAccessor utils.CommandContextAccessor
	versionResolver        func(context.Context) string
	exitFunction           func(int)
	fileSystem             afero.Fs
	commandRunner          execshell.CommandRunner
	mailTransport          dispatch.MailTransport
	retryTimer             backoff.Timer
	notifier               orchestration.ReadinessNotifier
	clock                  report.Clock
	logWriter              io.Writer
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		configurationSearchPaths(),
	)
	configurationLoader.SetEmbeddedConfiguration(EmbeddedDefaultConfiguration())

	application := &Application{
		configurationLoader:    configurationLoader,
		loggerFactory:          utils.NewLoggerFactory(),
		logger:                 zap.NewNop(),
		commandContextAccessor: utils.NewCommandContextAccessor(),
		versionResolver:        resolveBuildVersion,
		exitFunction:           os.Exit,
		fileSystem:             afero.NewOsFs(),
		commandRunner:          execshell.NewOSCommandRunner(),
		clock:                  report.SystemClock{},
		logWriter:              os.Stderr,
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			if application.versionFlagValue {
				application.printVersion(command)
				return nil
			}
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runAuditCycle(command)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.PersistentFlags().StringArrayVar(&application.environmentFilePaths, environmentFileFlagNameConstant, nil, environmentFileFlagUsageConstant)
	cobraCommand.Flags().BoolVar(&application.noSystemdFlagValue, noSystemdFlagNameConstant, false, noSystemdFlagUsageConstant)
	cobraCommand.PersistentFlags().BoolVar(&application.versionFlagValue, versionFlagNameConstant, false, versionFlagUsageConstant)

	configurationCommand := newConfigurationCommand(func() ApplicationConfiguration {
		return application.configuration
	})
	cobraCommand.AddCommand(configurationCommand)

	application.rootCommand = cobraCommand

	return application
}

// Execute runs the configured Cobra command hierarchy and ensures logger flushing.
func (application *Application) Execute() error {
	executionError := application.rootCommand.Execute()
	if syncError := application.flushLogger(); syncError != nil {
		return fmt.Errorf(loggerSyncErrorTemplateConstant, syncError)
	}
	return executionError
}

// Execute builds a fresh application instance and executes the root command hierarchy.
func Execute() error {
	return NewApplication().Execute()
}

func configurationSearchPaths() []string {
	searchPaths := []string{systemConfigurationSearchPathConstant}
	if userConfigurationDirectory, directoryError := os.UserConfigDir(); directoryError == nil {
		searchPaths = append(searchPaths, filepath.Join(userConfigurationDirectory, applicationNameConstant))
	}
	return append(searchPaths, currentConfigurationSearchPathConstant)
}

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:  string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant: string(utils.LogFormatStructured),
	}

	application.configurationLoader.SetEnvironmentFiles(application.environmentFilePaths...)
	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration
	application.configuration.Watch = application.configuration.Watch.Sanitize()
	application.configuration.CargoAudit = application.configuration.CargoAudit.Sanitize()
	application.configuration.Configuration = application.configuration.Configuration.Sanitize()

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLoggerForWriter(
		utils.LogLevel(strings.TrimSpace(application.configuration.Common.LogLevel)),
		utils.LogFormat(strings.TrimSpace(application.configuration.Common.LogFormat)),
		application.logWriter,
	)
	if loggerCreationError != nil {
		return fmt.Errorf(loggerCreationErrorTemplateConstant, loggerCreationError)
	}

	application.logger = logger

	application.logger.Info(
		configurationInitializedMessageConstant,
		zap.String(configurationLogLevelFieldConstant, application.configuration.Common.LogLevel),
		zap.String(configurationLogFormatFieldConstant, application.configuration.Common.LogFormat),
		zap.String(configurationFileFieldConstant, application.configurationMetadata.ConfigFileUsed),
	)

	if command != nil {
		updatedContext := application.commandContextAccessor.WithConfigurationFilePath(
			command.Context(),
			application.configurationMetadata.ConfigFileUsed,
		)
		command.SetContext(updatedContext)
		if rootCommand := command.Root(); rootCommand != nil {
			rootCommand.SetContext(updatedContext)
		}
	}

	return nil
}

func (application *Application) runAuditCycle(command *cobra.Command) error {
	if application.versionFlagValue {
		return nil
	}
	if application.logger == nil {
		return errors.New(loggerNotInitializedMessageConstant)
	}

	runner, assemblyError := application.buildRunner()
	if assemblyError != nil {
		return assemblyError
	}

	signalContext, stopSignals := signal.NotifyContext(command.Context(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	outcome, runError := runner.Run(signalContext)
	if runError != nil {
		return runError
	}

	var runFailure error
	if outcome.Report.Failed() {
		runFailure = multierr.Append(runFailure, ErrAuditFailed)
	}
	if outcome.DispatchError != nil {
		runFailure = multierr.Append(runFailure, fmt.Errorf(dispatchFailedErrorTemplateConstant, outcome.DispatchError))
	}
	return runFailure
}

func (application *Application) buildRunner() (*orchestration.Runner, error) {
	homeExpander := pathutils.NewHomeExpander()

	auditorExecutor, auditorExecutorError := execshell.NewShellExecutor(
		application.logger,
		application.commandRunner,
		ui.NewConsoleCommandEventLogger(application.logger, ui.WithNonZeroExitAsInfo()),
	)
	if auditorExecutorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, auditorExecutorError)
	}

	reportCommandExecutor, reportCommandExecutorError := execshell.NewShellExecutor(
		application.logger,
		application.commandRunner,
		ui.NewConsoleCommandEventLogger(application.logger),
	)
	if reportCommandExecutorError != nil {
		return nil, fmt.Errorf(executorCreationErrorTemplateConstant, reportCommandExecutorError)
	}

	channels, channelsError := dispatch.BuildChannels(application.configuration.Configuration, dispatch.ChannelDependencies{
		FileSystem:    application.fileSystem,
		MailTransport: application.mailTransport,
		Executor:      reportCommandExecutor,
		PathExpander:  homeExpander,
		Logger:        application.logger,
	})
	if channelsError != nil {
		return nil, fmt.Errorf(channelCreationErrorTemplateConstant, channelsError)
	}

	service := audit.NewService(
		audit.NewBinaryEnumerator(application.fileSystem, homeExpander),
		audit.NewInvoker(auditorExecutor, application.configuration.CargoAudit, application.logger),
		application.clock,
		application.logger,
	)

	var schedulerOptions []retry.Option
	if application.retryTimer != nil {
		schedulerOptions = append(schedulerOptions, retry.WithTimer(application.retryTimer))
	}

	runner, runnerError := orchestration.NewRunner(application.configuration.Watch.Paths, orchestration.Dependencies{
		Attempts:   service,
		Scheduler:  retry.NewScheduler(application.configuration.CargoAudit.Tries, application.logger, schedulerOptions...),
		Dispatcher: dispatch.NewDispatcher(application.configuration.Mail.Subject, channels, application.logger),
		Notifier:   application.readinessNotifier(),
		Logger:     application.logger,
	})
	if runnerError != nil {
		return nil, fmt.Errorf(runnerCreationErrorTemplateConstant, runnerError)
	}
	return runner, nil
}

func (application *Application) readinessNotifier() orchestration.ReadinessNotifier {
	switch {
	case application.noSystemdFlagValue:
		return readiness.NoopNotifier{}
	case application.notifier != nil:
		return application.notifier
	default:
		return readiness.NewSystemdNotifier(application.logger)
	}
}

func (application *Application) printVersion(command *cobra.Command) {
	executionContext := context.Background()
	if command != nil {
		executionContext = command.Context()
	}
	fmt.Fprintf(os.Stdout, versionOutputTemplateConstant, applicationNameConstant, application.versionResolver(executionContext))
	application.exitFunction(0)
}

func resolveBuildVersion(context.Context) string {
	buildInformation, available := debug.ReadBuildInfo()
	if !available || len(buildInformation.Main.Version) == 0 {
		return unknownVersionConstant
	}
	return buildInformation.Main.Version
}

func (application *Application) flushLogger() error {
	if syncError := application.syncLoggerInstance(application.logger); syncError != nil {
		return syncError
	}
	return nil
}

func (application *Application) syncLoggerInstance(logger *zap.Logger) error {
	if logger == nil {
		return nil
	}

	syncError := logger.Sync()
	switch {
	case syncError == nil:
		return nil
	case errors.Is(syncError, syscall.ENOTSUP):
		return nil
	case errors.Is(syncError, syscall.EINVAL):
		return nil
	default:
		return syncError
	}
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}

	flagSetsToInspect := []*pflag.FlagSet{
		command.PersistentFlags(),
		command.InheritedFlags(),
	}

	rootCommand := command.Root()
	if rootCommand != nil {
		flagSetsToInspect = append(flagSetsToInspect, rootCommand.PersistentFlags())
	}

	for _, flagSet := range flagSetsToInspect {
		if flagSet == nil {
			continue
		}

		if flagSet.Changed(flagName) {
			return true
		}
	}

	return false
}
