package cli

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tidycloud/bbsweep/internal/bitbucket"
	"github.com/tidycloud/bbsweep/internal/console"
	"github.com/tidycloud/bbsweep/internal/protection"
	"github.com/tidycloud/bbsweep/internal/sweep"
	"github.com/tidycloud/bbsweep/internal/utils"
)

const (
	applicationNameConstant                 = "bbsweep"
	applicationShortDescriptionConstant     = "Interactive Bitbucket branch sweeper"
	applicationLongDescriptionConstant      = "bbsweep lists and deletes Bitbucket Server branches, sparing the default branch and an operator-maintained protected list."
	configFileFlagNameConstant              = "config"
	configFileFlagUsageConstant             = "Optional path to a configuration file (YAML or JSON)."
	logLevelFlagNameConstant                = "log-level"
	logLevelFlagUsageConstant               = "Override the configured log level."
	logFormatFlagNameConstant               = "log-format"
	logFormatFlagUsageConstant              = "Override the configured log format (structured or console)."
	filenameFlagNameConstant                = "filename"
	filenameFlagUsageConstant               = "Path to the file listing branches that must never be deleted."
	commonConfigurationKeyConstant          = "common"
	commonLogLevelConfigKeyConstant         = commonConfigurationKeyConstant + ".log_level"
	commonLogFormatConfigKeyConstant        = commonConfigurationKeyConstant + ".log_format"
	bitbucketConfigurationKeyConstant       = "bitbucket"
	bitbucketVerifyTLSConfigKeyConstant     = bitbucketConfigurationKeyConstant + ".verify_tls"
	environmentPrefixConstant               = "BBSWEEP"
	configurationNameConstant               = "configuration"
	configurationTypeConstant               = "yaml"
	configurationInitializedMessageConstant = "configuration initialized"
	configurationLogLevelFieldConstant      = "log_level"
	configurationLogFormatFieldConstant     = "log_format"
	configurationFileFieldConstant          = "config_file"
	configurationLoadErrorTemplateConstant  = "unable to load configuration: %w"
	loggerCreationErrorTemplateConstant     = "unable to create logger: %w"
	loggerSyncErrorTemplateConstant         = "unable to flush logger: %w"
	missingServiceURLMessageConstant        = "bitbucket url must be configured before a session can be created"
	clientCreationErrorTemplateConstant     = "unable to create bitbucket session: %w"
	serviceCreationErrorTemplateConstant    = "unable to create sweep service: %w"
	consoleCreationErrorTemplateConstant    = "unable to create interactive console: %w"
	defaultConfigurationSearchPathConstant  = "."
	defaultVerifyTLSValueConstant           = false
)

// ErrMissingServiceURL indicates the configuration held no API base address.
var ErrMissingServiceURL = errors.New(missingServiceURLMessageConstant)

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common    ApplicationCommonConfiguration `mapstructure:"common"`
	Bitbucket BitbucketConfiguration         `mapstructure:"bitbucket"`
	Sweep     SweepConfiguration             `mapstructure:"sweep"`
}

// ApplicationCommonConfiguration stores logging configuration shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// BitbucketConfiguration stores the remote service address and credentials.
type BitbucketConfiguration struct {
	URL       string `mapstructure:"url"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	Token     string `mapstructure:"token"`
	VerifyTLS bool   `mapstructure:"verify_tls"`
}

// SweepConfiguration seeds the interactive session with default identifiers.
type SweepConfiguration struct {
	Project       string `mapstructure:"project"`
	Repository    string `mapstructure:"repository"`
	ProtectedFile string `mapstructure:"protected_file"`
}

// Application wires the Cobra root command, configuration loader, structured logger, and console.
type Application struct {
	rootCommand           *cobra.Command
	configurationLoader   *utils.ConfigurationLoader
	loggerFactory         *utils.LoggerFactory
	logger                *zap.Logger
	configuration         ApplicationConfiguration
	configurationMetadata utils.LoadedConfiguration
	configurationFilePath string
	logLevelFlagValue     string
	logFormatFlagValue    string
	protectedFileFlag     string
}

// NewApplication assembles a fully wired CLI application instance.
func NewApplication() *Application {
	configurationLoader := utils.NewConfigurationLoader(
		configurationNameConstant,
		configurationTypeConstant,
		environmentPrefixConstant,
		[]string{defaultConfigurationSearchPathConstant},
	)

	application := &Application{
		configurationLoader: configurationLoader,
		loggerFactory:       utils.NewLoggerFactory(),
		logger:              zap.NewNop(),
	}

	cobraCommand := &cobra.Command{
		Use:           applicationNameConstant,
		Short:         applicationShortDescriptionConstant,
		Long:          applicationLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(command *cobra.Command, arguments []string) error {
			return application.initializeConfiguration(command)
		},
		RunE: func(command *cobra.Command, arguments []string) error {
			return application.runInteractiveConsole(command)
		},
	}

	cobraCommand.SetContext(context.Background())
	cobraCommand.PersistentFlags().StringVar(&application.configurationFilePath, configFileFlagNameConstant, "", configFileFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logLevelFlagValue, logLevelFlagNameConstant, "", logLevelFlagUsageConstant)
	cobraCommand.PersistentFlags().StringVar(&application.logFormatFlagValue, logFormatFlagNameConstant, "", logFormatFlagUsageConstant)
	cobraCommand.Flags().StringVar(&application.protectedFileFlag, filenameFlagNameConstant, "", filenameFlagUsageConstant)

	cobraCommand.AddCommand(newVersionCommand())

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

func (application *Application) initializeConfiguration(command *cobra.Command) error {
	defaultValues := map[string]any{
		commonLogLevelConfigKeyConstant:     string(utils.LogLevelInfo),
		commonLogFormatConfigKeyConstant:    string(utils.LogFormatConsole),
		bitbucketVerifyTLSConfigKeyConstant: defaultVerifyTLSValueConstant,
	}

	loadedConfiguration, loadError := application.configurationLoader.LoadConfiguration(application.configurationFilePath, defaultValues, &application.configuration)
	if loadError != nil {
		return fmt.Errorf(configurationLoadErrorTemplateConstant, loadError)
	}

	application.configurationMetadata = loadedConfiguration

	if application.persistentFlagChanged(command, logLevelFlagNameConstant) {
		application.configuration.Common.LogLevel = application.logLevelFlagValue
	}

	if application.persistentFlagChanged(command, logFormatFlagNameConstant) {
		application.configuration.Common.LogFormat = application.logFormatFlagValue
	}

	logger, loggerCreationError := application.loggerFactory.CreateLogger(
		utils.LogLevel(application.configuration.Common.LogLevel),
		utils.LogFormat(application.configuration.Common.LogFormat),
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

	return nil
}

func (application *Application) runInteractiveConsole(command *cobra.Command) error {
	serviceURL := strings.TrimSpace(application.configuration.Bitbucket.URL)
	if len(serviceURL) == 0 {
		return ErrMissingServiceURL
	}

	branchClient, clientError := bitbucket.NewClient(bitbucket.ClientOptions{
		BaseURL:   serviceURL,
		Username:  application.configuration.Bitbucket.Username,
		Password:  application.configuration.Bitbucket.Password,
		Token:     application.configuration.Bitbucket.Token,
		VerifyTLS: application.configuration.Bitbucket.VerifyTLS,
	})
	if clientError != nil {
		return fmt.Errorf(clientCreationErrorTemplateConstant, clientError)
	}

	outputWriter := command.OutOrStdout()
	protectedListLoader := protection.NewLoader(application.logger, outputWriter)

	sweepService, serviceError := sweep.NewService(branchClient, protectedListLoader, application.logger, outputWriter, sweep.SystemClock{})
	if serviceError != nil {
		return fmt.Errorf(serviceCreationErrorTemplateConstant, serviceError)
	}

	initialState := console.SessionState{
		ProjectKey:        strings.TrimSpace(application.configuration.Sweep.Project),
		RepositorySlug:    strings.TrimSpace(application.configuration.Sweep.Repository),
		ProtectedFilePath: strings.TrimSpace(application.configuration.Sweep.ProtectedFile),
	}
	if command.Flags().Changed(filenameFlagNameConstant) {
		initialState.ProtectedFilePath = strings.TrimSpace(application.protectedFileFlag)
	}

	menuController, controllerError := console.NewController(sweepService, command.InOrStdin(), outputWriter, application.logger, initialState)
	if controllerError != nil {
		return fmt.Errorf(consoleCreationErrorTemplateConstant, controllerError)
	}

	return menuController.Run(command.Context())
}

func (application *Application) persistentFlagChanged(command *cobra.Command, flagName string) bool {
	if command == nil {
		return false
	}
	return command.PersistentFlags().Changed(flagName) || command.Root().PersistentFlags().Changed(flagName)
}

func (application *Application) flushLogger() error {
	if application.logger == nil {
		return nil
	}

	syncError := application.logger.Sync()
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
