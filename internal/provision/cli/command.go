// Package cli exposes the setup command wiring the provisioning service into
// the application command tree.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rigup/internal/provision"
	"github.com/tyemirov/rigup/internal/utils"
)

const (
	commandUseConstant              = "setup"
	commandShortDescriptionConstant = "Provision the host by running all installer tasks concurrently"
	commandLongDescriptionConstant  = "setup launches every configured installer task concurrently, streams their output to per-task log files and the console, prints one result line per task, and starts the status agent when every task succeeds."
	onlyFlagNameConstant            = "only"
	onlyFlagUsageConstant           = "Run only the named tasks (repeatable)."
	skipDaemonFlagNameConstant      = "skip-daemon"
	skipDaemonFlagUsageConstant     = "Do not start the status agent after a successful run."
	workDirFlagNameConstant         = "work-dir"
	workDirFlagUsageConstant        = "Scratch directory for transient downloads."
	logDirFlagNameConstant          = "log-dir"
	logDirFlagUsageConstant         = "Directory receiving per-task logs and the run report."
	loggerProviderMissingMessage    = "setup command logger provider not configured"
	configurationProviderMissing    = "setup command configuration provider not configured"
)

var (
	// ErrLoggerProviderNotConfigured indicates the logger provider was missing.
	ErrLoggerProviderNotConfigured = errors.New(loggerProviderMissingMessage)
	// ErrConfigurationProviderNotConfigured indicates the configuration provider was missing.
	ErrConfigurationProviderNotConfigured = errors.New(configurationProviderMissing)
)

// SetupRunner executes one provisioning run.
type SetupRunner interface {
	Run(executionContext context.Context) error
}

// ServiceFactory builds the provisioning service executed by the command.
type ServiceFactory func(dependencies provision.ServiceDependencies, configuration provision.Configuration) (SetupRunner, error)

// CommandBuilder assembles the setup command.
type CommandBuilder struct {
	LoggerProvider               func() *zap.Logger
	HumanReadableLoggingProvider func() bool
	ConfigurationProvider        func() provision.Configuration
	ServiceFactory               ServiceFactory
}

// Build returns the configured setup command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, ErrLoggerProviderNotConfigured
	}
	if builder.ConfigurationProvider == nil {
		return nil, ErrConfigurationProviderNotConfigured
	}

	serviceFactory := builder.ServiceFactory
	if serviceFactory == nil {
		serviceFactory = func(dependencies provision.ServiceDependencies, configuration provision.Configuration) (SetupRunner, error) {
			return provision.NewService(dependencies, configuration)
		}
	}

	setupCommand := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, _ []string) error {
			configuration := builder.ConfigurationProvider()

			if onlyTasks, onlyChanged, onlyError := stringSliceFlag(command, onlyFlagNameConstant); onlyError == nil && onlyChanged {
				configuration.OnlyTasks = onlyTasks
			}
			if skipDaemon, skipChanged, skipError := boolFlag(command, skipDaemonFlagNameConstant); skipError == nil && skipChanged {
				configuration.SkipDaemon = skipDaemon
			}
			if workDirectory, workChanged, workError := stringFlag(command, workDirFlagNameConstant); workError == nil && workChanged {
				configuration.WorkDirectory = workDirectory
			}
			if logDirectory, logChanged, logError := stringFlag(command, logDirFlagNameConstant); logError == nil && logChanged {
				configuration.LogDirectory = logDirectory
			}

			humanReadableLogging := false
			if builder.HumanReadableLoggingProvider != nil {
				humanReadableLogging = builder.HumanReadableLoggingProvider()
			}

			service, serviceError := serviceFactory(provision.ServiceDependencies{
				Logger:               builder.LoggerProvider(),
				Output:               utils.NewFlushingWriter(command.OutOrStdout()),
				HumanReadableLogging: humanReadableLogging,
			}, configuration)
			if serviceError != nil {
				return serviceError
			}

			return service.Run(command.Context())
		},
	}

	setupCommand.Flags().StringSlice(onlyFlagNameConstant, nil, onlyFlagUsageConstant)
	setupCommand.Flags().Bool(skipDaemonFlagNameConstant, false, skipDaemonFlagUsageConstant)
	setupCommand.Flags().String(workDirFlagNameConstant, "", workDirFlagUsageConstant)
	setupCommand.Flags().String(logDirFlagNameConstant, "", logDirFlagUsageConstant)

	return setupCommand, nil
}

func boolFlag(command *cobra.Command, flagName string) (bool, bool, error) {
	flagValue, flagError := command.Flags().GetBool(flagName)
	if flagError != nil {
		return false, false, flagError
	}
	return flagValue, command.Flags().Changed(flagName), nil
}

func stringFlag(command *cobra.Command, flagName string) (string, bool, error) {
	flagValue, flagError := command.Flags().GetString(flagName)
	if flagError != nil {
		return "", false, flagError
	}
	return flagValue, command.Flags().Changed(flagName), nil
}

func stringSliceFlag(command *cobra.Command, flagName string) ([]string, bool, error) {
	flagValues, flagError := command.Flags().GetStringSlice(flagName)
	if flagError != nil {
		return nil, false, flagError
	}
	return flagValues, command.Flags().Changed(flagName), nil
}
