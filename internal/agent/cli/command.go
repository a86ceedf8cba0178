// Package cli exposes the agent command running the status daemon.
package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tyemirov/rigup/internal/agent"
)

const (
	commandUseConstant              = "agent"
	commandShortDescriptionConstant = "Run the status agent serving the latest run report and task logs"
	commandLongDescriptionConstant  = "agent serves the persisted run report and per-task logs over HTTP until interrupted. It is normally started detached by a successful setup run."
	listenFlagNameConstant          = "listen"
	listenFlagUsageConstant         = "Address the status agent listens on."
	logDirFlagNameConstant          = "log-dir"
	logDirFlagUsageConstant         = "Directory holding the run report and per-task logs."
	loggerProviderMissingMessage    = "agent command logger provider not configured"
	configurationProviderMissing    = "agent command configuration provider not configured"
)

var (
	// ErrLoggerProviderNotConfigured indicates the logger provider was missing.
	ErrLoggerProviderNotConfigured = errors.New(loggerProviderMissingMessage)
	// ErrConfigurationProviderNotConfigured indicates the configuration provider was missing.
	ErrConfigurationProviderNotConfigured = errors.New(configurationProviderMissing)
)

// AgentRunner serves the status endpoints until its context is cancelled.
type AgentRunner interface {
	Run(executionContext context.Context) error
}

// ServerFactory builds the agent server executed by the command.
type ServerFactory func(logger *zap.Logger, options agent.ServerOptions) (AgentRunner, error)

// CommandBuilder assembles the agent command.
type CommandBuilder struct {
	LoggerProvider        func() *zap.Logger
	ConfigurationProvider func() agent.ServerOptions
	ServerFactory         ServerFactory
}

// Build returns the configured agent command.
func (builder *CommandBuilder) Build() (*cobra.Command, error) {
	if builder.LoggerProvider == nil {
		return nil, ErrLoggerProviderNotConfigured
	}
	if builder.ConfigurationProvider == nil {
		return nil, ErrConfigurationProviderNotConfigured
	}

	serverFactory := builder.ServerFactory
	if serverFactory == nil {
		serverFactory = func(logger *zap.Logger, options agent.ServerOptions) (AgentRunner, error) {
			return agent.NewServer(logger, options)
		}
	}

	agentCommand := &cobra.Command{
		Use:           commandUseConstant,
		Short:         commandShortDescriptionConstant,
		Long:          commandLongDescriptionConstant,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(command *cobra.Command, _ []string) error {
			options := builder.ConfigurationProvider()

			if listenAddress, listenError := command.Flags().GetString(listenFlagNameConstant); listenError == nil && command.Flags().Changed(listenFlagNameConstant) {
				options.ListenAddress = listenAddress
			}
			if logDirectory, logDirError := command.Flags().GetString(logDirFlagNameConstant); logDirError == nil && command.Flags().Changed(logDirFlagNameConstant) {
				options.LogDirectory = logDirectory
			}

			server, serverError := serverFactory(builder.LoggerProvider(), options)
			if serverError != nil {
				return serverError
			}

			return server.Run(command.Context())
		},
	}

	agentCommand.Flags().String(listenFlagNameConstant, "", listenFlagUsageConstant)
	agentCommand.Flags().String(logDirFlagNameConstant, "", logDirFlagUsageConstant)

	return agentCommand, nil
}
