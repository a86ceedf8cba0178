package cli

import (
	_ "embed"

	"github.com/tyemirov/rigup/internal/provision"
)

//go:embed config.yaml
var embeddedDefaultConfiguration []byte

// EmbeddedDefaultConfiguration returns the built-in configuration document and its format.
func EmbeddedDefaultConfiguration() ([]byte, string) {
	return embeddedDefaultConfiguration, configurationTypeConstant
}

// ApplicationConfiguration describes the persisted configuration for the CLI entrypoint.
type ApplicationConfiguration struct {
	Common ApplicationCommonConfiguration `mapstructure:"common"`
	Setup  provision.Configuration        `mapstructure:"setup"`
	Agent  ApplicationAgentConfiguration  `mapstructure:"agent"`
}

// ApplicationCommonConfiguration stores logging defaults shared across commands.
type ApplicationCommonConfiguration struct {
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
}

// ApplicationAgentConfiguration stores the status agent defaults.
type ApplicationAgentConfiguration struct {
	ListenAddress string `mapstructure:"listen"`
	LogDirectory  string `mapstructure:"log_dir"`
}
