package provision

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/tyemirov/rigup/internal/install"
)

const (
	defaultWorkDirectoryNameConstant   = "rigup"
	defaultLockFileNameConstant        = "rigup-apt.lock"
	defaultLogDirectoryNameConstant    = ".rigup"
	defaultLogSubdirectoryNameConstant = "logs"
	fallbackLogDirectoryNameConstant   = "rigup-logs"
	homeDirectoryPrefixConstant        = "~/"
)

// Configuration carries the settings for one provisioning run.
type Configuration struct {
	WorkDirectory string                `mapstructure:"work_dir"`
	LogDirectory  string                `mapstructure:"log_dir"`
	LockFilePath  string                `mapstructure:"lock_file"`
	OnlyTasks     []string              `mapstructure:"only"`
	SkipDaemon    bool                  `mapstructure:"skip_daemon"`
	Versions      VersionConfiguration  `mapstructure:"versions"`
}

// VersionConfiguration mirrors the configurable tool version pins.
type VersionConfiguration struct {
	Nvm           string `mapstructure:"nvm"`
	Node          string `mapstructure:"node"`
	Compose       string `mapstructure:"compose"`
	DockerPackage string `mapstructure:"docker_package"`
}

// DefaultConfiguration returns the built-in run settings.
func DefaultConfiguration() Configuration {
	return Configuration{
		WorkDirectory: filepath.Join(os.TempDir(), defaultWorkDirectoryNameConstant),
		LogDirectory:  defaultLogDirectoryPath(),
		LockFilePath:  filepath.Join(os.TempDir(), defaultLockFileNameConstant),
	}
}

// Sanitize fills empty fields with defaults and expands a leading "~/" in the
// directory settings.
func (configuration Configuration) Sanitize() Configuration {
	defaults := DefaultConfiguration()

	configuration.WorkDirectory = expandHomePrefix(strings.TrimSpace(configuration.WorkDirectory))
	if len(configuration.WorkDirectory) == 0 {
		configuration.WorkDirectory = defaults.WorkDirectory
	}

	configuration.LogDirectory = expandHomePrefix(strings.TrimSpace(configuration.LogDirectory))
	if len(configuration.LogDirectory) == 0 {
		configuration.LogDirectory = defaults.LogDirectory
	}

	configuration.LockFilePath = expandHomePrefix(strings.TrimSpace(configuration.LockFilePath))
	if len(configuration.LockFilePath) == 0 {
		configuration.LockFilePath = defaults.LockFilePath
	}

	return configuration
}

// ToolVersions resolves the configured pins over the built-in defaults.
func (configuration Configuration) ToolVersions() install.ToolVersions {
	toolVersions := install.DefaultToolVersions()
	if pinned := strings.TrimSpace(configuration.Versions.Nvm); len(pinned) > 0 {
		toolVersions.NvmVersion = pinned
	}
	if pinned := strings.TrimSpace(configuration.Versions.Node); len(pinned) > 0 {
		toolVersions.NodeVersion = pinned
	}
	if pinned := strings.TrimSpace(configuration.Versions.Compose); len(pinned) > 0 {
		toolVersions.ComposeVersion = pinned
	}
	if pinned := strings.TrimSpace(configuration.Versions.DockerPackage); len(pinned) > 0 {
		toolVersions.DockerPackageVersion = pinned
	}
	return toolVersions
}

func defaultLogDirectoryPath() string {
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil || len(homeDirectory) == 0 {
		return filepath.Join(os.TempDir(), fallbackLogDirectoryNameConstant)
	}
	return filepath.Join(homeDirectory, defaultLogDirectoryNameConstant, defaultLogSubdirectoryNameConstant)
}

func expandHomePrefix(pathValue string) string {
	if !strings.HasPrefix(pathValue, homeDirectoryPrefixConstant) {
		return pathValue
	}
	homeDirectory, homeError := os.UserHomeDir()
	if homeError != nil || len(homeDirectory) == 0 {
		return pathValue
	}
	return filepath.Join(homeDirectory, strings.TrimPrefix(pathValue, homeDirectoryPrefixConstant))
}
