package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tyemirov/rigup/internal/execshell"
)

const (
	nodeTaskNameConstant               = "node"
	nodeScratchDirectoryNameConstant   = "node"
	nvmInstallScriptURLTemplate        = "https://raw.githubusercontent.com/nvm-sh/nvm/%s/install.sh"
	nvmInstallScriptFileNameConstant   = "nvm-install.sh"
	nvmDirectoryEnvironmentKeyConstant = "NVM_DIR"
	nvmDefaultDirectoryConstant        = "/root/.nvm"
	nodeInstallScriptTemplateConstant  = `. "$NVM_DIR/nvm.sh" && nvm install %s && nvm alias default %s`
	nodeVersionProbeScriptConstant     = `. "$NVM_DIR/nvm.sh" && node --version && npm --version`
)

// NodeInstaller installs nvm from its published install script and uses it to
// install the pinned Node.js version.
type NodeInstaller struct {
	executor      CommandExecutor
	workDirectory string
	nvmVersion    string
	nodeVersion   string
}

// NewNodeInstaller validates dependencies and builds the installer.
func NewNodeInstaller(executor CommandExecutor, workDirectory string, versions ToolVersions) (*NodeInstaller, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if len(workDirectory) == 0 {
		return nil, ErrWorkDirectoryNotProvided
	}
	return &NodeInstaller{
		executor:      executor,
		workDirectory: workDirectory,
		nvmVersion:    versions.NvmVersion,
		nodeVersion:   versions.NodeVersion,
	}, nil
}

// TaskName returns the catalog name of this installer.
func (installer *NodeInstaller) TaskName() string {
	return nodeTaskNameConstant
}

// Install fetches the nvm install script, runs it through bash, and installs
// the pinned Node.js version. The closing version probe is best effort; the
// scratch directory is removed only on success.
func (installer *NodeInstaller) Install(executionContext context.Context) error {
	scratchDirectory := filepath.Join(installer.workDirectory, nodeScratchDirectoryNameConstant)
	if directoryError := os.MkdirAll(scratchDirectory, scratchDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}

	installScriptURL := fmt.Sprintf(nvmInstallScriptURLTemplate, installer.nvmVersion)
	if _, downloadError := installer.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments:        []string{curlFailSilentLocationFlagConstant, installScriptURL, curlOutputFlagConstant, nvmInstallScriptFileNameConstant},
		WorkingDirectory: scratchDirectory,
	}); downloadError != nil {
		return downloadError
	}

	nvmEnvironment := map[string]string{nvmDirectoryEnvironmentKeyConstant: nvmDefaultDirectoryConstant}

	if _, scriptError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments:            []string{nvmInstallScriptFileNameConstant},
		WorkingDirectory:     scratchDirectory,
		EnvironmentVariables: nvmEnvironment,
	}); scriptError != nil {
		return scriptError
	}

	nodeInstallScript := fmt.Sprintf(nodeInstallScriptTemplateConstant, installer.nodeVersion, installer.nodeVersion)
	if _, nodeError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments:            []string{bashCommandFlagConstant, nodeInstallScript},
		EnvironmentVariables: nvmEnvironment,
	}); nodeError != nil {
		return nodeError
	}

	_, _ = installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments:            []string{bashCommandFlagConstant, nodeVersionProbeScriptConstant},
		EnvironmentVariables: nvmEnvironment,
	})

	return os.RemoveAll(scratchDirectory)
}
