package install

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tyemirov/rigup/internal/execshell"
)

const (
	dockerTaskNameConstant             = "docker"
	dockerScratchDirectoryNameConstant = "docker"
	dockerGPGKeyURLConstant            = "https://download.docker.com/linux/ubuntu/gpg"
	dockerGPGKeyFileNameConstant       = "docker.asc"
	dockerKeyringPathConstant          = "/etc/apt/keyrings/docker.gpg"
	dockerGPGDearmorFlagConstant       = "--dearmor"
	dockerGPGOverwriteFlagConstant     = "--yes"
	dockerGPGOutputFlagConstant        = "-o"
	dockerRepositoryScriptConstant     = `echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/docker.gpg] https://download.docker.com/linux/ubuntu $(. /etc/os-release && echo "$VERSION_CODENAME") stable" > /etc/apt/sources.list.d/docker.list`
	dockerEnginePackageNameConstant    = "docker-ce"
	dockerCliPackageNameConstant       = "docker-ce-cli"
	containerdPackageNameConstant      = "containerd.io"
	aptPackagePinTemplateConstant      = "%s=%s"
	iptablesAlternativeSetFlagConstant = "--set"
	iptablesAlternativeNameConstant    = "iptables"
	iptablesLegacyPathConstant         = "/usr/sbin/iptables-legacy"
	dockerServiceEnableFlagConstant    = "enable"
	dockerServiceNowFlagConstant       = "--now"
	dockerServiceNameConstant          = "docker"
	composeDownloadURLTemplateConstant = "https://github.com/docker/compose/releases/download/%s/docker-compose-linux-x86_64"
	composeBinaryPathConstant          = "/usr/local/bin/docker-compose"
	composeExecutableScriptConstant    = "chmod +x " + composeBinaryPathConstant
	dockerVersionProbeScriptConstant   = "docker --version && docker-compose --version"
)

// DockerInstaller registers Docker's apt repository, installs the engine
// packages, selects the legacy iptables backend, enables the service, and
// downloads the standalone Compose binary.
type DockerInstaller struct {
	executor             CommandExecutor
	packageLock          AdvisoryLock
	workDirectory        string
	dockerPackageVersion string
	composeVersion       string
}

// NewDockerInstaller validates dependencies and builds the installer.
func NewDockerInstaller(executor CommandExecutor, packageLock AdvisoryLock, workDirectory string, versions ToolVersions) (*DockerInstaller, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if packageLock == nil {
		return nil, ErrLockNotConfigured
	}
	if len(workDirectory) == 0 {
		return nil, ErrWorkDirectoryNotProvided
	}
	return &DockerInstaller{
		executor:             executor,
		packageLock:          packageLock,
		workDirectory:        workDirectory,
		dockerPackageVersion: versions.DockerPackageVersion,
		composeVersion:       versions.ComposeVersion,
	}, nil
}

// TaskName returns the catalog name of this installer.
func (installer *DockerInstaller) TaskName() string {
	return dockerTaskNameConstant
}

// Install provisions Docker Engine and Compose. Repository registration and
// package installation hold the package-manager lock; the Compose download
// and the service setup run unlocked. The closing version probe is best
// effort; the scratch directory is removed only on success.
func (installer *DockerInstaller) Install(executionContext context.Context) error {
	scratchDirectory := filepath.Join(installer.workDirectory, dockerScratchDirectoryNameConstant)
	if directoryError := os.MkdirAll(scratchDirectory, scratchDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}

	lockedError := installer.packageLock.WithLock(executionContext, func() error {
		return installer.installEnginePackages(executionContext, scratchDirectory)
	})
	if lockedError != nil {
		return lockedError
	}

	if _, alternativesError := installer.executor.Execute(executionContext, execshell.ShellCommand{
		Name: execshell.CommandUpdateAlternatives,
		Details: execshell.CommandDetails{
			Arguments: []string{iptablesAlternativeSetFlagConstant, iptablesAlternativeNameConstant, iptablesLegacyPathConstant},
		},
	}); alternativesError != nil {
		return alternativesError
	}

	if _, serviceError := installer.executor.ExecuteSystemctl(executionContext, execshell.CommandDetails{
		Arguments: []string{dockerServiceEnableFlagConstant, dockerServiceNowFlagConstant, dockerServiceNameConstant},
	}); serviceError != nil {
		return serviceError
	}

	composeURL := fmt.Sprintf(composeDownloadURLTemplateConstant, installer.composeVersion)
	if _, composeError := installer.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments: []string{curlFailSilentLocationFlagConstant, composeURL, curlOutputFlagConstant, composeBinaryPathConstant},
	}); composeError != nil {
		return composeError
	}

	if _, permissionError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashCommandFlagConstant, composeExecutableScriptConstant},
	}); permissionError != nil {
		return permissionError
	}

	_, _ = installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashCommandFlagConstant, dockerVersionProbeScriptConstant},
	})

	return os.RemoveAll(scratchDirectory)
}

func (installer *DockerInstaller) installEnginePackages(executionContext context.Context, scratchDirectory string) error {
	if _, keyError := installer.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments:        []string{curlFailSilentLocationFlagConstant, dockerGPGKeyURLConstant, curlOutputFlagConstant, dockerGPGKeyFileNameConstant},
		WorkingDirectory: scratchDirectory,
	}); keyError != nil {
		return keyError
	}

	if _, dearmorError := installer.executor.Execute(executionContext, execshell.ShellCommand{
		Name: execshell.CommandGPG,
		Details: execshell.CommandDetails{
			Arguments:        []string{dockerGPGDearmorFlagConstant, dockerGPGOverwriteFlagConstant, dockerGPGOutputFlagConstant, dockerKeyringPathConstant, dockerGPGKeyFileNameConstant},
			WorkingDirectory: scratchDirectory,
		},
	}); dearmorError != nil {
		return dearmorError
	}

	if _, repositoryError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashCommandFlagConstant, dockerRepositoryScriptConstant},
	}); repositoryError != nil {
		return repositoryError
	}

	if _, updateError := installer.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{aptGetUpdateArgumentConstant},
		EnvironmentVariables: aptGetEnvironment(),
	}); updateError != nil {
		return updateError
	}

	_, installPackagesError := installer.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            append([]string{aptGetInstallArgumentConstant, aptGetAssumeYesFlagConstant}, installer.enginePackageArguments()...),
		EnvironmentVariables: aptGetEnvironment(),
	})
	return installPackagesError
}

func (installer *DockerInstaller) enginePackageArguments() []string {
	packageNames := []string{dockerEnginePackageNameConstant, dockerCliPackageNameConstant, containerdPackageNameConstant}
	if len(installer.dockerPackageVersion) == 0 {
		return packageNames
	}

	pinnedPackages := make([]string, 0, len(packageNames))
	for _, packageName := range packageNames {
		if packageName == containerdPackageNameConstant {
			pinnedPackages = append(pinnedPackages, packageName)
			continue
		}
		pinnedPackages = append(pinnedPackages, fmt.Sprintf(aptPackagePinTemplateConstant, packageName, installer.dockerPackageVersion))
	}
	return pinnedPackages
}
