package install

import (
	"context"

	"github.com/tyemirov/rigup/internal/execshell"
)

const (
	githubCliTaskNameConstant           = "githubcli"
	githubCliKeyringURLConstant         = "https://cli.github.com/packages/githubcli-archive-keyring.gpg"
	githubCliKeyringPathConstant        = "/etc/apt/keyrings/githubcli-archive-keyring.gpg"
	githubCliRepositoryScriptConstant   = `echo "deb [arch=$(dpkg --print-architecture) signed-by=/etc/apt/keyrings/githubcli-archive-keyring.gpg] https://cli.github.com/packages stable main" > /etc/apt/sources.list.d/github-cli.list`
	githubCliPackageNameConstant        = "gh"
	githubCliVersionProbeScriptConstant = "gh --version"
)

// GitHubCliInstaller registers the GitHub CLI apt repository and installs gh.
type GitHubCliInstaller struct {
	executor    CommandExecutor
	packageLock AdvisoryLock
}

// NewGitHubCliInstaller validates dependencies and builds the installer.
func NewGitHubCliInstaller(executor CommandExecutor, packageLock AdvisoryLock) (*GitHubCliInstaller, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if packageLock == nil {
		return nil, ErrLockNotConfigured
	}
	return &GitHubCliInstaller{executor: executor, packageLock: packageLock}, nil
}

// TaskName returns the catalog name of this installer.
func (installer *GitHubCliInstaller) TaskName() string {
	return githubCliTaskNameConstant
}

// Install imports the keyring, registers the repository, and installs the gh
// package, all under the package-manager lock. The closing version probe is
// best effort.
func (installer *GitHubCliInstaller) Install(executionContext context.Context) error {
	lockedError := installer.packageLock.WithLock(executionContext, func() error {
		return installer.installPackage(executionContext)
	})
	if lockedError != nil {
		return lockedError
	}

	_, _ = installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashCommandFlagConstant, githubCliVersionProbeScriptConstant},
	})
	return nil
}

func (installer *GitHubCliInstaller) installPackage(executionContext context.Context) error {
	if _, keyringError := installer.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments: []string{curlFailSilentLocationFlagConstant, githubCliKeyringURLConstant, curlOutputFlagConstant, githubCliKeyringPathConstant},
	}); keyringError != nil {
		return keyringError
	}

	if _, repositoryError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashCommandFlagConstant, githubCliRepositoryScriptConstant},
	}); repositoryError != nil {
		return repositoryError
	}

	if _, updateError := installer.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{aptGetUpdateArgumentConstant},
		EnvironmentVariables: aptGetEnvironment(),
	}); updateError != nil {
		return updateError
	}

	_, installPackageError := installer.executor.ExecuteAptGet(executionContext, execshell.CommandDetails{
		Arguments:            []string{aptGetInstallArgumentConstant, aptGetAssumeYesFlagConstant, githubCliPackageNameConstant},
		EnvironmentVariables: aptGetEnvironment(),
	})
	return installPackageError
}
