package install

import (
	"context"
	"os"
	"path/filepath"

	"github.com/tyemirov/rigup/internal/execshell"
)

const (
	awsCliTaskNameConstant             = "awscli"
	awsCliScratchDirectoryNameConstant = "awscli"
	awsCliBundleURLConstant            = "https://awscli.amazonaws.com/awscli-exe-linux-x86_64.zip"
	awsCliBundleFileNameConstant       = "awscliv2.zip"
	awsCliUnzipOverwriteFlagConstant   = "-o"
	awsCliInstallerPathConstant        = "aws/install"
	awsCliInstallerUpdateFlagConstant  = "--update"
	awsCliVersionProbeScriptConstant   = "aws --version"
)

// AwsCliInstaller downloads the bundled AWS CLI v2 archive, unpacks it, and
// runs the vendored installer.
type AwsCliInstaller struct {
	executor      CommandExecutor
	workDirectory string
}

// NewAwsCliInstaller validates dependencies and builds the installer.
func NewAwsCliInstaller(executor CommandExecutor, workDirectory string) (*AwsCliInstaller, error) {
	if executor == nil {
		return nil, ErrExecutorNotConfigured
	}
	if len(workDirectory) == 0 {
		return nil, ErrWorkDirectoryNotProvided
	}
	return &AwsCliInstaller{executor: executor, workDirectory: workDirectory}, nil
}

// TaskName returns the catalog name of this installer.
func (installer *AwsCliInstaller) TaskName() string {
	return awsCliTaskNameConstant
}

// Install downloads and installs the AWS CLI. The closing version probe is
// best effort; the scratch directory is removed only on success.
func (installer *AwsCliInstaller) Install(executionContext context.Context) error {
	scratchDirectory := filepath.Join(installer.workDirectory, awsCliScratchDirectoryNameConstant)
	if directoryError := os.MkdirAll(scratchDirectory, scratchDirectoryPermissionsConstant); directoryError != nil {
		return directoryError
	}

	if _, downloadError := installer.executor.ExecuteCurl(executionContext, execshell.CommandDetails{
		Arguments:        []string{curlFailSilentLocationFlagConstant, awsCliBundleURLConstant, curlOutputFlagConstant, awsCliBundleFileNameConstant},
		WorkingDirectory: scratchDirectory,
	}); downloadError != nil {
		return downloadError
	}

	if _, unpackError := installer.executor.Execute(executionContext, execshell.ShellCommand{
		Name: execshell.CommandUnzip,
		Details: execshell.CommandDetails{
			Arguments:        []string{awsCliUnzipOverwriteFlagConstant, awsCliBundleFileNameConstant},
			WorkingDirectory: scratchDirectory,
		},
	}); unpackError != nil {
		return unpackError
	}

	if _, installError := installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments:        []string{awsCliInstallerPathConstant, awsCliInstallerUpdateFlagConstant},
		WorkingDirectory: scratchDirectory,
	}); installError != nil {
		return installError
	}

	_, _ = installer.executor.ExecuteBash(executionContext, execshell.CommandDetails{
		Arguments: []string{bashLoginCommandFlagConstant, awsCliVersionProbeScriptConstant},
	})

	return os.RemoveAll(scratchDirectory)
}
