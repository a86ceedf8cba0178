package install

import (
	"context"
	"fmt"
)

// Exported task names, stable across runs and used as log-file keys.
const (
	TaskNameAwsCli    = awsCliTaskNameConstant
	TaskNameNode      = nodeTaskNameConstant
	TaskNameDocker    = dockerTaskNameConstant
	TaskNameGitHubCli = githubCliTaskNameConstant
)

// InstallerTask is one named installation routine. Install runs the full
// shell-out sequence and reports success through a nil return.
type InstallerTask interface {
	TaskName() string
	Install(executionContext context.Context) error
}

// InstallerFactory builds an installer bound to a per-task executor and an
// advisory lock instance. Installers that never touch the package manager
// ignore the lock.
type InstallerFactory func(executor CommandExecutor, packageLock AdvisoryLock) (InstallerTask, error)

// CatalogEntry pairs a task name with its installer factory.
type CatalogEntry struct {
	TaskName string
	Build    InstallerFactory
}

// CatalogOptions carries the settings shared by every catalog entry.
type CatalogOptions struct {
	WorkDirectory string
	Versions      ToolVersions
}

// BuildCatalog returns the full set of installer tasks in their fixed launch
// order.
func BuildCatalog(options CatalogOptions) []CatalogEntry {
	return []CatalogEntry{
		{
			TaskName: TaskNameAwsCli,
			Build: func(executor CommandExecutor, _ AdvisoryLock) (InstallerTask, error) {
				return NewAwsCliInstaller(executor, options.WorkDirectory)
			},
		},
		{
			TaskName: TaskNameNode,
			Build: func(executor CommandExecutor, _ AdvisoryLock) (InstallerTask, error) {
				return NewNodeInstaller(executor, options.WorkDirectory, options.Versions)
			},
		},
		{
			TaskName: TaskNameDocker,
			Build: func(executor CommandExecutor, packageLock AdvisoryLock) (InstallerTask, error) {
				return NewDockerInstaller(executor, packageLock, options.WorkDirectory, options.Versions)
			},
		},
		{
			TaskName: TaskNameGitHubCli,
			Build: func(executor CommandExecutor, packageLock AdvisoryLock) (InstallerTask, error) {
				return NewGitHubCliInstaller(executor, packageLock)
			},
		},
	}
}

// FilterCatalog restricts entries to the selected task names, preserving
// catalog order. An empty selection keeps every entry; a name matching no
// entry is rejected.
func FilterCatalog(entries []CatalogEntry, selectedNames []string) ([]CatalogEntry, error) {
	if len(selectedNames) == 0 {
		return entries, nil
	}

	selectedSet := make(map[string]bool, len(selectedNames))
	for _, selectedName := range selectedNames {
		selectedSet[selectedName] = true
	}

	knownNames := make(map[string]bool, len(entries))
	filteredEntries := make([]CatalogEntry, 0, len(entries))
	for _, entry := range entries {
		knownNames[entry.TaskName] = true
		if selectedSet[entry.TaskName] {
			filteredEntries = append(filteredEntries, entry)
		}
	}

	for _, selectedName := range selectedNames {
		if !knownNames[selectedName] {
			return nil, fmt.Errorf("%w: %s", ErrUnknownTaskName, selectedName)
		}
	}

	return filteredEntries, nil
}
