package install

import (
	"context"
	"errors"

	"github.com/tyemirov/rigup/internal/execshell"
)

const (
	executorNotConfiguredMessageConstant      = "installer command executor not configured"
	lockNotConfiguredMessageConstant          = "installer package lock not configured"
	workDirectoryNotProvidedMessageConstant   = "installer work directory not provided"
	unknownTaskNameMessageConstant            = "unknown installer task name"
	scratchDirectoryPermissionsConstant       = 0o755
	bashLoginCommandFlagConstant              = "-lc"
	bashCommandFlagConstant                   = "-c"
	curlFailSilentLocationFlagConstant        = "-fsSL"
	curlOutputFlagConstant                    = "-o"
	aptGetUpdateArgumentConstant              = "update"
	aptGetInstallArgumentConstant             = "install"
	aptGetAssumeYesFlagConstant               = "-y"
	aptGetNonInteractiveFrontendKeyConstant   = "DEBIAN_FRONTEND"
	aptGetNonInteractiveFrontendValueConstant = "noninteractive"
)

var (
	// ErrExecutorNotConfigured indicates the command executor dependency was missing.
	ErrExecutorNotConfigured = errors.New(executorNotConfiguredMessageConstant)
	// ErrLockNotConfigured indicates the package lock dependency was missing.
	ErrLockNotConfigured = errors.New(lockNotConfiguredMessageConstant)
	// ErrWorkDirectoryNotProvided indicates the scratch work directory was missing.
	ErrWorkDirectoryNotProvided = errors.New(workDirectoryNotProvidedMessageConstant)
	// ErrUnknownTaskName indicates a task selection that matches no catalog entry.
	ErrUnknownTaskName = errors.New(unknownTaskNameMessageConstant)
)

// CommandExecutor runs external commands on behalf of installer tasks.
type CommandExecutor interface {
	Execute(executionContext context.Context, command execshell.ShellCommand) (execshell.ExecutionResult, error)
	ExecuteAptGet(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteCurl(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteBash(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
	ExecuteSystemctl(executionContext context.Context, details execshell.CommandDetails) (execshell.ExecutionResult, error)
}

// AdvisoryLock serializes package-manager access across concurrent tasks.
// Sections guarded by the same lock path never execute concurrently; all
// other installer work proceeds unsynchronized.
type AdvisoryLock interface {
	WithLock(executionContext context.Context, lockedSection func() error) error
}

func aptGetEnvironment() map[string]string {
	return map[string]string{aptGetNonInteractiveFrontendKeyConstant: aptGetNonInteractiveFrontendValueConstant}
}
