package agent

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
)

const (
	agentCommandNameConstant          = "agent"
	logDirectoryFlagNameConstant      = "--log-dir"
	agentLogFileNameConstant          = "agent.log"
	agentLogFilePermissionsConstant   = 0o644
	executableRequiredMessageConstant = "agent executable path not provided"
)

// ErrExecutableNotProvided indicates the agent executable path was missing.
var ErrExecutableNotProvided = errors.New(executableRequiredMessageConstant)

// StartDetached launches the status agent as a separate process in its own
// session and releases it immediately. The agent is never waited on; its
// output goes to agent.log inside the log directory.
func StartDetached(executablePath string, logDirectory string) error {
	if len(executablePath) == 0 {
		return ErrExecutableNotProvided
	}
	if len(logDirectory) == 0 {
		return ErrLogDirectoryNotProvided
	}

	agentLogFile, openError := os.OpenFile(
		filepath.Join(logDirectory, agentLogFileNameConstant),
		os.O_CREATE|os.O_WRONLY|os.O_APPEND,
		agentLogFilePermissionsConstant,
	)
	if openError != nil {
		return openError
	}
	defer agentLogFile.Close()

	agentCommand := exec.Command(executablePath, agentCommandNameConstant, logDirectoryFlagNameConstant, logDirectory)
	agentCommand.Stdout = agentLogFile
	agentCommand.Stderr = agentLogFile
	agentCommand.SysProcAttr = &syscall.SysProcAttr{Setsid: true}

	if startError := agentCommand.Start(); startError != nil {
		return startError
	}
	return agentCommand.Process.Release()
}
