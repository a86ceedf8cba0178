package execshell

import (
	"fmt"
	"strings"
)

const (
	startedMessageTemplateConstant          = "Running %s"
	successMessageTemplateConstant          = "Completed %s"
	failureMessageTemplateConstant          = "Failed %s (exit code %d%s)"
	executionFailureMessageTemplateConstant = "Unable to run %s: %v"
	failureDetailSeparatorConstant          = ": "
	commandRenderSeparatorConstant          = " "
)

// CommandMessageFormatter renders human-readable command lifecycle messages.
type CommandMessageFormatter struct{}

// BuildStartedMessage renders the message emitted before a command runs.
func (CommandMessageFormatter) BuildStartedMessage(command ShellCommand) string {
	return fmt.Sprintf(startedMessageTemplateConstant, renderCommand(command))
}

// BuildSuccessMessage renders the message emitted after a command succeeds.
func (CommandMessageFormatter) BuildSuccessMessage(command ShellCommand) string {
	return fmt.Sprintf(successMessageTemplateConstant, renderCommand(command))
}

// BuildFailureMessage renders the message emitted when a command exits non-zero.
func (CommandMessageFormatter) BuildFailureMessage(command ShellCommand, result ExecutionResult) string {
	failureDetail := strings.TrimSpace(result.StandardError)
	if len(failureDetail) > 0 {
		if newlineIndex := strings.IndexByte(failureDetail, '\n'); newlineIndex >= 0 {
			failureDetail = failureDetail[:newlineIndex]
		}
		failureDetail = failureDetailSeparatorConstant + failureDetail
	}
	return fmt.Sprintf(failureMessageTemplateConstant, renderCommand(command), result.ExitCode, failureDetail)
}

// BuildExecutionFailureMessage renders the message emitted when a command cannot run at all.
func (CommandMessageFormatter) BuildExecutionFailureMessage(command ShellCommand, cause error) string {
	return fmt.Sprintf(executionFailureMessageTemplateConstant, renderCommand(command), cause)
}

func renderCommand(command ShellCommand) string {
	renderedParts := append([]string{string(command.Name)}, command.Details.Arguments...)
	return strings.Join(renderedParts, commandRenderSeparatorConstant)
}
