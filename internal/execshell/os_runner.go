package execshell

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"sort"
)

// OSCommandRunner executes shell commands against the host operating system.
// When output sinks are configured, command output is streamed to them while
// the command runs in addition to being captured for the ExecutionResult.
type OSCommandRunner struct {
	standardOutputSink io.Writer
	standardErrorSink  io.Writer
}

// NewOSCommandRunner constructs a runner that only captures command output.
func NewOSCommandRunner() *OSCommandRunner {
	return &OSCommandRunner{}
}

// NewStreamingOSCommandRunner constructs a runner that additionally streams
// command output to the provided sinks while commands execute.
func NewStreamingOSCommandRunner(standardOutputSink io.Writer, standardErrorSink io.Writer) *OSCommandRunner {
	return &OSCommandRunner{
		standardOutputSink: standardOutputSink,
		standardErrorSink:  standardErrorSink,
	}
}

// Run implements CommandRunner by invoking the named executable directly.
func (runner *OSCommandRunner) Run(executionContext context.Context, command ShellCommand) (ExecutionResult, error) {
	executableCommand := exec.CommandContext(executionContext, string(command.Name), command.Details.Arguments...)
	executableCommand.Dir = command.Details.WorkingDirectory

	if len(command.Details.EnvironmentVariables) > 0 {
		executableCommand.Env = mergeEnvironment(os.Environ(), command.Details.EnvironmentVariables)
	}

	if len(command.Details.StandardInput) > 0 {
		executableCommand.Stdin = bytes.NewReader(command.Details.StandardInput)
	}

	var standardOutputBuffer bytes.Buffer
	var standardErrorBuffer bytes.Buffer
	executableCommand.Stdout = runner.composeSink(&standardOutputBuffer, runner.standardOutputSink)
	executableCommand.Stderr = runner.composeSink(&standardErrorBuffer, runner.standardErrorSink)

	runError := executableCommand.Run()

	executionResult := ExecutionResult{
		StandardOutput: standardOutputBuffer.String(),
		StandardError:  standardErrorBuffer.String(),
	}

	if runError != nil {
		var exitError *exec.ExitError
		if errors.As(runError, &exitError) {
			executionResult.ExitCode = exitError.ExitCode()
			return executionResult, nil
		}
		return executionResult, runError
	}

	return executionResult, nil
}

func (runner *OSCommandRunner) composeSink(captureBuffer *bytes.Buffer, streamingSink io.Writer) io.Writer {
	if streamingSink == nil {
		return captureBuffer
	}
	return io.MultiWriter(captureBuffer, streamingSink)
}

func mergeEnvironment(baseEnvironment []string, overrides map[string]string) []string {
	overrideKeys := make([]string, 0, len(overrides))
	for overrideKey := range overrides {
		overrideKeys = append(overrideKeys, overrideKey)
	}
	sort.Strings(overrideKeys)

	mergedEnvironment := make([]string, 0, len(baseEnvironment)+len(overrideKeys))
	mergedEnvironment = append(mergedEnvironment, baseEnvironment...)
	for _, overrideKey := range overrideKeys {
		mergedEnvironment = append(mergedEnvironment, overrideKey+"="+overrides[overrideKey])
	}
	return mergedEnvironment
}
