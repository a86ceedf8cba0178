package provision

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/tyemirov/rigup/internal/agent"
	"github.com/tyemirov/rigup/internal/execshell"
	"github.com/tyemirov/rigup/internal/install"
	"github.com/tyemirov/rigup/internal/logstream"
	"github.com/tyemirov/rigup/internal/pkglock"
	"github.com/tyemirov/rigup/internal/report"
	"github.com/tyemirov/rigup/pkg/taskrunner"
)

const (
	failureTailLineCountConstant         = 40
	loggerRequiredMessageConstant        = "provisioning service logger not configured"
	outputRequiredMessageConstant        = "provisioning service output not configured"
	tasksFailedMessageConstant           = "provisioning tasks failed"
	taskSucceededLineTemplateConstant    = "Task %s succeeded in %s\n"
	taskFailedLineTemplateConstant       = "Task %s failed in %s: %v\n"
	failureTailHeaderTemplateConstant    = "--- last %d lines of %s stderr ---\n"
	failureTailFooterConstant            = "---\n"
	daemonStartedMessageConstant         = "Status agent started\n"
	daemonSkippedMessageConstant         = "Status agent skipped\n"
	daemonStartFailureTemplateConstant   = "unable to start status agent: %w"
	reportPersistFailureTemplateConstant = "unable to persist run report: %w"
	executableResolveFailureTemplate     = "unable to resolve executable path: %w"
	runStartedLogMessageConstant         = "provisioning run starting"
	runFinishedLogMessageConstant        = "provisioning run finished"
	taskCountLogFieldConstant            = "task_count"
	failureCountLogFieldConstant         = "failure_count"
	logDirectoryLogFieldConstant         = "log_directory"
	workDirectoryLogFieldConstant        = "work_directory"
	summaryLineSuffixConstant            = "\n"
)

// ErrTasksFailed marks a run where at least one installer task failed.
var (
	ErrTasksFailed = errors.New(tasksFailedMessageConstant)
	// ErrLoggerNotConfigured indicates the logger dependency was missing.
	ErrLoggerNotConfigured = errors.New(loggerRequiredMessageConstant)
	// ErrOutputNotConfigured indicates the output writer dependency was missing.
	ErrOutputNotConfigured = errors.New(outputRequiredMessageConstant)
)

// ExecutorFactory builds the command executor bound to one task's streams.
type ExecutorFactory func(streams taskrunner.TaskStreams) (install.CommandExecutor, error)

// LockFactory builds one advisory lock instance for one task.
type LockFactory func() install.AdvisoryLock

// DaemonStarter launches the status agent detached from the current process.
type DaemonStarter func(logDirectory string) error

// ServiceDependencies carries the collaborators of the provisioning service.
// Nil factory fields select the production implementations.
type ServiceDependencies struct {
	Logger               *zap.Logger
	Output               io.Writer
	HumanReadableLogging bool
	ExecutorFactory      ExecutorFactory
	LockFactory          LockFactory
	DaemonStarter        DaemonStarter
}

// Service orchestrates one provisioning run: launch every catalog task
// concurrently, aggregate their terminal states, report, persist, and decide
// whether the status agent starts.
type Service struct {
	logger               *zap.Logger
	output               io.Writer
	humanReadableLogging bool
	configuration        Configuration
	executorFactory      ExecutorFactory
	lockFactory          LockFactory
	daemonStarter        DaemonStarter
}

// NewService validates dependencies and builds the service.
func NewService(dependencies ServiceDependencies, configuration Configuration) (*Service, error) {
	if dependencies.Logger == nil {
		return nil, ErrLoggerNotConfigured
	}
	if dependencies.Output == nil {
		return nil, ErrOutputNotConfigured
	}

	sanitizedConfiguration := configuration.Sanitize()

	// The service and the task runner's line writers print to the same sink
	// concurrently; one shared lock keeps those writes whole.
	service := &Service{
		logger:               dependencies.Logger,
		output:               logstream.NewSynchronizedWriter(dependencies.Output),
		humanReadableLogging: dependencies.HumanReadableLogging,
		configuration:        sanitizedConfiguration,
		executorFactory:      dependencies.ExecutorFactory,
		lockFactory:          dependencies.LockFactory,
		daemonStarter:        dependencies.DaemonStarter,
	}

	if service.executorFactory == nil {
		service.executorFactory = service.buildStreamingExecutor
	}
	if service.lockFactory == nil {
		service.lockFactory = func() install.AdvisoryLock {
			return pkglock.New(sanitizedConfiguration.LockFilePath)
		}
	}
	if service.daemonStarter == nil {
		service.daemonStarter = startAgentForCurrentExecutable
	}

	return service, nil
}

// Run executes the full provisioning flow. A nil return means every task
// succeeded; ErrTasksFailed wraps the failure count otherwise.
func (service *Service) Run(executionContext context.Context) error {
	toolVersions := service.configuration.ToolVersions()
	if versionError := toolVersions.Validate(); versionError != nil {
		return versionError
	}

	catalogEntries, filterError := install.FilterCatalog(
		install.BuildCatalog(install.CatalogOptions{
			WorkDirectory: service.configuration.WorkDirectory,
			Versions:      toolVersions,
		}),
		service.configuration.OnlyTasks,
	)
	if filterError != nil {
		return filterError
	}

	service.logger.Info(runStartedLogMessageConstant,
		zap.Int(taskCountLogFieldConstant, len(catalogEntries)),
		zap.String(logDirectoryLogFieldConstant, service.configuration.LogDirectory),
		zap.String(workDirectoryLogFieldConstant, service.configuration.WorkDirectory),
	)

	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{
		LogDirectory: service.configuration.LogDirectory,
		Console:      service.output,
		Observer:     service.reportTaskOutcome,
	})

	for _, catalogEntry := range catalogEntries {
		launchedEntry := catalogEntry
		runner.Launch(executionContext, launchedEntry.TaskName, func(taskContext context.Context, streams taskrunner.TaskStreams) error {
			taskExecutor, executorError := service.executorFactory(streams)
			if executorError != nil {
				return executorError
			}
			installerTask, buildError := launchedEntry.Build(taskExecutor, service.lockFactory())
			if buildError != nil {
				return buildError
			}
			return installerTask.Install(taskContext)
		})
	}

	outcome := runner.Wait()

	summaryLine := taskrunner.RenderSummaryLine(outcome)
	if len(summaryLine) > 0 {
		fmt.Fprint(service.output, summaryLine+summaryLineSuffixConstant)
	}

	service.logger.Info(runFinishedLogMessageConstant,
		zap.Int(taskCountLogFieldConstant, len(outcome.Tasks)),
		zap.Int(failureCountLogFieldConstant, outcome.FailureCount),
	)

	if persistError := service.persistReport(outcome); persistError != nil {
		return persistError
	}

	if !outcome.Succeeded() {
		return fmt.Errorf("%w: %d of %d", ErrTasksFailed, outcome.FailureCount, len(outcome.Tasks))
	}

	if service.configuration.SkipDaemon {
		fmt.Fprint(service.output, daemonSkippedMessageConstant)
		return nil
	}

	if daemonError := service.daemonStarter(service.configuration.LogDirectory); daemonError != nil {
		return fmt.Errorf(daemonStartFailureTemplateConstant, daemonError)
	}
	fmt.Fprint(service.output, daemonStartedMessageConstant)
	return nil
}

func (service *Service) reportTaskOutcome(outcome taskrunner.TaskOutcome) {
	if !outcome.Failed() {
		fmt.Fprintf(service.output, taskSucceededLineTemplateConstant, outcome.Name, outcome.Duration)
		return
	}

	fmt.Fprintf(service.output, taskFailedLineTemplateConstant, outcome.Name, outcome.Duration, outcome.FailureError)

	tailLines, tailError := logstream.TailLines(outcome.StandardErrorLogPath, failureTailLineCountConstant)
	if tailError != nil || len(tailLines) == 0 {
		return
	}

	fmt.Fprintf(service.output, failureTailHeaderTemplateConstant, failureTailLineCountConstant, outcome.Name)
	for _, tailLine := range tailLines {
		fmt.Fprintln(service.output, tailLine)
	}
	fmt.Fprint(service.output, failureTailFooterConstant)
}

func (service *Service) persistReport(outcome taskrunner.RunOutcome) error {
	reportPath := filepath.Join(service.configuration.LogDirectory, report.FileName)
	if saveError := report.Save(reportPath, report.FromRunOutcome(outcome)); saveError != nil {
		return fmt.Errorf(reportPersistFailureTemplateConstant, saveError)
	}
	return nil
}

func startAgentForCurrentExecutable(logDirectory string) error {
	executablePath, resolveError := os.Executable()
	if resolveError != nil {
		return fmt.Errorf(executableResolveFailureTemplate, resolveError)
	}
	return agent.StartDetached(executablePath, logDirectory)
}

func (service *Service) buildStreamingExecutor(streams taskrunner.TaskStreams) (install.CommandExecutor, error) {
	commandRunner := execshell.NewStreamingOSCommandRunner(streams.StandardOutput, streams.StandardError)
	return execshell.NewShellExecutor(service.logger, commandRunner, service.humanReadableLogging)
}
