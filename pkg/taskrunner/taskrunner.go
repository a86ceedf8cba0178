package taskrunner

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/tyemirov/rigup/internal/logstream"
)

// TaskState identifies a task's terminal state.
type TaskState string

// Terminal task states. A launched task transitions from running directly to
// exactly one of these; no cancellation or restart path exists.
const (
	TaskStateSucceeded TaskState = "succeeded"
	TaskStateFailed    TaskState = "failed"
)

// TaskStreams carries the output sinks wired to a launched task. Tasks write
// whole lines through these writers; the Runner fans each line out to the
// per-task log file and the console.
type TaskStreams struct {
	StandardOutput io.Writer
	StandardError  io.Writer
}

// TaskFunc is the unit of work executed by a launched task. A nil return
// marks the task succeeded; any error marks it failed.
type TaskFunc func(executionContext context.Context, streams TaskStreams) error

// TaskHandle is the opaque handle returned by Launch. It is usable only to
// wait for the task's terminal state through the owning Runner.
type TaskHandle struct {
	completion    chan struct{}
	failureError  error
	taskDuration  time.Duration
	stdoutLogPath string
	stderrLogPath string
}

// TaskOutcome describes one task's terminal state.
type TaskOutcome struct {
	Name                  string
	State                 TaskState
	FailureError          error
	Duration              time.Duration
	StandardOutputLogPath string
	StandardErrorLogPath  string
}

// Failed reports whether the task reached the failed state.
func (outcome TaskOutcome) Failed() bool {
	return outcome.State == TaskStateFailed
}

// RunOutcome aggregates the terminal states of every launched task. It is
// computed once, after all tasks are terminal, and never mutated afterwards.
type RunOutcome struct {
	Tasks        []TaskOutcome
	FailureCount int
	StartTime    time.Time
	EndTime      time.Time
}

// Succeeded reports whether every task reached the succeeded state.
func (outcome RunOutcome) Succeeded() bool {
	return outcome.FailureCount == 0
}

// FailedTasks returns the outcomes of tasks that reached the failed state.
func (outcome RunOutcome) FailedTasks() []TaskOutcome {
	failedOutcomes := make([]TaskOutcome, 0, outcome.FailureCount)
	for _, taskOutcome := range outcome.Tasks {
		if taskOutcome.Failed() {
			failedOutcomes = append(failedOutcomes, taskOutcome)
		}
	}
	return failedOutcomes
}

// TaskObserver receives each task's outcome as its wait resolves, in launch order.
type TaskObserver func(outcome TaskOutcome)

// RunnerOptions configures output capture and completion observation.
type RunnerOptions struct {
	// LogDirectory receives one stdout and one stderr log file per task.
	// An empty value disables file capture.
	LogDirectory string
	// Console mirrors every captured line to the invoking user in real time.
	// A nil value disables mirroring.
	Console io.Writer
	// Observer is invoked once per task while Wait resolves, in launch order.
	Observer TaskObserver
}

type registryEntry struct {
	handle   *TaskHandle
	taskName string
}

// Runner launches tasks and aggregates their completion. The registry is
// keyed by handle with the task name attached as a label, so two tasks that
// share a name still occupy distinct entries.
type Runner struct {
	options       RunnerOptions
	registryMutex sync.Mutex
	registry      []registryEntry
	launchTime    time.Time
	waitOnce      sync.Once
	runOutcome    RunOutcome
}

// NewRunner constructs a Runner with the provided options. The console sink
// is placed behind one shared lock so concurrent tasks never interleave
// writes inside it.
func NewRunner(options RunnerOptions) *Runner {
	if options.Console != nil {
		options.Console = logstream.NewSynchronizedWriter(options.Console)
	}
	return &Runner{options: options}
}

// Launch starts the named task on its own goroutine immediately and returns
// its handle. Launching never fails and never blocks on other tasks; failures
// surface only through Wait.
func (runner *Runner) Launch(executionContext context.Context, taskName string, task TaskFunc) *TaskHandle {
	handle := &TaskHandle{completion: make(chan struct{})}

	taskLogFiles, standardOutputWriter, standardErrorWriter := runner.wireCapture(taskName, handle)

	runner.registryMutex.Lock()
	if runner.registry == nil {
		runner.launchTime = time.Now()
	}
	runner.registry = append(runner.registry, registryEntry{handle: handle, taskName: taskName})
	runner.registryMutex.Unlock()

	go func() {
		defer close(handle.completion)

		startTime := time.Now()
		taskError := task(executionContext, TaskStreams{
			StandardOutput: standardOutputWriter,
			StandardError:  standardErrorWriter,
		})
		handle.taskDuration = time.Since(startTime)
		handle.failureError = taskError

		standardOutputWriter.Close()
		standardErrorWriter.Close()
		if taskLogFiles != nil {
			taskLogFiles.Close()
		}
	}()

	return handle
}

// Wait blocks until every launched task reaches a terminal state and returns
// the aggregated outcome. Each handle is waited on exactly once, in launch
// order; repeated calls return the same outcome without waiting again.
func (runner *Runner) Wait() RunOutcome {
	runner.waitOnce.Do(func() {
		runner.registryMutex.Lock()
		registrySnapshot := make([]registryEntry, len(runner.registry))
		copy(registrySnapshot, runner.registry)
		startTime := runner.launchTime
		runner.registryMutex.Unlock()

		outcome := RunOutcome{
			Tasks:     make([]TaskOutcome, 0, len(registrySnapshot)),
			StartTime: startTime,
		}

		for _, entry := range registrySnapshot {
			<-entry.handle.completion

			taskOutcome := TaskOutcome{
				Name:                  entry.taskName,
				State:                 TaskStateSucceeded,
				Duration:              entry.handle.taskDuration,
				StandardOutputLogPath: entry.handle.stdoutLogPath,
				StandardErrorLogPath:  entry.handle.stderrLogPath,
			}
			if entry.handle.failureError != nil {
				taskOutcome.State = TaskStateFailed
				taskOutcome.FailureError = entry.handle.failureError
				outcome.FailureCount++
			}

			outcome.Tasks = append(outcome.Tasks, taskOutcome)
			if runner.options.Observer != nil {
				runner.options.Observer(taskOutcome)
			}
		}

		outcome.EndTime = time.Now()
		runner.runOutcome = outcome
	})

	return runner.runOutcome
}

// TaskCount returns how many tasks have been launched.
func (runner *Runner) TaskCount() int {
	runner.registryMutex.Lock()
	defer runner.registryMutex.Unlock()
	return len(runner.registry)
}

func (runner *Runner) wireCapture(taskName string, handle *TaskHandle) (*logstream.TaskLogFiles, *logstream.LineWriter, *logstream.LineWriter) {
	standardOutputSinks := make([]io.Writer, 0, 2)
	standardErrorSinks := make([]io.Writer, 0, 2)

	var taskLogFiles *logstream.TaskLogFiles
	if len(runner.options.LogDirectory) > 0 {
		openedLogFiles, openError := logstream.OpenTaskLogFiles(runner.options.LogDirectory, taskName)
		if openError == nil {
			taskLogFiles = openedLogFiles
			handle.stdoutLogPath = openedLogFiles.StandardOutputPath
			handle.stderrLogPath = openedLogFiles.StandardErrorPath
			standardOutputSinks = append(standardOutputSinks, openedLogFiles.StandardOutputSink())
			standardErrorSinks = append(standardErrorSinks, openedLogFiles.StandardErrorSink())
		}
	}

	if runner.options.Console != nil {
		standardOutputSinks = append(standardOutputSinks, runner.options.Console)
		standardErrorSinks = append(standardErrorSinks, runner.options.Console)
	}

	standardOutputWriter := logstream.NewLineWriter(taskName, logstream.StreamStandardOutput, standardOutputSinks...)
	standardErrorWriter := logstream.NewLineWriter(taskName, logstream.StreamStandardError, standardErrorSinks...)
	return taskLogFiles, standardOutputWriter, standardErrorWriter
}
