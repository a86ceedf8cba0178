package taskrunner_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rigup/pkg/taskrunner"
)

const (
	testRunnerSubtestTemplateConstant      = "%d_%s"
	testCaseAllTasksSucceedNameConstant    = "all_tasks_succeed"
	testCaseSingleFailureNameConstant      = "single_task_fails"
	testCaseAllTasksFailNameConstant       = "all_tasks_fail"
	testCaseNoTasksLaunchedNameConstant    = "no_tasks_launched"
	testTaskFailureMessageConstant         = "install step failed"
	testTaskNameTemplateConstant           = "task-%c"
	testDuplicateTaskNameConstant          = "docker"
	testObservedLineTemplateConstant       = "observed %s"
	testCapturedStdoutContentConstant      = "downloading bundle"
	testCapturedStderrContentConstant      = "checksum mismatch"
	testConcurrentLaunchTaskCountConstant  = 4
	testConcurrentLaunchSettleMilliseconds = 500
	testConsoleMirrorTaskCountConstant     = 4
	testConsoleMirrorLinesPerTaskConstant  = 200
	testConsoleMirrorTaskTemplateConstant  = "mirror-task-%d"
	testConsoleMirrorLineTemplateConstant  = "payload-%d-%d\n"
)

func TestRunnerAggregatesTerminalStates(testInstance *testing.T) {
	taskFailure := errors.New(testTaskFailureMessageConstant)

	testCases := []struct {
		name                 string
		taskErrors           []error
		expectedFailureCount int
		expectedStates       []taskrunner.TaskState
	}{
		{
			name:                 testCaseAllTasksSucceedNameConstant,
			taskErrors:           []error{nil, nil, nil, nil},
			expectedFailureCount: 0,
			expectedStates: []taskrunner.TaskState{
				taskrunner.TaskStateSucceeded,
				taskrunner.TaskStateSucceeded,
				taskrunner.TaskStateSucceeded,
				taskrunner.TaskStateSucceeded,
			},
		},
		{
			name:                 testCaseSingleFailureNameConstant,
			taskErrors:           []error{nil, nil, taskFailure, nil},
			expectedFailureCount: 1,
			expectedStates: []taskrunner.TaskState{
				taskrunner.TaskStateSucceeded,
				taskrunner.TaskStateSucceeded,
				taskrunner.TaskStateFailed,
				taskrunner.TaskStateSucceeded,
			},
		},
		{
			name:                 testCaseAllTasksFailNameConstant,
			taskErrors:           []error{taskFailure, taskFailure},
			expectedFailureCount: 2,
			expectedStates: []taskrunner.TaskState{
				taskrunner.TaskStateFailed,
				taskrunner.TaskStateFailed,
			},
		},
		{
			name:                 testCaseNoTasksLaunchedNameConstant,
			taskErrors:           nil,
			expectedFailureCount: 0,
			expectedStates:       nil,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testRunnerSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			runner := taskrunner.NewRunner(taskrunner.RunnerOptions{})

			for taskIndex, taskError := range testCase.taskErrors {
				launchedTaskError := taskError
				taskName := fmt.Sprintf(testTaskNameTemplateConstant, 'a'+taskIndex)
				runner.Launch(context.Background(), taskName, func(context.Context, taskrunner.TaskStreams) error {
					return launchedTaskError
				})
			}

			outcome := runner.Wait()

			require.Equal(testInstance, len(testCase.taskErrors), len(outcome.Tasks))
			require.Equal(testInstance, testCase.expectedFailureCount, outcome.FailureCount)
			require.Equal(testInstance, testCase.expectedFailureCount == 0, outcome.Succeeded())
			require.Len(testInstance, outcome.FailedTasks(), testCase.expectedFailureCount)

			for taskIndex, taskOutcome := range outcome.Tasks {
				require.Equal(testInstance, testCase.expectedStates[taskIndex], taskOutcome.State)
				if taskOutcome.Failed() {
					require.ErrorIs(testInstance, taskOutcome.FailureError, taskFailure)
				} else {
					require.NoError(testInstance, taskOutcome.FailureError)
				}
			}
		})
	}
}

func TestRunnerWaitReportsInLaunchOrderAndOnlyOnce(testInstance *testing.T) {
	var observedNames []string
	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{
		Observer: func(outcome taskrunner.TaskOutcome) {
			observedNames = append(observedNames, outcome.Name)
		},
	})

	releaseFirstTask := make(chan struct{})
	runner.Launch(context.Background(), "first", func(context.Context, taskrunner.TaskStreams) error {
		<-releaseFirstTask
		return nil
	})
	runner.Launch(context.Background(), "second", func(context.Context, taskrunner.TaskStreams) error {
		return nil
	})
	runner.Launch(context.Background(), "third", func(context.Context, taskrunner.TaskStreams) error {
		return nil
	})
	close(releaseFirstTask)

	firstOutcome := runner.Wait()
	secondOutcome := runner.Wait()

	require.Equal(testInstance, []string{"first", "second", "third"}, observedNames)
	require.Equal(testInstance, firstOutcome, secondOutcome)
	require.Equal(testInstance, 3, runner.TaskCount())
}

func TestRunnerLaunchDoesNotBlockOnSlowSiblings(testInstance *testing.T) {
	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{})

	var runningTaskCount int
	var peakConcurrentCount int
	var concurrencyMutex sync.Mutex
	allTasksRunning := make(chan struct{})
	releaseTasks := make(chan struct{})

	for taskIndex := 0; taskIndex < testConcurrentLaunchTaskCountConstant; taskIndex++ {
		taskName := fmt.Sprintf(testTaskNameTemplateConstant, 'a'+taskIndex)
		runner.Launch(context.Background(), taskName, func(context.Context, taskrunner.TaskStreams) error {
			concurrencyMutex.Lock()
			runningTaskCount++
			if runningTaskCount > peakConcurrentCount {
				peakConcurrentCount = runningTaskCount
			}
			if runningTaskCount == testConcurrentLaunchTaskCountConstant {
				close(allTasksRunning)
			}
			concurrencyMutex.Unlock()

			<-releaseTasks

			concurrencyMutex.Lock()
			runningTaskCount--
			concurrencyMutex.Unlock()
			return nil
		})
	}

	select {
	case <-allTasksRunning:
	case <-time.After(testConcurrentLaunchSettleMilliseconds * time.Millisecond):
		testInstance.Fatal("tasks did not all start concurrently")
	}
	close(releaseTasks)

	outcome := runner.Wait()
	require.Equal(testInstance, testConcurrentLaunchTaskCountConstant, len(outcome.Tasks))
	require.Equal(testInstance, testConcurrentLaunchTaskCountConstant, peakConcurrentCount)
	require.True(testInstance, outcome.Succeeded())
}

func TestRunnerKeepsDuplicateNamesAsDistinctEntries(testInstance *testing.T) {
	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{})

	runner.Launch(context.Background(), testDuplicateTaskNameConstant, func(context.Context, taskrunner.TaskStreams) error {
		return nil
	})
	runner.Launch(context.Background(), testDuplicateTaskNameConstant, func(context.Context, taskrunner.TaskStreams) error {
		return errors.New(testTaskFailureMessageConstant)
	})

	outcome := runner.Wait()

	require.Len(testInstance, outcome.Tasks, 2)
	require.Equal(testInstance, testDuplicateTaskNameConstant, outcome.Tasks[0].Name)
	require.Equal(testInstance, testDuplicateTaskNameConstant, outcome.Tasks[1].Name)
	require.Equal(testInstance, taskrunner.TaskStateSucceeded, outcome.Tasks[0].State)
	require.Equal(testInstance, taskrunner.TaskStateFailed, outcome.Tasks[1].State)
	require.Equal(testInstance, 1, outcome.FailureCount)
}

func TestRunnerCapturesStreamsToLogFilesAndConsole(testInstance *testing.T) {
	logDirectory := testInstance.TempDir()
	console := &bytes.Buffer{}

	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{
		LogDirectory: logDirectory,
		Console:      console,
	})

	handleTaskName := "awscli"
	runner.Launch(context.Background(), handleTaskName, func(_ context.Context, streams taskrunner.TaskStreams) error {
		fmt.Fprintln(streams.StandardOutput, testCapturedStdoutContentConstant)
		fmt.Fprintln(streams.StandardError, testCapturedStderrContentConstant)
		return nil
	})

	outcome := runner.Wait()
	require.True(testInstance, outcome.Succeeded())

	taskOutcome := outcome.Tasks[0]
	require.Equal(testInstance, filepath.Join(logDirectory, handleTaskName+".stdout.log"), taskOutcome.StandardOutputLogPath)
	require.Equal(testInstance, filepath.Join(logDirectory, handleTaskName+".stderr.log"), taskOutcome.StandardErrorLogPath)

	stdoutContent, stdoutReadError := os.ReadFile(taskOutcome.StandardOutputLogPath)
	require.NoError(testInstance, stdoutReadError)
	require.Contains(testInstance, string(stdoutContent), "[awscli stdout] "+testCapturedStdoutContentConstant)

	stderrContent, stderrReadError := os.ReadFile(taskOutcome.StandardErrorLogPath)
	require.NoError(testInstance, stderrReadError)
	require.Contains(testInstance, string(stderrContent), "[awscli stderr] "+testCapturedStderrContentConstant)

	consoleContent := console.String()
	require.Contains(testInstance, consoleContent, testCapturedStdoutContentConstant)
	require.Contains(testInstance, consoleContent, testCapturedStderrContentConstant)
}

func TestRenderSummaryLine(testInstance *testing.T) {
	startTime := time.Now()
	outcome := taskrunner.RunOutcome{
		Tasks: []taskrunner.TaskOutcome{
			{Name: "a", State: taskrunner.TaskStateSucceeded},
			{Name: "b", State: taskrunner.TaskStateFailed},
		},
		FailureCount: 1,
		StartTime:    startTime,
		EndTime:      startTime.Add(1500 * time.Millisecond),
	}

	summaryLine := taskrunner.RenderSummaryLine(outcome)
	require.True(testInstance, strings.HasPrefix(summaryLine, "Summary: total.tasks=2"))
	require.Contains(testInstance, summaryLine, "succeeded=1")
	require.Contains(testInstance, summaryLine, "failed=1")
	require.Contains(testInstance, summaryLine, "duration_ms=1500")

	require.Empty(testInstance, taskrunner.RenderSummaryLine(taskrunner.RunOutcome{}))
}

func TestObserverReceivesFormattedOutcomes(testInstance *testing.T) {
	var observedLines []string
	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{
		Observer: func(outcome taskrunner.TaskOutcome) {
			observedLines = append(observedLines, fmt.Sprintf(testObservedLineTemplateConstant, outcome.State))
		},
	})

	runner.Launch(context.Background(), "one", func(context.Context, taskrunner.TaskStreams) error { return nil })
	runner.Launch(context.Background(), "two", func(context.Context, taskrunner.TaskStreams) error {
		return errors.New(testTaskFailureMessageConstant)
	})
	runner.Wait()

	require.Equal(testInstance, []string{"observed succeeded", "observed failed"}, observedLines)
}

func TestRunnerMirrorsConcurrentTaskOutputAsWholeLines(testInstance *testing.T) {
	consoleBuffer := &bytes.Buffer{}
	runner := taskrunner.NewRunner(taskrunner.RunnerOptions{Console: consoleBuffer})

	for taskIndex := 0; taskIndex < testConsoleMirrorTaskCountConstant; taskIndex++ {
		taskIdentifier := taskIndex
		taskName := fmt.Sprintf(testConsoleMirrorTaskTemplateConstant, taskIdentifier)
		runner.Launch(context.Background(), taskName, func(_ context.Context, streams taskrunner.TaskStreams) error {
			for lineIndex := 0; lineIndex < testConsoleMirrorLinesPerTaskConstant; lineIndex++ {
				if _, writeError := fmt.Fprintf(streams.StandardOutput, testConsoleMirrorLineTemplateConstant, taskIdentifier, lineIndex); writeError != nil {
					return writeError
				}
			}
			return nil
		})
	}

	outcome := runner.Wait()
	require.True(testInstance, outcome.Succeeded())

	capturedLines := strings.Split(strings.TrimRight(consoleBuffer.String(), "\n"), "\n")
	require.Len(testInstance, capturedLines, testConsoleMirrorTaskCountConstant*testConsoleMirrorLinesPerTaskConstant)

	lineCountsByTask := make(map[string]int)
	for _, capturedLine := range capturedLines {
		var lineTaskIdentifier, linePayloadTask, linePayloadIndex int
		scannedCount, scanError := fmt.Sscanf(capturedLine, "[mirror-task-%d stdout] payload-%d-%d", &lineTaskIdentifier, &linePayloadTask, &linePayloadIndex)
		require.NoError(testInstance, scanError)
		require.Equal(testInstance, 3, scannedCount)
		require.Equal(testInstance, lineTaskIdentifier, linePayloadTask)
		lineCountsByTask[fmt.Sprintf(testConsoleMirrorTaskTemplateConstant, lineTaskIdentifier)]++
	}
	for taskIndex := 0; taskIndex < testConsoleMirrorTaskCountConstant; taskIndex++ {
		require.Equal(testInstance, testConsoleMirrorLinesPerTaskConstant, lineCountsByTask[fmt.Sprintf(testConsoleMirrorTaskTemplateConstant, taskIndex)])
	}
}
