package logstream_test

import (
	"bytes"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/tyemirov/rigup/internal/logstream"
)

const (
	testLineWriterTaskNameConstant            = "docker"
	testLineWriterSubtestTemplateConstant     = "%d_%s"
	testCaseSingleLineNameConstant            = "single_line"
	testCaseSplitWritesNameConstant           = "line_split_across_writes"
	testCaseMultipleLinesNameConstant         = "multiple_lines_in_one_write"
	testCaseTrailingRemainderNameConstant     = "unterminated_line_flushed_on_close"
	testCaseEmptyPayloadNameConstant          = "empty_payload"
	testConcurrentWriterTaskCountConstant     = 8
	testConcurrentWriterLinesPerTaskConstant  = 50
	testConcurrentWriterLineTemplateConstant  = "task-%d line-%d\n"
	testConcurrentWriterTaskTemplateConstant  = "task-%d"
	testConcurrentWriterPrefixCheckCharacters = "["
)

func TestLineWriterForwardsCompleteLines(testInstance *testing.T) {
	testCases := []struct {
		name          string
		writes        []string
		expectedLines []string
	}{
		{
			name:          testCaseSingleLineNameConstant,
			writes:        []string{"installing engine\n"},
			expectedLines: []string{"[docker stdout] installing engine"},
		},
		{
			name:          testCaseSplitWritesNameConstant,
			writes:        []string{"instal", "ling eng", "ine\n"},
			expectedLines: []string{"[docker stdout] installing engine"},
		},
		{
			name:          testCaseMultipleLinesNameConstant,
			writes:        []string{"first\nsecond\nthird\n"},
			expectedLines: []string{"[docker stdout] first", "[docker stdout] second", "[docker stdout] third"},
		},
		{
			name:          testCaseTrailingRemainderNameConstant,
			writes:        []string{"complete\npartial"},
			expectedLines: []string{"[docker stdout] complete", "[docker stdout] partial"},
		},
		{
			name:          testCaseEmptyPayloadNameConstant,
			writes:        []string{""},
			expectedLines: nil,
		},
	}

	for testCaseIndex, testCase := range testCases {
		testInstance.Run(fmt.Sprintf(testLineWriterSubtestTemplateConstant, testCaseIndex, testCase.name), func(testInstance *testing.T) {
			firstSink := &bytes.Buffer{}
			secondSink := &bytes.Buffer{}
			lineWriter := logstream.NewLineWriter(testLineWriterTaskNameConstant, logstream.StreamStandardOutput, firstSink, secondSink)

			for _, payload := range testCase.writes {
				writtenCount, writeError := lineWriter.Write([]byte(payload))
				require.NoError(testInstance, writeError)
				require.Equal(testInstance, len(payload), writtenCount)
			}
			require.NoError(testInstance, lineWriter.Close())

			for _, sink := range []*bytes.Buffer{firstSink, secondSink} {
				capturedLines := splitNonEmptyLines(sink.String())
				require.Equal(testInstance, testCase.expectedLines, capturedLines)
			}
		})
	}
}

func TestLineWriterConcurrentTasksNeverInterleavePartialLines(testInstance *testing.T) {
	consoleBuffer := &bytes.Buffer{}
	sharedConsole := logstream.NewSynchronizedWriter(consoleBuffer)

	var waitGroup sync.WaitGroup
	for taskIndex := 0; taskIndex < testConcurrentWriterTaskCountConstant; taskIndex++ {
		waitGroup.Add(1)
		go func(taskIdentifier int) {
			defer waitGroup.Done()

			taskName := fmt.Sprintf(testConcurrentWriterTaskTemplateConstant, taskIdentifier)
			lineWriter := logstream.NewLineWriter(taskName, logstream.StreamStandardError, sharedConsole)
			for lineIndex := 0; lineIndex < testConcurrentWriterLinesPerTaskConstant; lineIndex++ {
				line := fmt.Sprintf(testConcurrentWriterLineTemplateConstant, taskIdentifier, lineIndex)
				for characterIndex := 0; characterIndex < len(line); characterIndex++ {
					_, writeError := lineWriter.Write([]byte{line[characterIndex]})
					require.NoError(testInstance, writeError)
				}
			}
			require.NoError(testInstance, lineWriter.Close())
		}(taskIndex)
	}
	waitGroup.Wait()

	capturedLines := splitNonEmptyLines(consoleBuffer.String())
	require.Len(testInstance, capturedLines, testConcurrentWriterTaskCountConstant*testConcurrentWriterLinesPerTaskConstant)
	for _, capturedLine := range capturedLines {
		require.True(testInstance, strings.HasPrefix(capturedLine, testConcurrentWriterPrefixCheckCharacters))
		require.Contains(testInstance, capturedLine, "] task-")
	}
}

func TestNewSynchronizedWriterReusesExistingLock(testInstance *testing.T) {
	destination := &bytes.Buffer{}

	firstWrapper := logstream.NewSynchronizedWriter(destination)
	secondWrapper := logstream.NewSynchronizedWriter(firstWrapper)

	require.Same(testInstance, firstWrapper, secondWrapper)

	writtenCount, writeError := secondWrapper.Write([]byte("engine ready\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, len("engine ready\n"), writtenCount)
	require.Equal(testInstance, "engine ready\n", destination.String())
}

func splitNonEmptyLines(content string) []string {
	trimmedContent := strings.TrimRight(content, "\n")
	if len(trimmedContent) == 0 {
		return nil
	}
	return strings.Split(trimmedContent, "\n")
}
