package logstream

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	logDirectoryPermissionConstant          = 0o755
	logFilePermissionConstant               = 0o644
	standardOutputLogFileTemplateConstant   = "%s.stdout.log"
	standardErrorLogFileTemplateConstant    = "%s.stderr.log"
	logDirectoryCreationErrorTemplate       = "unable to create log directory %s: %w"
	logFileCreationErrorTemplateConstant    = "unable to open log file %s: %w"
	logFileOpenFlagsConstant                = os.O_CREATE | os.O_WRONLY | os.O_APPEND
	tailReadErrorTemplateConstant           = "unable to read log file %s: %w"
	emptyTaskNameSanitizedReplacementSymbol = "_"
)

// TaskLogFiles owns the append-only per-task log files for both process streams.
type TaskLogFiles struct {
	StandardOutputPath string
	StandardErrorPath  string
	standardOutputFile *os.File
	standardErrorFile  *os.File
}

// OpenTaskLogFiles creates the log directory when missing and opens one
// append-only file per stream for the named task.
func OpenTaskLogFiles(logDirectory string, taskName string) (*TaskLogFiles, error) {
	if directoryError := os.MkdirAll(logDirectory, logDirectoryPermissionConstant); directoryError != nil {
		return nil, fmt.Errorf(logDirectoryCreationErrorTemplate, logDirectory, directoryError)
	}

	sanitizedTaskName := sanitizeTaskFileName(taskName)
	standardOutputPath := filepath.Join(logDirectory, fmt.Sprintf(standardOutputLogFileTemplateConstant, sanitizedTaskName))
	standardErrorPath := filepath.Join(logDirectory, fmt.Sprintf(standardErrorLogFileTemplateConstant, sanitizedTaskName))

	standardOutputFile, standardOutputError := os.OpenFile(standardOutputPath, logFileOpenFlagsConstant, logFilePermissionConstant)
	if standardOutputError != nil {
		return nil, fmt.Errorf(logFileCreationErrorTemplateConstant, standardOutputPath, standardOutputError)
	}

	standardErrorFile, standardErrorError := os.OpenFile(standardErrorPath, logFileOpenFlagsConstant, logFilePermissionConstant)
	if standardErrorError != nil {
		standardOutputFile.Close()
		return nil, fmt.Errorf(logFileCreationErrorTemplateConstant, standardErrorPath, standardErrorError)
	}

	return &TaskLogFiles{
		StandardOutputPath: standardOutputPath,
		StandardErrorPath:  standardErrorPath,
		standardOutputFile: standardOutputFile,
		standardErrorFile:  standardErrorFile,
	}, nil
}

// StandardOutputSink returns the writer backing the stdout log file.
func (files *TaskLogFiles) StandardOutputSink() *os.File {
	return files.standardOutputFile
}

// StandardErrorSink returns the writer backing the stderr log file.
func (files *TaskLogFiles) StandardErrorSink() *os.File {
	return files.standardErrorFile
}

// Close closes both underlying log files.
func (files *TaskLogFiles) Close() error {
	var firstError error
	if files.standardOutputFile != nil {
		if closeError := files.standardOutputFile.Close(); closeError != nil {
			firstError = closeError
		}
	}
	if files.standardErrorFile != nil {
		if closeError := files.standardErrorFile.Close(); closeError != nil && firstError == nil {
			firstError = closeError
		}
	}
	return firstError
}

// TailLines returns up to lineCount trailing lines from the file at the
// provided path. A missing file yields an empty slice rather than an error so
// callers reporting failures do not mask the original failure.
func TailLines(filePath string, lineCount int) ([]string, error) {
	if lineCount <= 0 {
		return nil, nil
	}

	fileContent, readError := os.ReadFile(filePath)
	if readError != nil {
		if os.IsNotExist(readError) {
			return nil, nil
		}
		return nil, fmt.Errorf(tailReadErrorTemplateConstant, filePath, readError)
	}

	trimmedContent := strings.TrimRight(string(fileContent), "\n")
	if len(trimmedContent) == 0 {
		return nil, nil
	}

	allLines := strings.Split(trimmedContent, "\n")
	if len(allLines) <= lineCount {
		return allLines, nil
	}

	return allLines[len(allLines)-lineCount:], nil
}

func sanitizeTaskFileName(taskName string) string {
	trimmedName := strings.TrimSpace(taskName)
	if len(trimmedName) == 0 {
		return emptyTaskNameSanitizedReplacementSymbol
	}

	return strings.Map(func(character rune) rune {
		switch character {
		case '/', '\\', ':':
			return '_'
		}
		return character
	}, trimmedName)
}
