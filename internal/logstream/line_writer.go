package logstream

import (
	"bytes"
	"fmt"
	"io"
	"sync"
)

const (
	linePrefixTemplateConstant = "[%s %s] "
	newlineByteConstant        = '\n'
)

// StreamKind identifies which process stream a line originated from.
type StreamKind string

// Supported stream kinds.
const (
	StreamStandardOutput StreamKind = "stdout"
	StreamStandardError  StreamKind = "stderr"
)

// LineWriter buffers incoming bytes and forwards complete lines to every sink.
// Each line is prefixed with the task name and stream kind before fan-out, and
// a line is written to all sinks before the next line is processed, so sinks
// never observe partial lines.
type LineWriter struct {
	taskName   string
	streamKind StreamKind
	sinks      []io.Writer
	mutex      sync.Mutex
	pending    bytes.Buffer
}

// NewLineWriter constructs a LineWriter labeled with the task name and stream kind.
func NewLineWriter(taskName string, streamKind StreamKind, sinks ...io.Writer) *LineWriter {
	retainedSinks := make([]io.Writer, 0, len(sinks))
	for _, sink := range sinks {
		if sink == nil {
			continue
		}
		retainedSinks = append(retainedSinks, sink)
	}

	return &LineWriter{
		taskName:   taskName,
		streamKind: streamKind,
		sinks:      retainedSinks,
	}
}

// Write implements io.Writer. Incoming bytes are split on newlines; every
// completed line is forwarded to all sinks while trailing bytes remain
// buffered until the next write or Close.
func (writer *LineWriter) Write(payload []byte) (int, error) {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	writer.pending.Write(payload)

	for {
		bufferedBytes := writer.pending.Bytes()
		newlineIndex := bytes.IndexByte(bufferedBytes, newlineByteConstant)
		if newlineIndex < 0 {
			break
		}

		lineBytes := make([]byte, newlineIndex)
		copy(lineBytes, bufferedBytes[:newlineIndex])
		writer.pending.Next(newlineIndex + 1)

		if forwardError := writer.forwardLine(lineBytes); forwardError != nil {
			return len(payload), forwardError
		}
	}

	return len(payload), nil
}

// Close flushes any trailing unterminated line to the sinks.
func (writer *LineWriter) Close() error {
	writer.mutex.Lock()
	defer writer.mutex.Unlock()

	if writer.pending.Len() == 0 {
		return nil
	}

	remainder := make([]byte, writer.pending.Len())
	copy(remainder, writer.pending.Bytes())
	writer.pending.Reset()

	return writer.forwardLine(remainder)
}

func (writer *LineWriter) forwardLine(lineBytes []byte) error {
	prefix := fmt.Sprintf(linePrefixTemplateConstant, writer.taskName, writer.streamKind)
	formattedLine := make([]byte, 0, len(prefix)+len(lineBytes)+1)
	formattedLine = append(formattedLine, prefix...)
	formattedLine = append(formattedLine, lineBytes...)
	formattedLine = append(formattedLine, newlineByteConstant)

	for _, sink := range writer.sinks {
		if _, writeError := sink.Write(formattedLine); writeError != nil {
			return writeError
		}
	}

	return nil
}
