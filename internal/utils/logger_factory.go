package utils

import (
	"errors"
	"fmt"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel selects the minimum severity emitted by created loggers.
type LogLevel string

// LogFormat selects the encoding used by created loggers.
type LogFormat string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"

	LogFormatStructured LogFormat = "structured"
	LogFormatConsole    LogFormat = "console"

	consoleMessageKeyConstant = "message"
)

var (
	// ErrUnsupportedLogLevel indicates a log level outside the supported set.
	ErrUnsupportedLogLevel = errors.New("unsupported log level")
	// ErrUnsupportedLogFormat indicates a log format outside the supported set.
	ErrUnsupportedLogFormat = errors.New("unsupported log format")
)

// LoggerOutputs bundles the loggers produced for one configuration. The
// diagnostic logger carries structured operational events; the console logger
// carries human-facing progress messages and is a no-op under the structured
// format, where progress would corrupt the machine-readable stream.
type LoggerOutputs struct {
	DiagnosticLogger *zap.Logger
	ConsoleLogger    *zap.Logger
}

// LoggerFactory creates zap loggers bound to standard error.
type LoggerFactory struct{}

// NewLoggerFactory constructs a LoggerFactory.
func NewLoggerFactory() *LoggerFactory {
	return &LoggerFactory{}
}

// CreateLoggerOutputs builds the diagnostic and console loggers for the
// requested level and format.
func (factory *LoggerFactory) CreateLoggerOutputs(requestedLogLevel LogLevel, requestedLogFormat LogFormat) (LoggerOutputs, error) {
	zapLevel, levelError := resolveZapLevel(requestedLogLevel)
	if levelError != nil {
		return LoggerOutputs{}, levelError
	}

	standardErrorSink := zapcore.Lock(os.Stderr)

	switch requestedLogFormat {
	case LogFormatStructured:
		structuredEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
		diagnosticCore := zapcore.NewCore(structuredEncoder, standardErrorSink, zapLevel)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.NewNop(),
		}, nil
	case LogFormatConsole:
		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		diagnosticCore := zapcore.NewCore(consoleEncoder, standardErrorSink, zapLevel)

		messageOnlyEncoderConfiguration := zapcore.EncoderConfig{
			MessageKey: consoleMessageKeyConstant,
			LineEnding: zapcore.DefaultLineEnding,
		}
		consoleCore := zapcore.NewCore(zapcore.NewConsoleEncoder(messageOnlyEncoderConfiguration), standardErrorSink, zapLevel)
		return LoggerOutputs{
			DiagnosticLogger: zap.New(diagnosticCore),
			ConsoleLogger:    zap.New(consoleCore),
		}, nil
	default:
		return LoggerOutputs{}, fmt.Errorf("%w: %s", ErrUnsupportedLogFormat, requestedLogFormat)
	}
}

func resolveZapLevel(requestedLogLevel LogLevel) (zapcore.Level, error) {
	switch requestedLogLevel {
	case LogLevelDebug:
		return zap.DebugLevel, nil
	case LogLevelInfo:
		return zap.InfoLevel, nil
	case LogLevelWarn:
		return zap.WarnLevel, nil
	case LogLevelError:
		return zap.ErrorLevel, nil
	default:
		return zap.InfoLevel, fmt.Errorf("%w: %s", ErrUnsupportedLogLevel, requestedLogLevel)
	}
}
