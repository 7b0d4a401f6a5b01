package log

import (
	"io"
	"os"
)

// Level specifies the log level
type Level int

const (
	// DebugLevel is the most verbose level
	DebugLevel Level = iota
	// InfoLevel is the default level
	InfoLevel
	// WarningLevel logs anything that needs attention
	WarningLevel
	// ErrorLevel logs failures
	ErrorLevel
)

func (l Level) String() string {
	switch l {
	case DebugLevel:
		return "DEBUG"
	case InfoLevel:
		return "INFO"
	case WarningLevel:
		return "WARNING"
	case ErrorLevel:
		return "ERROR"
	default:
		return ""
	}
}

// Logger is the logging surface used by the runtime and the supervisors.
type Logger interface {
	Debug(...any)
	Debugf(string, ...any)
	Info(...any)
	Infof(string, ...any)
	Warn(...any)
	Warnf(string, ...any)
	Error(...any)
	Errorf(string, ...any)
	// LogLevel returns the minimum level being logged
	LogLevel() Level
	// LogOutput returns the writers the logger writes to
	LogOutput() []io.Writer
}

var (
	// DefaultLogger logs at InfoLevel and above to os.Stdout
	DefaultLogger Logger = NewZap(InfoLevel, os.Stdout)
	// DebugLogger logs everything to os.Stdout
	DebugLogger Logger = NewZap(DebugLevel, os.Stdout)
	// DiscardLogger drops every message
	DiscardLogger Logger = discardLogger{}
)

type discardLogger struct{}

var discardOutputs = []io.Writer{io.Discard}

func (discardLogger) Debug(...any)           {}
func (discardLogger) Debugf(string, ...any)  {}
func (discardLogger) Info(...any)            {}
func (discardLogger) Infof(string, ...any)   {}
func (discardLogger) Warn(...any)            {}
func (discardLogger) Warnf(string, ...any)   {}
func (discardLogger) Error(...any)           {}
func (discardLogger) Errorf(string, ...any)  {}
func (discardLogger) LogLevel() Level        { return InfoLevel }
func (discardLogger) LogOutput() []io.Writer { return discardOutputs }
