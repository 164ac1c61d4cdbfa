package lib

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	LogDirectory = "logs"
	LogFileName  = "node.log"
)

/*
	This file implements the leveled node logger (Debug, Info, Warn, Error, Fatal) with colored output.
	Output goes to a configured writer, or to stdout plus an auto-rotating log file in the data directory.
	Sub-loggers created with WithModule() share the writer and tag each line with the module name.
*/

func init() {
	color.NoColor = false
}

// LoggerI defines the interface for various logging levels and formatted output
type LoggerI interface {
	Debug(msg string)
	Info(msg string)
	Warn(msg string)
	Error(msg string)
	Fatal(msg string)
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
	Fatalf(format string, args ...interface{})
	WithModule(module string) LoggerI
}

const (
	DebugLevel int32 = -4
	InfoLevel  int32 = 0
	WarnLevel  int32 = 4
	ErrorLevel int32 = 8

	Reset = iota
	RED
	GREEN
	YELLOW
	BLUE
	GRAY
	CYAN
)

var _ LoggerI = &Logger{}

// LoggerConfig holds configuration settings for the logger
type LoggerConfig struct {
	Level       int32     `json:"level"`       // minimum level that is written
	Out         io.Writer `json:"-"`           // destination; when nil a rotating file + stdout is used
	MaxSizeMB   int       `json:"maxSizeMB"`   // size of a log file before it is rotated
	MaxBackups  int       `json:"maxBackups"`  // number of rotated files kept
	MaxAgeDays  int       `json:"maxAgeDays"`  // age in days after which rotated files are removed
	NoTimestamp bool      `json:"noTimestamp"` // omit the timestamp prefix (used by tests that match output)
}

// Logger is the concrete implementation of LoggerI
type Logger struct {
	config LoggerConfig
	module string
}

// Debug() logs a message at the Debug level
func (l *Logger) Debug(msg string) { l.log(DebugLevel, BLUE, "DEBUG", msg) }

// Info() logs a message at the Info level
func (l *Logger) Info(msg string) { l.log(InfoLevel, GREEN, "INFO", msg) }

// Warn() logs a message at the Warn level
func (l *Logger) Warn(msg string) { l.log(WarnLevel, YELLOW, "WARN", msg) }

// Error() logs a message at the Error level
func (l *Logger) Error(msg string) { l.log(ErrorLevel, RED, "ERROR", msg) }

// Fatal() logs an error message and terminates the program
func (l *Logger) Fatal(msg string) {
	l.write(RED, "FATAL", msg)
	os.Exit(1)
}

func (l *Logger) Debugf(format string, args ...interface{}) { l.Debug(fmt.Sprintf(format, args...)) }
func (l *Logger) Infof(format string, args ...interface{})  { l.Info(fmt.Sprintf(format, args...)) }
func (l *Logger) Warnf(format string, args ...interface{})  { l.Warn(fmt.Sprintf(format, args...)) }
func (l *Logger) Errorf(format string, args ...interface{}) { l.Error(fmt.Sprintf(format, args...)) }
func (l *Logger) Fatalf(format string, args ...interface{}) { l.Fatal(fmt.Sprintf(format, args...)) }

// WithModule() returns a logger writing to the same destination that tags every line with the module
func (l *Logger) WithModule(module string) LoggerI {
	if l.module != "" {
		module = l.module + "/" + module
	}
	return &Logger{config: l.config, module: module}
}

// log() writes the message if the level is enabled
func (l *Logger) log(level int32, c int, tag, msg string) {
	if l.config.Level > level {
		return
	}
	l.write(c, tag, msg)
}

// write() outputs the log line with a timestamp and module tag to the configured writer
func (l *Logger) write(c int, tag, msg string) {
	var b strings.Builder
	if !l.config.NoTimestamp {
		b.WriteString(colorString(GRAY, time.Now().Format(time.StampMilli)))
		b.WriteByte(' ')
	}
	if l.module != "" {
		b.WriteString(colorString(CYAN, "["+l.module+"]"))
		b.WriteByte(' ')
	}
	b.WriteString(colorString(c, tag+": "+msg))
	b.WriteByte('\n')
	if _, err := io.WriteString(l.config.Out, b.String()); err != nil {
		fmt.Println(newLogError(err))
	}
}

// NewLogger() creates a new Logger instance with the specified configuration and optional data directory path
func NewLogger(config LoggerConfig, dataDirPath ...string) LoggerI {
	if config.Out == nil {
		dir := DefaultDataDirPath()
		if len(dataDirPath) != 0 && dataDirPath[0] != "" {
			dir = dataDirPath[0]
		}
		logDir := filepath.Join(dir, LogDirectory)
		if _, err := os.Stat(logDir); errors.Is(err, os.ErrNotExist) {
			if err = os.MkdirAll(logDir, os.ModePerm); err != nil {
				panic(err)
			}
		}
		config.Out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   filepath.Join(logDir, LogFileName),
			MaxSize:    nonZero(config.MaxSizeMB, 10),
			MaxBackups: nonZero(config.MaxBackups, 100),
			MaxAge:     nonZero(config.MaxAgeDays, 14),
			Compress:   true,
		})
	}
	return &Logger{config: config}
}

// NewDefaultLogger() creates a Logger logging at the Debug level to stdout
func NewDefaultLogger() LoggerI {
	return NewLogger(LoggerConfig{Level: DebugLevel, Out: os.Stdout})
}

// NewNullLogger() creates a Logger that discards all log output
func NewNullLogger() LoggerI {
	return NewLogger(LoggerConfig{Level: DebugLevel, Out: io.Discard})
}

// ParseLogLevel() converts a user level string into a log level; any level includes the levels above it
func ParseLogLevel(level string) int32 {
	switch l := strings.ToLower(level); {
	case strings.Contains(l, "deb"):
		return DebugLevel
	case strings.Contains(l, "inf"):
		return InfoLevel
	case strings.Contains(l, "war"):
		return WarnLevel
	case strings.Contains(l, "err"):
		return ErrorLevel
	default:
		return DebugLevel
	}
}

// colorString() returns a string with color applied, preserving line breaks
func colorString(c int, msg string) string {
	parts := strings.Split(msg, "\n")
	for i, part := range parts {
		parts[i] = cString(c, part)
	}
	return strings.Join(parts, "\n")
}

// cString() returns a string with a specific color applied
func cString(c int, msg string) string {
	switch c {
	case BLUE:
		return color.BlueString(msg)
	case RED:
		return color.RedString(msg)
	case YELLOW:
		return color.YellowString(msg)
	case GREEN:
		return color.GreenString(msg)
	case GRAY:
		return color.HiBlackString(msg)
	case CYAN:
		return color.CyanString(msg)
	default:
		return color.WhiteString(msg)
	}
}

func nonZero(v, def int) int {
	if v == 0 {
		return def
	}
	return v
}
