package lib

import (
	"bytes"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewDefaultLogger(t *testing.T) {
	// pre-define expected
	expected := NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   os.Stdout,
	})
	// execute the function call
	got := NewDefaultLogger()
	// compare got vs expected
	require.Equal(t, expected, got)
}

func TestNewNullLogger(t *testing.T) {
	// pre-define expected
	expected := NewLogger(LoggerConfig{
		Level: DebugLevel,
		Out:   io.Discard,
	})
	// execute the function call
	got := NewNullLogger()
	// compare got vs expected
	require.Equal(t, expected, got)
}

func TestLoggerLevels(t *testing.T) {
	tests := []struct {
		name     string
		level    int32
		write    func(l LoggerI)
		tag      string
		expected bool
	}{
		{
			name:     "debug written at debug level",
			level:    DebugLevel,
			write:    func(l LoggerI) { l.Debugf("%s %s", "arg1", "arg2") },
			tag:      "DEBUG:",
			expected: true,
		},
		{
			name:     "debug filtered at info level",
			level:    InfoLevel,
			write:    func(l LoggerI) { l.Debug("arg1 arg2") },
			tag:      "DEBUG:",
			expected: false,
		},
		{
			name:     "info written at info level",
			level:    InfoLevel,
			write:    func(l LoggerI) { l.Infof("%s %s", "arg1", "arg2") },
			tag:      "INFO:",
			expected: true,
		},
		{
			name:     "warn filtered at error level",
			level:    ErrorLevel,
			write:    func(l LoggerI) { l.Warn("arg1 arg2") },
			tag:      "WARN:",
			expected: false,
		},
		{
			name:     "error written at warn level",
			level:    WarnLevel,
			write:    func(l LoggerI) { l.Errorf("%s %s", "arg1", "arg2") },
			tag:      "ERROR:",
			expected: true,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			buf := bytes.NewBuffer(nil)
			logger := NewLogger(LoggerConfig{Level: test.level, Out: buf, NoTimestamp: true})
			test.write(logger)
			got := buf.String()
			if !test.expected {
				require.Empty(t, got)
				return
			}
			require.Contains(t, got, test.tag)
			require.Contains(t, got, "arg1 arg2")
			require.True(t, strings.HasSuffix(got, "\n"))
		})
	}
}

func TestLoggerWithModule(t *testing.T) {
	buf := bytes.NewBuffer(nil)
	logger := NewLogger(LoggerConfig{Level: DebugLevel, Out: buf, NoTimestamp: true})
	// nested modules are joined with a slash
	logger.WithModule("committee").WithModule("sync").Info("hello")
	require.Contains(t, buf.String(), "[committee/sync]")
	require.Contains(t, buf.String(), "hello")
}

func TestParseLogLevel(t *testing.T) {
	require.Equal(t, DebugLevel, ParseLogLevel("debug"))
	require.Equal(t, InfoLevel, ParseLogLevel("INFO"))
	require.Equal(t, WarnLevel, ParseLogLevel("warning"))
	require.Equal(t, ErrorLevel, ParseLogLevel("error"))
	require.Equal(t, DebugLevel, ParseLogLevel("unknown"))
}
