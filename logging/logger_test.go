package logging

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"
)

func TestNewLogger_ConsoleFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{
		Level:  zapcore.InfoLevel,
		Format: "console",
		Output: &buf,
	})

	logger.Infow("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, "test message") {
		t.Errorf("Expected output to contain 'test message', got: %s", output)
	}
	if !strings.Contains(output, "value") {
		t.Errorf("Expected output to contain value, got: %s", output)
	}
}

func TestNewLogger_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{
		Level:  zapcore.InfoLevel,
		Format: "json",
		Output: &buf,
	})

	logger.Infow("test message", "key", "value")

	output := buf.String()
	if !strings.Contains(output, `"msg":"test message"`) {
		t.Errorf("Expected JSON output to contain msg field, got: %s", output)
	}
	if !strings.Contains(output, `"key":"value"`) {
		t.Errorf("Expected JSON output to contain key field, got: %s", output)
	}
}

func TestNewLogger_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{
		Level:  zapcore.WarnLevel,
		Format: "json",
		Output: &buf,
	})

	logger.Infow("info message")
	if strings.Contains(buf.String(), "info message") {
		t.Error("Info message should be filtered at Warn level")
	}

	logger.Warnw("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Error("Warn message should be logged at Warn level")
	}
}

func TestWithSubsystem(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	subsysLogger := WithSubsystem(logger, "fdir")
	subsysLogger.Infow("fault reported")

	if !strings.Contains(buf.String(), `"subsystem":"fdir"`) {
		t.Errorf("Expected subsystem in output, got: %s", buf.String())
	}
}

func TestWithMode(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	modeLogger := WithMode(logger, "SAFE")
	modeLogger.Infow("mode transition")

	if !strings.Contains(buf.String(), `"mode":"SAFE"`) {
		t.Errorf("Expected mode in output, got: %s", buf.String())
	}
}

func TestWithOperation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	opLogger := WithOperation(logger, "process")
	opLogger.Infow("operation message")

	if !strings.Contains(buf.String(), `"operation":"process"`) {
		t.Errorf("Expected operation in output, got: %s", buf.String())
	}
}

func TestWithAPID(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	apidLogger := WithAPID(logger, 0x64)
	apidLogger.Infow("apid message")

	if !strings.Contains(buf.String(), `"apid":100`) {
		t.Errorf("Expected apid in output, got: %s", buf.String())
	}
}

func TestContextWithLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	ctx := ContextWithLogger(context.Background(), logger)
	retrieved := FromContext(ctx)

	if retrieved != logger {
		t.Error("Expected to retrieve the same logger from context")
	}

	retrieved.Infow("context message")
	if !strings.Contains(buf.String(), "context message") {
		t.Error("Expected message to be logged via context logger")
	}
}

func TestFromContext_Default(t *testing.T) {
	ctx := context.Background()
	logger := FromContext(ctx)

	if logger == nil {
		t.Error("Expected non-nil default logger")
	}
	if logger != Default() {
		t.Error("Expected default logger when no logger in context")
	}
}

func TestSetDefault(t *testing.T) {
	var buf bytes.Buffer
	newLogger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	oldDefault := Default()
	SetDefault(newLogger)
	defer SetDefault(oldDefault)

	if Default() != newLogger {
		t.Error("SetDefault did not change the default logger")
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input    string
		expected zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"info", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"invalid", zapcore.InfoLevel},
		{"", zapcore.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := ParseLevel(tt.input); got != tt.expected {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.input, got, tt.expected)
			}
		})
	}
}

func TestHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.DebugLevel, Format: "json", Output: &buf})

	oldDefault := Default()
	SetDefault(logger)
	defer SetDefault(oldDefault)

	Info("info message")
	if !strings.Contains(buf.String(), "info message") {
		t.Errorf("Info() failed, output: %s", buf.String())
	}
	buf.Reset()

	Warn("warn message")
	if !strings.Contains(buf.String(), "warn message") {
		t.Errorf("Warn() failed, output: %s", buf.String())
	}
	buf.Reset()

	Error("error message")
	if !strings.Contains(buf.String(), "error message") {
		t.Errorf("Error() failed, output: %s", buf.String())
	}
	buf.Reset()

	Debug("debug message")
	if !strings.Contains(buf.String(), "debug message") {
		t.Errorf("Debug() failed, output: %s", buf.String())
	}
}

func TestContextHelperFunctions(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.DebugLevel, Format: "json", Output: &buf})
	ctx := ContextWithLogger(context.Background(), logger)

	InfoContext(ctx, "info context message")
	if !strings.Contains(buf.String(), "info context message") {
		t.Errorf("InfoContext() failed, output: %s", buf.String())
	}
	buf.Reset()

	WarnContext(ctx, "warn context message")
	if !strings.Contains(buf.String(), "warn context message") {
		t.Errorf("WarnContext() failed, output: %s", buf.String())
	}
	buf.Reset()

	ErrorContext(ctx, "error context message")
	if !strings.Contains(buf.String(), "error context message") {
		t.Errorf("ErrorContext() failed, output: %s", buf.String())
	}
	buf.Reset()

	DebugContext(ctx, "debug context message")
	if !strings.Contains(buf.String(), "debug context message") {
		t.Errorf("DebugContext() failed, output: %s", buf.String())
	}
}

func TestChainedWith(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(Config{Level: zapcore.InfoLevel, Format: "json", Output: &buf})

	chained := WithSubsystem(WithOperation(WithMode(logger, "NOMINAL"), "process"), "telecommand")
	chained.Infow("chained message")

	output := buf.String()
	if !strings.Contains(output, `"mode":"NOMINAL"`) {
		t.Errorf("Missing mode in output: %s", output)
	}
	if !strings.Contains(output, `"operation":"process"`) {
		t.Errorf("Missing operation in output: %s", output)
	}
	if !strings.Contains(output, `"subsystem":"telecommand"`) {
		t.Errorf("Missing subsystem in output: %s", output)
	}
}
