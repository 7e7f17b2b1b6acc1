package logging

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	appErrors "backup-rotator/internal/errors"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name   string
		config Config
		want   LogLevel
	}{
		{
			name: "default config",
			config: Config{
				Level:  LogLevelNormal,
				Format: "text",
			},
			want: LogLevelNormal,
		},
		{
			name: "verbose config",
			config: Config{
				Level:  LogLevelVerbose,
				Format: "json",
			},
			want: LogLevelVerbose,
		},
		{
			name: "quiet config",
			config: Config{
				Level:  LogLevelQuiet,
				Format: "text",
			},
			want: LogLevelQuiet,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			tt.config.Output = &buf

			logger, err := NewLogger(tt.config)
			if err != nil {
				t.Errorf("NewLogger() error = %v", err)
				return
			}

			if !logger.IsLevelEnabled(tt.want) {
				t.Errorf("NewLogger() level %v not enabled", tt.want)
			}
		})
	}
}

func TestNewDefaultLogger(t *testing.T) {
	logger := NewDefaultLogger()
	if logger == nil {
		t.Fatal("NewDefaultLogger() returned nil")
	}

	if !logger.IsLevelEnabled(LogLevelNormal) || logger.IsLevelEnabled(LogLevelVerbose) {
		t.Error("NewDefaultLogger() should log at normal level")
	}
}

func TestLoggerWritesLogFile(t *testing.T) {
	var buf bytes.Buffer
	logFile := filepath.Join(t.TempDir(), "logs", "backups.log")

	logger, err := NewLogger(Config{
		Level:   LogLevelNormal,
		Output:  &buf,
		Format:  "text",
		LogFile: logFile,
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.Info("rotation finished")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	data, err := os.ReadFile(logFile)
	if err != nil {
		t.Fatalf("log file not written: %v", err)
	}
	if !strings.Contains(string(data), "rotation finished") {
		t.Errorf("Expected log file to contain message, got: %s", data)
	}
	if !strings.Contains(buf.String(), "rotation finished") {
		t.Errorf("Expected output to contain message, got: %s", buf.String())
	}
}

func TestWithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.WithRunID("run-123").Info("tagged")

	output := buf.String()
	if !strings.Contains(output, "run_id=run-123") {
		t.Errorf("Expected output to contain run_id=run-123, got: %s", output)
	}
}

func TestLogItem(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogItem("upload", "daily", "2024-01-01_0000", nil)
	output := buf.String()
	for _, want := range []string{"Item processed", "stage=upload", "type=daily", "item=2024-01-01_0000"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}

	buf.Reset()

	logger.LogItem("upload", "daily", "2024-01-01_0000", errors.New("connection refused"))
	output = buf.String()
	if !strings.Contains(output, "Item skipped") {
		t.Errorf("Expected skip message, got: %s", output)
	}
	if !strings.Contains(output, "level=warning") {
		t.Errorf("Expected warning level, got: %s", output)
	}
	if !strings.Contains(output, "connection refused") {
		t.Errorf("Expected error text, got: %s", output)
	}
	if !strings.Contains(output, "error_type=unknown") {
		t.Errorf("Expected error_type field, got: %s", output)
	}

	buf.Reset()

	archiveErr := appErrors.NewStorageError("failed to open archive", nil).WithContext("path", "/srv/local/daily")
	logger.LogItem("upload", "daily", "2024-01-01_0000", archiveErr)
	output = buf.String()
	for _, want := range []string{"error_type=storage", "path=/srv/local/daily"} {
		if !strings.Contains(output, want) {
			t.Errorf("Expected %q in output, got: %s", want, output)
		}
	}
}

func TestLogItemSkippedOnlyWhenVerbose(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	logger.LogItemSkipped("archive", "daily", "a", "already archived")
	if buf.Len() != 0 {
		t.Errorf("Expected no output at normal level, got: %s", buf.String())
	}

	logger.SetLevel(LogLevelVerbose)
	logger.LogItemSkipped("archive", "daily", "a", "already archived")
	if !strings.Contains(buf.String(), "Item not eligible") {
		t.Errorf("Expected skip detail at verbose level, got: %s", buf.String())
	}
}

func TestLogStageStart(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	done := logger.LogStageStart("collect", "hourly")
	done(3, 0)
	output := buf.String()
	if !strings.Contains(output, "Stage completed") || !strings.Contains(output, "processed=3") {
		t.Errorf("Expected completion with counters, got: %s", output)
	}

	buf.Reset()

	done = logger.LogStageStart("collect", "hourly")
	done(3, 1)
	output = buf.String()
	if !strings.Contains(output, "Stage completed with failures") || !strings.Contains(output, "failed=1") {
		t.Errorf("Expected failure summary, got: %s", output)
	}
}

func TestSetLevel(t *testing.T) {
	logger := NewDefaultLogger()

	derived := logger.WithRunID("run-1")

	logger.SetLevel(LogLevelVerbose)
	if !derived.IsLevelEnabled(LogLevelVerbose) {
		t.Error("SetLevel(verbose) should apply to derived loggers")
	}

	logger.SetLevel(LogLevelQuiet)
	if logger.IsLevelEnabled(LogLevelNormal) {
		t.Error("SetLevel(quiet) should disable normal output")
	}
}

func TestIsLevelEnabled(t *testing.T) {
	tests := []struct {
		name        string
		loggerLevel LogLevel
		testLevel   LogLevel
		want        bool
	}{
		{"quiet logger, error level", LogLevelQuiet, LogLevelQuiet, true},
		{"quiet logger, normal level", LogLevelQuiet, LogLevelNormal, false},
		{"normal logger, normal level", LogLevelNormal, LogLevelNormal, true},
		{"normal logger, verbose level", LogLevelNormal, LogLevelVerbose, false},
		{"verbose logger, verbose level", LogLevelVerbose, LogLevelVerbose, true},
		{"verbose logger, debug level", LogLevelVerbose, LogLevelDebug, false},
		{"debug logger, debug level", LogLevelDebug, LogLevelDebug, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := NewLogger(Config{
				Level:  tt.loggerLevel,
				Output: &buf,
				Format: "text",
			})
			if err != nil {
				t.Fatalf("NewLogger() error = %v", err)
			}

			if got := logger.IsLevelEnabled(tt.testLevel); got != tt.want {
				t.Errorf("IsLevelEnabled() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLogOperationStart(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(Config{
		Level:  LogLevelVerbose,
		Output: &buf,
		Format: "text",
	})
	if err != nil {
		t.Fatalf("NewLogger() error = %v", err)
	}

	finish := logger.LogOperationStart("rotation_run", map[string]interface{}{"types": 2})
	if !strings.Contains(buf.String(), "Operation started") {
		t.Errorf("Expected start message, got: %s", buf.String())
	}

	buf.Reset()
	finish(nil)
	if !strings.Contains(buf.String(), "success=true") {
		t.Errorf("Expected success=true, got: %s", buf.String())
	}

	finish = logger.LogOperationStart("rotation_run", nil)
	buf.Reset()
	finish(errors.New("lock held"))
	output := buf.String()
	if !strings.Contains(output, "Operation failed") || !strings.Contains(output, "lock held") {
		t.Errorf("Expected failure message, got: %s", output)
	}
}

func TestIsValidLevel(t *testing.T) {
	if !IsValidLevel("verbose") {
		t.Error("IsValidLevel(verbose) = false, want true")
	}
	if IsValidLevel("loud") {
		t.Error("IsValidLevel(loud) = true, want false")
	}
}
