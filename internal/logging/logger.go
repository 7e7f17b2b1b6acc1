package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"

	appErrors "backup-rotator/internal/errors"
)

// LogLevel represents the logging level
type LogLevel string

const (
	// LogLevelQuiet suppresses all output except errors
	LogLevelQuiet LogLevel = "quiet"
	// LogLevelNormal shows standard operational messages
	LogLevelNormal LogLevel = "normal"
	// LogLevelVerbose shows per-item detail
	LogLevelVerbose LogLevel = "verbose"
	// LogLevelDebug shows all debug information
	LogLevelDebug LogLevel = "debug"
)

// ValidLevels lists the accepted level names in increasing verbosity.
var ValidLevels = []LogLevel{LogLevelQuiet, LogLevelNormal, LogLevelVerbose, LogLevelDebug}

// Logger provides structured logging for rotation runs
type Logger struct {
	logger *logrus.Logger
	entry  *logrus.Entry
	closer io.Closer
}

// Config holds logger configuration
type Config struct {
	Level  LogLevel
	Output io.Writer
	Format string // "text" or "json"

	// LogFile is appended to in addition to Output and rotated by size.
	LogFile    string
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger creates a new logger with the specified configuration
func NewLogger(config Config) (*Logger, error) {
	logger := logrus.New()

	output := config.Output
	if output == nil {
		output = os.Stdout
	}
	logger.SetOutput(output)

	switch config.Format {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339,
		})
	default:
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
	}

	logger.SetLevel(toLogrusLevel(config.Level))

	l := &Logger{
		logger: logger,
		entry:  logrus.NewEntry(logger),
	}

	if config.LogFile != "" {
		if dir := filepath.Dir(config.LogFile); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create log directory %s: %w", dir, err)
			}
		}

		maxSize := config.MaxSizeMB
		if maxSize <= 0 {
			maxSize = 10
		}

		file := &lumberjack.Logger{
			Filename:   config.LogFile,
			MaxSize:    maxSize,
			MaxBackups: config.MaxBackups,
		}
		logger.SetOutput(io.MultiWriter(output, file))
		l.closer = file
	}

	return l, nil
}

// NewDefaultLogger creates a logger with default configuration
func NewDefaultLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelNormal,
		Output: os.Stdout,
		Format: "text",
	})
	return logger
}

// NewNopLogger returns a logger that discards everything.
func NewNopLogger() *Logger {
	logger, _ := NewLogger(Config{
		Level:  LogLevelQuiet,
		Output: io.Discard,
	})
	return logger
}

func toLogrusLevel(level LogLevel) logrus.Level {
	switch level {
	case LogLevelQuiet:
		return logrus.ErrorLevel
	case LogLevelVerbose:
		return logrus.DebugLevel
	case LogLevelDebug:
		return logrus.TraceLevel
	default:
		return logrus.InfoLevel
	}
}

// IsValidLevel reports whether name is one of ValidLevels.
func IsValidLevel(name string) bool {
	for _, level := range ValidLevels {
		if string(level) == name {
			return true
		}
	}
	return false
}

// WithRunID returns a logger that tags every entry with the run correlation id
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		logger: l.logger,
		entry:  l.entry.WithField("run_id", runID),
		closer: l.closer,
	}
}

// WithFields returns a logger entry with additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *logrus.Entry {
	return l.entry.WithFields(fields)
}

// WithField returns a logger entry with a single additional field
func (l *Logger) WithField(key string, value interface{}) *logrus.Entry {
	return l.entry.WithField(key, value)
}

// Rotation logging methods

// LogStageStart logs the start of a pipeline stage for one backup type and
// returns a function that logs its completion counters.
func (l *Logger) LogStageStart(stage, backupType string) func(processed, failed int) {
	startTime := time.Now()
	fields := logrus.Fields{
		"stage": stage,
		"type":  backupType,
	}

	l.entry.WithFields(fields).Debug("Stage started")

	return func(processed, failed int) {
		fields["duration"] = time.Since(startTime).String()
		fields["processed"] = processed
		fields["failed"] = failed

		if failed > 0 {
			l.entry.WithFields(fields).Warn("Stage completed with failures")
		} else {
			l.entry.WithFields(fields).Info("Stage completed")
		}
	}
}

// LogItem logs the outcome of one stage applied to one backup item.
// Failures are logged as warnings because they never abort the run.
func (l *Logger) LogItem(stage, backupType, item string, err error) {
	fields := logrus.Fields{
		"stage": stage,
		"type":  backupType,
		"item":  item,
	}

	if err != nil {
		for k, v := range appErrors.Fields(err) {
			fields[k] = v
		}
		fields["error"] = err.Error()
		l.entry.WithFields(fields).Warn("Item skipped")
		return
	}
	l.entry.WithFields(fields).Info("Item processed")
}

// LogItemSkipped logs an item a stage intentionally left alone
func (l *Logger) LogItemSkipped(stage, backupType, item, reason string) {
	l.entry.WithFields(logrus.Fields{
		"stage":  stage,
		"type":   backupType,
		"item":   item,
		"reason": reason,
	}).Debug("Item not eligible")
}

// LogOperationStart logs the start of an operation and returns a function to log completion
func (l *Logger) LogOperationStart(operation string, fields map[string]interface{}) func(error) {
	startTime := time.Now()

	logFields := logrus.Fields{
		"operation": operation,
		"status":    "started",
	}
	for k, v := range fields {
		logFields[k] = v
	}

	l.entry.WithFields(logFields).Debug("Operation started")

	return func(err error) {
		logFields["status"] = "completed"
		logFields["duration"] = time.Since(startTime).String()

		if err != nil {
			logFields["error"] = err.Error()
			logFields["error_type"] = string(appErrors.GetErrorType(err))
			logFields["success"] = false
			l.entry.WithFields(logFields).Error("Operation failed")
		} else {
			logFields["success"] = true
			l.entry.WithFields(logFields).Info("Operation completed")
		}
	}
}

// Info logs an info message
func (l *Logger) Info(msg string) {
	l.entry.Info(msg)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string) {
	l.entry.Warn(msg)
}

// SetLevel changes the level of this logger and every logger derived from it
func (l *Logger) SetLevel(level LogLevel) {
	l.logger.SetLevel(toLogrusLevel(level))
}

// IsLevelEnabled checks if a log level is enabled
func (l *Logger) IsLevelEnabled(level LogLevel) bool {
	switch level {
	case LogLevelQuiet:
		return l.logger.IsLevelEnabled(logrus.ErrorLevel)
	case LogLevelNormal:
		return l.logger.IsLevelEnabled(logrus.InfoLevel)
	case LogLevelVerbose:
		return l.logger.IsLevelEnabled(logrus.DebugLevel)
	case LogLevelDebug:
		return l.logger.IsLevelEnabled(logrus.TraceLevel)
	default:
		return false
	}
}

// Close releases the rotated log file, if any.
func (l *Logger) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}
