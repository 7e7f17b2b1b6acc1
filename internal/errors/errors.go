package errors

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"sort"
	"strings"
	"syscall"
)

// ErrorType represents different categories of errors
type ErrorType string

const (
	// ErrorTypeConfiguration represents invalid or unusable settings
	ErrorTypeConfiguration ErrorType = "configuration"
	// ErrorTypeStorage represents local filesystem failures
	ErrorTypeStorage ErrorType = "storage"
	// ErrorTypeCompression represents archive creation failures
	ErrorTypeCompression ErrorType = "compression"
	// ErrorTypeNetwork represents remote store connection or transfer errors
	ErrorTypeNetwork ErrorType = "network"
	// ErrorTypePermission represents permission/access errors
	ErrorTypePermission ErrorType = "permission"
	// ErrorTypeNotFound represents missing files or folders
	ErrorTypeNotFound ErrorType = "not_found"
	// ErrorTypeNoSpace represents a full disk or exhausted remote quota
	ErrorTypeNoSpace ErrorType = "no_space"
	// ErrorTypeTimeout represents timeout errors
	ErrorTypeTimeout ErrorType = "timeout"
	// ErrorTypeInterruption represents user interruption
	ErrorTypeInterruption ErrorType = "interruption"
	// ErrorTypeLock represents another run holding the run lock
	ErrorTypeLock ErrorType = "lock"
	// ErrorTypeUnknown represents unknown errors
	ErrorTypeUnknown ErrorType = "unknown"
)

// RotationError is an error raised by a rotation stage or at startup.
// Recoverable errors are per-item and leave the item for the next run;
// the others abort the run before any stage executes.
type RotationError struct {
	Type        ErrorType
	Message     string
	Cause       error
	Context     map[string]interface{}
	Recoverable bool
}

// Error implements the error interface. Context is listed in key order.
func (e *RotationError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Type, e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		pairs := make([]string, len(keys))
		for i, k := range keys {
			pairs[i] = fmt.Sprintf("%s=%v", k, e.Context[k])
		}
		msg += " [" + strings.Join(pairs, " ") + "]"
	}
	if e.Cause != nil {
		msg += fmt.Sprintf(" (caused by: %v)", e.Cause)
	}
	return msg
}

// Unwrap returns the underlying error
func (e *RotationError) Unwrap() error {
	return e.Cause
}

// IsRecoverable returns whether the error is recoverable
func (e *RotationError) IsRecoverable() bool {
	return e.Recoverable
}

// WithContext adds context information to the error
func (e *RotationError) WithContext(key string, value interface{}) *RotationError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// NewRotationError creates a new non-recoverable error
func NewRotationError(errorType ErrorType, message string, cause error) *RotationError {
	return &RotationError{
		Type:    errorType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// NewRecoverableError creates a new recoverable error
func NewRecoverableError(errorType ErrorType, message string, cause error) *RotationError {
	err := NewRotationError(errorType, message, cause)
	err.Recoverable = true
	return err
}

// Common error constructors
func NewConfigurationError(message string, cause error) *RotationError {
	return NewRotationError(ErrorTypeConfiguration, message, cause)
}

func NewLockError(message string, cause error) *RotationError {
	return NewRotationError(ErrorTypeLock, message, cause)
}

func NewStorageError(message string, cause error) *RotationError {
	return NewRecoverableError(ErrorTypeStorage, message, cause)
}

func NewCompressionError(message string, cause error) *RotationError {
	return NewRecoverableError(ErrorTypeCompression, message, cause)
}

func NewNetworkError(message string, cause error) *RotationError {
	return NewRecoverableError(ErrorTypeNetwork, message, cause)
}

// ErrorClassifier maps raw library errors to rotation error types
type ErrorClassifier struct{}

// NewErrorClassifier creates a new error classifier
func NewErrorClassifier() *ErrorClassifier {
	return &ErrorClassifier{}
}

// ClassifyError analyzes an error and returns a RotationError with appropriate classification.
// Unclassified errors are recoverable: a per-item failure must never stop the run.
func (ec *ErrorClassifier) ClassifyError(err error) *RotationError {
	if err == nil {
		return nil
	}

	var rotErr *RotationError
	if errors.As(err, &rotErr) {
		return rotErr
	}

	if ctxErr := ec.classifyContextError(err); ctxErr != nil {
		return ctxErr
	}

	if fsErr := ec.classifyFileSystemError(err); fsErr != nil {
		return fsErr
	}

	if netErr := ec.classifyNetworkError(err); netErr != nil {
		return netErr
	}

	return NewRecoverableError(ErrorTypeUnknown, "unexpected error", err)
}

// classifyNetworkError classifies network-related errors
func (ec *ErrorClassifier) classifyNetworkError(err error) *RotationError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return NewRecoverableError(ErrorTypeTimeout, "network operation timed out", err)
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		switch opErr.Op {
		case "dial":
			return NewRecoverableError(ErrorTypeNetwork, "failed to establish network connection", err)
		default:
			return NewRecoverableError(ErrorTypeNetwork, "network I/O error", err)
		}
	}

	return nil
}

// classifyContextError classifies context-related errors
func (ec *ErrorClassifier) classifyContextError(err error) *RotationError {
	if errors.Is(err, context.DeadlineExceeded) {
		return NewRecoverableError(ErrorTypeTimeout, "operation timed out", err)
	}
	if errors.Is(err, context.Canceled) {
		return NewRotationError(ErrorTypeInterruption, "operation was canceled", err)
	}

	return nil
}

// classifyFileSystemError classifies file system errors
func (ec *ErrorClassifier) classifyFileSystemError(err error) *RotationError {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return NewRecoverableError(ErrorTypeNotFound, "file or directory not found", err)
	case errors.Is(err, fs.ErrPermission):
		return NewRecoverableError(ErrorTypePermission, "permission denied", err)
	case errors.Is(err, syscall.ENOSPC):
		return NewRecoverableError(ErrorTypeNoSpace, "no space left on device", err)
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return NewRecoverableError(ErrorTypeStorage, fmt.Sprintf("filesystem error on %s", pathErr.Path), err)
	}

	return nil
}

// IsRecoverableError checks if an error is recoverable
func IsRecoverableError(err error) bool {
	var rotErr *RotationError
	if errors.As(err, &rotErr) {
		return rotErr.IsRecoverable()
	}
	return false
}

// GetErrorType returns the error type of an error
func GetErrorType(err error) ErrorType {
	var rotErr *RotationError
	if errors.As(err, &rotErr) {
		return rotErr.Type
	}
	return ErrorTypeUnknown
}

// Fields returns structured log fields for err: "error_type" plus the
// context of every RotationError in the chain. Outer context wins.
func Fields(err error) map[string]interface{} {
	fields := map[string]interface{}{
		"error_type": string(GetErrorType(err)),
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		rotErr, ok := e.(*RotationError)
		if !ok {
			continue
		}
		for k, v := range rotErr.Context {
			if _, set := fields[k]; !set {
				fields[k] = v
			}
		}
	}
	return fields
}

// WrapError wraps an existing error with a message, keeping or deriving its type
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}

	classified := NewErrorClassifier().ClassifyError(err)
	wrapped := NewRotationError(classified.Type, message, err)
	wrapped.Recoverable = classified.Recoverable
	return wrapped
}
