package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"syscall"
	"testing"
)

func TestRotationError(t *testing.T) {
	cause := errors.New("underlying error")
	rotErr := NewRotationError(ErrorTypeConfiguration, "invalid branch", cause)

	if rotErr.Type != ErrorTypeConfiguration {
		t.Errorf("Expected type %v, got %v", ErrorTypeConfiguration, rotErr.Type)
	}

	if rotErr.IsRecoverable() {
		t.Error("Expected non-recoverable error")
	}

	expected := "configuration: invalid branch (caused by: underlying error)"
	if rotErr.Error() != expected {
		t.Errorf("Expected error string %v, got %v", expected, rotErr.Error())
	}

	if !errors.Is(rotErr, cause) {
		t.Error("Expected errors.Is to find the cause")
	}
}

func TestRotationErrorWithContext(t *testing.T) {
	rotErr := NewNetworkError("upload failed", nil)
	rotErr.WithContext("type", "daily").WithContext("item", "a")

	if rotErr.Context["type"] != "daily" {
		t.Errorf("Expected context type=daily, got %v", rotErr.Context["type"])
	}
	if rotErr.Context["item"] != "a" {
		t.Errorf("Expected context item=a, got %v", rotErr.Context["item"])
	}
	if !rotErr.IsRecoverable() {
		t.Error("Expected network errors to be recoverable")
	}
}

func TestErrorClassifier_ClassifyError(t *testing.T) {
	classifier := NewErrorClassifier()
	missing := filepath.Join(t.TempDir(), "missing")
	_, statErr := os.Stat(missing)

	tests := []struct {
		name         string
		err          error
		expectedType ErrorType
		recoverable  bool
	}{
		{
			name:         "missing file",
			err:          statErr,
			expectedType: ErrorTypeNotFound,
			recoverable:  true,
		},
		{
			name:         "permission denied",
			err:          &os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES},
			expectedType: ErrorTypePermission,
			recoverable:  true,
		},
		{
			name:         "disk full",
			err:          &os.PathError{Op: "write", Path: "/x", Err: syscall.ENOSPC},
			expectedType: ErrorTypeNoSpace,
			recoverable:  true,
		},
		{
			name:         "dial failure",
			err:          &net.OpError{Op: "dial", Err: errors.New("connection refused")},
			expectedType: ErrorTypeNetwork,
			recoverable:  true,
		},
		{
			name:         "context canceled",
			err:          fmt.Errorf("upload: %w", context.Canceled),
			expectedType: ErrorTypeInterruption,
			recoverable:  false,
		},
		{
			name:         "deadline exceeded",
			err:          context.DeadlineExceeded,
			expectedType: ErrorTypeTimeout,
			recoverable:  true,
		},
		{
			name:         "already classified",
			err:          NewCompressionError("zip failed", nil),
			expectedType: ErrorTypeCompression,
			recoverable:  true,
		},
		{
			name:         "unknown",
			err:          errors.New("boom"),
			expectedType: ErrorTypeUnknown,
			recoverable:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classifier.ClassifyError(tt.err)
			if got.Type != tt.expectedType {
				t.Errorf("ClassifyError() type = %v, want %v", got.Type, tt.expectedType)
			}
			if got.IsRecoverable() != tt.recoverable {
				t.Errorf("ClassifyError() recoverable = %v, want %v", got.IsRecoverable(), tt.recoverable)
			}
		})
	}

	if classifier.ClassifyError(nil) != nil {
		t.Error("Expected nil for nil error")
	}
}

func TestWrapError(t *testing.T) {
	if WrapError(nil, "x") != nil {
		t.Error("Expected nil for nil error")
	}

	wrapped := WrapError(&os.PathError{Op: "open", Path: "/x", Err: syscall.EACCES}, "copy failed")
	if GetErrorType(wrapped) != ErrorTypePermission {
		t.Errorf("GetErrorType() = %v, want %v", GetErrorType(wrapped), ErrorTypePermission)
	}
	if !IsRecoverableError(wrapped) {
		t.Error("Expected wrapped permission error to be recoverable")
	}
}

func TestGetErrorType(t *testing.T) {
	if GetErrorType(errors.New("plain")) != ErrorTypeUnknown {
		t.Error("Expected unknown type for plain errors")
	}
	if GetErrorType(NewLockError("held", nil)) != ErrorTypeLock {
		t.Error("Expected lock type")
	}
	if IsRecoverableError(NewConfigurationError("bad", nil)) {
		t.Error("Expected configuration errors to be fatal")
	}
}

func TestRotationErrorStringIncludesContext(t *testing.T) {
	rotErr := NewStorageError("failed to list source folder", syscall.EACCES).
		WithContext("path", "/srv/backups/daily").
		WithContext("attempt", 2)

	expected := "storage: failed to list source folder [attempt=2 path=/srv/backups/daily] (caused by: permission denied)"
	if rotErr.Error() != expected {
		t.Errorf("Error() = %q, want %q", rotErr.Error(), expected)
	}
}

func TestFields(t *testing.T) {
	inner := NewStorageError("failed to list local folder", nil).WithContext("path", "/srv/local/daily")
	wrapped := WrapError(fmt.Errorf("inspect: %w", inner), "inspection failed")

	fields := Fields(wrapped)
	if fields["error_type"] != string(ErrorTypeStorage) {
		t.Errorf("error_type = %v, want %v", fields["error_type"], ErrorTypeStorage)
	}
	if fields["path"] != "/srv/local/daily" {
		t.Errorf("path = %v, want /srv/local/daily", fields["path"])
	}

	plain := Fields(errors.New("boom"))
	if len(plain) != 1 || plain["error_type"] != string(ErrorTypeUnknown) {
		t.Errorf("Fields(plain) = %v, want only error_type=unknown", plain)
	}
}
