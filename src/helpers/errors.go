package helpers

import (
	"fmt"
)

// -----------------------------------------------------------------------------
// Custom Error Types
// -----------------------------------------------------------------------------

type SyncError struct {
	Message string
	Cause   error
}

func (e *SyncError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *SyncError) Unwrap() error {
	return e.Cause
}

// Distinct error types for errors.As checks
type ConfigurationError struct{ SyncError }
type TransportError struct{ SyncError }
type DirectoryError struct{ SyncError }
type StoreError struct{ SyncError }

// -----------------------------------------------------------------------------

// NewConfigurationError reports a missing or invalid setting.
func NewConfigurationError(format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{SyncError{Message: fmt.Sprintf(format, args...)}}
}

// NewTransportError wraps a websocket or HTTP transport failure.
func NewTransportError(message string, cause error) *TransportError {
	return &TransportError{SyncError{Message: message, Cause: cause}}
}

// NewDirectoryError wraps a failure fetching or decoding the company directory.
func NewDirectoryError(message string, cause error) *DirectoryError {
	return &DirectoryError{SyncError{Message: message, Cause: cause}}
}

// NewStoreError wraps a persistence failure.
func NewStoreError(message string, cause error) *StoreError {
	return &StoreError{SyncError{Message: message, Cause: cause}}
}
