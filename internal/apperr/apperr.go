// Package apperr defines the typed error kinds shared across the pipeline.
package apperr

import (
	"errors"
	"fmt"
	"time"
)

// ExternalAPIError reports a failed call to an external provider.
type ExternalAPIError struct {
	Provider string
	Status   int
	Message  string
	Cause    error
}

func (e *ExternalAPIError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s api error (%d): %s", e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s api error: %s", e.Provider, e.Message)
}

func (e *ExternalAPIError) Unwrap() error { return e.Cause }

// StorageError reports a failed storage operation against a specific key.
type StorageError struct {
	Op    string // get, put, delete, list, query
	Key   string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("storage %s %q: %v", e.Op, e.Key, e.Cause)
	}
	return fmt.Sprintf("storage %s: %v", e.Op, e.Cause)
}

func (e *StorageError) Unwrap() error { return e.Cause }

// ValidationError reports rejected input with a details payload.
type ValidationError struct {
	Message string
	Details map[string]any
}

func (e *ValidationError) Error() string { return e.Message }

// ConfigurationError reports a missing or invalid required setting.
type ConfigurationError struct {
	Setting string
	Message string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Message)
}

// TimeoutError reports an external call exceeding its configured deadline.
type TimeoutError struct {
	Op         string
	Elapsed    time.Duration
	Configured time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %s (limit %s)", e.Op, e.Elapsed, e.Configured)
}

// InternalError wraps an unexpected failure.
type InternalError struct {
	Cause error
}

func (e *InternalError) Error() string { return fmt.Sprintf("internal error: %v", e.Cause) }

func (e *InternalError) Unwrap() error { return e.Cause }

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// IsStorage reports whether err is (or wraps) a StorageError.
func IsStorage(err error) bool {
	var s *StorageError
	return errors.As(err, &s)
}

// IsTimeout reports whether err is (or wraps) a TimeoutError.
func IsTimeout(err error) bool {
	var t *TimeoutError
	return errors.As(err, &t)
}
