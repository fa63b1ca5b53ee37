package executor

import (
	"errors"
	"fmt"
)

// ConfigError marks a check failure caused by monitor misconfiguration (bad URL
// scheme, disallowed executable path). It is fatal to the check and never retried.
type ConfigError struct {
	Err error
}

func (e *ConfigError) Error() string { return e.Err.Error() }
func (e *ConfigError) Unwrap() error { return e.Err }

// Configf wraps a formatted error as a ConfigError.
func Configf(format string, args ...any) error {
	return &ConfigError{Err: fmt.Errorf(format, args...)}
}

// IsConfig reports whether the error chain contains a ConfigError.
func IsConfig(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}

// TransientError marks a failure that may succeed on retry (navigation timeout,
// network failure, browser disconnect). Recorded as a down result; in queue mode
// the broker additionally retries the job with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

// Transientf wraps a formatted error as a TransientError.
func Transientf(format string, args ...any) error {
	return &TransientError{Err: fmt.Errorf(format, args...)}
}

// IsTransient reports whether the error chain contains a TransientError.
func IsTransient(err error) bool {
	var te *TransientError
	return errors.As(err, &te)
}

// ResourceError marks a failure of a supporting resource (artifact write). It is
// logged as a warning and does not fail the check unless the resource determines
// the status itself.
type ResourceError struct {
	Err error
}

func (e *ResourceError) Error() string { return e.Err.Error() }
func (e *ResourceError) Unwrap() error { return e.Err }

// Resourcef wraps a formatted error as a ResourceError.
func Resourcef(format string, args ...any) error {
	return &ResourceError{Err: fmt.Errorf(format, args...)}
}
