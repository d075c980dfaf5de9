// Package apperr defines the error taxonomy shared across the indexing and
// query layers. Collaborators (CLI, HTTP, MCP) render these; the core only
// constructs and classifies them.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnrecoverable = errors.New("store unrecoverable")
)

// ConfigError reports an invalid path or setting supplied by a collaborator.
// Never retried.
type ConfigError struct {
	Field  string
	Reason string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

// ValidationError reports a query rejected before execution: wrong verb,
// disallowed table, multiple statements, oversized text.
type ValidationError struct {
	Reason string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Detail == "" {
		return "query rejected: " + e.Reason
	}
	return fmt.Sprintf("query rejected: %s: %s", e.Reason, e.Detail)
}

// ExecutionError reports a validated query that failed during execution.
// Timeout distinguishes deadline expiry from other engine faults.
type ExecutionError struct {
	Timeout bool
	Cause   error
}

func (e *ExecutionError) Error() string {
	if e.Timeout {
		return "query timed out"
	}
	return "query failed: " + e.Cause.Error()
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// StorageError reports an I/O failure, lock contention, or detected
// corruption in the store.
type StorageError struct {
	Corrupt bool
	Locked  bool
	Cause   error
}

func (e *StorageError) Error() string {
	switch {
	case e.Corrupt:
		return "store corrupt: " + e.Cause.Error()
	case e.Locked:
		return "store locked: " + e.Cause.Error()
	default:
		return "store: " + e.Cause.Error()
	}
}

func (e *StorageError) Unwrap() error { return e.Cause }

// IsTimeout reports whether err is an ExecutionError caused by deadline expiry.
func IsTimeout(err error) bool {
	var ee *ExecutionError
	return errors.As(err, &ee) && ee.Timeout
}

// IsCorruption reports whether err is a StorageError flagged as corruption.
func IsCorruption(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Corrupt
}

// IsLocked reports whether err is a StorageError caused by lock contention.
func IsLocked(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && se.Locked
}
