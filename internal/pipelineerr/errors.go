// Package pipelineerr defines the error taxonomy every component in the
// pipeline orchestrator raises
// underlying cause (where one exists) and is inspected by callers via
// errors.As to decide disposition (ack / reject-no-requeue / nack-requeue /
// process exit).
package pipelineerr

import (
	"errors"
	"fmt"
)

// UsageError signals a caller mistake — empty table name, empty value map,
// malformed arguments. Fatal to the call; never retried.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string { return "usage error: " + e.Message }

// NewUsageError builds a UsageError.
func NewUsageError(message string) *UsageError {
	return &UsageError{Message: message}
}

// DatabaseError wraps a driver failure that survived the gateway's single
// reconnect attempt. Handlers that see this reject-no-requeue the inbound
// message after logging critical.
type DatabaseError struct {
	Code    int
	Message string
	Cause   error
}

func (e *DatabaseError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("database error (code %d): %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("database error (code %d): %s", e.Code, e.Message)
}

func (e *DatabaseError) Unwrap() error { return e.Cause }

// NewDatabaseError builds a DatabaseError.
func NewDatabaseError(code int, message string, cause error) *DatabaseError {
	return &DatabaseError{Code: code, Message: message, Cause: cause}
}

// ProcessError signals a child process that exited non-zero, timed out, or
// could not be spawned.
type ProcessError struct {
	CommandLine string
	ExitCode    int
	Stdout      string
	Stderr      string
	Cause       error
}

func (e *ProcessError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("process error running %q: %v", e.CommandLine, e.Cause)
	}
	return fmt.Sprintf("process error running %q: exit code %d", e.CommandLine, e.ExitCode)
}

func (e *ProcessError) Unwrap() error { return e.Cause }

// NewProcessError builds a ProcessError.
func NewProcessError(commandLine string, exitCode int, stdout, stderr string, cause error) *ProcessError {
	return &ProcessError{CommandLine: commandLine, ExitCode: exitCode, Stdout: stdout, Stderr: stderr, Cause: cause}
}

// FetchError signals an HTTP failure: non-OK status, timeout, or a
// checksum mismatch discovered after a download completed.
type FetchError struct {
	URL     string
	Message string
	Cause   error
}

func (e *FetchError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("fetch error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("fetch error for %s: %s", e.URL, e.Message)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// NewFetchError builds a FetchError.
func NewFetchError(url, message string, cause error) *FetchError {
	return &FetchError{URL: url, Message: message, Cause: cause}
}

// NotFoundError signals that a message referenced a work record id that no
// longer exists in the database — poison, always reject-no-requeue.
type NotFoundError struct {
	Table string
	ID    string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("record not found: %s id=%s", e.Table, e.ID)
}

// NewNotFoundError builds a NotFoundError.
func NewNotFoundError(table, id string) *NotFoundError {
	return &NotFoundError{Table: table, ID: id}
}

// TransportError signals the broker connection was lost. The process is
// expected to exit and be restarted by an external supervisor.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string { return fmt.Sprintf("transport error: %v", e.Cause) }
func (e *TransportError) Unwrap() error { return e.Cause }

// NewTransportError builds a TransportError.
func NewTransportError(cause error) *TransportError {
	return &TransportError{Cause: cause}
}

// IsNotFound reports whether err is (or wraps) a NotFoundError.
func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// IsDatabaseError reports whether err is (or wraps) a DatabaseError.
func IsDatabaseError(err error) bool {
	var de *DatabaseError
	return errors.As(err, &de)
}
