package errors

import (
	"errors"
	"fmt"
)

// ShellrigError is the base interface for all shellrig errors.
type ShellrigError interface {
	error
	IsShellrigError() bool
}

// Compile-time verification that all error types implement ShellrigError.
var (
	_ ShellrigError = (*ConfigurationError)(nil)
	_ ShellrigError = (*TransientIOError)(nil)
	_ ShellrigError = (*ProcessError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrEmptyCommand indicates a process was started with no command tokens.
	ErrEmptyCommand = errors.New("process command is empty")

	// ErrNilHandler indicates a handler factory produced nil for an inbound connection.
	ErrNilHandler = errors.New("handler factory returned nil")

	// ErrHandlerConnected indicates a handler factory produced a channel that
	// already holds a live connection.
	ErrHandlerConnected = errors.New("handler channel already has a live connection")

	// ErrAlreadyConnected indicates a channel was asked to adopt a connection
	// while one is already live.
	ErrAlreadyConnected = errors.New("channel already has a live connection")
)

// ConfigurationError indicates invalid caller-supplied configuration.
// The operation is aborted with no state change; the component remains
// in whatever state it was in before the call.
type ConfigurationError struct {
	Err error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %v", e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsShellrigError implements ShellrigError.
func (e *ConfigurationError) IsShellrigError() bool { return true }

// TransientIOError indicates an OS-level I/O failure (spawn failure,
// connection refused, address in use). The component returns to a clean
// dormant or not-running state; retry policy belongs to the caller.
type TransientIOError struct {
	Op  string
	Err error
}

func (e *TransientIOError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientIOError) Unwrap() error {
	return e.Err
}

// IsShellrigError implements ShellrigError.
func (e *TransientIOError) IsShellrigError() bool { return true }

// ProcessError indicates a child process exited unsuccessfully.
// Stderr carries the tail of the buffered stderr stream, when available.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsShellrigError implements ShellrigError.
func (e *ProcessError) IsShellrigError() bool { return true }
