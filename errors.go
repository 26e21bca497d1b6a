package shellrig

import "github.com/shellrig/shellrig/internal/errors"

// Re-export error types from internal package

// ConfigurationError indicates invalid caller-supplied configuration;
// the operation was aborted with no state change.
type ConfigurationError = errors.ConfigurationError

// TransientIOError indicates an OS-level I/O failure; the component
// returned to a clean dormant state.
type TransientIOError = errors.TransientIOError

// ProcessError indicates a child process exited unsuccessfully.
type ProcessError = errors.ProcessError

// ShellrigError is the base interface for all shellrig errors.
type ShellrigError = errors.ShellrigError

// Re-export sentinel errors from internal package.
var (
	// ErrEmptyCommand indicates a process was started with no command tokens.
	ErrEmptyCommand = errors.ErrEmptyCommand

	// ErrNilHandler indicates a handler factory produced nil for an inbound connection.
	ErrNilHandler = errors.ErrNilHandler

	// ErrHandlerConnected indicates a handler factory produced a socket that
	// already holds a live connection.
	ErrHandlerConnected = errors.ErrHandlerConnected

	// ErrAlreadyConnected indicates a socket was asked to adopt a connection
	// while one is already live.
	ErrAlreadyConnected = errors.ErrAlreadyConnected
)
