package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfigurationError(t *testing.T) {
	err := &ConfigurationError{Err: ErrEmptyCommand}

	require.Equal(t, "configuration error: process command is empty", err.Error())
	require.ErrorIs(t, err, ErrEmptyCommand)
	require.True(t, err.IsShellrigError())
}

func TestTransientIOError(t *testing.T) {
	root := errors.New("connection refused")
	err := &TransientIOError{Op: "connect /tmp/x.sock", Err: root}

	require.Equal(t, "connect /tmp/x.sock: connection refused", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsShellrigError())
}

func TestProcessError_WithUnderlyingError(t *testing.T) {
	root := errors.New("signal: killed")
	err := &ProcessError{
		ExitCode: -1,
		Stderr:   "ignored when Err is set",
		Err:      root,
	}

	require.Equal(t, "process failed (exit -1): signal: killed", err.Error())
	require.ErrorIs(t, err, root)
	require.True(t, err.IsShellrigError())
}

func TestProcessError_WithStderrOnly(t *testing.T) {
	err := &ProcessError{
		ExitCode: 2,
		Stderr:   "permission denied",
	}

	require.Equal(t, "process failed (exit 2): permission denied", err.Error())
	require.NoError(t, err.Unwrap())
	require.True(t, err.IsShellrigError())
}
