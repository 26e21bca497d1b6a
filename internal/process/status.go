package process

import (
	stderrors "errors"
	"os/exec"
	"syscall"
)

// ExitStatus distinguishes a process that exited on its own from one
// terminated by a signal.
type ExitStatus int

const (
	// ExitNormal means the process exited by itself; the exit code is
	// meaningful.
	ExitNormal ExitStatus = iota

	// ExitCrashed means the process was terminated by a signal or the
	// wait failed; the exit code is -1.
	ExitCrashed
)

func (s ExitStatus) String() string {
	switch s {
	case ExitNormal:
		return "normal"
	case ExitCrashed:
		return "crashed"
	default:
		return "unknown"
	}
}

// exitResult translates the error from cmd.Wait into an exit code and status.
func exitResult(waitErr error) (int, ExitStatus) {
	if waitErr == nil {
		return 0, ExitNormal
	}

	var exitErr *exec.ExitError
	if stderrors.As(waitErr, &exitErr) {
		if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
			return -1, ExitCrashed
		}

		return exitErr.ExitCode(), ExitNormal
	}

	return -1, ExitCrashed
}
