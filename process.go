package shellrig

import "github.com/shellrig/shellrig/internal/process"

// Process owns a child process's lifecycle and its stdin/stdout/stderr
// streams. See the package documentation for usage.
type Process = process.Controller

// ExitStatus distinguishes a process that exited on its own from one
// terminated by a signal.
type ExitStatus = process.ExitStatus

// Exit statuses reported through Process.OnExited.
const (
	ExitNormal  = process.ExitNormal
	ExitCrashed = process.ExitCrashed
)

// NewProcess creates a process controller. Configure it with the
// setter methods and register event callbacks before calling Start.
func NewProcess(opts ...Option) *Process {
	return process.New(applyOptions(opts).logger)
}

// EnvValue returns a pointer to s, for building environment overlay
// literals passed to Process.SetEnvironment.
func EnvValue(s string) *string {
	return &s
}

// MergeEnvironment resolves an environment overlay against an ambient
// environment, applying the same rules Process uses at spawn time.
// It is exported for callers that resolve environments themselves.
func MergeEnvironment(ambient []string, overlay map[string]*string, clear bool) []string {
	return process.MergeEnvironment(ambient, overlay, clear)
}
