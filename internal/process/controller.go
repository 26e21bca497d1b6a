package process

import (
	"io"
	"log/slog"
	"maps"
	"os"
	"os/exec"
	"slices"
	"sync"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"github.com/shellrig/shellrig/internal/errors"
	"github.com/shellrig/shellrig/internal/stream"
)

const (
	// readChunkSize is the scratch buffer size for a single stream read.
	readChunkSize = 8 * 1024
	// maxStderrTail caps the stderr tail kept for ProcessError reporting.
	maxStderrTail = 16 * 1024
)

// Controller owns a child process's lifecycle and its stdio streams.
//
// Configuration properties (command, working directory, environment,
// stdin enablement, stream parsers) can be changed at any time; changes
// made while a process is running affect only the next start, with two
// exceptions that act immediately and permanently on the live process:
// detaching a stream parser closes that stream, and disabling stdin
// closes the stdin pipe.
//
// Event callbacks must be registered before Start. For a given stream
// the sequence buffer-fill, parse, emit is strict, and state-change
// callbacks fire only once internal state is fully consistent.
type Controller struct {
	log *slog.Logger

	mu               sync.Mutex
	command          []string
	workingDir       string
	environment      map[string]*string
	clearEnvironment bool
	stdinEnabled     bool
	stdoutParser     stream.Parser
	stderrParser     stream.Parser

	targetRunning bool
	handle        *handle

	onStarted        func()
	onExited         func(code int, status ExitStatus)
	onRunningChanged func(running bool)
	onPidChanged     func()
	onError          func(err error)
}

// handle is the runtime state of one live child process. It exists iff
// a process is running or exiting; a new start creates a new handle.
type handle struct {
	id  string
	cmd *exec.Cmd
	pid int

	stdin       io.WriteCloser
	stdinClosed bool
	// writeMu serializes stdin writes, which happen outside the
	// controller mutex.
	writeMu sync.Mutex

	// stdout is nil when no stdout parser was attached at spawn time;
	// the child's stdout then goes to the null device.
	stdout       io.ReadCloser
	stdoutClosed bool
	stderr       io.ReadCloser
	stderrClosed bool

	stderrTail []byte
	stopping   bool
}

// New creates a process controller. A nil logger disables logging.
func New(log *slog.Logger) *Controller {
	if log == nil {
		log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{log: log.With("component", "process")}
}

// SetCommand sets the command tokens for the next start.
func (c *Controller) SetCommand(command []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.command = slices.Clone(command)
}

// Command returns the configured command tokens.
func (c *Controller) Command() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return slices.Clone(c.command)
}

// SetWorkingDirectory sets the working directory for the next start.
// An empty value resolves to the ambient current directory at spawn time.
func (c *Controller) SetWorkingDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.workingDir = dir
}

// WorkingDirectory returns the configured working directory.
func (c *Controller) WorkingDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.workingDir
}

// SetEnvironment sets the environment overlay for the next start.
// See MergeEnvironment for the resolution rules; a nil map entry value
// means remove (or inherit, when the environment is cleared).
func (c *Controller) SetEnvironment(overlay map[string]*string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.environment = maps.Clone(overlay)
}

// SetClearEnvironment controls whether the ambient environment is
// cleared before the overlay is applied on the next start.
func (c *Controller) SetClearEnvironment(clear bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.clearEnvironment = clear
}

// SetStdinEnabled controls whether the next start opens a stdin pipe.
// Disabling stdin while a process is running closes the live pipe;
// re-enabling afterward affects only the next start.
func (c *Controller) SetStdinEnabled(enabled bool) {
	c.mu.Lock()

	c.stdinEnabled = enabled

	var toClose io.Closer

	if !enabled && c.handle != nil && c.handle.stdin != nil && !c.handle.stdinClosed {
		c.handle.stdinClosed = true
		toClose = c.handle.stdin
	}

	c.mu.Unlock()

	if toClose != nil {
		_ = toClose.Close()
	}
}

// SetStdout attaches the stdout parser. Detaching (passing nil) while a
// process is running permanently closes the live stdout stream;
// attaching a new parser afterward does not resume reads.
func (c *Controller) SetStdout(p stream.Parser) {
	c.mu.Lock()

	c.stdoutParser = p

	var toClose io.Closer

	if p == nil && c.handle != nil && c.handle.stdout != nil && !c.handle.stdoutClosed {
		c.handle.stdoutClosed = true
		toClose = c.handle.stdout
	}

	c.mu.Unlock()

	if toClose != nil {
		_ = toClose.Close()
	}
}

// SetStderr attaches the stderr parser, with the same detach semantics
// as SetStdout.
func (c *Controller) SetStderr(p stream.Parser) {
	c.mu.Lock()

	c.stderrParser = p

	var toClose io.Closer

	if p == nil && c.handle != nil && c.handle.stderr != nil && !c.handle.stderrClosed {
		c.handle.stderrClosed = true
		toClose = c.handle.stderr
	}

	c.mu.Unlock()

	if toClose != nil {
		_ = toClose.Close()
	}
}

// OnStarted registers the callback fired after a process spawns.
func (c *Controller) OnStarted(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onStarted = fn
}

// OnExited registers the callback fired after a process exits, after
// both stdio streams have been fully drained and parsed.
func (c *Controller) OnExited(fn func(code int, status ExitStatus)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onExited = fn
}

// OnRunningChanged registers the callback fired when the actual running
// state changes. Restarting a process in a loop is done by calling
// Start from this callback (or from OnExited) when running is false.
func (c *Controller) OnRunningChanged(fn func(running bool)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onRunningChanged = fn
}

// OnPidChanged registers the callback fired when the process ID becomes
// valid or invalid.
func (c *Controller) OnPidChanged(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onPidChanged = fn
}

// OnError registers the callback for spawn failures and crashes.
func (c *Controller) OnError(fn func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.onError = fn
}

// Running reports whether a process is currently running.
func (c *Controller) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.handle != nil
}

// Pid returns the process ID of the running process. The second return
// is false when no process is running.
func (c *Controller) Pid() (int, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.handle == nil {
		return 0, false
	}

	return c.handle.pid, true
}

// SetRunning reconciles the target running state: true starts the
// process, false requests graceful termination. Errors are reported
// through the OnError callback.
func (c *Controller) SetRunning(running bool) {
	if running {
		_ = c.Start()
	} else {
		c.Stop()
	}
}

// Start spawns the configured command. It is a no-op when a process is
// already running. The command must have at least one token; the working
// directory and environment are resolved at spawn time.
//
// A spawn failure is reported through OnError and returned; the
// controller is left not-running. There is no internal retry: restart is
// entirely caller-driven, commonly from an OnExited handler.
func (c *Controller) Start() error {
	c.mu.Lock()

	if c.handle != nil {
		c.mu.Unlock()
		c.log.Debug("start ignored, process already running")

		return nil
	}

	if len(c.command) == 0 {
		onError := c.onError
		c.mu.Unlock()

		err := &errors.ConfigurationError{Err: errors.ErrEmptyCommand}
		c.log.Warn("cannot start process", "error", err)

		if onError != nil {
			onError(err)
		}

		return err
	}

	command := slices.Clone(c.command)

	//nolint:gosec // G204: spawning caller-specified commands is the purpose of this type
	cmd := exec.Command(command[0], command[1:]...)
	cmd.Dir = c.workingDir
	cmd.Env = MergeEnvironment(os.Environ(), c.environment, c.clearEnvironment)

	var (
		stdin          io.WriteCloser
		stdout, stderr io.ReadCloser
		err            error
	)

	if c.stdinEnabled {
		if stdin, err = cmd.StdinPipe(); err != nil {
			return c.startFailedLocked("stdin pipe", err)
		}
	}

	if c.stdoutParser != nil {
		if stdout, err = cmd.StdoutPipe(); err != nil {
			return c.startFailedLocked("stdout pipe", err)
		}
	}

	// stderr is always pumped so crashes can report a stderr tail even
	// without an attached parser.
	if stderr, err = cmd.StderrPipe(); err != nil {
		return c.startFailedLocked("stderr pipe", err)
	}

	if err := cmd.Start(); err != nil {
		return c.startFailedLocked("start process", err)
	}

	h := &handle{
		id:     ulid.Make().String(),
		cmd:    cmd,
		pid:    cmd.Process.Pid,
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}
	c.handle = h
	c.targetRunning = true

	log := c.log.With("handle", h.id, "pid", h.pid)
	onStarted := c.onStarted
	onRunningChanged := c.onRunningChanged
	onPidChanged := c.onPidChanged
	c.mu.Unlock()

	log.Info("process started", "command", command)

	if onStarted != nil {
		onStarted()
	}

	if onRunningChanged != nil {
		onRunningChanged(true)
	}

	if onPidChanged != nil {
		onPidChanged()
	}

	g := new(errgroup.Group)

	if stdout != nil {
		g.Go(func() error {
			c.pump(h, stdout, false, log.With("channel", "stdout"))

			return nil
		})
	}

	g.Go(func() error {
		c.pump(h, stderr, true, log.With("channel", "stderr"))

		return nil
	})

	go c.wait(h, g, log)

	return nil
}

// startFailedLocked reports a spawn failure and releases the lock.
func (c *Controller) startFailedLocked(op string, cause error) error {
	onError := c.onError
	c.mu.Unlock()

	err := &errors.TransientIOError{Op: op, Err: cause}
	c.log.Error("process start failed", "error", err)

	if onError != nil {
		onError(err)
	}

	return err
}

// Stop requests graceful termination (SIGTERM) of the running process.
// It does not block; the exit is observed through OnExited. Repeated
// calls while termination is pending are no-ops, as is calling Stop
// with no process running.
func (c *Controller) Stop() {
	c.mu.Lock()

	h := c.handle
	if h == nil || h.stopping {
		c.mu.Unlock()
		c.log.Debug("stop ignored, no process running or already stopping")

		return
	}

	h.stopping = true
	c.targetRunning = false
	c.mu.Unlock()

	c.log.Debug("sending SIGTERM", "pid", h.pid)

	if err := h.cmd.Process.Signal(unix.SIGTERM); err != nil {
		c.log.Debug("signal delivery failed", "error", err)
	}
}

// Signal delivers sig to the running process immediately. It is a no-op
// when no process is running. Use unix.SIGKILL to kill outright.
func (c *Controller) Signal(sig unix.Signal) {
	c.mu.Lock()

	h := c.handle
	c.mu.Unlock()

	if h == nil {
		return
	}

	c.log.Debug("sending signal", "pid", h.pid, "signal", sig.String())

	if err := h.cmd.Process.Signal(sig); err != nil {
		c.log.Debug("signal delivery failed", "error", err)
	}
}

// Write appends data to the process's stdin. The data is silently
// dropped when stdin is not enabled or no process is alive.
func (c *Controller) Write(data []byte) {
	c.mu.Lock()

	h := c.handle
	if h == nil || h.stdin == nil || h.stdinClosed {
		c.mu.Unlock()

		return
	}

	stdin := h.stdin
	c.mu.Unlock()

	// The write must not hold the controller mutex: a payload larger
	// than the pipe buffer blocks until the child drains it, and the
	// child's output is drained by the pump goroutines, which take the
	// mutex after every read.
	h.writeMu.Lock()
	defer h.writeMu.Unlock()

	if _, err := stdin.Write(data); err != nil {
		c.log.Debug("stdin write failed", "error", err)
	}
}

// pump reads a stdio stream to exhaustion, accumulating bytes and
// repeatedly handing the buffer to the attached parser until it can
// extract no further complete unit. The remainder stays buffered for
// the next read.
func (c *Controller) pump(h *handle, rc io.ReadCloser, isStderr bool, log *slog.Logger) {
	var buf []byte

	scratch := make([]byte, readChunkSize)

	for {
		n, readErr := rc.Read(scratch)

		if n > 0 {
			buf = append(buf, scratch[:n]...)

			c.mu.Lock()

			var (
				parser stream.Parser
				closed bool
			)

			if isStderr {
				parser, closed = c.stderrParser, h.stderrClosed
				h.stderrTail = appendTail(h.stderrTail, scratch[:n])
			} else {
				parser, closed = c.stdoutParser, h.stdoutClosed
			}

			c.mu.Unlock()

			if parser != nil && !closed {
				if consumed := parser.Parse(buf); consumed > 0 {
					buf = append(buf[:0], buf[consumed:]...)
				}
			}
		}

		if readErr != nil {
			// EOF, or the pipe was closed by a parser detach.
			log.Debug("stream ended", "buffered", len(buf))
			c.finishStream(h, isStderr)

			return
		}
	}
}

// finishStream notifies the attached parser, if any, that its stream
// has ended.
func (c *Controller) finishStream(h *handle, isStderr bool) {
	c.mu.Lock()

	var (
		parser stream.Parser
		closed bool
	)

	if isStderr {
		parser, closed = c.stderrParser, h.stderrClosed
	} else {
		parser, closed = c.stdoutParser, h.stdoutClosed
	}

	c.mu.Unlock()

	if closed {
		return
	}

	if f, ok := parser.(stream.Finisher); ok {
		f.Finish()
	}
}

// wait drains both stream pumps, reaps the process, and emits the exit
// event sequence once controller state is consistent.
func (c *Controller) wait(h *handle, g *errgroup.Group, log *slog.Logger) {
	_ = g.Wait()

	waitErr := h.cmd.Wait()
	code, status := exitResult(waitErr)

	c.mu.Lock()

	if c.handle == h {
		c.handle = nil
		c.targetRunning = false
	}

	tail := string(h.stderrTail)
	onExited := c.onExited
	onRunningChanged := c.onRunningChanged
	onPidChanged := c.onPidChanged
	onError := c.onError
	c.mu.Unlock()

	if status == ExitCrashed {
		perr := &errors.ProcessError{ExitCode: code, Stderr: tail, Err: waitErr}
		log.Warn("process crashed", "error", perr)

		if onError != nil {
			onError(perr)
		}
	} else {
		log.Info("process exited", "exit_code", code)
	}

	if onExited != nil {
		onExited(code, status)
	}

	if onRunningChanged != nil {
		onRunningChanged(false)
	}

	if onPidChanged != nil {
		onPidChanged()
	}
}

// appendTail appends data to tail, keeping only the last maxStderrTail bytes.
func appendTail(tail, data []byte) []byte {
	tail = append(tail, data...)

	if over := len(tail) - maxStderrTail; over > 0 {
		tail = append(tail[:0], tail[over:]...)
	}

	return tail
}
