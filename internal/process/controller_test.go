package process

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"

	rigerrors "github.com/shellrig/shellrig/internal/errors"
	"github.com/shellrig/shellrig/internal/stream"
)

const eventTimeout = 5 * time.Second

type exitEvent struct {
	code   int
	status ExitStatus
}

func waitFor[T any](t *testing.T, ch <-chan T, what string) T {
	t.Helper()

	select {
	case v := <-ch:
		return v
	case <-time.After(eventTimeout):
		t.Fatalf("timed out waiting for %s", what)

		panic("unreachable")
	}
}

func watchExit(c *Controller) <-chan exitEvent {
	exited := make(chan exitEvent, 1)

	c.OnExited(func(code int, status ExitStatus) {
		exited <- exitEvent{code: code, status: status}
	})

	return exited
}

func TestStart_EmptyCommandIsConfigurationError(t *testing.T) {
	c := New(nil)

	errs := make(chan error, 1)
	c.OnError(func(err error) { errs <- err })

	err := c.Start()

	require.ErrorIs(t, err, rigerrors.ErrEmptyCommand)

	var cfgErr *rigerrors.ConfigurationError

	require.ErrorAs(t, err, &cfgErr)
	require.ErrorIs(t, waitFor(t, errs, "error event"), rigerrors.ErrEmptyCommand)
	require.False(t, c.Running())
}

func TestEchoLineThenNormalExit(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"sh", "-c", "echo hi"})

	lines := make(chan string, 8)
	c.SetStdout(stream.NewSplitParser("\n", func(segment []byte) {
		lines <- string(segment)
	}))

	exited := watchExit(c)

	require.NoError(t, c.Start())
	require.Equal(t, "hi", waitFor(t, lines, "stdout line"))

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, 0, ev.code)
	require.Equal(t, ExitNormal, ev.status)
	require.False(t, c.Running())

	// The exit event fires only after stdout is fully drained, so any
	// extra line would already be visible here.
	select {
	case extra := <-lines:
		t.Fatalf("unexpected extra line %q", extra)
	default:
	}
}

func TestStart_WhileRunningIsNoOp(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"sleep", "60"})

	exited := watchExit(c)

	require.NoError(t, c.Start())

	pid1, ok := c.Pid()

	require.True(t, ok)
	require.Positive(t, pid1)

	require.NoError(t, c.Start())

	pid2, ok := c.Pid()

	require.True(t, ok)
	require.Equal(t, pid1, pid2)

	c.Signal(unix.SIGKILL)

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, -1, ev.code)
	require.Equal(t, ExitCrashed, ev.status)
	require.False(t, c.Running())
}

func TestStop_IsIdempotent(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"sleep", "60"})

	runningChanges := make(chan bool, 4)
	c.OnRunningChanged(func(running bool) { runningChanges <- running })

	exited := watchExit(c)

	require.NoError(t, c.Start())
	require.True(t, waitFor(t, runningChanges, "running=true"))

	c.Stop()
	c.Stop()

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, ExitCrashed, ev.status)
	require.False(t, waitFor(t, runningChanges, "running=false"))
}

func TestStop_WithoutProcessIsNoOp(t *testing.T) {
	c := New(nil)

	c.Stop()

	require.False(t, c.Running())
}

func TestWrite_ReachesStdin(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"cat"})
	c.SetStdinEnabled(true)

	lines := make(chan string, 8)
	c.SetStdout(stream.NewSplitParser("\n", func(segment []byte) {
		lines <- string(segment)
	}))

	exited := watchExit(c)

	require.NoError(t, c.Start())

	c.Write([]byte("hello\n"))

	require.Equal(t, "hello", waitFor(t, lines, "echoed line"))

	// Disabling stdin closes the pipe; cat sees EOF and exits cleanly.
	c.SetStdinEnabled(false)

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, 0, ev.code)
	require.Equal(t, ExitNormal, ev.status)
}

func TestWrite_LargePayloadKeepsControllerResponsive(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"cat"})
	c.SetStdinEnabled(true)

	segments := make(chan int, 1)
	c.SetStdout(stream.NewSplitParser("\n", func(segment []byte) {
		segments <- len(segment)
	}))

	exited := watchExit(c)

	require.NoError(t, c.Start())

	// Far larger than the kernel pipe buffers on both stdin and stdout,
	// so the write can only complete while the stdout pump keeps
	// draining the child.
	const payloadSize = 2 << 20

	payload := append(bytes.Repeat([]byte{'a'}, payloadSize), '\n')

	writeDone := make(chan struct{})

	go func() {
		c.Write(payload)
		close(writeDone)
	}()

	// Controller methods must not block behind the in-flight write.
	responsive := make(chan bool, 1)

	go func() { responsive <- c.Running() }()

	require.True(t, waitFor(t, responsive, "Running() during large write"))
	require.Equal(t, payloadSize, waitFor(t, segments, "echoed payload"))

	waitFor(t, writeDone, "write completion")

	c.SetStdinEnabled(false)

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, 0, ev.code)
	require.Equal(t, ExitNormal, ev.status)
}

func TestWrite_WithoutProcessIsDropped(t *testing.T) {
	c := New(nil)

	c.Write([]byte("dropped"))
}

func TestStart_SpawnFailureIsTransient(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"/nonexistent/shellrig-test-binary"})

	errs := make(chan error, 1)
	c.OnError(func(err error) { errs <- err })

	err := c.Start()

	require.Error(t, err)

	var ioErr *rigerrors.TransientIOError

	require.ErrorAs(t, err, &ioErr)
	require.ErrorAs(t, waitFor(t, errs, "error event"), &ioErr)
	require.False(t, c.Running())

	// The controller is restartable after a spawn failure.
	c.SetCommand([]string{"sh", "-c", "true"})

	exited := watchExit(c)

	require.NoError(t, c.Start())

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, 0, ev.code)
}

func TestEnvironmentOverlayAppliedToChild(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"sh", "-c", `printf '%s' "$SHELLRIG_TEST_VALUE"`})
	c.SetEnvironment(map[string]*string{"SHELLRIG_TEST_VALUE": strptr("overlaid")})

	output := make(chan []byte, 1)
	c.SetStdout(stream.NewStdioCollector(func(data []byte) { output <- data }))

	require.NoError(t, c.Start())
	require.Equal(t, "overlaid", string(waitFor(t, output, "collected stdout")))
}

func TestClearEnvironmentInheritsOnlyNilKeys(t *testing.T) {
	t.Setenv("SHELLRIG_AMBIENT", "from-ambient")

	c := New(nil)
	c.SetCommand([]string{"/bin/sh", "-c", `printf '%s|%s' "$SHELLRIG_AMBIENT" "$HOME"`})
	c.SetClearEnvironment(true)
	c.SetEnvironment(map[string]*string{"SHELLRIG_AMBIENT": nil})

	output := make(chan []byte, 1)
	c.SetStdout(stream.NewStdioCollector(func(data []byte) { output <- data }))

	require.NoError(t, c.Start())
	require.Equal(t, "from-ambient|", string(waitFor(t, output, "collected stdout")))
}

func TestParserDetachPermanentlyClosesStream(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"cat"})
	c.SetStdinEnabled(true)

	lines := make(chan string, 8)
	c.SetStdout(stream.NewSplitParser("\n", func(segment []byte) {
		lines <- string(segment)
	}))

	exited := watchExit(c)

	require.NoError(t, c.Start())

	c.Write([]byte("one\n"))

	require.Equal(t, "one", waitFor(t, lines, "first line"))

	c.SetStdout(nil)

	// Re-attaching does not resume reads on the closed stream.
	c.SetStdout(stream.NewSplitParser("\n", func(segment []byte) {
		lines <- "late:" + string(segment)
	}))

	c.Write([]byte("two\n"))
	c.SetStdinEnabled(false)

	waitFor(t, exited, "exit event")

	select {
	case extra := <-lines:
		t.Fatalf("unexpected line after detach: %q", extra)
	default:
	}
}

func TestPid_ValidOnlyWhileRunning(t *testing.T) {
	c := New(nil)

	_, ok := c.Pid()

	require.False(t, ok)

	c.SetCommand([]string{"sh", "-c", "true"})

	exited := watchExit(c)

	require.NoError(t, c.Start())
	waitFor(t, exited, "exit event")

	_, ok = c.Pid()

	require.False(t, ok)
}

func TestSetRunning_ReconcilesTargetState(t *testing.T) {
	c := New(nil)
	c.SetCommand([]string{"sleep", "60"})

	exited := watchExit(c)

	c.SetRunning(true)

	require.True(t, c.Running())

	c.SetRunning(false)

	ev := waitFor(t, exited, "exit event")

	require.Equal(t, ExitCrashed, ev.status)
	require.False(t, c.Running())
}
