// Package shellrig provides the process-orchestration and local-IPC
// core of the shellrig desktop automation toolkit.
//
// The package has three building blocks: Process owns a child process's
// lifecycle and stdio streams, Socket is one client-side connection to
// a named local socket, and SocketServer listens on one and spawns a
// handler Socket per accepted peer. Byte streams carry no framing of
// their own; message boundaries are the job of a pluggable StreamParser
// attached to each stream.
//
// # Running a process
//
//	p := shellrig.NewProcess(shellrig.WithLogger(slog.Default()))
//	p.SetCommand([]string{"sh", "-c", "echo hi"})
//	p.SetStdout(shellrig.NewSplitParser("\n", func(line []byte) {
//	    fmt.Printf("line read: %s\n", line)
//	}))
//	p.OnExited(func(code int, status shellrig.ExitStatus) {
//	    fmt.Printf("exited %d (%s)\n", code, status)
//	})
//	if err := p.Start(); err != nil {
//	    log.Fatal(err)
//	}
//
// Run a process in a loop by restarting it from the exit handler:
//
//	p.OnRunningChanged(func(running bool) {
//	    if !running {
//	        p.SetRunning(true)
//	    }
//	})
//
// # Environment overlays
//
// The process environment is configured as an overlay over the ambient
// environment. A string value sets a variable; a nil value removes it:
//
//	p.SetEnvironment(map[string]*string{
//	    "ADDED":   shellrig.EnvValue("value"),
//	    "REMOVED": nil,
//	})
//
// With SetClearEnvironment(true) the merged environment starts empty
// and nil instead means "inherit the ambient value of this key".
//
// # Local sockets
//
//	s := shellrig.NewSocket()
//	s.SetParser(shellrig.NewSplitParser("\n", handleLine))
//	s.SetPath("/run/user/1000/shellrig.sock")
//	s.SetTargetConnected(true)
//
// A SocketServer enables once it has a path, a handler factory, an
// activation request, and Ready has been called:
//
//	srv := shellrig.NewSocketServer()
//	srv.SetPath("/tmp/x.sock")
//	srv.SetHandler(func() *shellrig.Socket { return shellrig.NewSocket() })
//	srv.SetActive(true)
//	srv.Ready()
//
// # Error Handling
//
// Failures surface as typed errors, both from methods and through the
// OnError callbacks:
//
//	if cfgErr, ok := errors.AsType[*shellrig.ConfigurationError](err); ok {
//	    // invalid configuration, no state changed
//	}
//	if ioErr, ok := errors.AsType[*shellrig.TransientIOError](err); ok {
//	    // OS-level failure, component back in a clean dormant state
//	}
//
// No failure in this package is fatal: every error degrades the
// affected component to a well-defined idle state and retry policy
// belongs to the caller. The single exception is the socket channel's
// one immediate reconnect attempt after a disconnect while the caller
// still wants a connection.
package shellrig
