// Package process implements child-process orchestration: spawning with
// a resolved working directory and merged environment overlay, graceful
// and forced termination, stdin writes, and parser-driven consumption of
// the stdout and stderr streams.
package process
