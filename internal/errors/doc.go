// Package errors defines error types for shellrig.
//
// This package provides structured error types that wrap the failure
// scenarios of process orchestration and local socket IPC. All error types
// support error unwrapping and can be checked using errors.Is, errors.As,
// and errors.AsType.
package errors
