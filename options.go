package shellrig

import "log/slog"

// Option configures component construction using the functional options
// pattern. The same options apply to NewProcess, NewSocket, and
// NewSocketServer.
type Option func(*options)

type options struct {
	logger *slog.Logger
}

// applyOptions applies functional options to an options struct.
func applyOptions(opts []Option) *options {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}

	return o
}

// WithLogger sets the logger for operation tracking and debugging.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}
