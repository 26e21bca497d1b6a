// Package socket implements local-socket IPC: Channel for client-side
// connections to a named endpoint and Server for listening on one,
// spawning a handler channel per accepted peer.
//
// Both sides track caller intent (target state) separately from actual
// state and reconcile asynchronously. Byte streams are consumed through
// the same pluggable parser contract used for process stdio.
package socket
