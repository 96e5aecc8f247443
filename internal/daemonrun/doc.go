// Package daemonrun builds and runs the daemon process: logger, pid file,
// token store, desk, HTTP API, and IPC socket.
package daemonrun
