// Package queueaccess gives CLI commands one interface over the desk whether
// a daemon is running or not. OpenWithFallback prefers the daemon's IPC
// socket and otherwise opens the token database directly with a desk in the
// calling process; SQLite and the ledger's compare-and-set transitions keep
// the two paths safe to mix.
package queueaccess
