// Package daemon coordinates the long-running Turnstile process.
//
// It wires configuration, the token store, and the desk into a single
// lifecycle with flock-based locking to prevent multiple instances. Start
// runs preflight directory checks, resolves the current service period, and
// brings up the HTTP API and a watcher that triggers the retention pass soon
// after each period boundary.
//
// The HTTP API shares api.QueueService with the IPC server so both surfaces
// return identical payloads. Staff endpoints are guarded by the optional
// bearer token from paths.api_token.
package daemon
