// Package preflight provides readiness checks for the filesystem paths and
// bind address Turnstile depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll on start and refuses to run if any check fails.
//   - The CLI "turnstile preflight" command prints every result, plus the
//     daemon lock state from CheckDaemonLock.
package preflight
