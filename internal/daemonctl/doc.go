// Package daemonctl launches, stops, and inspects the daemon process from the
// CLI. Liveness is judged by whether the IPC socket answers.
package daemonctl
