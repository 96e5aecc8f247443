// Package logging assembles structured slog loggers and formatting helpers used
// across the turnstile daemon and CLI.
//
// It owns the console and JSON handlers, centralizes level and output
// plumbing, and exposes context-aware helpers so desk and API code can tag
// log lines with token IDs, acting workers, and correlation IDs. The console
// handler promotes the component, sequence number, and worker into the line
// header so queue transitions read naturally in a terminal.
//
// A no-op logger is provided for tests and wiring code that cannot fail.
package logging
