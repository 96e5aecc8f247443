// Package notifications publishes desk events to ntfy.
//
// NewService returns a no-op notifier when no topic is configured, so callers
// can publish unconditionally. Events are enumerated so the desk and the
// daemon emit consistent messages without duplicating HTTP glue.
package notifications
