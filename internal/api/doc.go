// Package api defines wire-format types and converters for the HTTP and IPC
// layers. It translates desk and ledger models into transport-friendly DTOs
// so the CLI and other consumers can render tokens without coupling to
// internal types.
//
// # Key Types
//
// Token: transport representation of a service token.
//
// Ticket: the customer view returned by take, with ahead count and wait
// estimate.
//
// QueueEntry: one row of the annotated queue listing.
//
// DailyStats, Analytics, WorkerCount: reporting payloads.
//
// DaemonStatus: aggregated runtime information for status endpoints.
//
// # Design Notes
//
// DTOs use camelCase JSON tags. queue.Status is exposed as a lowercase
// string. Timestamps use RFC3339 with milliseconds. QueueService wraps a
// desk and is the single place the HTTP handlers and IPC server obtain DTOs
// from, so both surfaces return identical payloads.
package api
