// Package services defines request-scoped helpers shared by the desk, the
// HTTP API, and the IPC server.
//
// The context helpers stamp token identifiers, acting workers, and
// correlation identifiers onto a context so the logging package can attach
// them to every line emitted while a request is in flight.
package services
