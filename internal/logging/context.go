package logging

import (
	"context"
	"log/slog"

	"turnstile/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldTokenID is the standardized structured logging key for token identifiers.
	FieldTokenID = "token_id"
	// FieldSequence is the standardized structured logging key for per-period sequence numbers.
	FieldSequence = "sequence"
	// FieldOwner is the standardized structured logging key for the requesting owner reference.
	FieldOwner = "owner"
	// FieldWorker is the standardized structured logging key for the acting service worker.
	FieldWorker = "worker"
	// FieldPeriod is the standardized structured logging key for the service period key.
	FieldPeriod = "period"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldEventType tags lines that record a queue transition (allocated, called, completed, reset).
	FieldEventType = "event_type"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.TokenIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldTokenID, id))
	}
	if worker, ok := services.WorkerFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldWorker, worker))
	}
	if rid, ok := services.RequestIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCorrelationID, rid))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	return logger.With(attrsToArgs(fields)...)
}
