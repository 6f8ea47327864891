package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldReportID is the standardized structured logging key for queued report identifiers.
	FieldReportID = "report_id"
	// FieldEventType classifies a log line for filtering (e.g. report_delivered).
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldImpact is the standardized key for user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldOutcome records the classified result of an upload attempt.
	FieldOutcome = "outcome"
	// FieldCorrelationID is the standardized structured logging key for request correlation identifiers.
	FieldCorrelationID = "correlation_id"
	// FieldDrainID identifies one drain pass across its log lines.
	FieldDrainID = "drain_id"
)

type contextKey int

const (
	reportIDKey contextKey = iota
	correlationIDKey
	drainIDKey
)

// WithReportID tags ctx with the report currently being handled.
func WithReportID(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, reportIDKey, id)
}

// WithCorrelationID tags ctx with an API request identifier.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationIDKey, id)
}

// WithDrainID tags ctx with the identifier of the active drain pass.
func WithDrainID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, drainIDKey, id)
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := ctx.Value(reportIDKey).(int64); ok && id > 0 {
		fields = append(fields, slog.Int64(FieldReportID, id))
	}
	if id, ok := ctx.Value(drainIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldDrainID, id))
	}
	if id, ok := ctx.Value(correlationIDKey).(string); ok && id != "" {
		fields = append(fields, slog.String(FieldCorrelationID, id))
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
	return logger.With(Args(fields...)...)
}
