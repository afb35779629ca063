package logging

import (
	"context"
	"log/slog"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one invocation of the batch runner.
	FieldRunID = "run_id"
	// FieldUnitID is the standardized structured logging key for work unit identifiers.
	FieldUnitID = "unit_id"
	// FieldUnitKind records whether a unit is a single album or a multi-disc album.
	FieldUnitKind = "unit_kind"
	// FieldAttempt is the 1-based attempt number for a unit.
	FieldAttempt = "attempt"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint carries the suggested next step for a warning or error.
	FieldErrorHint = "error_hint"
	// FieldDecisionType names the decision being logged (see DecisionAttrs).
	FieldDecisionType = "decision_type"
)

type contextKey int

const (
	unitIDKey contextKey = iota
	attemptKey
)

// WithUnitID stores the work unit identifier on ctx.
func WithUnitID(ctx context.Context, unitID string) context.Context {
	if unitID == "" {
		return ctx
	}
	return context.WithValue(ctx, unitIDKey, unitID)
}

// WithAttempt stores the current attempt number on ctx.
func WithAttempt(ctx context.Context, attempt int) context.Context {
	if attempt <= 0 {
		return ctx
	}
	return context.WithValue(ctx, attemptKey, attempt)
}

// UnitIDFromContext returns the unit identifier stored on ctx.
func UnitIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	v, ok := ctx.Value(unitIDKey).(string)
	return v, ok && v != ""
}

// AttemptFromContext returns the attempt number stored on ctx.
func AttemptFromContext(ctx context.Context) (int, bool) {
	if ctx == nil {
		return 0, false
	}
	v, ok := ctx.Value(attemptKey).(int)
	return v, ok && v > 0
}

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 2)
	if id, ok := UnitIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldUnitID, id))
	}
	if attempt, ok := AttemptFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldAttempt, attempt))
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
