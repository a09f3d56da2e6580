package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext holds reconciliation-scoped logging context
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	SessionID string    // Sync session identifier
	Trigger   string    // What started the reconciliation (auto, manual, sweep, api)
	Subject   uint64    // Subject being reconciled
	Community uint64    // Community the operation is scoped to, if any
	StartTime time.Time // For duration calculation
}

// WithContext returns a new context with the given LogContext
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a LogContext for one subject reconciliation.
func NewLogContext(subject uint64, trigger string) *LogContext {
	return &LogContext{
		Subject:   subject,
		Trigger:   trigger,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithSession returns a copy with the session id set
func (lc *LogContext) WithSession(id string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SessionID = id
	}
	return clone
}

// WithCommunity returns a copy scoped to a community
func (lc *LogContext) WithCommunity(community uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Community = community
	}
	return clone
}

// WithTrace returns a copy with trace info set
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
