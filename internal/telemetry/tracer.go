package telemetry

import (
	"context"
	"strconv"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on rolesync spans.
const (
	AttrSubject   = "rolesync.subject"
	AttrCommunity = "rolesync.community"
	AttrTarget    = "rolesync.target_community"
	AttrTrigger   = "rolesync.trigger"
	AttrState     = "rolesync.state"
	AttrDryRun    = "rolesync.dry_run"
	AttrAdded     = "rolesync.roles_added"
	AttrRemoved   = "rolesync.roles_removed"
	AttrFailed    = "rolesync.roles_failed"
	AttrErrorKind = "rolesync.error_kind"
	AttrTotal     = "rolesync.total"
)

// Span names.
const (
	SpanReconcile     = "reconcile"
	SpanFetchSource   = "reconcile.fetch_source"
	SpanApply         = "reconcile.apply"
	SpanRecord        = "reconcile.record"
	SpanDrain         = "debounce.drain"
	SpanSweep         = "batch.sweep"
	SpanSweepPrefetch = "batch.prefetch"
	SpanSweepFlush    = "batch.flush"
)

// Snowflakes are exported as strings; int64 would wrap for large ids.
func snowflake(key string, id uint64) attribute.KeyValue {
	return attribute.String(key, strconv.FormatUint(id, 10))
}

func Subject(id uint64) attribute.KeyValue   { return snowflake(AttrSubject, id) }
func Community(id uint64) attribute.KeyValue { return snowflake(AttrCommunity, id) }
func Target(id uint64) attribute.KeyValue    { return snowflake(AttrTarget, id) }

func Trigger(t string) attribute.KeyValue { return attribute.String(AttrTrigger, t) }
func State(s string) attribute.KeyValue   { return attribute.String(AttrState, s) }
func DryRun(b bool) attribute.KeyValue    { return attribute.Bool(AttrDryRun, b) }

// Outcome returns the per-role counters recorded when a reconcile finishes.
func Outcome(added, removed, failed int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Int(AttrAdded, added),
		attribute.Int(AttrRemoved, removed),
		attribute.Int(AttrFailed, failed),
	}
}

func ErrorKind(kind string) attribute.KeyValue { return attribute.String(AttrErrorKind, kind) }
func Total(n int) attribute.KeyValue           { return attribute.Int(AttrTotal, n) }

// StartReconcileSpan starts the root span of one reconciliation.
func StartReconcileSpan(ctx context.Context, subject uint64, trigger string, dryRun bool) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanReconcile,
		trace.WithAttributes(Subject(subject), Trigger(trigger), DryRun(dryRun)))
}

// StartSourceSpan starts a child span for reading one source community.
func StartSourceSpan(ctx context.Context, community uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanFetchSource, trace.WithAttributes(Community(community)))
}

// StartSweepSpan starts the root span of a full sweep over target.
func StartSweepSpan(ctx context.Context, target uint64) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSweep, trace.WithAttributes(Target(target)))
}

// StartFlushSpan starts a span around one batch write of n records.
func StartFlushSpan(ctx context.Context, n int) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanSweepFlush, trace.WithAttributes(Total(n)))
}
