package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "rolesync", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())
	assert.NotNil(t, Tracer())
}

func TestSpansWithoutInit(t *testing.T) {
	ctx, span := StartReconcileSpan(context.Background(), 42, "manual", true)
	defer span.End()

	// No-op spans accept every call.
	AddEvent(ctx, "state", State("diff"))
	SetAttributes(ctx, Outcome(1, 2, 0)...)
	RecordError(ctx, errors.New("boom"))
	RecordError(ctx, nil)

	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(context.Background()))

	child, cspan := StartSourceSpan(ctx, 7)
	cspan.End()
	assert.NotNil(t, child)
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		kv   attribute.KeyValue
		key  string
		want string
	}{
		{"subject", Subject(18446744073709551615), AttrSubject, "18446744073709551615"},
		{"community", Community(1), AttrCommunity, "1"},
		{"target", Target(9000), AttrTarget, "9000"},
		{"trigger", Trigger("auto"), AttrTrigger, "auto"},
		{"state", State("apply"), AttrState, "apply"},
		{"error kind", ErrorKind("target_unavailable"), AttrErrorKind, "target_unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.key, string(tt.kv.Key))
			assert.Equal(t, tt.want, tt.kv.Value.AsString())
		})
	}

	out := Outcome(3, 1, 2)
	require.Len(t, out, 3)
	assert.Equal(t, int64(3), out[0].Value.AsInt64())
	assert.Equal(t, int64(2), out[2].Value.AsInt64())
	assert.True(t, DryRun(true).Value.AsBool())
	assert.Equal(t, int64(10), Total(10).Value.AsInt64())
}

func TestSampler(t *testing.T) {
	assert.Contains(t, sampler(1).Description(), "AlwaysOn")
	assert.Contains(t, sampler(0).Description(), "AlwaysOff")
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{})
	require.NoError(t, err)
	require.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestParseProfileTypes(t *testing.T) {
	types, err := parseProfileTypes(DefaultProfileTypes)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))

	_, err = parseProfileTypes([]string{"cpu", "heap"})
	assert.Error(t, err)
}
