package otelhelper

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestNewTracer(t *testing.T) {
	tracer, err := NewTracer(context.Background(), "lightning-test")
	require.NoError(t, err)
	require.NotNil(t, tracer)

	ctx, span := StartSpan(context.Background(), tracer, "test.operation",
		attribute.String(WorkOrderIDKey, "wo-1"),
	)
	assert.NotNil(t, ctx)
	assert.True(t, span.IsRecording())

	SetError(span, errors.New("boom"), attribute.String(RunIDKey, "run-1"))
	span.End()
	assert.False(t, span.IsRecording())
}
