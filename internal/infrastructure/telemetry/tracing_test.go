package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func setupTestTracer(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(previous) })
	return sr
}

func TestStartServiceSpan(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartServiceSpan(context.Background(), "closure", "validate",
		SpanAttrDate, "2025-10-17",
		SpanAttrSequential, true,
		42, "ignored",
	)
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "closure.validate", spans[0].Name())
	assert.Contains(t, spans[0].Attributes(), attribute.String(SpanAttrDate, "2025-10-17"))
	assert.Contains(t, spans[0].Attributes(), attribute.Bool(SpanAttrSequential, true))
	assert.Len(t, spans[0].Attributes(), 2)
}

func TestRecordError(t *testing.T) {
	sr := setupTestTracer(t)

	_, span := StartServiceSpan(context.Background(), "ledger", "aggregate")
	RecordError(span, errors.New("connection reset"))
	RecordError(span, nil)
	span.End()

	ended := sr.Ended()[0]
	assert.Equal(t, codes.Error, ended.Status().Code)
	assert.Equal(t, "connection reset", ended.Status().Description)
	require.Len(t, ended.Events(), 1)
}
