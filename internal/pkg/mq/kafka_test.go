package mq

import (
	"context"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"testing"
)

type recordingWriter struct {
	msgs []kafka.Message
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	w.msgs = append(w.msgs, msgs...)
	return nil
}

func spanContext(t *testing.T) context.Context {
	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	return trace.ContextWithSpanContext(context.Background(), sc)
}

func TestProduceMessage_InjectsTraceHeaders(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	w := &recordingWriter{}

	err := ProduceMessage(spanContext(t), w, []byte("product:1"), []byte(`{}`), kafka.Header{Key: "event-type", Value: []byte("catalog.created")})
	require.NoError(t, err)
	require.Len(t, w.msgs, 1)

	carrier := KafkaHeaderCarrier(w.msgs[0].Headers)
	assert.Equal(t, "catalog.created", carrier.Get("event-type"))
	assert.Equal(t, "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01", carrier.Get("traceparent"))

	extracted := ExtractTraceContext(context.Background(), w.msgs[0])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", trace.SpanContextFromContext(extracted).TraceID().String())
}

func TestKafkaHeaderCarrier_SetOverwrites(t *testing.T) {
	var c KafkaHeaderCarrier
	c.Set("k", "1")
	c.Set("k", "2")

	assert.Equal(t, []string{"k"}, c.Keys())
	assert.Equal(t, "2", c.Get("k"))
	assert.Empty(t, c.Get("missing"))
}
