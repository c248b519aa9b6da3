package mq

import (
	"context"
	"testing"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"nexus-fulfillment/internal/pkg/txctx"
)

type recordingPublisher struct {
	topics []string
}

func (p *recordingPublisher) Publish(ctx context.Context, topic, key string, event any) error {
	p.topics = append(p.topics, topic)
	return nil
}

type nopTx struct{}

func (nopTx) Commit() error   { return nil }
func (nopTx) Rollback() error { return nil }

type nopBeginner struct{}

func (nopBeginner) Begin(context.Context) (txctx.Tx, error) { return nopTx{}, nil }

func TestKafkaHeaderCarrier_RoundTripsTraceContext(t *testing.T) {
	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	prop := propagation.TraceContext{}
	carrier := KafkaHeaderCarrier([]kafka.Header{{Key: "other", Value: []byte("x")}})
	prop.Inject(ctx, &carrier)

	assert.Contains(t, carrier.Keys(), "traceparent")
	assert.Equal(t, "x", carrier.Get("other"))

	extracted := trace.SpanContextFromContext(prop.Extract(context.Background(), &carrier))
	assert.Equal(t, traceID, extracted.TraceID())
}

func TestKafkaHeaderCarrier_SetOverwrites(t *testing.T) {
	var carrier KafkaHeaderCarrier
	carrier.Set("k", "1")
	carrier.Set("k", "2")

	require.Len(t, carrier, 1)
	assert.Equal(t, "2", carrier.Get("k"))
}

func TestPublishAfterCommit_WaitsForCommit(t *testing.T) {
	p := &recordingPublisher{}
	m := txctx.NewManager(nopBeginner{})

	err := m.Run(context.Background(), func(ctx context.Context) error {
		PublishAfterCommit(ctx, p, "order-events", "o-1", Event{Type: "order.placed"})
		assert.Empty(t, p.topics)
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, []string{"order-events"}, p.topics)
}
