package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func newTestTopic(t *testing.T) (*pubsub.Topic, *pstest.Server) {
	t.Helper()
	ctx := context.Background()

	srv := pstest.NewServer()
	t.Cleanup(func() { _ = srv.Close() })

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	client, err := pubsub.NewClient(ctx, "plotter-test", option.WithGRPCConn(conn))
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	topic, err := client.CreateTopic(ctx, "submissions")
	require.NoError(t, err)
	return topic, srv
}

func TestPublishMarshalsPayload(t *testing.T) {
	otel.SetTextMapPropagator(propagation.TraceContext{})
	topic, srv := newTestTopic(t)
	pub := New(topic)
	defer pub.Stop()

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	id, err := pub.Publish(ctx, "submissions", map[string]string{"submission_id": "sub-1"})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	var got map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &got))
	require.Equal(t, "sub-1", got["submission_id"])
	require.Contains(t, msgs[0].Attributes["traceparent"], "4bf92f3577b34da6a3ce929d0e0e4736")
}

func TestPublishRequiresTopic(t *testing.T) {
	t.Parallel()

	_, err := New(nil).Publish(context.Background(), "submissions", "payload")
	require.ErrorContains(t, err, "not configured")
}

func TestPublishRejectsUnmarshalablePayload(t *testing.T) {
	t.Parallel()

	topic, _ := newTestTopic(t)
	pub := New(topic)
	defer pub.Stop()

	_, err := pub.Publish(context.Background(), "submissions", make(chan int))
	require.ErrorContains(t, err, "marshal payload")
}
