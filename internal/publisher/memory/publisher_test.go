package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "submissions", map[string]string{"submission_id": "a"})
	require.NoError(t, err)
	require.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "submissions-dlq", "payload")
	require.NoError(t, err)
	require.Equal(t, "memory-2", id2)

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	require.Equal(t, "submissions", msgs[0].Topic)
	require.Equal(t, "submissions-dlq", msgs[1].Topic)

	msgs[0].Topic = "modified"
	require.Equal(t, "submissions", pub.Messages()[0].Topic)
}

func TestPublisherFailure(t *testing.T) {
	t.Parallel()

	pub := New()
	pub.FailWith(errors.New("broker down"))

	_, err := pub.Publish(context.Background(), "submissions", "payload")
	require.ErrorContains(t, err, "broker down")
	require.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "submissions", "payload")
	require.NoError(t, err)
}
