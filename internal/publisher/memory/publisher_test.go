package memory

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStoresMessages(t *testing.T) {
	t.Parallel()

	pub := New()
	id1, err := pub.Publish(context.Background(), "todo.created", map[string]string{"id": "a"})
	require.NoError(t, err)
	assert.Equal(t, "memory-1", id1)
	id2, err := pub.Publish(context.Background(), "todo.deleted", "payload")
	require.NoError(t, err)
	assert.Equal(t, "memory-2", id2)

	assert.Equal(t, []string{"todo.created", "todo.deleted"}, pub.Kinds())

	msgs := pub.Messages()
	require.Len(t, msgs, 2)
	msgs[0].Kind = "modified"
	assert.Equal(t, "todo.created", pub.Messages()[0].Kind)
	require.NoError(t, pub.Close())
}

func TestPublisherFailWith(t *testing.T) {
	t.Parallel()

	pub := New()
	boom := errors.New("broker down")
	pub.FailWith(boom)
	_, err := pub.Publish(context.Background(), "todo.created", nil)
	require.ErrorIs(t, err, boom)
	assert.Empty(t, pub.Messages())

	pub.FailWith(nil)
	_, err = pub.Publish(context.Background(), "todo.created", nil)
	require.NoError(t, err)
}

func TestPublisherRetainsMostRecent(t *testing.T) {
	t.Parallel()

	pub := NewWithRetain(2)
	for _, kind := range []string{"a", "b", "c"} {
		_, err := pub.Publish(context.Background(), kind, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"b", "c"}, pub.Kinds())

	id, err := pub.Publish(context.Background(), "d", nil)
	require.NoError(t, err)
	assert.Equal(t, "memory-4", id)
}
