package pubsub

import (
	"context"
	"encoding/json"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestNewRequiresConfig(t *testing.T) {
	t.Parallel()

	_, err := New(context.Background(), Config{ProjectID: "p"})
	require.Error(t, err)
}

func TestPublishNotConfigured(t *testing.T) {
	t.Parallel()

	var p *Publisher
	_, err := p.Publish(context.Background(), "todo.created", map[string]string{})
	require.Error(t, err)
	require.NoError(t, p.Close())
}

func TestPublishToFakeServer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	srv := pstest.NewServer()
	defer srv.Close()

	opts := []option.ClientOption{
		option.WithEndpoint(srv.Addr),
		option.WithoutAuthentication(),
		option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
	}
	admin, err := pubsub.NewClient(ctx, "todo-project", opts...)
	require.NoError(t, err)
	defer admin.Close()
	_, err = admin.CreateTopic(ctx, "todo-changes")
	require.NoError(t, err)

	pub, err := New(ctx, Config{ProjectID: "todo-project", TopicName: "todo-changes"}, opts...)
	require.NoError(t, err)
	defer pub.Close()

	id, err := pub.Publish(ctx, "todo.created", map[string]string{"id": "todo-1"})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "todo.created", msgs[0].Attributes[KindAttribute])
	var body map[string]string
	require.NoError(t, json.Unmarshal(msgs[0].Data, &body))
	assert.Equal(t, "todo-1", body["id"])
}

func TestPublishRejectsUnmarshalable(t *testing.T) {
	t.Parallel()

	p := NewWithTopic(&pubsub.Topic{})
	_, err := p.Publish(context.Background(), "todo.created", make(chan int))
	require.Error(t, err)
}
