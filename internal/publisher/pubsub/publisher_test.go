package pubsub

import (
	"context"
	"testing"

	"cloud.google.com/go/pubsub"
	"cloud.google.com/go/pubsub/pstest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

func TestPublishToFakeServer(t *testing.T) {
	ctx := context.Background()
	srv := pstest.NewServer()
	defer srv.Close()

	conn, err := grpc.NewClient(srv.Addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	require.NoError(t, err)
	defer conn.Close()

	client, err := pubsub.NewClient(ctx, "menus-project", option.WithGRPCConn(conn))
	require.NoError(t, err)
	defer client.Close()

	topic, err := client.CreateTopic(ctx, "menu-runs")
	require.NoError(t, err)

	pub := New(topic)
	defer pub.Stop()
	id, err := pub.Publish(ctx, "menus", map[string]any{"run_id": "r1", "aborted": false})
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	msgs := srv.Messages()
	require.Len(t, msgs, 1)
	assert.JSONEq(t, `{"run_id":"r1","aborted":false}`, string(msgs[0].Data))
	assert.Equal(t, "menus", msgs[0].Attributes["kind"])
}

func TestPublishWithoutTopic(t *testing.T) {
	t.Parallel()
	_, err := New(nil).Publish(context.Background(), "menus", struct{}{})
	assert.Error(t, err)
}
