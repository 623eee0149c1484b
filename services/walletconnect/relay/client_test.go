package relay

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/status-im/dapp-connector/services/walletconnect/relay/relaytest"
)

type received struct {
	topic   string
	message string
	tag     int
}

type recorder struct {
	mu       sync.Mutex
	messages []received
}

func (r *recorder) handle(topic, message string, tag int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, received{topic: topic, message: message, tag: tag})
}

func (r *recorder) all() []received {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]received(nil), r.messages...)
}

func setupClient(t *testing.T) (*Client, *relaytest.Server, *recorder) {
	server := relaytest.NewServer()
	t.Cleanup(server.Close)

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	rec := &recorder{}
	client := NewClient(Config{URL: server.URL(), ProjectID: "project-1"}, key, rec.handle)
	require.NoError(t, client.Start(context.Background()))
	t.Cleanup(client.Stop)
	return client, server, rec
}

func TestClientSubscribeAndReceive(t *testing.T) {
	client, server, rec := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Subscribe(ctx, "topic-a"))
	require.True(t, client.Subscribed("topic-a"))
	require.True(t, server.Subscribed("topic-a"))

	require.Equal(t, 1, server.Deliver("topic-a", "payload", TagSessionPropose))
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
	require.Equal(t, received{topic: "topic-a", message: "payload", tag: TagSessionPropose}, rec.all()[0])
	require.Eventually(t, func() bool { return server.Acks() == 1 }, time.Second, 10*time.Millisecond)

	queries := server.Queries()
	require.Len(t, queries, 1)
	require.Equal(t, "project-1", queries[0]["projectId"])
	require.NotEmpty(t, queries[0]["auth"])
}

func TestClientPublish(t *testing.T) {
	client, server, _ := setupClient(t)

	require.NoError(t, client.Publish(context.Background(), "topic-b", "sealed", TagSessionSettle, TTLOneDay))

	published := server.Published()
	require.Len(t, published, 1)
	require.Equal(t, relaytest.Published{Topic: "topic-b", Message: "sealed", Tag: TagSessionSettle, TTL: TTLOneDay}, published[0])
}

func TestClientUnsubscribe(t *testing.T) {
	client, server, _ := setupClient(t)
	ctx := context.Background()

	require.NoError(t, client.Subscribe(ctx, "topic-c"))
	require.NoError(t, client.Unsubscribe(ctx, "topic-c"))
	require.False(t, client.Subscribed("topic-c"))
	require.False(t, server.Subscribed("topic-c"))

	// unknown topics are a no-op
	require.NoError(t, client.Unsubscribe(ctx, "unknown"))
}

func TestClientReconnectRestoresSubscriptions(t *testing.T) {
	client, server, rec := setupClient(t)

	require.NoError(t, client.Subscribe(context.Background(), "topic-d"))
	server.DropConnections()

	require.Eventually(t, func() bool {
		return len(server.Queries()) == 2 && server.Subscribed("topic-d")
	}, 5*time.Second, 20*time.Millisecond)

	server.Deliver("topic-d", "after-reconnect", TagSessionRequest)
	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, time.Second, 10*time.Millisecond)
}

func TestClientStopped(t *testing.T) {
	client, _, _ := setupClient(t)
	client.Stop()

	require.False(t, client.IsConnected())
	require.ErrorIs(t, client.Publish(context.Background(), "t", "m", TagSessionEvent, TTLFiveMinutes), ErrNotConnected)
}
