package eventbus

import (
	"context"
	"testing"
	"time"

	"github.com/nats-io/nats.go"
	natsserver "github.com/nats-io/nats-server/v2/server"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startTestNATSServer(t *testing.T) *natsserver.Server {
	t.Helper()
	opts := &natsserver.Options{
		Host:           "127.0.0.1",
		Port:           -1,
		NoLog:          true,
		NoSigs:         true,
		MaxControlLine: 2048,
	}

	server, err := natsserver.NewServer(opts)
	require.NoError(t, err)

	go server.Start()
	if !server.ReadyForConnections(5 * time.Second) {
		t.Fatal("NATS server not ready")
	}
	t.Cleanup(server.Shutdown)
	return server
}

func TestNATSBus_PublishSubscribeRoundTrip(t *testing.T) {
	server := startTestNATSServer(t)
	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	bus := NewNATSBus(conn, nil)
	defer bus.Close()

	ctx := context.Background()
	sub := bus.Subscribe(ctx)
	// Give the NATS subscription a moment to register before publishing.
	time.Sleep(50 * time.Millisecond)

	_, err = bus.Publish(ctx, New(RecoveryCompleted, map[string]string{"subsystem_id": "embedder", "success": "true"}))
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, RecoveryCompleted, ev.Type)
		assert.Equal(t, "embedder", ev.Payload["subsystem_id"])
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber did not receive event over NATS")
	}
}

func TestNATSBus_UndecodableMessageIsSkippedNotFatal(t *testing.T) {
	server := startTestNATSServer(t)
	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	bus := NewNATSBus(conn, nil)
	defer bus.Close()

	ctx := context.Background()
	sub := bus.Subscribe(ctx)
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, conn.Publish(natsSubject(IndexRebuild), []byte("not json")))
	_, err = bus.Publish(ctx, New(IndexRebuild, nil))
	require.NoError(t, err)

	select {
	case ev := <-sub.Events():
		assert.Equal(t, IndexRebuild, ev.Type)
	case <-time.After(2 * time.Second):
		t.Fatal("valid event after malformed one was never delivered")
	}
}

func TestNATSBus_SubscriberCountAndClose(t *testing.T) {
	server := startTestNATSServer(t)
	conn, err := nats.Connect(server.ClientURL())
	require.NoError(t, err)
	defer conn.Close()

	bus := NewNATSBus(conn, nil)
	ctx := context.Background()
	bus.Subscribe(ctx)
	bus.Subscribe(ctx)
	assert.Equal(t, 2, bus.SubscriberCount())

	require.NoError(t, bus.Close())
	assert.Equal(t, 0, bus.SubscriberCount())
}
