package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/embedding"
	"github.com/sourcelens/sourcelens/internal/vectorstore"
)

func TestEmbedderGate_RejectsWorkWhenClosed(t *testing.T) {
	g := NewEmbedderGate("embedder-1", embedding.NewNullProvider(4))
	ctx := context.Background()

	_, err := g.EmbedText(ctx, "hello")
	require.NoError(t, err)

	g.SetAccepting(false)
	_, err = g.EmbedText(ctx, "hello")
	assert.Error(t, err)

	g.SetAccepting(true)
	_, err = g.EmbedText(ctx, "hello")
	assert.NoError(t, err)
}

func TestEmbedderGate_TracksInFlightAndIdentity(t *testing.T) {
	g := NewEmbedderGate("embedder-1", embedding.NewNullProvider(4))
	assert.Equal(t, "embedder-1", g.ID())
	assert.Equal(t, 0, g.InFlight())
	assert.NoError(t, g.HealthCheck(context.Background()))
}

func TestStoreGate_RejectsWorkWhenClosed(t *testing.T) {
	g := NewStoreGate("store-1", vectorstore.NewMemoryStore())
	ctx := context.Background()

	require.NoError(t, g.CreateCollection(ctx, "demo", 4))

	g.SetAccepting(false)
	err := g.CreateCollection(ctx, "other", 4)
	assert.Error(t, err)

	require.NoError(t, g.Close(ctx))
}

func TestStoreGate_HealthCheckDelegatesToListCollections(t *testing.T) {
	g := NewStoreGate("store-1", vectorstore.NewMemoryStore())
	assert.NoError(t, g.HealthCheck(context.Background()))
	assert.Equal(t, "store-1", g.ID())
}
