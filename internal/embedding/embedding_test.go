package embedding

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNullProvider_DeterministicAndOrdered(t *testing.T) {
	p := NewNullProvider(16)
	a, err := p.EmbedText(context.Background(), "authenticate user")
	require.NoError(t, err)
	b, err := p.EmbedText(context.Background(), "authenticate user")
	require.NoError(t, err)
	assert.Equal(t, a.Vector, b.Vector)
	assert.Len(t, a.Vector, 16)

	batch, err := p.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, batch, 3)

	one, _ := p.EmbedText(context.Background(), "one")
	assert.Equal(t, one.Vector, batch[0].Vector)
}

func TestNullProvider_HealthCheckAlwaysOK(t *testing.T) {
	p := NewNullProvider(4)
	assert.NoError(t, p.HealthCheck(context.Background()))
}
