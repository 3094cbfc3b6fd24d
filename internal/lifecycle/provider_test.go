package lifecycle

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sourcelens/sourcelens/internal/eventbus"
)

type fakeProvider struct {
	id        string
	accepting atomic.Bool
	inFlight  atomic.Int32
	closed    atomic.Bool
}

func newFakeProvider(id string) *fakeProvider {
	p := &fakeProvider{id: id}
	p.accepting.Store(true)
	return p
}

func (p *fakeProvider) ID() string                   { return p.id }
func (p *fakeProvider) SetAccepting(accepting bool)   { p.accepting.Store(accepting) }
func (p *fakeProvider) InFlight() int                 { return int(p.inFlight.Load()) }
func (p *fakeProvider) Close(ctx context.Context) error {
	p.closed.Store(true)
	return nil
}

func TestLifecycle_RestartDrainsUnregistersRecreatesAndPublishes(t *testing.T) {
	registry := NewRegistry()
	old := newFakeProvider("embedder")
	registry.Register(old)

	fresh := newFakeProvider("embedder")
	factories := map[string]Factory{
		"embedder": func(ctx context.Context) (Provider, error) { return fresh, nil },
	}

	bus := eventbus.NewInProcBus(8)
	defer bus.Close()
	watcher := bus.Subscribe(context.Background())

	cfg := DefaultConfig()
	cfg.DrainPoll = time.Millisecond
	m := New(registry, factories, cfg, bus, nil)

	require.NoError(t, m.Restart(context.Background(), "embedder"))

	assert.False(t, old.accepting.Load())
	got, ok := registry.Get("embedder")
	require.True(t, ok)
	assert.Same(t, fresh, got)

	select {
	case ev := <-watcher.Events():
		assert.Equal(t, eventbus.ProviderRestarted, ev.Type)
		assert.Equal(t, "embedder", ev.Payload["provider_id"])
	case <-time.After(time.Second):
		t.Fatal("ProviderRestarted never published")
	}
}

func TestLifecycle_DrainTimeoutForceClosesInFlightProvider(t *testing.T) {
	registry := NewRegistry()
	old := newFakeProvider("vectorstore")
	old.inFlight.Store(1) // never drops to zero
	registry.Register(old)

	factories := map[string]Factory{
		"vectorstore": func(ctx context.Context) (Provider, error) { return newFakeProvider("vectorstore"), nil },
	}

	bus := eventbus.NewInProcBus(8)
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.DrainTimeout = 10 * time.Millisecond
	cfg.DrainPoll = time.Millisecond
	m := New(registry, factories, cfg, bus, nil)

	require.NoError(t, m.Restart(context.Background(), "vectorstore"))
	assert.True(t, old.closed.Load())
}

func TestLifecycle_RecreateFailureLeavesProviderUnregistered(t *testing.T) {
	registry := NewRegistry()
	old := newFakeProvider("embedder")
	registry.Register(old)

	factories := map[string]Factory{
		"embedder": func(ctx context.Context) (Provider, error) { return nil, errors.New("boom") },
	}

	bus := eventbus.NewInProcBus(8)
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.DrainPoll = time.Millisecond
	m := New(registry, factories, cfg, bus, nil)

	err := m.Restart(context.Background(), "embedder")
	require.Error(t, err)

	_, ok := registry.Get("embedder")
	assert.False(t, ok)
}

func TestLifecycle_UnknownProviderIDFailsFast(t *testing.T) {
	m := New(NewRegistry(), map[string]Factory{}, DefaultConfig(), eventbus.NewInProcBus(1), nil)
	err := m.Restart(context.Background(), "ghost")
	assert.Error(t, err)
}
