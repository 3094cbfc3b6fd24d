package recovery

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

type fakeRestarter struct {
	failUntil int32
	attempts  int32
}

func (f *fakeRestarter) Restart(ctx context.Context, id string) error {
	n := atomic.AddInt32(&f.attempts, 1)
	if n <= f.failUntil {
		return errors.New("boom")
	}
	return nil
}

func waitForEvent(t *testing.T, sub eventbus.Subscription, want eventbus.Type, timeout time.Duration) eventbus.Event {
	t.Helper()
	deadline := time.After(timeout)
	for {
		select {
		case ev := <-sub.Events():
			if ev.Type == want {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for event %s", want)
		}
	}
}

func TestRecovery_SuccessfulRestartEmitsRecoveryCompleted(t *testing.T) {
	bus := eventbus.NewInProcBus(32)
	defer bus.Close()

	restarter := &fakeRestarter{}
	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond

	m := New(bus, restarter, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	watcher := bus.Subscribe(ctx)
	_, err := bus.Publish(ctx, eventbus.New(eventbus.ProviderRestart, map[string]string{"provider_id": "embedder"}))
	require.NoError(t, err)

	waitForEvent(t, watcher, eventbus.RecoveryStarted, time.Second)
	waitForEvent(t, watcher, eventbus.RecoveryCompleted, time.Second)

	assert.Equal(t, Degraded, m.State("embedder"))
}

func TestRecovery_ExhaustsAfterMaxRetries(t *testing.T) {
	bus := eventbus.NewInProcBus(32)
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	cfg.MaxRetries = 2
	restarter := &fakeRestarter{failUntil: 10}

	m := New(bus, restarter, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	watcher := bus.Subscribe(ctx)
	_, err := bus.Publish(ctx, eventbus.New(eventbus.ProviderRestart, map[string]string{"provider_id": "vectorstore"}))
	require.NoError(t, err)

	waitForEvent(t, watcher, eventbus.RecoveryExhausted, 2*time.Second)
	assert.Equal(t, Degraded, m.State("vectorstore"))
}

func TestRecovery_ConcurrentFailuresCollapseWhileRecovering(t *testing.T) {
	bus := eventbus.NewInProcBus(32)
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.BaseDelay = 20 * time.Millisecond
	cfg.MaxDelay = 20 * time.Millisecond
	restarter := &fakeRestarter{}

	m := New(bus, restarter, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	watcher := bus.Subscribe(ctx)
	for i := 0; i < 5; i++ {
		_, err := bus.Publish(ctx, eventbus.New(eventbus.ProviderRestart, map[string]string{"provider_id": "cache"}))
		require.NoError(t, err)
	}

	waitForEvent(t, watcher, eventbus.RecoveryCompleted, 2*time.Second)
	assert.Equal(t, int32(1), atomic.LoadInt32(&restarter.attempts))
}

func TestRecovery_HealthCheckDuringDegradedResetsToHealthy(t *testing.T) {
	bus := eventbus.NewInProcBus(32)
	defer bus.Close()

	cfg := DefaultConfig()
	cfg.BaseDelay = time.Millisecond
	cfg.MaxDelay = 5 * time.Millisecond
	restarter := &fakeRestarter{}

	m := New(bus, restarter, cfg, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	m.Start(ctx)

	watcher := bus.Subscribe(ctx)
	_, err := bus.Publish(ctx, eventbus.New(eventbus.ProviderRestart, map[string]string{"provider_id": "embedder"}))
	require.NoError(t, err)
	waitForEvent(t, watcher, eventbus.RecoveryCompleted, time.Second)
	require.Equal(t, Degraded, m.State("embedder"))

	_, err = bus.Publish(ctx, eventbus.New(eventbus.SubsystemHealthCheck, map[string]string{"subsystem_id": "embedder"}))
	require.NoError(t, err)

	assert.Eventually(t, func() bool {
		return m.State("embedder") == Healthy
	}, time.Second, 5*time.Millisecond)
}
