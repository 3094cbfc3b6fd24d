// Package lifecycle implements a four-phase provider restart sequence:
// stop new work, drain in-flight operations, unregister, then recreate
// and re-register. Providers are treated as external
// collaborators (stateless HTTP services, local backends) — a restart
// is primarily a local bookkeeping reset, not a remote operation.
package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/sourcelens/sourcelens/internal/eventbus"
)

const DefaultDrainTimeout = 10 * time.Second

// Provider is the narrow capability surface the lifecycle manager needs
// from whatever it's restarting — an embedding provider, a vector-store
// backend, anything with a gate and an in-flight counter.
type Provider interface {
	ID() string
	// SetAccepting toggles whether new operations are routed to this
	// provider. false closes the gate (phase 1).
	SetAccepting(accepting bool)
	// InFlight reports the number of operations currently in progress,
	// polled during drain (phase 2).
	InFlight() int
	// Close force-releases any held resources if drain times out.
	Close(ctx context.Context) error
}

// Factory reconstructs a provider of a given id from configuration
// (phase 4).
type Factory func(ctx context.Context) (Provider, error)

// Registry is the provider selection table the rest of the system
// reads from. Registering under an id that's already taken replaces
// the prior entry; Unregister is a no-op on an unknown id.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

func (r *Registry) Get(id string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[id]
	return p, ok
}

func (r *Registry) Register(p Provider) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[p.ID()] = p
}

func (r *Registry) Unregister(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.providers, id)
}

// Manager drives restarts. It satisfies recovery.Restarter.
type Manager struct {
	registry     *Registry
	factories    map[string]Factory
	drainTimeout time.Duration
	drainPoll    time.Duration
	limiter      *rate.Limiter
	bus          eventbus.Bus
	logger       *slog.Logger
}

// Config tunes drain behavior and the restart rate limit (restarts per
// second, with a small burst) ahead of the recreate phase so a flapping
// provider can't be reconstructed in a tight loop.
type Config struct {
	DrainTimeout  time.Duration
	DrainPoll     time.Duration
	RestartsPerSec rate.Limit
	RestartBurst  int
}

func DefaultConfig() Config {
	return Config{
		DrainTimeout:   DefaultDrainTimeout,
		DrainPoll:      50 * time.Millisecond,
		RestartsPerSec: rate.Every(time.Second),
		RestartBurst:   1,
	}
}

func New(registry *Registry, factories map[string]Factory, cfg Config, bus eventbus.Bus, logger *slog.Logger) *Manager {
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = DefaultDrainTimeout
	}
	if cfg.DrainPoll <= 0 {
		cfg.DrainPoll = 50 * time.Millisecond
	}
	if cfg.RestartBurst <= 0 {
		cfg.RestartBurst = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		registry:     registry,
		factories:    factories,
		drainTimeout: cfg.DrainTimeout,
		drainPoll:    cfg.DrainPoll,
		limiter:      rate.NewLimiter(cfg.RestartsPerSec, cfg.RestartBurst),
		bus:          bus,
		logger:       logger,
	}
}

// Restart executes the four phases for id. A failed recreate leaves
// the provider unregistered (Degraded, never silently broken) and
// returns the error so the caller's retry policy can act.
func (m *Manager) Restart(ctx context.Context, id string) error {
	factory, ok := m.factories[id]
	if !ok {
		return fmt.Errorf("lifecycle: no factory registered for %q", id)
	}

	if p, ok := m.registry.Get(id); ok {
		p.SetAccepting(false) // phase 1: stop new work
		m.drain(ctx, p)       // phase 2: drain
		m.registry.Unregister(id) // phase 3: unregister
	}

	if err := m.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("lifecycle: rate limit wait: %w", err)
	}

	newProvider, err := factory(ctx) // phase 4: recreate
	if err != nil {
		m.logger.Error("lifecycle: recreate failed, leaving unregistered", "provider", id, "error", err)
		return fmt.Errorf("lifecycle: recreate %q: %w", id, err)
	}

	m.registry.Register(newProvider)
	if _, pubErr := m.bus.Publish(ctx, eventbus.New(eventbus.ProviderRestarted, map[string]string{
		"provider_id": id,
	})); pubErr != nil {
		m.logger.Warn("lifecycle: publish ProviderRestarted failed", "provider", id, "error", pubErr)
	}
	return nil
}

// drain waits up to m.drainTimeout for in-flight operations to reach
// zero, force-closing on timeout rather than waiting indefinitely.
func (m *Manager) drain(ctx context.Context, p Provider) {
	deadline := time.Now().Add(m.drainTimeout)
	ticker := time.NewTicker(m.drainPoll)
	defer ticker.Stop()

	for {
		if p.InFlight() == 0 {
			return
		}
		if time.Now().After(deadline) {
			m.logger.Warn("lifecycle: drain timeout, force-closing", "provider", p.ID(), "in_flight", p.InFlight())
			if err := p.Close(context.Background()); err != nil {
				m.logger.Warn("lifecycle: force-close failed", "provider", p.ID(), "error", err)
			}
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
