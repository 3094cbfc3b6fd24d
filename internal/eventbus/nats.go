package eventbus

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
)

const natsSubjectPrefix = "sourcelens.events."

// natsSubject binds an event type to its wire subject, mirroring the
// topic-per-event-type convention used for operation events
// (operations.{owner}.{id}.{phase}), simplified here since bus events
// carry no per-tenant routing key.
func natsSubject(typ Type) string {
	return natsSubjectPrefix + string(typ)
}

// NATSBus is the distributed backend: every event type is published to
// its own subject, and subscribers receive the union via a wildcard
// subscription. A subscriber that fails to deserialize a message logs
// and skips it rather than tearing down the subscription.
type NATSBus struct {
	conn   *nats.Conn
	logger *slog.Logger

	mu   sync.RWMutex
	subs map[*natsSub]*nats.Subscription
}

type natsSub struct {
	bus  *NATSBus
	ch   chan Event
	once sync.Once
}

func (s *natsSub) Events() <-chan Event {
	return s.ch
}

func (s *natsSub) Close() {
	s.once.Do(func() {
		s.bus.mu.Lock()
		sub := s.bus.subs[s]
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
		if sub != nil {
			_ = sub.Unsubscribe()
		}
		close(s.ch)
	})
}

// NewNATSBus wraps an existing connection. Callers own the connection's
// lifecycle; Close does not close conn.
func NewNATSBus(conn *nats.Conn, logger *slog.Logger) *NATSBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSBus{conn: conn, logger: logger, subs: make(map[*natsSub]*nats.Subscription)}
}

func (b *NATSBus) Publish(ctx context.Context, event Event) (int, error) {
	event.CreatedAt = time.Now()
	data, err := json.Marshal(event)
	if err != nil {
		return 0, err
	}
	if err := b.conn.Publish(natsSubject(event.Type), data); err != nil {
		return 0, err
	}
	return b.SubscriberCount(), nil
}

func (b *NATSBus) Subscribe(ctx context.Context) Subscription {
	sub := &natsSub{bus: b, ch: make(chan Event, DefaultChannelBufferSize)}

	nsub, err := b.conn.Subscribe(natsSubjectPrefix+">", func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			b.logger.Warn("eventbus: dropping undecodable message", "subject", msg.Subject, "error", err)
			return
		}
		select {
		case sub.ch <- event:
		default:
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
		}
	})
	if err != nil {
		b.logger.Error("eventbus: subscribe failed", "error", err)
		close(sub.ch)
		return sub
	}

	b.mu.Lock()
	b.subs[sub] = nsub
	b.mu.Unlock()

	if ctx != nil {
		go func() {
			<-ctx.Done()
			sub.Close()
		}()
	}

	return sub
}

func (b *NATSBus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}

func (b *NATSBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	for sub, nsub := range b.subs {
		_ = nsub.Unsubscribe()
		close(sub.ch)
		delete(b.subs, sub)
	}
	return nil
}
