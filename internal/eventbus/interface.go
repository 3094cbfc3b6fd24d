package eventbus

import "context"

// Subscription is a per-subscriber FIFO receiver. Events are delivered
// in publish order on Events(); no global order is promised across
// subscriptions. Close releases the subscription and its channel.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Bus is the §4.9 contract: publish/subscribe of closed-taxonomy
// events, in-process or distributed. Publish returns the number of
// subscribers the event was handed to (best-effort: a lagging
// in-process subscriber that drops the event is still counted as
// delivered, since delivery happened at the channel-send boundary).
type Bus interface {
	Publish(ctx context.Context, event Event) (int, error)
	Subscribe(ctx context.Context) Subscription
	SubscriberCount() int
	Close() error
}
