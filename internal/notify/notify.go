package notify

import (
	"context"
	"sync"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Logical change streams emitted by the event stores.
const (
	StreamClicks      = "affilink:events:clicks"
	StreamConversions = "affilink:events:conversions"
)

// Publisher announces that new rows were inserted on a logical stream.
type Publisher interface {
	Publish(ctx context.Context, stream string) error
}

// Notifier delivers change signals to a subscriber. Subscribe registers fn
// and returns a cancellation handle; fn is invoked at most once per change
// batch (bursts coalesce), and the subscriber is expected to respond with a
// full, idempotent refetch. Delivery is at-least-once overall.
type Notifier interface {
	Subscribe(ctx context.Context, fn func(stream string)) (func(), error)
}

// =============================================
// In-process implementation
// =============================================

// InProcessNotifier fans change signals out to subscribers in the same
// process. Used with the in-memory event store and in tests.
type InProcessNotifier struct {
	mu   sync.Mutex
	next int
	subs map[int]chan string
}

func NewInProcessNotifier() *InProcessNotifier {
	return &InProcessNotifier{
		subs: make(map[int]chan string),
	}
}

// Publish signals all subscribers. Never blocks: a subscriber that already
// has a pending signal coalesces this one into it.
func (n *InProcessNotifier) Publish(ctx context.Context, stream string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, ch := range n.subs {
		select {
		case ch <- stream:
		default:
		}
	}
	return nil
}

func (n *InProcessNotifier) Subscribe(ctx context.Context, fn func(stream string)) (func(), error) {
	ch := make(chan string, 1)

	n.mu.Lock()
	id := n.next
	n.next++
	n.subs[id] = ch
	n.mu.Unlock()

	done := make(chan struct{})
	go func() {
		for {
			select {
			case stream := <-ch:
				fn(stream)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			n.mu.Lock()
			delete(n.subs, id)
			n.mu.Unlock()
			close(done)
		})
	}
	return cancel, nil
}

// =============================================
// Redis pub/sub implementation
// =============================================

// RedisNotifier propagates change signals through Redis pub/sub so that a
// dashboard process learns about rows inserted by other processes.
type RedisNotifier struct {
	client *redis.Client
	logger *zap.Logger
}

func NewRedisNotifier(client *redis.Client, logger *zap.Logger) *RedisNotifier {
	return &RedisNotifier{client: client, logger: logger}
}

// Publish emits one message on the given stream channel.
func (n *RedisNotifier) Publish(ctx context.Context, stream string) error {
	return n.client.Publish(ctx, stream, "1").Err()
}

// Subscribe listens on both event stream channels and invokes fn once per
// coalesced batch of messages. The returned handle closes the subscription.
func (n *RedisNotifier) Subscribe(ctx context.Context, fn func(stream string)) (func(), error) {
	pubsub := n.client.Subscribe(ctx, StreamClicks, StreamConversions)

	// Force the subscription to be established before returning so callers
	// do not miss signals published right after Subscribe.
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, err
	}

	pending := make(chan string, 1)
	done := make(chan struct{})

	go func() {
		for msg := range pubsub.Channel() {
			select {
			case pending <- msg.Channel:
			default:
				// A signal is already pending; this batch coalesces.
			}
		}
	}()

	go func() {
		for {
			select {
			case stream := <-pending:
				fn(stream)
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			close(done)
			if err := pubsub.Close(); err != nil {
				n.logger.Warn("failed to close pubsub", zap.Error(err))
			}
		})
	}
	return cancel, nil
}
