package notify

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInProcessNotifier_PublishAndSubscribe(t *testing.T) {
	n := NewInProcessNotifier()
	ctx := context.Background()

	streams := make(chan string, 8)
	cancel, err := n.Subscribe(ctx, func(stream string) { streams <- stream })
	require.NoError(t, err)
	defer cancel()

	require.NoError(t, n.Publish(ctx, StreamClicks))

	select {
	case stream := <-streams:
		assert.Equal(t, StreamClicks, stream)
	case <-time.After(2 * time.Second):
		t.Fatal("notification not delivered")
	}
}

func TestInProcessNotifier_PublishNeverBlocks(t *testing.T) {
	n := NewInProcessNotifier()
	ctx := context.Background()

	block := make(chan struct{})
	var calls atomic.Int64
	cancel, err := n.Subscribe(ctx, func(stream string) {
		calls.Add(1)
		<-block
	})
	require.NoError(t, err)
	defer cancel()
	defer close(block)

	// A slow subscriber must not stall publishers; bursts coalesce.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			_ = n.Publish(ctx, StreamConversions)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Publish blocked on a slow subscriber")
	}
}

func TestInProcessNotifier_Cancel(t *testing.T) {
	n := NewInProcessNotifier()
	ctx := context.Background()

	var calls atomic.Int64
	cancel, err := n.Subscribe(ctx, func(stream string) { calls.Add(1) })
	require.NoError(t, err)

	require.NoError(t, n.Publish(ctx, StreamClicks))
	require.Eventually(t, func() bool { return calls.Load() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	// Cancel twice is safe.
	cancel()

	require.NoError(t, n.Publish(ctx, StreamClicks))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, int64(1), calls.Load(), "no delivery after cancel")
}

func TestInProcessNotifier_MultipleSubscribers(t *testing.T) {
	n := NewInProcessNotifier()
	ctx := context.Background()

	var a, b atomic.Int64
	cancelA, err := n.Subscribe(ctx, func(string) { a.Add(1) })
	require.NoError(t, err)
	defer cancelA()
	cancelB, err := n.Subscribe(ctx, func(string) { b.Add(1) })
	require.NoError(t, err)
	defer cancelB()

	require.NoError(t, n.Publish(ctx, StreamClicks))

	require.Eventually(t, func() bool {
		return a.Load() == 1 && b.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)
}
