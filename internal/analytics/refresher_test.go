package analytics

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vijayg2124/affilink-performance-hub/internal/models"
	"github.com/vijayg2124/affilink-performance-hub/internal/notify"
	"go.uber.org/zap"
)

type mockEventSource struct {
	fetchFunc func(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error)
}

func (m *mockEventSource) FetchClicks(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
	return m.fetchFunc(ctx, userID, since)
}

func testEvents() []*models.ClickEvent {
	base := time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)
	return []*models.ClickEvent{
		makeClick("r1", base, "Amazon", "United States", "Desktop", 8.0),
		makeClick("r2", base.Add(time.Minute), "Flipkart", "Canada", "Mobile"),
	}
}

func TestRefresher_RefreshPopulatesSnapshot(t *testing.T) {
	source := &mockEventSource{
		fetchFunc: func(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
			assert.Equal(t, "user-1", userID)
			return testEvents(), nil
		},
	}

	r := NewRefresher(source, nil, nil, RefresherConfig{
		UserID: "user-1",
		Window: 30 * 24 * time.Hour,
	}, zap.NewNop(), nil)

	_, hasData := r.Snapshot()
	assert.False(t, hasData)

	require.NoError(t, r.Refresh(context.Background()))

	snap, hasData := r.Snapshot()
	require.True(t, hasData)
	assert.Equal(t, int64(2), snap.TotalClicks)
	assert.InDelta(t, 8.0, snap.TotalRevenue, 1e-9)
	assert.False(t, r.RefreshedAt().IsZero())
}

func TestRefresher_FetchErrorKeepsLastSnapshot(t *testing.T) {
	var fail atomic.Bool
	source := &mockEventSource{
		fetchFunc: func(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
			if fail.Load() {
				return nil, errors.New("database unavailable")
			}
			return testEvents(), nil
		},
	}

	r := NewRefresher(source, nil, nil, RefresherConfig{
		UserID: "user-1",
		Window: 30 * 24 * time.Hour,
	}, zap.NewNop(), nil)

	require.NoError(t, r.Refresh(context.Background()))

	fail.Store(true)
	err := r.Refresh(context.Background())
	require.Error(t, err)

	// The previous snapshot survives the failed cycle.
	snap, hasData := r.Snapshot()
	require.True(t, hasData)
	assert.Equal(t, int64(2), snap.TotalClicks)
}

func TestRefresher_NotificationTriggersRefresh(t *testing.T) {
	var fetches atomic.Int64
	source := &mockEventSource{
		fetchFunc: func(ctx context.Context, userID string, since time.Time) ([]*models.ClickEvent, error) {
			fetches.Add(1)
			return testEvents(), nil
		},
	}

	notifier := notify.NewInProcessNotifier()

	r := NewRefresher(source, notifier, nil, RefresherConfig{
		UserID:   "user-1",
		Window:   30 * 24 * time.Hour,
		Interval: time.Hour, // only notifications should fire in this test
	}, zap.NewNop(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	require.Eventually(t, func() bool {
		return fetches.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond, "initial refresh")

	require.NoError(t, notifier.Publish(context.Background(), notify.StreamClicks))

	require.Eventually(t, func() bool {
		return fetches.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond, "notification-driven refresh")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRefresher_DefaultInterval(t *testing.T) {
	r := NewRefresher(&mockEventSource{}, nil, nil, RefresherConfig{UserID: "u"}, zap.NewNop(), nil)
	assert.Equal(t, DefaultRefreshInterval, r.cfg.Interval)
}
